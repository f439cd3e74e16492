// internal/recon/retrieval/fuzzy.go
package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vocab-reconciler/internal/common/database"
	"vocab-reconciler/internal/common/metrics"
	"vocab-reconciler/internal/models"
	"vocab-reconciler/internal/recon/strategy"
)

// FuzzyRetriever issues trigram-similarity statements against an entity's
// lookup view. It does not retry; failures surface as retrieval errors after
// the session has rolled back.
type FuzzyRetriever struct {
	deadline time.Duration
}

// NewFuzzyRetriever creates a fuzzy retriever with a per-call deadline.
func NewFuzzyRetriever(deadline time.Duration) *FuzzyRetriever {
	return &FuzzyRetriever{deadline: deadline}
}

// Search returns up to the strategy's k_fuzzy rows scored by trigram
// similarity in [0,1], sorted score descending with id-ascending tie-break.
func (r *FuzzyRetriever) Search(ctx context.Context, sess *database.Session, strat *strategy.EntityStrategy, normalized string, filters []Filter) ([]models.RetrievalHit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	timer := prometheus.NewTimer(metrics.RetrievalDuration.WithLabelValues("fuzzy"))
	defer timer.ObserveDuration()

	query, args := buildFuzzySQL(strat, normalized, filters)

	var hits []models.RetrievalHit
	meta := database.StatementMeta{Entity: strat.Key, Query: normalized, Channel: "fuzzy"}
	err := sess.Query(ctx, meta, query, args, func(rows *sql.Rows) error {
		for rows.Next() {
			var hit models.RetrievalHit
			if err := rows.Scan(&hit.ID, &hit.Name, &hit.Description, &hit.Score); err != nil {
				return err
			}
			hit.Score = clamp01(hit.Score)
			hits = append(hits, hit)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return hits, nil
}

func buildFuzzySQL(s *strategy.EntityStrategy, normalized string, filters []Filter) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b,
		"SELECT %s::text, %s, %s, similarity(lower(%s), $1) AS score FROM %s WHERE lower(%s) %% $1",
		s.IDColumn, s.LabelColumn, descriptionExpr(s), s.LabelColumn, s.View, s.LabelColumn,
	)

	args := []interface{}{normalized}
	for _, f := range filters {
		args = append(args, f.arg())
		fmt.Fprintf(&b, " AND %s", f.clause(len(args)))
	}

	fmt.Fprintf(&b, " ORDER BY score DESC, %s ASC LIMIT %d", s.IDColumn, s.KFuzzy)
	return b.String(), args
}

func descriptionExpr(s *strategy.EntityStrategy) string {
	if s.DescriptionColumn == "" {
		return "''"
	}
	return fmt.Sprintf("COALESCE(%s, '')", s.DescriptionColumn)
}

func clamp01(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
