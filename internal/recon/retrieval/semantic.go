// internal/recon/retrieval/semantic.go
package retrieval

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/prometheus/client_golang/prometheus"

	"vocab-reconciler/internal/common/database"
	"vocab-reconciler/internal/common/metrics"
	"vocab-reconciler/internal/models"
	"vocab-reconciler/internal/recon/strategy"
)

// SemanticRetriever issues vector-similarity statements using a precomputed
// query embedding. Entities that are not embedding-enabled never reach this
// retriever; the engine skips the channel entirely for them.
type SemanticRetriever struct {
	deadline time.Duration
}

// NewSemanticRetriever creates a semantic retriever with a per-call deadline.
func NewSemanticRetriever(deadline time.Duration) *SemanticRetriever {
	return &SemanticRetriever{deadline: deadline}
}

// Search returns up to the strategy's k_semantic rows scored by
// 1 - cosine_distance, clamped into [0,1], sorted score descending with
// id-ascending tie-break.
func (r *SemanticRetriever) Search(ctx context.Context, sess *database.Session, strat *strategy.EntityStrategy, normalized string, embedding []float32, filters []Filter) ([]models.RetrievalHit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.deadline)
	defer cancel()

	timer := prometheus.NewTimer(metrics.RetrievalDuration.WithLabelValues("semantic"))
	defer timer.ObserveDuration()

	query, args := buildSemanticSQL(strat, embedding, filters)

	var hits []models.RetrievalHit
	meta := database.StatementMeta{Entity: strat.Key, Query: normalized, Channel: "semantic"}
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

func buildSemanticSQL(s *strategy.EntityStrategy, embedding []float32, filters []Filter) (string, []interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b,
		"SELECT %s::text, %s, %s, GREATEST(0.0, LEAST(1.0, 1.0 - (%s <=> $1))) AS score FROM %s WHERE %s IS NOT NULL",
		s.IDColumn, s.LabelColumn, descriptionExpr(s), s.EmbeddingColumn, s.View, s.EmbeddingColumn,
	)

	args := []interface{}{pgvector.NewVector(embedding)}
	for _, f := range filters {
		args = append(args, f.arg())
		fmt.Fprintf(&b, " AND %s", f.clause(len(args)))
	}

	fmt.Fprintf(&b, " ORDER BY score DESC, %s ASC LIMIT %d", s.IDColumn, s.KSemantic)
	return b.String(), args
}
