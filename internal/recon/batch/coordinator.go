// Package batch fans a reconciliation batch out over its sub-queries and
// assembles the response. Sub-query failures are isolated: a failing entry
// contributes an empty result and the batch continues.
package batch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"vocab-reconciler/internal/common/database"
	reconerrors "vocab-reconciler/internal/common/errors"
	"vocab-reconciler/internal/common/logger"
	"vocab-reconciler/internal/common/metrics"
	"vocab-reconciler/internal/common/observability"
	"vocab-reconciler/internal/genai"
	"vocab-reconciler/internal/models"
)

// CandidateFinder runs one sub-query end to end against a session.
type CandidateFinder interface {
	FindCandidates(ctx context.Context, sess *database.Session, q models.ReconciliationQuery) ([]models.Candidate, error)
}

// Coordinator executes batches. Safe for concurrent use; each Reconcile call
// owns its sessions.
type Coordinator struct {
	db         *database.PostgresClient
	finder     CandidateFinder
	summarizer genai.Summarizer
	obs        *observability.Observability
	parallel   bool
	logger     logger.Logger
}

// NewCoordinator creates a Coordinator. summarizer and obs may be nil.
// With parallel set, every sub-query runs on its own session; otherwise the
// batch shares one session and runs entries in input order.
func NewCoordinator(
	db *database.PostgresClient,
	finder CandidateFinder,
	summarizer genai.Summarizer,
	obs *observability.Observability,
	parallel bool,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		db:         db,
		finder:     finder,
		summarizer: summarizer,
		obs:        obs,
		parallel:   parallel,
		logger:     log,
	}
}

// Reconcile processes every sub-query in the batch and returns a response
// whose key set and ordering mirror the input. It never returns an error:
// per-entry failures become empty results, recorded in the logs and metrics.
func (c *Coordinator) Reconcile(ctx context.Context, batch *models.Batch) *models.BatchResponse {
	start := time.Now()
	metrics.BatchesTotal.Inc()

	batchLog := c.logger.With(map[string]interface{}{
		"batchId": uuid.New().String(),
		"size":    len(batch.Keys),
	})

	resp := &models.BatchResponse{
		Keys:    batch.Keys,
		Results: make(map[string]models.QueryResult, len(batch.Keys)),
	}

	if c.parallel {
		c.reconcileParallel(ctx, batch, resp, batchLog)
	} else {
		c.reconcileSequential(ctx, batch, resp, batchLog)
	}

	if c.obs != nil {
		c.obs.RecordBatchDuration(ctx, time.Since(start), len(batch.Keys))
	}

	return resp
}

func (c *Coordinator) reconcileSequential(ctx context.Context, batch *models.Batch, resp *models.BatchResponse, batchLog logger.Logger) {
	sess := c.db.NewSession(ctx)
	defer sess.Close()

	for _, key := range batch.Keys {
		resp.Results[key] = c.runSubQuery(ctx, sess, key, batch.Queries[key], batchLog)
	}
}

func (c *Coordinator) reconcileParallel(ctx context.Context, batch *models.Batch, resp *models.BatchResponse, batchLog logger.Logger) {
	results := make([]models.QueryResult, len(batch.Keys))

	var wg sync.WaitGroup
	for i, key := range batch.Keys {
		wg.Add(1)
		go func(i int, key string) {
			defer wg.Done()
			sess := c.db.NewSession(ctx)
			defer sess.Close()
			results[i] = c.runSubQuery(ctx, sess, key, batch.Queries[key], batchLog)
		}(i, key)
	}
	wg.Wait()

	for i, key := range batch.Keys {
		resp.Results[key] = results[i]
	}
}

// runSubQuery executes one entry and maps any failure to an explicit empty
// result. The session has already rolled back by the time an error reaches
// this frame, so the next entry starts clean.
func (c *Coordinator) runSubQuery(ctx context.Context, sess *database.Session, key string, q models.ReconciliationQuery, batchLog logger.Logger) models.QueryResult {
	candidates, err := c.finder.FindCandidates(ctx, sess, q)
	if err != nil {
		batchLog.WithError(err).Warn("sub-query failed, returning empty result", map[string]interface{}{
			"key":    key,
			"query":  q.Query,
			"entity": q.Type,
		})
		c.recordSubquery(ctx, q.Type, outcomeFor(err))
		return models.QueryResult{Result: []models.Candidate{}}
	}

	c.recordSubquery(ctx, q.Type, "ok")

	result := models.QueryResult{Result: candidates}
	if result.Result == nil {
		result.Result = []models.Candidate{}
	}

	if c.summarizer != nil && len(candidates) > 1 {
		rationale, err := c.summarizer.Summarize(ctx, q.Query, candidates)
		if err != nil {
			batchLog.WithError(err).Warn("disambiguation summary failed, omitting rationale", map[string]interface{}{
				"key": key,
			})
		} else {
			result.Rationale = rationale
		}
	}

	return result
}

func (c *Coordinator) recordSubquery(ctx context.Context, entity, outcome string) {
	if entity == "" {
		entity = "default"
	}
	metrics.SubqueriesTotal.WithLabelValues(entity, outcome).Inc()
	if c.obs != nil {
		c.obs.RecordSubquery(ctx, entity, outcome)
	}
}

func outcomeFor(err error) string {
	switch {
	case reconerrors.HasCode(err, reconerrors.ErrCodeEmptyQuery):
		return "empty_query"
	case reconerrors.HasCode(err, reconerrors.ErrCodeUnknownEntity):
		return "unknown_entity"
	case reconerrors.HasCode(err, reconerrors.ErrCodeRetrievalTimeout):
		return "timeout"
	default:
		return "error"
	}
}
