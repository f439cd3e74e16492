// Package engine composes the per-sub-query pipeline: strategy resolution,
// normalization, cache lookup, the two retrieval channels and the blend stage.
package engine

import (
	"context"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/internal/common/database"
	"vocab-reconciler/internal/common/logger"
	"vocab-reconciler/internal/embedding"
	"vocab-reconciler/internal/models"
	"vocab-reconciler/internal/recon/blend"
	"vocab-reconciler/internal/recon/cache"
	"vocab-reconciler/internal/recon/normalize"
	"vocab-reconciler/internal/recon/retrieval"
	"vocab-reconciler/internal/recon/strategy"
)

// Engine runs one sub-query end to end against a caller-supplied session.
// It is stateless across calls and safe for concurrent use.
type Engine struct {
	registry *strategy.Registry
	fuzzy    *retrieval.FuzzyRetriever
	semantic *retrieval.SemanticRetriever
	embedder embedding.Embedder
	cache    *cache.CandidateCache
	cfg      config.EngineConfig
	logger   logger.Logger
}

// New creates an Engine. The embedder may be nil when no embedding provider
// is configured; semantic retrieval is then skipped for every entity type.
func New(
	registry *strategy.Registry,
	embedder embedding.Embedder,
	candidateCache *cache.CandidateCache,
	cfg config.EngineConfig,
	log logger.Logger,
) *Engine {
	return &Engine{
		registry: registry,
		fuzzy:    retrieval.NewFuzzyRetriever(cfg.FuzzyDeadline()),
		semantic: retrieval.NewSemanticRetriever(cfg.SemanticDeadline()),
		embedder: embedder,
		cache:    candidateCache,
		cfg:      cfg,
		logger:   log,
	}
}

// FindCandidates resolves, retrieves and ranks candidates for one sub-query.
// Errors are sub-query local: the caller maps them to an empty result and
// the session is already rolled back by the time this returns.
func (e *Engine) FindCandidates(ctx context.Context, sess *database.Session, q models.ReconciliationQuery) ([]models.Candidate, error) {
	strat, err := e.resolveStrategy(q.Type)
	if err != nil {
		return nil, err
	}

	normalized, err := normalize.Normalize(q.Query)
	if err != nil {
		return nil, err
	}

	cacheKey := cache.Key(strat.Key, normalized, strat.KFuzzy, strat.KSemantic, q.Properties)
	if cached, ok := e.cache.Get(ctx, cacheKey); ok {
		return e.rank(cached, strat, q), nil
	}

	filters := e.resolveFilters(strat, q.Properties)

	fuzzyHits, err := e.fuzzy.Search(ctx, sess, strat, normalized, filters)
	if err != nil {
		return nil, err
	}

	semanticHits, err := e.semanticHits(ctx, sess, strat, normalized, filters)
	if err != nil {
		return nil, err
	}

	// Blend at the engine-wide cap, not the caller's limit. The cache key
	// excludes the limit, so entries must hold everything any caller sharing
	// the key could be owed; the caller's limit is applied by rank.
	opts := e.blendOptions(strat, q)
	opts.Limit = e.cfg.KFinal
	candidates := blend.Blend(fuzzyHits, semanticHits, opts)

	e.cache.Put(ctx, cacheKey, candidates)

	return e.rank(candidates, strat, q), nil
}

// semanticHits runs the semantic channel when the entity carries embeddings
// and a provider is wired. An embedding provider failure degrades the
// sub-query to lexical-only instead of failing it; a data-access failure
// inside the search propagates like any other retrieval failure.
func (e *Engine) semanticHits(ctx context.Context, sess *database.Session, strat *strategy.EntityStrategy, normalized string, filters []retrieval.Filter) ([]models.RetrievalHit, error) {
	if !strat.EmbeddingEnabled || e.embedder == nil {
		return nil, nil
	}

	vector, err := e.embedder.EmbedText(ctx, normalized)
	if err != nil {
		e.logger.Warn("embedding provider failed, continuing lexical-only", map[string]interface{}{
			"entity": strat.Key,
			"error":  err.Error(),
		})
		return nil, nil
	}

	return e.semantic.Search(ctx, sess, strat, normalized, vector, filters)
}

func (e *Engine) resolveStrategy(entityType string) (*strategy.EntityStrategy, error) {
	if entityType == "" {
		return e.registry.Default(e.cfg.DefaultType)
	}
	return e.registry.Resolve(entityType)
}

// resolveFilters maps sub-query property constraints onto view columns.
// Constraints the strategy does not know are dropped rather than failing the
// sub-query; callers legitimately send properties meant for other services.
func (e *Engine) resolveFilters(strat *strategy.EntityStrategy, props []models.PropertyConstraint) []retrieval.Filter {
	if len(props) == 0 {
		return nil
	}

	filters := make([]retrieval.Filter, 0, len(props))
	for _, p := range props {
		col, ok := strat.FilterColumn(p.PID)
		if !ok {
			e.logger.Debug("ignoring unsupported property constraint", map[string]interface{}{
				"entity": strat.Key,
				"pid":    p.PID,
			})
			continue
		}
		filters = append(filters, retrieval.Filter{Column: col, Value: p.Value})
	}
	return filters
}

func (e *Engine) blendOptions(strat *strategy.EntityStrategy, q models.ReconciliationQuery) blend.Options {
	limit := q.EffectiveLimit()
	if e.cfg.KFinal > 0 && e.cfg.KFinal < limit {
		limit = e.cfg.KFinal
	}

	return blend.Options{
		LexicalWeight:   strat.LexicalWeight,
		SemanticWeight:  strat.SemanticWeight,
		Threshold:       strat.Threshold,
		AutoMatchBound:  strat.AutoMatchBound,
		AutoMatchMargin: strat.AutoMatchMargin,
		Limit:           limit,
		Types:           []models.TypeRef{strat.TypeRef()},
	}
}

// rank re-applies truncation and the match policy to cached candidates. The
// cache stores the full blended list for the entity and query text; the
// caller's limit can differ between requests sharing the key.
func (e *Engine) rank(cached []models.Candidate, strat *strategy.EntityStrategy, q models.ReconciliationQuery) []models.Candidate {
	opts := e.blendOptions(strat, q)

	out := cached
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}

	ranked := make([]models.Candidate, len(out))
	copy(ranked, out)
	for i := range ranked {
		ranked[i].Match = false
	}

	// Cached entries lose the per-channel scores; Score carries the blend.
	for i := range ranked {
		ranked[i].Scores.Blend = ranked[i].Score
	}
	blend.ApplyAutoMatch(ranked, opts)

	return ranked
}
