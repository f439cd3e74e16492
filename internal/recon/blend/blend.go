// Package blend unions, deduplicates, scores, sorts and truncates the
// candidates coming out of the two retrieval channels, and applies the
// match/no-match decision policy.
package blend

import (
	"sort"

	"vocab-reconciler/internal/models"
)

// Options carries the ranking policy for one blend call. Weights are
// validated at strategy registration; thresholds are tunable policy.
type Options struct {
	LexicalWeight   float64
	SemanticWeight  float64
	Threshold       float64
	AutoMatchBound  float64
	AutoMatchMargin float64
	// Limit is min(k_final, requested limit), resolved by the caller.
	Limit int
	Types []models.TypeRef
}

// Blend merges the two hit lists into one ranked, deduplicated,
// threshold-filtered candidate list. An id present in only one channel keeps
// a zero score for the missing channel: partial-channel hits are penalized,
// not disqualified.
func Blend(fuzzyHits, semanticHits []models.RetrievalHit, opts Options) []models.Candidate {
	merged := make(map[string]*models.Candidate)

	for _, hit := range fuzzyHits {
		merged[hit.ID] = &models.Candidate{
			ID:          hit.ID,
			Name:        hit.Name,
			Types:       opts.Types,
			Description: hit.Description,
			Scores:      models.ScoreSet{Lexical: hit.Score},
		}
	}

	for _, hit := range semanticHits {
		if existing, ok := merged[hit.ID]; ok {
			existing.Scores.Semantic = hit.Score
			if existing.Description == "" {
				existing.Description = hit.Description
			}
			continue
		}
		merged[hit.ID] = &models.Candidate{
			ID:          hit.ID,
			Name:        hit.Name,
			Types:       opts.Types,
			Description: hit.Description,
			Scores:      models.ScoreSet{Semantic: hit.Score},
		}
	}

	candidates := make([]models.Candidate, 0, len(merged))
	for _, c := range merged {
		c.Scores.Blend = opts.LexicalWeight*c.Scores.Lexical + opts.SemanticWeight*c.Scores.Semantic
		c.Score = c.Scores.Blend
		candidates = append(candidates, *c)
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Scores.Blend != candidates[j].Scores.Blend {
			return candidates[i].Scores.Blend > candidates[j].Scores.Blend
		}
		return candidates[i].ID < candidates[j].ID
	})

	if opts.Limit > 0 && len(candidates) > opts.Limit {
		candidates = candidates[:opts.Limit]
	}

	survivors := candidates[:0]
	for _, c := range candidates {
		if c.Scores.Blend >= opts.Threshold {
			survivors = append(survivors, c)
		}
	}
	candidates = survivors

	ApplyAutoMatch(candidates, opts)

	return candidates
}

// ApplyAutoMatch marks at most the single top candidate as an automatic
// match: its blend must reach the auto-match bound and clear the runner-up by
// the configured margin. Ties for top place never auto-match; that would
// silently pick an arbitrary winner. Exposed for callers replaying cached
// candidate lists under a different limit.
func ApplyAutoMatch(candidates []models.Candidate, opts Options) {
	if len(candidates) == 0 {
		return
	}

	top := candidates[0].Scores.Blend
	if top < opts.AutoMatchBound {
		return
	}

	if len(candidates) > 1 {
		second := candidates[1].Scores.Blend
		if top == second || top-second < opts.AutoMatchMargin {
			return
		}
	}

	candidates[0].Match = true
}
