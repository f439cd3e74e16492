package blend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vocab-reconciler/internal/models"
)

func defaultOptions() Options {
	return Options{
		LexicalWeight:   0.5,
		SemanticWeight:  0.5,
		Threshold:       0.6,
		AutoMatchBound:  0.9,
		AutoMatchMargin: 0.1,
		Limit:           10,
		Types:           []models.TypeRef{{ID: "location", Name: "Location"}},
	}
}

func hit(id, name string, score float64) models.RetrievalHit {
	return models.RetrievalHit{ID: id, Name: name, Score: score}
}

func TestBlend_MergesChannelsByID(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "Uppland", 0.9)}
	semantic := []models.RetrievalHit{hit("1", "Uppland", 0.7), hit("2", "Uppsala", 0.8)}

	got := Blend(fuzzy, semantic, defaultOptions())

	// id 1: 0.5*0.9 + 0.5*0.7 = 0.8 survives; id 2: 0.5*0 + 0.5*0.8 = 0.4
	// falls below the 0.6 threshold.
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
	assert.InDelta(t, 0.8, got[0].Scores.Blend, 1e-9)
	assert.InDelta(t, 0.9, got[0].Scores.Lexical, 1e-9)
	assert.InDelta(t, 0.7, got[0].Scores.Semantic, 1e-9)
}

func TestBlend_PartialChannelHitPenalizedNotDropped(t *testing.T) {
	opts := defaultOptions()
	opts.Threshold = 0.3

	fuzzy := []models.RetrievalHit{hit("1", "Uppland", 0.8)}
	got := Blend(fuzzy, nil, opts)

	require.Len(t, got, 1)
	assert.InDelta(t, 0.4, got[0].Scores.Blend, 1e-9)
	assert.Equal(t, 0.0, got[0].Scores.Semantic)
}

func TestBlend_NoDuplicateIDs(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "Uppland", 0.9), hit("2", "Uppsala", 0.9)}
	semantic := []models.RetrievalHit{hit("1", "Uppland", 0.9), hit("2", "Uppsala", 0.9)}

	got := Blend(fuzzy, semantic, defaultOptions())

	seen := make(map[string]bool)
	for _, c := range got {
		assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
		seen[c.ID] = true
	}
	assert.Len(t, got, 2)
}

func TestBlend_DeterministicTieBreakByID(t *testing.T) {
	fuzzy := []models.RetrievalHit{
		hit("b", "Beta", 0.8),
		hit("a", "Alpha", 0.8),
		hit("c", "Gamma", 0.8),
	}

	first := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.5, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})
	second := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.5, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	require.Len(t, first, 3)
	assert.Equal(t, "a", first[0].ID)
	assert.Equal(t, "b", first[1].ID)
	assert.Equal(t, "c", first[2].ID)
	assert.Equal(t, first, second)
}

func TestBlend_ThresholdLaw(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "High", 0.9), hit("2", "Low", 0.3)}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	for _, c := range got {
		assert.GreaterOrEqual(t, c.Scores.Blend, 0.6)
	}
	require.Len(t, got, 1)
	assert.Equal(t, "1", got[0].ID)
}

func TestBlend_TruncatesToLimit(t *testing.T) {
	opts := defaultOptions()
	opts.Threshold = 0
	opts.Limit = 2

	fuzzy := []models.RetrievalHit{
		hit("1", "A", 0.9), hit("2", "B", 0.8), hit("3", "C", 0.7),
	}
	got := Blend(fuzzy, nil, opts)
	assert.Len(t, got, 2)
}

func TestBlend_AutoMatchSingleClearWinner(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "Uppland", 0.96), hit("2", "Uppsala", 0.7)}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	require.Len(t, got, 2)
	assert.True(t, got[0].Match)
	assert.False(t, got[1].Match)
}

func TestBlend_NoAutoMatchBelowBound(t *testing.T) {
	// Scenario from the ranking policy: a lone lexical hit at blend 0.72 is
	// above threshold but below the auto-match bound.
	fuzzy := []models.RetrievalHit{hit("1", "Uppland", 0.72)}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	require.Len(t, got, 1)
	assert.False(t, got[0].Match)
}

func TestBlend_NoAutoMatchWithinMargin(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "A", 0.95), hit("2", "B", 0.91)}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	require.Len(t, got, 2)
	assert.False(t, got[0].Match)
	assert.False(t, got[1].Match)
}

func TestBlend_TiesForTopNeverAutoMatch(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "A", 0.95), hit("2", "B", 0.95)}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0, Limit: 10})

	require.Len(t, got, 2)
	assert.False(t, got[0].Match)
	assert.False(t, got[1].Match)
}

func TestBlend_SoleSurvivorAboveBoundAutoMatches(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "A", 0.95)}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	require.Len(t, got, 1)
	assert.True(t, got[0].Match)
}

func TestBlend_EmptyWhenNothingSurvives(t *testing.T) {
	fuzzy := []models.RetrievalHit{hit("1", "xyzzynonexistent", 0.1)}

	got := Blend(fuzzy, nil, defaultOptions())
	assert.Empty(t, got)
}

func TestBlend_AtMostOneMatchPerQuery(t *testing.T) {
	fuzzy := []models.RetrievalHit{
		hit("1", "A", 0.99), hit("2", "B", 0.65), hit("3", "C", 0.62),
	}

	got := Blend(fuzzy, nil, Options{LexicalWeight: 1, SemanticWeight: 0, Threshold: 0.6, AutoMatchBound: 0.9, AutoMatchMargin: 0.1, Limit: 10})

	matches := 0
	for _, c := range got {
		if c.Match {
			matches++
		}
	}
	assert.LessOrEqual(t, matches, 1)
}
