// Package strategy maps entity-type keys to the entity-specific retrieval
// configuration. The registry is populated once at startup and read-only
// thereafter; registration is not on the request hot path.
package strategy

import (
	"fmt"
	"math"

	"vocab-reconciler/internal/models"
)

// EntityStrategy binds one entity type to its lookup view and ranking policy.
// Read-only after registration.
type EntityStrategy struct {
	// Key is the entity-type identifier used in sub-query type filters.
	Key string
	// DisplayName is the human-readable type name returned on the wire.
	DisplayName string

	// View is the lookup view backing both retrieval channels.
	View        string
	IDColumn    string
	LabelColumn string
	// DescriptionColumn is optional; empty means the view has no description.
	DescriptionColumn string
	// EmbeddingColumn names the vector column; only consulted when
	// EmbeddingEnabled is set.
	EmbeddingColumn string

	// Filters maps allowed property constraint ids to view columns.
	Filters map[string]string

	// EmbeddingEnabled marks the entity as having precomputed embeddings.
	// When false the semantic channel is skipped entirely.
	EmbeddingEnabled bool

	LexicalWeight  float64
	SemanticWeight float64

	Threshold       float64
	AutoMatchBound  float64
	AutoMatchMargin float64

	KFuzzy    int
	KSemantic int
}

// TypeRef returns the wire representation of this entity type.
func (s *EntityStrategy) TypeRef() models.TypeRef {
	return models.TypeRef{ID: s.Key, Name: s.DisplayName}
}

// FilterColumn resolves a property constraint id to its view column,
// reporting whether the strategy supports it.
func (s *EntityStrategy) FilterColumn(pid string) (string, bool) {
	col, ok := s.Filters[pid]
	return col, ok
}

const weightEpsilon = 1e-9

func (s *EntityStrategy) validate() error {
	if s.Key == "" {
		return fmt.Errorf("key is empty")
	}
	if s.View == "" || s.IDColumn == "" || s.LabelColumn == "" {
		return fmt.Errorf("view, id column and label column are required")
	}
	if s.EmbeddingEnabled && s.EmbeddingColumn == "" {
		return fmt.Errorf("embedding column is required when embeddings are enabled")
	}
	if s.LexicalWeight < 0 || s.SemanticWeight < 0 {
		return fmt.Errorf("weights must be non-negative")
	}
	if math.Abs(s.LexicalWeight+s.SemanticWeight-1.0) > weightEpsilon {
		return fmt.Errorf("weights must sum to 1.0, got %.4f", s.LexicalWeight+s.SemanticWeight)
	}
	if s.Threshold < 0 || s.Threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1]")
	}
	if s.KFuzzy <= 0 || s.KSemantic <= 0 {
		return fmt.Errorf("k_fuzzy and k_semantic must be positive")
	}
	return nil
}
