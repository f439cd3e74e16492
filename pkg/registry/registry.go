// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"vocab-reconciler/internal/common/config"
	"vocab-reconciler/internal/recon/strategy"
)

// LoadCatalog reads and decodes a strategy catalog file.
func LoadCatalog(path string) (*StrategyCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read strategy catalog: %w", err)
	}
	var catalog StrategyCatalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("decode strategy catalog: %w", err)
	}
	return &catalog, nil
}

// Build registers every catalog entry into a fresh strategy registry,
// filling unset tuning fields from the engine defaults. Registration
// failures fail fast; a service with a broken catalog must not start.
func Build(catalog *StrategyCatalog, defaults config.EngineConfig) (*strategy.Registry, error) {
	reg := strategy.NewRegistry()
	for _, def := range catalog.Strategies {
		if err := reg.Register(materialize(def, defaults)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func materialize(def StrategyDef, defaults config.EngineConfig) *strategy.EntityStrategy {
	s := &strategy.EntityStrategy{
		Key:               def.Key,
		DisplayName:       def.DisplayName,
		View:              def.View,
		IDColumn:          def.IDColumn,
		LabelColumn:       def.LabelColumn,
		DescriptionColumn: def.DescriptionColumn,
		EmbeddingColumn:   def.EmbeddingColumn,
		EmbeddingEnabled:  def.EmbeddingEnabled,
		Filters:           def.Filters,
		Threshold:         defaults.Threshold,
		AutoMatchBound:    defaults.AutoMatchBound,
		AutoMatchMargin:   defaults.AutoMatchMargin,
		KFuzzy:            defaults.KFuzzy,
		KSemantic:         defaults.KSemantic,
	}

	// Weights default by channel availability: an entity without embeddings
	// is scored purely lexically.
	if def.EmbeddingEnabled {
		s.LexicalWeight, s.SemanticWeight = 0.5, 0.5
	} else {
		s.LexicalWeight, s.SemanticWeight = 1.0, 0.0
	}

	if def.LexicalWeight != nil {
		s.LexicalWeight = *def.LexicalWeight
	}
	if def.SemanticWeight != nil {
		s.SemanticWeight = *def.SemanticWeight
	}
	if def.Threshold != nil {
		s.Threshold = *def.Threshold
	}
	if def.AutoMatchBound != nil {
		s.AutoMatchBound = *def.AutoMatchBound
	}
	if def.AutoMatchMargin != nil {
		s.AutoMatchMargin = *def.AutoMatchMargin
	}
	if def.KFuzzy > 0 {
		s.KFuzzy = def.KFuzzy
	}
	if def.KSemantic > 0 {
		s.KSemantic = def.KSemantic
	}

	return s
}
