// pkg/registry/schema.go
package registry

// StrategyCatalog is the on-disk catalog of entity strategies. One catalog
// file describes every entity type the service reconciles against.
type StrategyCatalog struct {
	Version     string        `json:"version"`
	LastUpdated string        `json:"lastUpdated"`
	Strategies  []StrategyDef `json:"strategies"`
}

// StrategyDef is one entity-type entry. Zero-valued tuning fields inherit
// the engine-wide defaults at build time.
type StrategyDef struct {
	Key               string            `json:"key"`
	DisplayName       string            `json:"displayName"`
	View              string            `json:"view"`
	IDColumn          string            `json:"idColumn"`
	LabelColumn       string            `json:"labelColumn"`
	DescriptionColumn string            `json:"descriptionColumn,omitempty"`
	EmbeddingColumn   string            `json:"embeddingColumn,omitempty"`
	EmbeddingEnabled  bool              `json:"embeddingEnabled"`
	Filters           map[string]string `json:"filters,omitempty"`
	LexicalWeight     *float64          `json:"lexicalWeight,omitempty"`
	SemanticWeight    *float64          `json:"semanticWeight,omitempty"`
	Threshold         *float64          `json:"threshold,omitempty"`
	AutoMatchBound    *float64          `json:"autoMatchBound,omitempty"`
	AutoMatchMargin   *float64          `json:"autoMatchMargin,omitempty"`
	KFuzzy            int               `json:"kFuzzy,omitempty"`
	KSemantic         int               `json:"kSemantic,omitempty"`
}
