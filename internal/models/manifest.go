// internal/models/manifest.go
package models

// Manifest is the service descriptor served to the consuming curation tool on
// GET /reconcile.
type Manifest struct {
	Versions        []string  `json:"versions"`
	Name            string    `json:"name"`
	IdentifierSpace string    `json:"identifierSpace"`
	SchemaSpace     string    `json:"schemaSpace"`
	DefaultTypes    []TypeRef `json:"defaultTypes"`
}
