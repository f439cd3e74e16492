// Package validation checks batch payloads for structural soundness before
// they reach the coordinator. Structural problems fail the whole request;
// everything past this gate is recovered per sub-query.
package validation

import (
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	reconerrors "vocab-reconciler/internal/common/errors"
)

// batchSchema accepts any non-empty object whose values are sub-query
// objects carrying at least a query string. Unknown sub-query fields pass
// through untouched; reconciliation clients commonly send extras.
const batchSchema = `{
	"type": "object",
	"minProperties": 1,
	"additionalProperties": {
		"type": "object",
		"required": ["query"],
		"properties": {
			"query": {"type": "string"},
			"type": {"type": "string"},
			"limit": {"type": "integer", "minimum": 1},
			"properties": {
				"type": "array",
				"items": {
					"type": "object",
					"required": ["pid", "v"],
					"properties": {
						"pid": {"type": "string"}
					}
				}
			}
		}
	}
}`

var (
	schemaOnce   sync.Once
	schema       *gojsonschema.Schema
	schemaLoadEr error
)

func loadedSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaLoadEr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(batchSchema))
	})
	return schema, schemaLoadEr
}

// ValidateBatch returns a batch-malformed error when the payload is empty,
// not a JSON object, or carries sub-queries without a query string.
func ValidateBatch(raw []byte) error {
	if len(raw) == 0 {
		return reconerrors.NewBatchMalformedError("empty payload")
	}

	s, err := loadedSchema()
	if err != nil {
		return reconerrors.NewBatchMalformedError("schema unavailable: " + err.Error())
	}

	result, err := s.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return reconerrors.NewBatchMalformedError(err.Error())
	}

	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return reconerrors.NewBatchMalformedError(strings.Join(msgs, "; "))
	}

	return nil
}
