// internal/models/query.go
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const (
	// DefaultLimit is applied when a sub-query carries no limit.
	DefaultLimit = 10
	// MaxLimit bounds the caller-supplied limit.
	MaxLimit = 50
)

// PropertyConstraint is a structured attribute constraint attached to a
// sub-query, e.g. {"pid": "country", "v": "SE"}.
type PropertyConstraint struct {
	PID   string      `json:"pid"`
	Value interface{} `json:"v"`
}

// ReconciliationQuery is one caller-supplied unit of work. Immutable once
// accepted into a batch.
type ReconciliationQuery struct {
	Query      string               `json:"query"`
	Type       string               `json:"type,omitempty"`
	Limit      int                  `json:"limit,omitempty"`
	Properties []PropertyConstraint `json:"properties,omitempty"`
}

// EffectiveLimit clamps the requested limit into [1, MaxLimit], defaulting
// when absent.
func (q ReconciliationQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultLimit
	}
	if q.Limit > MaxLimit {
		return MaxLimit
	}
	return q.Limit
}

// Batch is a parsed batch request: the query map plus the original key order.
type Batch struct {
	Keys    []string
	Queries map[string]ReconciliationQuery
}

// ParseBatch decodes a batch payload, preserving the caller's key order.
// Returns an error for structurally malformed payloads (not a JSON object,
// or a value that is not a query object).
func ParseBatch(raw []byte) (*Batch, error) {
	queries := make(map[string]ReconciliationQuery)
	if err := json.Unmarshal(raw, &queries); err != nil {
		return nil, fmt.Errorf("decode batch: %w", err)
	}

	keys, err := objectKeyOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("scan batch keys: %w", err)
	}

	return &Batch{Keys: keys, Queries: queries}, nil
}

// objectKeyOrder walks the top-level JSON object and returns its keys in
// document order. encoding/json maps lose ordering, and the response key
// ordering must mirror the request. A key repeated in the payload is kept
// at its first position only; each key appears exactly once in the response.
func objectKeyOrder(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("batch payload is not a JSON object")
	}

	var keys []string
	seen := make(map[string]struct{})
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		if _, dup := seen[key]; !dup {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}

		// Skip the value.
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
	}

	return keys, nil
}
