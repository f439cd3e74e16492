// internal/models/candidate.go
package models

import (
	"bytes"
	"encoding/json"
)

// TypeRef identifies an entity type in the service's identifier space.
type TypeRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ScoreSet holds the per-channel and blended scores of a candidate, each in
// [0,1].
type ScoreSet struct {
	Lexical  float64 `json:"lexical"`
	Semantic float64 `json:"semantic"`
	Blend    float64 `json:"blend"`
}

// Candidate is a single retrieval hit. Candidates are ephemeral and recomputed
// per request; only their serialized form is ever cached.
type Candidate struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Types       []TypeRef `json:"type"`
	Description string    `json:"description,omitempty"`
	Score       float64   `json:"score"`
	Match       bool      `json:"match"`
	Scores      ScoreSet  `json:"-"`
}

// QueryResult is the per-key payload of a batch response. A failed sub-query
// yields an empty (never nil-omitted) result list.
type QueryResult struct {
	Result []Candidate `json:"result"`
	// Rationale is an optional human-readable disambiguation note produced
	// by the generative post-stage. It never affects ranking.
	Rationale string `json:"rationale,omitempty"`
}

// BatchResponse maps the caller's sub-query keys to their results, preserving
// the input key order on the wire.
type BatchResponse struct {
	Keys    []string
	Results map[string]QueryResult
}

// Get returns the result for a key, defaulting to an explicit empty result.
func (r *BatchResponse) Get(key string) QueryResult {
	if res, ok := r.Results[key]; ok {
		if res.Result == nil {
			res.Result = []Candidate{}
		}
		return res
	}
	return QueryResult{Result: []Candidate{}}
}

// MarshalJSON writes the response object with keys in request order.
func (r *BatchResponse) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range r.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.Get(key))
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
