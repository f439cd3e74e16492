// internal/models/hit.go
package models

// RetrievalHit is one scored row returned by a retrieval channel, before
// blending.
type RetrievalHit struct {
	ID          string
	Name        string
	Description string
	Score       float64
}
