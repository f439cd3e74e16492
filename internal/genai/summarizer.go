// Package genai implements the optional generative disambiguation post-stage.
// It consumes the ranked candidates and produces a human-readable rationale;
// it never alters ranking and its failure never affects the candidate list.
package genai

import (
	"context"

	"vocab-reconciler/internal/models"
)

// Summarizer is the capability interface for the post-rank disambiguation
// step. Absence of a summarizer is the normal configuration.
type Summarizer interface {
	Summarize(ctx context.Context, query string, candidates []models.Candidate) (string, error)
}
