// Package embedding wraps the external embedding provider. Embedding-vector
// computation is a collaborator, never part of the core: a provider failure
// degrades the affected sub-query to lexical-only retrieval.
package embedding

import "context"

// Embedder generates vector embeddings from normalized query text.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)
}
