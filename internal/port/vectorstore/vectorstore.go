// Package vectorstore defines the vector store port (interface) for
// tenant-scoped approximate-nearest-neighbor search.
package vectorstore

import (
	"context"

	"github.com/Strob0t/BotForge/internal/domain/knowledge"
)

// Point is one embedded chunk ready to be inserted.
type Point struct {
	ID     string
	Vector []float32
	Chunk  knowledge.Chunk
}

// VectorStore is the port interface for the ANN index. The tenant filter is
// enforced server-side by the backing store; implementations never return a
// point whose tenant tag differs from the requested chatbot id.
type VectorStore interface {
	// EnsureCollection creates the named index with the configured dimension
	// if absent, and fails with a configuration error if an existing
	// collection has a different dimension.
	EnsureCollection(ctx context.Context) error

	// Upsert inserts or replaces points, each tagged with its chunk's
	// chatbot id.
	Upsert(ctx context.Context, points []Point) error

	// Search returns up to topK chunks for the chatbot ranked by cosine
	// similarity, dropping results below minScore.
	Search(ctx context.Context, chatbotID string, vector []float32, topK int, minScore float64) ([]knowledge.ScoredChunk, error)

	// DeleteByDocument removes every point derived from the document.
	DeleteByDocument(ctx context.Context, chatbotID, documentID string) error

	// ListDocumentIDs returns the distinct document ids present in the index
	// for the chatbot. Used by the orphan sweep.
	ListDocumentIDs(ctx context.Context, chatbotID string) ([]string, error)
}
