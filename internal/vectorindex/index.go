// Package vectorindex stores enriched chunks with their embeddings and
// serves nearest-neighbor queries over them.
package vectorindex

import (
	"context"

	"github.com/dgallion1/rfpgest/internal/document"
)

// Result is a single query hit. Distance is backend-specific; lower is
// closer.
type Result struct {
	Chunk    document.Chunk
	Distance float64
}

// Stats describes the state of the backing collection.
type Stats struct {
	Collection string `json:"collection"`
	Count      int    `json:"count"`
	Location   string `json:"location"`
}

// Index is implemented by the Chroma-backed store and the in-memory store.
type Index interface {
	Upsert(ctx context.Context, chunks []document.Chunk) error
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]Result, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (Stats, error)
}
