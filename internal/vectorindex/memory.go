package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/llm"
)

// MemoryIndex is a process-local Index. It brute-forces cosine distance
// over every stored vector, which is fine for tests and small corpora.
type MemoryIndex struct {
	collection string
	embedder   llm.Embedder

	mu      sync.RWMutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	chunk  document.Chunk
	meta   map[string]any
	vector []float32
}

func NewMemoryIndex(collection string, embedder llm.Embedder) *MemoryIndex {
	return &MemoryIndex{
		collection: collection,
		embedder:   embedder,
		entries:    make(map[string]memoryEntry),
	}
}

func (m *MemoryIndex) Upsert(ctx context.Context, chunks []document.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := m.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embed chunks: expected %d vectors, got %d", len(chunks), len(vectors))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range chunks {
		m.entries[c.ID] = memoryEntry{
			chunk:  c,
			meta:   flattenChunk(c),
			vector: vectors[i],
		}
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, text string, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := m.embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(vectors))
	}
	query := vectors[0]

	m.mu.RLock()
	results := make([]Result, 0, len(m.entries))
	for _, e := range m.entries {
		if !matchesFilter(e.meta, filter) {
			continue
		}
		results = append(results, Result{
			Chunk:    e.chunk,
			Distance: 1 - cosine(query, e.vector),
		})
	}
	m.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (m *MemoryIndex) DeleteByDocument(ctx context.Context, documentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.entries {
		if e.chunk.DocumentID == documentID {
			delete(m.entries, id)
		}
	}
	return nil
}

func (m *MemoryIndex) Stats(ctx context.Context) (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Collection: m.collection,
		Count:      len(m.entries),
		Location:   "memory",
	}, nil
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
