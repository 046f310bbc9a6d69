package llm

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachingEmbedder wraps an Embedder with an expiring LRU keyed by content
// hash. Repeated embeddings of identical text, like retried jobs or common
// queries, skip the API.
type CachingEmbedder struct {
	inner Embedder
	cache *expirable.LRU[string, []float32]
}

func NewCachingEmbedder(inner Embedder, size int, ttl time.Duration) *CachingEmbedder {
	if size <= 0 {
		size = 512
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachingEmbedder{
		inner: inner,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

// Embed serves cached vectors where possible and fetches the rest in a
// single call to the wrapped embedder.
func (c *CachingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	var missing []string
	var missingAt []int

	for i, text := range texts {
		if v, ok := c.cache.Get(hashKey(text)); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, text)
		missingAt = append(missingAt, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	fetched, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("embed cache: expected %d vectors, got %d", len(missing), len(fetched))
	}
	for j, vec := range fetched {
		vectors[missingAt[j]] = vec
		c.cache.Add(hashKey(missing[j]), vec)
	}
	return vectors, nil
}

func hashKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
