// Package retrieval turns a query into a ranked set of document chunks.
// Retrieval runs in stages: vector search, section filtering, re-ranking,
// and optional context enrichment.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/vectorindex"
)

// Options control a single retrieval request. Zero values fall back to the
// pipeline defaults.
type Options struct {
	TopK           int
	Project        string
	Section        string
	IncludeContext bool
}

// RetrievedChunk pairs a chunk with its relevance score and the query that
// produced it. Scores are in [0,1]; higher is more relevant.
type RetrievedChunk struct {
	Chunk document.Chunk `json:"chunk"`
	Score float64        `json:"score"`
	Query string         `json:"query"`
}

type Pipeline struct {
	index     vectorindex.Index
	reranker  Reranker
	enricher  *Enricher
	topK      int
	threshold float64
	log       *slog.Logger
}

func NewPipeline(index vectorindex.Index, reranker Reranker, enricher *Enricher, topK int, threshold float64, log *slog.Logger) *Pipeline {
	if topK <= 0 {
		topK = 10
	}
	return &Pipeline{
		index:     index,
		reranker:  reranker,
		enricher:  enricher,
		topK:      topK,
		threshold: threshold,
		log:       log,
	}
}

// Retrieve returns up to top-K chunks for the query, best first.
//
// The index is asked for twice top-K candidates so filtering and re-ranking
// have something to work with. The similarity floor is skipped when a
// section filter is requested: a section-targeted query should see its
// section even when the embedding match is weak.
func (p *Pipeline) Retrieve(ctx context.Context, query string, opts Options) ([]RetrievedChunk, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = p.topK
	}

	var filter map[string]string
	if opts.Project != "" {
		filter = map[string]string{"project_name": opts.Project}
	}

	results, err := p.index.Query(ctx, query, 2*topK, filter)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	candidates := make([]RetrievedChunk, 0, len(results))
	for _, r := range results {
		score := 1 / (1 + r.Distance)
		if opts.Section == "" && score < p.threshold {
			continue
		}
		candidates = append(candidates, RetrievedChunk{Chunk: r.Chunk, Score: score, Query: query})
	}
	if len(candidates) == 0 {
		p.log.Info("no candidates above threshold", "query_len", len(query))
		return nil, nil
	}

	candidates = filterBySection(candidates, opts.Section)

	ranked, err := p.reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}

	if opts.IncludeContext && p.enricher != nil {
		ranked = p.enricher.Enrich(ctx, ranked)
	}
	return ranked, nil
}

// filterBySection keeps chunks whose section title or hierarchy mention the
// requested section. Zero matches keeps the unfiltered set, so a wrong
// section hint degrades to plain retrieval instead of an empty answer.
func filterBySection(chunks []RetrievedChunk, section string) []RetrievedChunk {
	if section == "" {
		return chunks
	}
	needle := strings.ToLower(section)
	filtered := make([]RetrievedChunk, 0, len(chunks))
	for _, c := range chunks {
		if matchesSection(c.Chunk, needle) {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return chunks
	}
	return filtered
}

func matchesSection(c document.Chunk, needle string) bool {
	if strings.Contains(strings.ToLower(c.SectionTitle), needle) {
		return true
	}
	for _, h := range c.SectionHierarchy {
		if strings.Contains(strings.ToLower(h), needle) {
			return true
		}
	}
	return false
}

// sortByScore sorts descending. The sort is stable so equal scores keep
// their input order.
func sortByScore(chunks []RetrievedChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})
}

func truncateTopK(chunks []RetrievedChunk, topK int) []RetrievedChunk {
	if topK > 0 && len(chunks) > topK {
		return chunks[:topK]
	}
	return chunks
}
