package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/llm"
)

// Reranker reorders candidates by relevance to the query and truncates to
// topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []RetrievedChunk, topK int) ([]RetrievedChunk, error)
}

// LexicalReranker scores candidates by query-term overlap. No model calls,
// so it is cheap, deterministic, and the default strategy.
type LexicalReranker struct{}

func (LexicalReranker) Rerank(_ context.Context, query string, candidates []RetrievedChunk, topK int) ([]RetrievedChunk, error) {
	terms := termSet(query)
	ranked := make([]RetrievedChunk, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].Score = 0.5*ranked[i].Score + 0.5*overlapRatio(terms, ranked[i].Chunk.Content)
	}
	sortByScore(ranked)
	return truncateTopK(ranked, topK), nil
}

func termSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(s)) {
		set[t] = struct{}{}
	}
	return set
}

// overlapRatio is the fraction of query terms present in the content.
func overlapRatio(queryTerms map[string]struct{}, content string) float64 {
	if len(queryTerms) == 0 {
		return 0
	}
	docTerms := termSet(content)
	matched := 0
	for t := range queryTerms {
		if _, ok := docTerms[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(queryTerms))
}

const scorePromptTemplate = `You are a document relevance scorer. Given a query and a document,
score how relevant the document is to the query on a scale of 0-100.

Query: %s

Document:
%s

Respond with ONLY a number between 0 and 100, where:
- 0-20: Not relevant
- 21-40: Slightly relevant
- 41-60: Moderately relevant
- 61-80: Highly relevant
- 81-100: Extremely relevant

Score:`

const (
	// Candidates that cannot be scored fall back to the scale midpoint.
	neutralScore = 50.0
	// Scoring prompts carry at most this much chunk content.
	maxScoredChars = 2000
)

// ModelReranker asks the completion model for a 0-100 relevance score per
// candidate. Candidates are scored in fixed-size batches dispatched over a
// bounded worker pool.
type ModelReranker struct {
	completer llm.Completer
	batchSize int
	workers   int
	log       *slog.Logger
}

func NewModelReranker(completer llm.Completer, batchSize, workers int, log *slog.Logger) *ModelReranker {
	if batchSize <= 0 {
		batchSize = 5
	}
	if workers <= 0 {
		workers = 3
	}
	return &ModelReranker{
		completer: completer,
		batchSize: batchSize,
		workers:   workers,
		log:       log,
	}
}

func (r *ModelReranker) Rerank(ctx context.Context, query string, candidates []RetrievedChunk, topK int) ([]RetrievedChunk, error) {
	ranked := make([]RetrievedChunk, len(candidates))
	copy(ranked, candidates)

	sem := make(chan struct{}, r.workers)
	var wg sync.WaitGroup
	for start := 0; start < len(ranked); start += r.batchSize {
		end := start + r.batchSize
		if end > len(ranked) {
			end = len(ranked)
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(batch []RetrievedChunk) {
			defer wg.Done()
			defer func() { <-sem }()
			for i := range batch {
				score := r.scoreChunk(ctx, query, batch[i].Chunk)
				batch[i].Score = 0.3*batch[i].Score + 0.7*(score/100)
			}
			sortByScore(batch)
		}(ranked[start:end])
	}
	wg.Wait()

	sortByScore(ranked)
	return truncateTopK(ranked, topK), nil
}

// scoreChunk never fails; a candidate the model cannot score gets the
// neutral score so one bad call does not sink the whole re-rank.
func (r *ModelReranker) scoreChunk(ctx context.Context, query string, chunk document.Chunk) float64 {
	content := chunk.Content
	if len(content) > maxScoredChars {
		content = content[:maxScoredChars]
	}

	raw, err := r.completer.Complete(ctx, "", fmt.Sprintf(scorePromptTemplate, query, content))
	if err != nil {
		r.log.Warn("relevance scoring failed", "chunk_id", chunk.ID, "error", err)
		return neutralScore
	}
	score, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || score < 0 || score > 100 {
		r.log.Warn("unusable relevance score", "chunk_id", chunk.ID, "response", strings.TrimSpace(raw))
		return neutralScore
	}
	return score
}
