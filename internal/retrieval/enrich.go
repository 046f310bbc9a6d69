package retrieval

import (
	"context"
	"log/slog"
	"strings"

	"github.com/dgallion1/rfpgest/internal/chunker"
	"github.com/dgallion1/rfpgest/internal/vectorindex"
)

// Enricher pulls in chunks that the retrieved chunks reference but retrieval
// itself missed. Referenced sections often hold the definitions and tables a
// query actually needs.
type Enricher struct {
	index         vectorindex.Index
	maxAdditional int
	log           *slog.Logger
}

func NewEnricher(index vectorindex.Index, maxAdditional int, log *slog.Logger) *Enricher {
	if maxAdditional <= 0 {
		maxAdditional = 3
	}
	return &Enricher{
		index:         index,
		maxAdditional: maxAdditional,
		log:           log,
	}
}

// Enrich appends referenced-section chunks after the originals, each at 0.8
// of its raw similarity. The original ranking is never displaced. Lookup
// failures are logged and skipped; enrichment is best-effort.
func (e *Enricher) Enrich(ctx context.Context, chunks []RetrievedChunk) []RetrievedChunk {
	if len(chunks) == 0 {
		return chunks
	}
	refs := collectReferences(chunks)
	if len(refs) == 0 {
		return chunks
	}

	seen := make(map[string]struct{}, len(chunks))
	for _, c := range chunks {
		seen[c.Chunk.ID] = struct{}{}
	}

	enriched := make([]RetrievedChunk, len(chunks), len(chunks)+e.maxAdditional)
	copy(enriched, chunks)

	added := 0
	for _, ref := range refs {
		if added >= e.maxAdditional {
			break
		}
		lookup := "section " + ref
		results, err := e.index.Query(ctx, lookup, 2, nil)
		if err != nil {
			e.log.Warn("reference lookup failed", "reference", ref, "error", err)
			continue
		}
		for _, r := range results {
			if added >= e.maxAdditional {
				break
			}
			if _, ok := seen[r.Chunk.ID]; ok {
				continue
			}
			seen[r.Chunk.ID] = struct{}{}
			enriched = append(enriched, RetrievedChunk{
				Chunk: r.Chunk,
				Score: 0.8 * (1 / (1 + r.Distance)),
				Query: lookup,
			})
			added++
		}
	}
	return enriched
}

// collectReferences gathers unique section references from chunk text and
// stored metadata, in first-seen order.
func collectReferences(chunks []RetrievedChunk) []string {
	var refs []string
	seen := make(map[string]struct{})
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}

	for _, c := range chunks {
		for _, ref := range chunker.CrossReferences(c.Chunk.Content) {
			add(ref)
		}
		for _, ref := range c.Chunk.ReferencesSections {
			add(ref)
		}
	}
	return refs
}
