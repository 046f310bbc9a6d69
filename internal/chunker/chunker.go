package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
)

// Config controls chunking behavior.
type Config struct {
	ChunkSize    int // Target chunk size in characters.
	ChunkOverlap int // Overlap between consecutive chunks in characters.
	MinSection   int // Minimum section body length to chunk at all.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		ChunkSize:    1000,
		ChunkOverlap: 200,
		MinSection:   50,
	}
}

// ChunkDocument segments a document into sections and splits each section
// into enriched chunks. Sections shorter than MinSection are treated as
// noise and skipped. Documents with no recognizable structure fall back to
// splitting the whole text as one block, with no section metadata.
func ChunkDocument(doc *document.Document, cfg Config) []document.Chunk {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.MinSection <= 0 {
		cfg.MinSection = 50
	}

	text := normalizeText(doc.RawContent)
	sections := Segment(text)

	var chunks []document.Chunk
	index := 0

	emit := func(content string, sec document.Section) {
		c := document.Chunk{
			ID:               fmt.Sprintf("%s_chunk_%d", doc.ID, index),
			DocumentID:       doc.ID,
			Index:            index,
			Content:          content,
			SectionTitle:     sec.Title,
			SectionHierarchy: sec.Hierarchy,
			ProjectName:      doc.Metadata.ProjectName,
		}
		annotate(&c)
		chunks = append(chunks, c)
		index++
	}

	if Unstructured(sections) {
		for _, piece := range SplitText(sections[0].Content, cfg.ChunkSize, cfg.ChunkOverlap) {
			emit(piece, document.Section{})
		}
		return chunks
	}

	for _, sec := range sections {
		if len(sec.Content) < cfg.MinSection {
			continue
		}
		if len(sec.Content) <= cfg.ChunkSize {
			emit(sec.Content, sec)
			continue
		}
		for _, piece := range SplitText(sec.Content, cfg.ChunkSize, cfg.ChunkOverlap) {
			emit(piece, sec)
		}
	}

	return chunks
}

// normalizeText unifies line endings so the segmenter sees plain \n.
func normalizeText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}
