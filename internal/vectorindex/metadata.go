package vectorindex

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
)

// flattenChunk converts chunk metadata into the primitive-only map the
// store accepts. List fields become comma-joined strings.
func flattenChunk(c document.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":              c.ID,
		"document_id":           c.DocumentID,
		"chunk_index":           c.Index,
		"section":               c.SectionTitle,
		"section_hierarchy":     strings.Join(c.SectionHierarchy, ","),
		"content_type":          c.ContentType,
		"contains_requirements": c.ContainsRequirements,
		"requirement_ids":       strings.Join(c.RequirementIDs, ","),
		"references_sections":   strings.Join(c.ReferencesSections, ","),
		"page_numbers":          joinInts(c.Pages),
		"project_name":          c.ProjectName,
		"keywords":              strings.Join(c.Keywords, ","),
	}
}

// unflattenChunk rebuilds a chunk from stored content and metadata.
func unflattenChunk(id, content string, meta map[string]any) document.Chunk {
	return document.Chunk{
		ID:                   id,
		DocumentID:           metaString(meta, "document_id"),
		Index:                metaInt(meta, "chunk_index"),
		Content:              content,
		Pages:                splitInts(metaString(meta, "page_numbers")),
		SectionTitle:         metaString(meta, "section"),
		SectionHierarchy:     splitList(metaString(meta, "section_hierarchy")),
		ContentType:          metaString(meta, "content_type"),
		ContainsRequirements: metaBool(meta, "contains_requirements"),
		RequirementIDs:       splitList(metaString(meta, "requirement_ids")),
		ReferencesSections:   splitList(metaString(meta, "references_sections")),
		ProjectName:          metaString(meta, "project_name"),
		Keywords:             splitList(metaString(meta, "keywords")),
	}
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}

// metaInt accepts both native ints and the float64 that JSON decoding
// produces.
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

func metaBool(meta map[string]any, key string) bool {
	if v, ok := meta[key].(bool); ok {
		return v
	}
	return false
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinInts(values []int) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	var values []int
	for _, part := range strings.Split(s, ",") {
		if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			values = append(values, n)
		}
	}
	return values
}

// matchesFilter applies exact-match filtering against flattened metadata.
func matchesFilter(meta map[string]any, filter map[string]string) bool {
	for key, want := range filter {
		if fmt.Sprint(meta[key]) != want {
			return false
		}
	}
	return true
}
