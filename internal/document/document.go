package document

import "time"

// Content type tags assigned to chunks during enrichment.
const (
	ContentTypeText   = "text"
	ContentTypeTable  = "table"
	ContentTypeList   = "list"
	ContentTypeHeader = "header"
)

// Metadata holds document-level attributes gathered at load time.
type Metadata struct {
	SourceFile    string    `json:"source_file"`
	ProjectName   string    `json:"project_name"`
	PageCount     int       `json:"page_count"`
	SectionTitles []string  `json:"section_titles,omitempty"`
	HasAppendices bool      `json:"has_appendices"`
	UploadedAt    time.Time `json:"uploaded_at"`
}

// Document is a loaded source document. RawContent preserves "[Page N]"
// markers so chunk metadata can recover page numbers later.
type Document struct {
	ID         string   `json:"id"`
	Metadata   Metadata `json:"metadata"`
	RawContent string   `json:"-"`
}

// Section is a transient subdivision produced during segmentation.
// It exists only between segmentation and chunking; never persisted.
type Section struct {
	Title     string   // Heading text, e.g. "Security Requirements"
	Number    string   // Dotted section number, e.g. "2.1" ("0" for implicit)
	Hierarchy []string // Cumulative prefixes, e.g. ["2", "2.1"]
	Content   string   // Accumulated body text
}

// Chunk is the atomic retrieval unit stored in the vector index.
type Chunk struct {
	ID                   string   `json:"chunk_id"`
	DocumentID           string   `json:"document_id"`
	Index                int      `json:"chunk_index"`
	Content              string   `json:"content"`
	Pages                []int    `json:"page_numbers,omitempty"`
	SectionTitle         string   `json:"section,omitempty"`
	SectionHierarchy     []string `json:"section_hierarchy,omitempty"`
	ContentType          string   `json:"content_type"`
	ContainsRequirements bool     `json:"contains_requirements"`
	RequirementIDs       []string `json:"requirement_ids,omitempty"`
	ReferencesSections   []string `json:"references_sections,omitempty"`
	ProjectName          string   `json:"project_name,omitempty"`
	Keywords             []string `json:"keywords,omitempty"`
}
