// Package analysis turns retrieved document context into structured
// answers. It owns query typing, prompt construction, the model call, and
// recovery of structured results from whatever text the model returns.
package analysis

import (
	"github.com/dgallion1/rfpgest/internal/retrieval"
)

// Requirement is a single extracted requirement.
type Requirement struct {
	ID                  string   `json:"requirement_id"`
	Title               string   `json:"title"`
	Description         string   `json:"description"`
	Section             string   `json:"section,omitempty"`
	PageNumber          int      `json:"page_number,omitempty"`
	Priority            string   `json:"priority,omitempty"`
	Category            string   `json:"category,omitempty"`
	RelatedRequirements []string `json:"related_requirements,omitempty"`
}

// Result is the structured outcome of one analysis run. Callers always get
// one: failures inside the run surface as low confidence and explanatory
// reasoning, not as a missing result.
type Result struct {
	Requirements     []Requirement              `json:"extracted_requirements"`
	Reasoning        string                     `json:"reasoning"`
	GapsOrConflicts  []string                   `json:"gaps_or_conflicts,omitempty"`
	Confidence       float64                    `json:"confidence"`
	UncertaintyNotes []string                   `json:"uncertainties,omitempty"`
	Query            string                     `json:"query"`
	SourceChunks     []retrieval.RetrievedChunk `json:"source_chunks,omitempty"`
	ProcessingMs     int64                      `json:"processing_time_ms"`
}
