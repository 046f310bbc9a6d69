package analysis

import "strings"

// QueryType selects the analysis template.
type QueryType string

const (
	QueryRequirementExtraction QueryType = "requirement_extraction"
	QueryGapAnalysis           QueryType = "gap_analysis"
	QueryComplianceCheck       QueryType = "compliance_check"
	QueryConflictDetection     QueryType = "conflict_detection"
	QueryAmbiguityAnalysis     QueryType = "ambiguity_analysis"
	QueryGeneral               QueryType = "general"
)

// Request describes one analysis run.
type Request struct {
	Query             string            `json:"query"`
	QueryType         QueryType         `json:"query_type,omitempty"`
	ProjectName       string            `json:"project_name,omitempty"`
	TargetSection     string            `json:"target_section,omitempty"`
	AdditionalContext map[string]string `json:"additional_context,omitempty"`
	MaxResults        int               `json:"max_results,omitempty"`
}

// queryKeywords map wording to a query type. Checked in declaration order;
// the first list with a hit wins.
var queryKeywords = []struct {
	queryType QueryType
	terms     []string
}{
	{QueryRequirementExtraction, []string{"requirement", "extract", "list all", "what are the"}},
	{QueryGapAnalysis, []string{"gap", "missing", "not specified", "unclear", "undefined"}},
	{QueryComplianceCheck, []string{"comply", "compliance", "conform", "meet", "satisfy"}},
	{QueryConflictDetection, []string{"conflict", "contradict", "inconsisten", "discrepan"}},
	{QueryAmbiguityAnalysis, []string{"ambiguous", "vague", "interpret", "clarif"}},
}

// DetectQueryType guesses the analysis type from query wording. Anything
// without a recognized keyword is a general query.
func DetectQueryType(query string) QueryType {
	q := strings.ToLower(query)
	for _, entry := range queryKeywords {
		for _, term := range entry.terms {
			if strings.Contains(q, term) {
				return entry.queryType
			}
		}
	}
	return QueryGeneral
}
