package analysis

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/dgallion1/rfpgest/internal/chunker"
	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/dgallion1/rfpgest/internal/retrieval"
)

// SystemPrompt establishes the analyst role for every completion.
const SystemPrompt = `You are an expert RFP (Request for Proposal) analyst. Your role is to:
1. Analyze RFP documents thoroughly and accurately
2. Extract requirements with precision
3. Identify relationships between different sections
4. Provide clear, actionable insights
5. Flag any ambiguities or potential issues

Always base your analysis on the provided document context. Be specific and cite sections when possible.
If information is unclear or missing, explicitly state the uncertainty.`

const requirementExtractionTemplate = `Analyze the following RFP document sections and extract all requirements related to: {query}

Retrieved Document Sections:
{context}

Instructions:
1. Identify ALL requirements (explicit and implicit) related to the query
2. For each requirement, provide:
   - A unique identifier (e.g., REQ-001)
   - A clear title
   - Full description
   - The section where it was found
   - Priority level if mentioned (high/medium/low)
   - Category (technical/security/performance/compliance/etc.)
3. Identify any related requirements that should be considered together
4. Explain your reasoning for why these requirements are relevant

Provide your response in the following JSON format:
{
    "extracted_requirements": [
        {
            "requirement_id": "REQ-001",
            "title": "Brief title",
            "description": "Full description",
            "section": "Section name/number",
            "page_number": null,
            "priority": "high|medium|low|null",
            "category": "category name",
            "related_requirements": ["REQ-002"]
        }
    ],
    "reasoning": "Detailed explanation of how you found these requirements and why they are relevant",
    "gaps_or_conflicts": ["Any gaps or conflicts identified"],
    "confidence": 85,
    "uncertainties": ["Any unclear aspects"]
}`

const gapAnalysisTemplate = `Analyze the RFP requirements against the proposed approach.

Proposed Approach:
{approach}

RFP Requirements from Retrieved Sections:
{context}

Instructions:
1. List all RFP requirements found in the context
2. For each requirement, assess if the proposed approach addresses it
3. Identify any gaps - requirements that the approach doesn't address
4. Identify any potential conflicts between the approach and requirements
5. Suggest how gaps might be addressed

Provide your response in JSON format:
{
    "extracted_requirements": [...],
    "reasoning": "Analysis of how well the approach addresses requirements",
    "gaps_or_conflicts": ["Specific gaps and conflicts identified"],
    "confidence": 80,
    "uncertainties": ["Areas needing clarification"]
}`

const complianceCheckTemplate = `Check if the proposed approach complies with RFP requirements.

Approach to Evaluate:
{approach}

Target Section: {section}

RFP Requirements:
{context}

Instructions:
1. Extract ALL requirements from the provided RFP sections as "extracted_requirements"
2. Evaluate each requirement against the proposed approach
3. Classify compliance as: COMPLIANT, PARTIAL, NON-COMPLIANT, or UNCLEAR
4. Provide specific reasoning for each classification
5. Suggest modifications needed for full compliance

IMPORTANT: You MUST extract all requirements found in the context as structured requirement objects.
Each requirement should be formatted with requirement_id, title, description, and section.

Response format:
{
    "extracted_requirements": [
        {
            "requirement_id": "REQ-001",
            "title": "Requirement title",
            "description": "Full requirement description with compliance status (COMPLIANT/PARTIAL/NON-COMPLIANT)",
            "section": "Section name",
            "category": "security|compliance|technical"
        }
    ],
    "reasoning": "Detailed compliance analysis with status for each requirement",
    "gaps_or_conflicts": ["Non-compliant or partially compliant items"],
    "confidence": 75,
    "uncertainties": ["Requirements that need clarification"]
}`

const conflictDetectionTemplate = `Analyze the RFP for internal conflicts and consistency issues.

Query Context:
Timeline: {timeline}
Budget: {budget}
Scope: {scope}

RFP Document Sections:
{context}

Instructions:
1. Identify timeline requirements and check for consistency
2. Identify budget constraints and verify feasibility
3. Analyze scope against timeline and budget
4. Detect any contradictions within or across sections
5. Flag implicit conflicts that may not be immediately obvious

Response format:
{
    "extracted_requirements": [...],
    "reasoning": "Analysis of consistency across timeline, budget, and scope",
    "gaps_or_conflicts": ["All identified conflicts and inconsistencies"],
    "confidence": 70,
    "uncertainties": ["Areas where information is insufficient to determine conflicts"]
}`

const ambiguityAnalysisTemplate = `Analyze the usage of ambiguous terms in the RFP.

Term to Analyze: {term}

RFP Document Sections:
{context}

Instructions:
1. Find all occurrences of the term or related concepts in the provided context
2. For each occurrence, extract it as a requirement with the specific meaning in that context
3. Identify any inconsistencies in how the term is used
4. Suggest clarifying questions that should be asked
5. Provide interpretation recommendations

IMPORTANT: You MUST extract ALL related requirements where the term or similar concepts appear.
Each requirement represents a different usage context of the ambiguous term.

Response format:
{
    "extracted_requirements": [
        {
            "requirement_id": "AMB-001",
            "title": "Context-specific interpretation",
            "description": "How the term is used in this specific context and its interpreted meaning",
            "section": "Section where this usage was found",
            "category": "interpretation"
        }
    ],
    "reasoning": "Analysis of term usage across different contexts with interpretations",
    "gaps_or_conflicts": ["Inconsistencies in term usage"],
    "confidence": 65,
    "uncertainties": ["Contexts where meaning is unclear"]
}`

const generalAnalysisTemplate = `Analyze the RFP documents to answer the user's question.

User Question:
{query}

Retrieved Document Sections:
{context}

Instructions:
1. Carefully analyze the retrieved sections
2. Extract relevant requirements and information
3. Provide a clear, comprehensive answer to the question
4. Include specific references to sections when possible
5. Note any limitations or uncertainties in your analysis

Response format:
{
    "extracted_requirements": [...],
    "reasoning": "Comprehensive answer with supporting evidence from the documents",
    "gaps_or_conflicts": [],
    "confidence": 80,
    "uncertainties": []
}`

// noContextNote substitutes for the context block when retrieval found
// nothing, so the model states the absence instead of inventing content.
const noContextNote = "No relevant document content was found for this query."

func templateFor(qt QueryType) string {
	switch qt {
	case QueryRequirementExtraction:
		return requirementExtractionTemplate
	case QueryGapAnalysis:
		return gapAnalysisTemplate
	case QueryComplianceCheck:
		return complianceCheckTemplate
	case QueryConflictDetection:
		return conflictDetectionTemplate
	case QueryAmbiguityAnalysis:
		return ambiguityAnalysisTemplate
	default:
		return generalAnalysisTemplate
	}
}

// buildPrompt fills the query-type template. Placeholders a template does
// not use are simply absent from it, so one replacer serves all six.
func buildPrompt(req Request, contextBlock string) string {
	extra := req.AdditionalContext
	term := extra["term"]
	if term == "" {
		term = req.Query
	}
	r := strings.NewReplacer(
		"{query}", req.Query,
		"{context}", contextBlock,
		"{approach}", extra["approach"],
		"{section}", extra["section"],
		"{timeline}", extra["timeline"],
		"{budget}", extra["budget"],
		"{scope}", extra["scope"],
		"{term}", term,
	)
	return r.Replace(templateFor(req.QueryType))
}

// FormatContext renders retrieved chunks into the prompt context block.
// Chunks past the estimated token budget are dropped with a warning; the
// first chunk is always included so context is never silently empty.
func FormatContext(chunks []retrieval.RetrievedChunk, maxTokens int, log *slog.Logger) string {
	if len(chunks) == 0 {
		return noContextNote
	}

	var sb strings.Builder
	used := 0
	for i, c := range chunks {
		part := formatChunk(i+1, c.Chunk)
		cost := chunker.EstimateTokens(part)
		if maxTokens > 0 && used+cost > maxTokens && sb.Len() > 0 {
			log.Warn("context truncated by token budget",
				"included", i, "total", len(chunks), "budget", maxTokens)
			break
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(part)
		used += cost
	}
	return sb.String()
}

func formatChunk(i int, c document.Chunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Document Chunk %d", i)
	if c.SectionTitle != "" {
		fmt.Fprintf(&sb, " [Section: %s]", c.SectionTitle)
	}
	if len(c.Pages) > 0 {
		sb.WriteString(" [Pages: ")
		for j, p := range c.Pages {
			if j > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(strconv.Itoa(p))
		}
		sb.WriteString("]")
	}
	sb.WriteString(" ---\n")
	sb.WriteString(c.Content)
	sb.WriteString("\n")
	return sb.String()
}
