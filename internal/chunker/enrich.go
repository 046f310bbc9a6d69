package chunker

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
)

// pageMarkerRe finds the [Page N] markers the loaders leave in extracted
// text.
var pageMarkerRe = regexp.MustCompile(`\[Page (\d+)\]`)

// requirementRes detect requirement language anywhere in a chunk.
var requirementRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:shall|must|will|should|required to)\s+\w+`),
	regexp.MustCompile(`(?i)\b(?:requirement|req\.?)\s*[:#]?\s*\d+`),
	regexp.MustCompile(`(?i)\b(?:mandatory|optional|critical)\s+requirement`),
	regexp.MustCompile(`(?i)\bthe\s+(?:system|solution|vendor|contractor)\s+(?:shall|must|will)\b`),
}

// requirementIDRe pulls identifiers like "REQ-001" or "Req 2.3". Casing is
// deliberate: "req" is accepted, mixed forms like "rEq" are not.
var requirementIDRe = regexp.MustCompile(`(?:REQ|Req|req)[.\-_]?\s*(\d+(?:\.\d+)*)`)

// crossRefRes capture the referenced section token from common phrasings.
var crossRefRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:see|refer to|as described in|per)\s+(?:section|appendix|article)\s+([\w.]+)`),
	regexp.MustCompile(`(?i)\b(?:section|appendix|article)\s+([\w.]+)\s+(?:describes|specifies|defines|contains)`),
	regexp.MustCompile(`(?i)\bin accordance with\s+(?:section|appendix)?\s*([\w.]+)`),
}

var tableRe = regexp.MustCompile(`[|+\-]{3,}`)

var listItemRes = []*regexp.Regexp{
	regexp.MustCompile(`(?m)^\s*[-*•]\s+`),
	regexp.MustCompile(`(?m)^\s*\d+[.)]\s+`),
	regexp.MustCompile(`(?m)^\s*[a-z][.)]\s+`),
}

// keywordCategories drive coarse topic tagging. Order is fixed so the tag
// list is deterministic.
var keywordCategories = []struct {
	name  string
	terms []string
}{
	{"technical", []string{"system", "software", "hardware", "architecture", "integration"}},
	{"security", []string{"security", "authentication", "encryption", "access control", "audit"}},
	{"performance", []string{"performance", "latency", "throughput", "scalability", "availability"}},
	{"compliance", []string{"compliance", "regulation", "standard", "certification", "audit"}},
	{"timeline", []string{"timeline", "schedule", "deadline", "milestone", "delivery"}},
	{"budget", []string{"budget", "cost", "pricing", "payment", "financial"}},
}

// annotate fills in the metadata fields derived from chunk content.
func annotate(c *document.Chunk) {
	c.Pages = extractPages(c.Content)
	c.ContainsRequirements = containsRequirements(c.Content)
	c.RequirementIDs = extractRequirementIDs(c.Content)
	c.ReferencesSections = CrossReferences(c.Content)
	c.ContentType = detectContentType(c.Content)
	c.Keywords = extractKeywords(c.Content)
}

// extractPages collects page numbers from [Page N] markers, deduplicated and
// ascending.
func extractPages(content string) []int {
	matches := pageMarkerRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[int]bool, len(matches))
	var pages []int
	for _, m := range matches {
		n, err := strconv.Atoi(m[1])
		if err != nil || seen[n] {
			continue
		}
		seen[n] = true
		pages = append(pages, n)
	}
	sort.Ints(pages)
	return pages
}

func containsRequirements(content string) bool {
	for _, re := range requirementRes {
		if re.MatchString(content) {
			return true
		}
	}
	return false
}

func extractRequirementIDs(content string) []string {
	matches := requirementIDRe.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var ids []string
	for _, m := range matches {
		if seen[m[1]] {
			continue
		}
		seen[m[1]] = true
		ids = append(ids, m[1])
	}
	return ids
}

// CrossReferences extracts referenced section tokens like "3.2" or "b" from
// text, lowercased and deduplicated in order of first appearance. The
// retrieval layer uses the same extraction to follow references out of
// retrieved chunks.
func CrossReferences(text string) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, re := range crossRefRes {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			ref := strings.ToLower(strings.TrimRight(m[1], "."))
			if ref == "" || seen[ref] {
				continue
			}
			seen[ref] = true
			refs = append(refs, ref)
		}
	}
	return refs
}

// detectContentType classifies a chunk as table, list, header or plain text.
func detectContentType(content string) string {
	if tableRe.MatchString(content) || strings.Count(content, "\t") > 5 {
		return document.ContentTypeTable
	}

	listItems := 0
	for _, re := range listItemRes {
		listItems += len(re.FindAllString(content, -1))
	}
	if listItems > 3 {
		return document.ContentTypeList
	}

	trimmed := strings.TrimSpace(content)
	if len(trimmed) < 200 && isAllUpper(trimmed) {
		return document.ContentTypeHeader
	}
	return document.ContentTypeText
}

func extractKeywords(content string) []string {
	lower := strings.ToLower(content)
	var tags []string
	for _, cat := range keywordCategories {
		for _, term := range cat.terms {
			if strings.Contains(lower, term) {
				tags = append(tags, cat.name)
				break
			}
		}
	}
	return tags
}
