package chunker

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/rfpgest/internal/document"
)

// sectionHeaderRes match lines that open a new section. The capture group is
// the section number.
var sectionHeaderRes = []*regexp.Regexp{
	regexp.MustCompile(`^(?:SECTION|Section|CHAPTER|Chapter)\s*(\d+(?:\.\d+)*)`),
	regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+[A-Z]`),
	regexp.MustCompile(`^(?:ARTICLE|Article)\s+(\d+)`),
}

// maxHeaderLen bounds how long an all-caps line can be and still count as a
// section header.
const maxHeaderLen = 100

// Segment scans text line by line and groups it into numbered sections.
// Text before the first header goes into an implicit "Introduction" section
// numbered "0", which is always first in the result even when empty. Sections
// opened by a header but left without body text are dropped. When no header
// matches at all, the result is the single implicit section holding the whole
// text; callers detect that with Unstructured and fall back to plain
// splitting.
func Segment(text string) []document.Section {
	var sections []document.Section

	current := document.Section{Title: "Introduction", Number: "0"}
	implicit := true
	var body []string

	closeCurrent := func() {
		current.Content = strings.TrimSpace(strings.Join(body, "\n"))
		if implicit || current.Content != "" {
			sections = append(sections, current)
		}
		body = body[:0]
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if number, ok := matchSectionHeader(trimmed); ok {
			closeCurrent()
			current = document.Section{
				Title:     trimmed,
				Number:    number,
				Hierarchy: buildHierarchy(number),
			}
			implicit = false
			continue
		}
		body = append(body, line)
	}
	closeCurrent()

	return sections
}

// Unstructured reports whether segmentation found no real sections.
func Unstructured(sections []document.Section) bool {
	return len(sections) == 1 && sections[0].Number == "0"
}

func matchSectionHeader(line string) (string, bool) {
	if line == "" {
		return "", false
	}
	for _, re := range sectionHeaderRes {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1], true
		}
	}
	if isAllUpper(line) && len(line) < maxHeaderLen {
		return "", true
	}
	return "", false
}

// isAllUpper reports whether s contains at least one letter and no lowercase
// letters. Lines like "EVALUATION CRITERIA" qualify, "[Page 3]" does not.
func isAllUpper(s string) bool {
	hasLetter := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// buildHierarchy expands a dotted section number into its ancestor path:
// "2.1.3" becomes ["2", "2.1", "2.1.3"].
func buildHierarchy(number string) []string {
	if number == "" {
		return nil
	}
	parts := strings.Split(number, ".")
	hierarchy := make([]string, 0, len(parts))
	for i := range parts {
		hierarchy = append(hierarchy, strings.Join(parts[:i+1], "."))
	}
	return hierarchy
}
