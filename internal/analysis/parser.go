package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	jsonFenceRe     = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	fenceRe         = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)(\w+)\s*:`)
)

var priorityMap = map[string]string{
	"high":         "high",
	"critical":     "high",
	"mandatory":    "high",
	"medium":       "medium",
	"moderate":     "medium",
	"normal":       "medium",
	"low":          "low",
	"optional":     "low",
	"nice-to-have": "low",
}

// Parser recovers a structured Result from model output.
type Parser struct {
	log *slog.Logger
}

func NewParser(log *slog.Logger) *Parser {
	return &Parser{log: log}
}

// Parse never fails. Output that defeats every extraction strategy becomes
// a low-confidence result carrying the raw text as reasoning.
func (p *Parser) Parse(raw, query string) *Result {
	payload, ok := p.extractJSON(raw)
	if !ok {
		return p.fallback(raw, query)
	}

	res := &Result{
		Requirements:     p.parseRequirements(payload["extracted_requirements"]),
		Reasoning:        stringField(payload, "reasoning"),
		GapsOrConflicts:  stringList(payload["gaps_or_conflicts"]),
		Confidence:       clampConfidence(floatField(payload, "confidence", 50)),
		UncertaintyNotes: stringList(payload["uncertainties"]),
		Query:            query,
	}
	if res.Reasoning == "" {
		res.Reasoning = "The model response did not include reasoning."
	}
	return res
}

// extractJSON tries, in order: the whole text, fenced code blocks, and a
// repaired first-{ to last-} substring.
func (p *Parser) extractJSON(text string) (map[string]any, bool) {
	if payload, ok := tryUnmarshal(text); ok {
		return payload, true
	}

	for _, re := range []*regexp.Regexp{jsonFenceRe, fenceRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			candidate := strings.TrimSpace(m[1])
			if !strings.HasPrefix(candidate, "{") {
				continue
			}
			if payload, ok := tryUnmarshal(candidate); ok {
				return payload, true
			}
		}
	}

	return p.repairAndParse(text)
}

// repairAndParse applies conservative fixes to the outermost brace span:
// trailing commas stripped, single quotes doubled, bare keys quoted.
func (p *Parser) repairAndParse(text string) (map[string]any, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	candidate := text[start : end+1]
	candidate = trailingCommaRe.ReplaceAllString(candidate, "$1")
	candidate = strings.ReplaceAll(candidate, "'", `"`)
	candidate = bareKeyRe.ReplaceAllString(candidate, `$1"$2":`)

	payload, ok := tryUnmarshal(candidate)
	if !ok {
		p.log.Warn("json repair failed", "length", len(text))
	}
	return payload, ok
}

func tryUnmarshal(s string) (map[string]any, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

func (p *Parser) fallback(raw, query string) *Result {
	reasoning := strings.TrimSpace(raw)
	if reasoning == "" {
		reasoning = "The model returned no parseable analysis."
	}
	return &Result{
		Reasoning:        reasoning,
		Confidence:       30,
		UncertaintyNotes: []string{"Model output could not be parsed as structured JSON"},
		Query:            query,
	}
}

func (p *Parser) parseRequirements(raw any) []Requirement {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	var reqs []Requirement
	for i, item := range items {
		req, ok := parseRequirement(i, item)
		if !ok {
			p.log.Warn("dropping invalid requirement", "index", i)
			continue
		}
		reqs = append(reqs, req)
	}
	return reqs
}

// parseRequirement accepts object, string, and stray scalar forms. The
// model mixes them freely, so every field read has a fallback.
func parseRequirement(index int, item any) (Requirement, bool) {
	switch v := item.(type) {
	case map[string]any:
		desc := stringField(v, "description")
		if _, present := v["description"]; !present {
			desc = fmt.Sprint(v)
		}
		if strings.TrimSpace(desc) == "" {
			return Requirement{}, false
		}
		title := stringField(v, "title")
		if title == "" {
			title = truncateRunes(desc, 100)
		}
		id := stringField(v, "requirement_id")
		if id == "" {
			id = autoID(index)
		}
		return Requirement{
			ID:                  id,
			Title:               title,
			Description:         desc,
			Section:             stringField(v, "section"),
			PageNumber:          intField(v, "page_number"),
			Priority:            normalizePriority(stringField(v, "priority")),
			Category:            stringField(v, "category"),
			RelatedRequirements: stringList(v["related_requirements"]),
		}, true
	case string:
		text := strings.TrimSpace(v)
		if text == "" {
			return Requirement{}, false
		}
		return Requirement{
			ID:          autoID(index),
			Title:       truncateRunes(text, 100),
			Description: text,
		}, true
	case nil:
		return Requirement{}, false
	default:
		text := strings.TrimSpace(fmt.Sprint(v))
		if text == "" {
			return Requirement{}, false
		}
		return Requirement{
			ID:          autoID(index),
			Title:       truncateRunes(text, 100),
			Description: text,
		}, true
	}
}

func normalizePriority(priority string) string {
	pr := strings.ToLower(strings.TrimSpace(priority))
	if pr == "" {
		return ""
	}
	if mapped, ok := priorityMap[pr]; ok {
		return mapped
	}
	return pr
}

func autoID(index int) string {
	return fmt.Sprintf("REQ-%03d", index+1)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func intField(m map[string]any, key string) int {
	switch v := m[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func floatField(m map[string]any, key string, fallback float64) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return fallback
}

// stringList reads a field that may arrive as a bare string or a list of
// loosely typed values.
func stringList(raw any) []string {
	switch v := raw.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			switch s := item.(type) {
			case string:
				if strings.TrimSpace(s) != "" {
					out = append(out, s)
				}
			case nil:
			default:
				out = append(out, fmt.Sprint(s))
			}
		}
		return out
	}
	return nil
}
