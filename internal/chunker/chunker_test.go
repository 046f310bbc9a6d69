package chunker

import (
	"fmt"
	"strings"
	"testing"

	"github.com/dgallion1/rfpgest/internal/document"
)

func TestChunkDocument_StructuredSections(t *testing.T) {
	doc := &document.Document{
		ID:       "doc1",
		Metadata: document.Metadata{ProjectName: "alpha"},
		RawContent: "1. Scope\n" +
			strings.Repeat("The vendor shall deliver the system on schedule. ", 3) +
			"\n2. Security\n" +
			strings.Repeat("All data must use strong encryption at rest and in transit. ", 3),
	}

	chunks := ChunkDocument(doc, DefaultConfig())

	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	if chunks[0].ID != "doc1_chunk_0" || chunks[1].ID != "doc1_chunk_1" {
		t.Errorf("expected sequential chunk ids, got %q and %q", chunks[0].ID, chunks[1].ID)
	}
	if chunks[0].SectionTitle != "1. Scope" {
		t.Errorf("expected section title %q, got %q", "1. Scope", chunks[0].SectionTitle)
	}
	if chunks[1].SectionTitle != "2. Security" {
		t.Errorf("expected section title %q, got %q", "2. Security", chunks[1].SectionTitle)
	}
	if len(chunks[1].SectionHierarchy) != 1 || chunks[1].SectionHierarchy[0] != "2" {
		t.Errorf("expected hierarchy [2], got %v", chunks[1].SectionHierarchy)
	}
	for i, c := range chunks {
		if c.DocumentID != "doc1" {
			t.Errorf("chunk %d: expected document id doc1, got %q", i, c.DocumentID)
		}
		if c.ProjectName != "alpha" {
			t.Errorf("chunk %d: expected project alpha, got %q", i, c.ProjectName)
		}
		if !c.ContainsRequirements {
			t.Errorf("chunk %d: expected requirements detected", i)
		}
		if c.Index != i {
			t.Errorf("chunk %d: expected index %d, got %d", i, i, c.Index)
		}
	}
}

func TestChunkDocument_ShortSectionsDropped(t *testing.T) {
	doc := &document.Document{
		ID: "doc1",
		RawContent: "1. Stub\nshort\n2. Real\n" +
			strings.Repeat("Substantial body text about deliverables and acceptance. ", 3),
	}

	chunks := ChunkDocument(doc, DefaultConfig())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].SectionTitle != "2. Real" {
		t.Errorf("expected only the real section, got %q", chunks[0].SectionTitle)
	}
}

func TestChunkDocument_FallbackForUnstructuredText(t *testing.T) {
	raw := "A plain narrative paragraph with no numbered headers anywhere in sight, just prose."
	doc := &document.Document{ID: "doc1", RawContent: raw}

	chunks := ChunkDocument(doc, DefaultConfig())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].SectionTitle != "" {
		t.Errorf("expected no section title in fallback mode, got %q", chunks[0].SectionTitle)
	}
	if len(chunks[0].SectionHierarchy) != 0 {
		t.Errorf("expected no hierarchy in fallback mode, got %v", chunks[0].SectionHierarchy)
	}
	if chunks[0].Content != raw {
		t.Errorf("expected full text as content, got %q", chunks[0].Content)
	}
}

func TestChunkDocument_RequirementMetadata(t *testing.T) {
	doc := &document.Document{
		ID: "doc1",
		RawContent: "REQ-002: The vendor must encrypt all stored data at rest. " +
			"REQ-003: The solution will provide role based access control and audit logs.",
	}

	chunks := ChunkDocument(doc, DefaultConfig())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	c := chunks[0]
	if !c.ContainsRequirements {
		t.Error("expected requirements detected")
	}
	wantIDs := []string{"002", "003"}
	if len(c.RequirementIDs) != len(wantIDs) {
		t.Fatalf("expected requirement ids %v, got %v", wantIDs, c.RequirementIDs)
	}
	for i := range wantIDs {
		if c.RequirementIDs[i] != wantIDs[i] {
			t.Errorf("requirement ids[%d]: expected %q, got %q", i, wantIDs[i], c.RequirementIDs[i])
		}
	}
	if c.ContentType != document.ContentTypeText {
		t.Errorf("expected text content type, got %q", c.ContentType)
	}
	found := false
	for _, k := range c.Keywords {
		if k == "security" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected security keyword, got %v", c.Keywords)
	}
}

func TestChunkDocument_LargeSectionSplits(t *testing.T) {
	body := strings.Repeat("The contractor shall maintain complete records of all work performed. ", 50)
	doc := &document.Document{
		ID:         "doc1",
		RawContent: "1. Records\n" + body,
	}

	cfg := Config{ChunkSize: 400, ChunkOverlap: 80, MinSection: 50}
	chunks := ChunkDocument(doc, cfg)

	if len(chunks) < 2 {
		t.Fatalf("expected the section to split, got %d chunks", len(chunks))
	}
	for i, c := range chunks {
		if len(c.Content) > cfg.ChunkSize {
			t.Errorf("chunk %d: length %d exceeds %d", i, len(c.Content), cfg.ChunkSize)
		}
		if c.SectionTitle != "1. Records" {
			t.Errorf("chunk %d: expected section title inherited, got %q", i, c.SectionTitle)
		}
		if want := fmt.Sprintf("doc1_chunk_%d", i); c.ID != want {
			t.Errorf("chunk %d: expected id %q, got %q", i, want, c.ID)
		}
	}
}

func TestChunkDocument_PageMarkers(t *testing.T) {
	doc := &document.Document{
		ID: "doc1",
		RawContent: "[Page 1]\nThe vendor shall provide support for all deliverables.\n" +
			"[Page 2]\nMaintenance continues for one year after delivery.",
	}

	chunks := ChunkDocument(doc, DefaultConfig())

	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	want := []int{1, 2}
	if len(chunks[0].Pages) != len(want) {
		t.Fatalf("expected pages %v, got %v", want, chunks[0].Pages)
	}
	for i := range want {
		if chunks[0].Pages[i] != want[i] {
			t.Errorf("pages[%d]: expected %d, got %d", i, want[i], chunks[0].Pages[i])
		}
	}
}

func TestChunkDocument_ZeroConfigDefaults(t *testing.T) {
	doc := &document.Document{
		ID:         "doc1",
		RawContent: strings.Repeat("Plain filler text for the fallback splitter to carve up. ", 5),
	}

	chunks := ChunkDocument(doc, Config{})
	if len(chunks) < 1 {
		t.Errorf("expected at least 1 chunk with zero config, got %d", len(chunks))
	}
}

func TestChunkDocument_EmptyDocument(t *testing.T) {
	doc := &document.Document{ID: "doc1"}
	if chunks := ChunkDocument(doc, DefaultConfig()); len(chunks) != 0 {
		t.Errorf("expected 0 chunks, got %d", len(chunks))
	}
}
