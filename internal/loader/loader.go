package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
)

// Loader converts raw document bytes into a Document with flat text content
// and document-level metadata. Page boundaries are preserved as "[Page N]"
// markers inside RawContent.
type Loader interface {
	Load(r io.Reader, filename string) (*document.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".csv":
		return &CSVLoader{}, nil
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

var appendixRe = regexp.MustCompile(`(?i)\b(?:appendix|annex|attachment|exhibit)\b`)

// hasAppendices reports whether the text mentions appendix-style sections.
func hasAppendices(text string) bool {
	return appendixRe.MatchString(text)
}

// sectionTitleRes match lines that look like numbered section headers.
// Used by loaders for formats without native heading structure.
var sectionTitleRes = []*regexp.Regexp{
	regexp.MustCompile(`^(?:SECTION|Section|CHAPTER|Chapter)\s*\d+(?:\.\d+)*\s*[:.\-]?\s*(.*)$`),
	regexp.MustCompile(`^\d+(?:\.\d+)*\s+([A-Z].*)$`),
	regexp.MustCompile(`^(?:ARTICLE|Article)\s+\d+\s*[:.\-]?\s*(.*)$`),
}

const maxSectionTitles = 50

// scanSectionTitles collects header-looking lines from flat text, capped.
func scanSectionTitles(text string) []string {
	var titles []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || len(line) > 150 {
			continue
		}
		for _, re := range sectionTitleRes {
			if m := re.FindStringSubmatch(line); m != nil {
				title := strings.TrimSpace(m[1])
				if title == "" {
					title = line
				}
				titles = append(titles, title)
				break
			}
		}
		if len(titles) >= maxSectionTitles {
			break
		}
	}
	return titles
}

// capTitles enforces the section-title cap for loaders that collect
// headings natively.
func capTitles(titles []string) []string {
	if len(titles) > maxSectionTitles {
		return titles[:maxSectionTitles]
	}
	return titles
}
