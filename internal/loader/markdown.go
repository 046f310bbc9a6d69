package loader

import (
	"bytes"
	"io"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownLoader handles Markdown files using goldmark.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) (*document.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	doc := md.Parser().Parse(reader)

	var sb strings.Builder
	var titles []string

	write := func(s string) {
		if s == "" {
			return
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(s)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			title := strings.TrimSpace(string(node.Text(src)))
			if title != "" {
				titles = append(titles, title)
				write(title)
			}
		default:
			write(extractText(n, src))
		}
	}

	raw := sb.String()
	return &document.Document{
		RawContent: raw,
		Metadata: document.Metadata{
			SourceFile:    filename,
			SectionTitles: capTitles(titles),
			HasAppendices: hasAppendices(raw),
		},
	}, nil
}

// extractText gets the text content of a goldmark AST node. Blocks with
// source lines (paragraphs, code fences) read the lines directly; container
// blocks (lists, quotes) recurse into children.
func extractText(n ast.Node, src []byte) string {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines.Len() > 0 {
			var buf bytes.Buffer
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				buf.Write(seg.Value(src))
			}
			return strings.TrimSpace(buf.String())
		}
	}
	var parts []string
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			if v := strings.TrimSpace(string(t.Value(src))); v != "" {
				parts = append(parts, v)
			}
			continue
		}
		if t := extractText(c, src); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
