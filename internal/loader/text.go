package loader

import (
	"io"

	"github.com/dgallion1/rfpgest/internal/document"
)

// TextLoader handles plain text files.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	raw := string(data)

	return &document.Document{
		RawContent: raw,
		Metadata: document.Metadata{
			SourceFile:    filename,
			SectionTitles: scanSectionTitles(raw),
			HasAppendices: hasAppendices(raw),
		},
	}, nil
}
