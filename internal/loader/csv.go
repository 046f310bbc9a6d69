package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/rfpgest/internal/document"
)

// CSVLoader handles CSV files. Rows are rendered with tab-joined
// "header: value" cells so downstream enrichment classifies them as tables.
type CSVLoader struct{}

func (l *CSVLoader) Load(r io.Reader, filename string) (*document.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	meta := document.Metadata{SourceFile: filename}
	if len(records) == 0 {
		return &document.Document{Metadata: meta}, nil
	}

	// First row is headers.
	headers := records[0]

	var sb strings.Builder
	sb.WriteString("Headers:\t" + strings.Join(headers, "\t"))

	for _, row := range records[1:] {
		cells := make([]string, 0, len(row))
		for j, cell := range row {
			if j < len(headers) {
				cells = append(cells, headers[j]+": "+cell)
			} else {
				cells = append(cells, cell)
			}
		}
		sb.WriteString("\n")
		sb.WriteString(strings.Join(cells, "\t"))
	}

	raw := sb.String()
	meta.HasAppendices = hasAppendices(raw)
	return &document.Document{RawContent: raw, Metadata: meta}, nil
}
