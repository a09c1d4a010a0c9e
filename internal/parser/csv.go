package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docmark/internal/doctree"
)

// CSVParser handles CSV files, rendering them as a table.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	title := titleFromFilename(filename)
	root, body := doctree.Skeleton(title)
	doc := &doctree.Document{Title: title, Root: root}

	if len(records) == 0 {
		return doc, nil
	}

	table := doctree.NewElement("table")
	body.AppendChild(table)

	// First row is headers.
	thead := doctree.NewElement("thead")
	table.AppendChild(thead)
	headRow := doctree.NewElement("tr")
	thead.AppendChild(headRow)
	for _, h := range records[0] {
		doctree.AppendTextElement(headRow, "th", h)
	}

	tbody := doctree.NewElement("tbody")
	table.AppendChild(tbody)
	for _, row := range records[1:] {
		tr := doctree.NewElement("tr")
		tbody.AppendChild(tr)
		for _, cell := range row {
			doctree.AppendTextElement(tr, "td", cell)
		}
	}

	return doc, nil
}
