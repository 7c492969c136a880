package parser

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/dgallion1/docuwrite/internal/doctree"
)

// csvBatchSize is the number of data rows per table section.
const csvBatchSize = 20

// CSVParser turns a CSV file into pipe tables, one section per batch of rows.
// The first record is the header of every table.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader, filename string) (*doctree.DocTree, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	tree := &doctree.DocTree{Title: baseTitle(filename)}
	if len(records) == 0 {
		return tree, nil
	}

	header := records[0]
	dataRows := records[1:]
	if len(dataRows) == 0 {
		tree.Children = append(tree.Children, &doctree.DocNode{Text: pipeTable(header, nil)})
		return tree, nil
	}

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := min(i+csvBatchSize, len(dataRows))
		tree.Children = append(tree.Children, &doctree.DocNode{
			Title: fmt.Sprintf("Rows %d-%d", i+2, end+1), // 1-indexed, skip header
			Text:  pipeTable(header, dataRows[i:end]),
		})
	}

	return tree, nil
}
