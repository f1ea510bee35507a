package answerkey

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/igzam/itemgest/internal/model"
)

// CSVParser reads the first column of a header-less CSV file.
type CSVParser struct{}

func (p *CSVParser) Parse(r io.Reader) (model.AnswerMap, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	cells := make([]string, 0, len(records))
	for _, row := range records {
		if len(row) > 0 {
			cells = append(cells, row[0])
		}
	}
	return build(cells)
}
