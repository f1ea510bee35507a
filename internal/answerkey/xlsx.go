package answerkey

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/igzam/itemgest/internal/model"
)

// XLSXParser reads column A of the first worksheet.
type XLSXParser struct{}

func (p *XLSXParser) Parse(r io.Reader) (model.AnswerMap, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	cells := make([]string, 0, len(rows))
	for _, row := range rows {
		if len(row) > 0 {
			cells = append(cells, row[0])
		}
	}
	return build(cells)
}
