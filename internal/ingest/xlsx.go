package ingest

import (
	"fmt"
	"io"

	"github.com/andresuchdata/autoreorder/internal/domain"
	"github.com/xuri/excelize/v2"
)

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) ([]domain.TransactionRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open xlsx: %v", ErrMalformed, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: xlsx has no sheets", ErrMalformed)
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from sheet %s: %w", sheet, err)
	}
	defer rows.Close()

	var table [][]string
	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("failed to read row from sheet %s: %w", sheet, err)
		}
		table = append(table, cols)
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("error iterating rows in %s: %w", sheet, err)
	}

	return ParseRows(table)
}
