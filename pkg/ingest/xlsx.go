package ingest

import (
	"bytes"
	"errors"

	"github.com/xuri/excelize/v2"
)

// parseXLSX reads the first sheet of a workbook. Its first non-blank row is
// the header, exactly as for CSV.
func parseXLSX(content []byte) ([]RawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, &ParseError{Format: FormatXLSX, Err: errors.New("no sheets found in workbook")}
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, &ParseError{Format: FormatXLSX, Err: err}
	}
	return zipRecords(FormatXLSX, records)
}
