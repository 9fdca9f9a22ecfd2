package ingest

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"slices"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var errNoHeader = errors.New("missing header row")

// decodeText strips a UTF-8 BOM and decodes UTF-16 input marked with a BOM,
// as produced by spreadsheet "Save as CSV" on some platforms.
func decodeText(content []byte) io.Reader {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(bytes.NewReader(content), dec)
}

// parseCSV reads comma-separated content whose first non-blank line is the
// header.
func parseCSV(content []byte) ([]RawRow, error) {
	r := csv.NewReader(decodeText(content))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var records [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line
			}
			return nil, &ParseError{Format: FormatCSV, Line: line, Err: err}
		}
		records = append(records, rec)
	}
	return zipRecords(FormatCSV, records)
}

// zipRecords treats the first non-blank record as the header and zips every
// following record to it by position. Short rows leave trailing columns
// unset; surplus cells are ignored. Batch ID cells keep their text so IDs
// like 0012 are not read as numbers.
func zipRecords(format Format, records [][]string) ([]RawRow, error) {
	var headers []string
	var rows []RawRow
	for _, rec := range records {
		if blank(rec) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(rec))
			for i, h := range rec {
				headers[i] = NormalizeKey(h)
			}
			continue
		}

		row := make(RawRow, len(headers))
		for i, h := range headers {
			if h == "" || i >= len(rec) {
				continue
			}
			if slices.Contains(keysBatchID, h) {
				row[h] = strings.TrimSpace(rec[i])
				continue
			}
			row[h] = cellValue(rec[i])
		}
		rows = append(rows, row)
	}

	if headers == nil {
		return nil, &ParseError{Format: format, Err: errNoHeader}
	}
	return rows, nil
}

func blank(rec []string) bool {
	for _, c := range rec {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

