package ingest

import (
	"encoding/json"
	"errors"
	"io"
)

// parseJSON decodes an array of objects. Keys are normalized the same way
// as CSV headers so "BatchID" and "batchid" address the same field.
func parseJSON(content []byte) ([]RawRow, error) {
	dec := json.NewDecoder(decodeText(content))

	var objs []map[string]any
	if err := dec.Decode(&objs); err != nil {
		var se *json.SyntaxError
		if errors.As(err, &se) {
			return nil, &ParseError{Format: FormatJSON, Line: lineAt(content, se.Offset), Err: err}
		}
		return nil, &ParseError{Format: FormatJSON, Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Format: FormatJSON, Err: errors.New("unexpected data after top-level array")}
	}

	rows := make([]RawRow, 0, len(objs))
	for _, o := range objs {
		row := make(RawRow, len(o))
		for k, v := range o {
			if nk := NormalizeKey(k); nk != "" {
				row[nk] = v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// lineAt returns the 1-based line of byte offset off in content.
func lineAt(content []byte, off int64) int {
	line := 1
	for i := int64(0); i < off && i < int64(len(content)); i++ {
		if content[i] == '\n' {
			line++
		}
	}
	return line
}
