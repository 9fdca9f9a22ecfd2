package ingest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format is the declared format of an uploaded file.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatJSON    Format = "json"
	FormatXLSX    Format = "xlsx"
	FormatUnknown Format = "unknown"
)

// FormatFromName infers a Format from a file name's extension.
func FormatFromName(name string) Format {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ParseFormat maps a format or extension string to a Format.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV
	case "json":
		return FormatJSON
	case "xlsx":
		return FormatXLSX
	default:
		return FormatUnknown
	}
}

// UserMessage is the text shown to a user whose upload could not be parsed.
const UserMessage = "Failed to parse file. Please ensure columns match required schema."

// ErrUnsupportedFormat is returned for files whose format cannot be parsed
// when demo mode is off.
var ErrUnsupportedFormat = errors.New("ingest: unsupported file format")

// ParseError reports a malformed input file. Line is 1-based and 0 when the
// failure is not tied to a line.
type ParseError struct {
	Format Format
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("ingest: parse %s: line %d: %v", e.Format, e.Line, e.Err)
	}
	return fmt.Sprintf("ingest: parse %s: %v", e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
