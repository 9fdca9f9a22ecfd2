package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Options configure a Pipeline.
type Options struct {
	// DemoMode replaces files of an unknown format with a generated demo
	// dataset. When false such files fail with ErrUnsupportedFormat.
	DemoMode bool

	// DemoRows is the size of the demo dataset (default 20).
	DemoRows int

	// DemoSeed seeds the demo generator; 0 picks a random seed.
	DemoSeed int64

	// MaxRows rejects files with more data rows. 0 means no limit.
	MaxRows int
}

// Pipeline parses, normalizes and scores uploaded batch files.
// A Pipeline holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	opts Options
}

// New returns a Pipeline with the given options.
func New(opts Options) *Pipeline {
	if opts.DemoRows <= 0 {
		opts.DemoRows = DefaultDemoRows
	}
	return &Pipeline{opts: opts}
}

// Run parses content in the declared format and returns one scored record
// per data row, in file order. On any parse failure it returns no records.
func (p *Pipeline) Run(ctx context.Context, content []byte, format Format) ([]types.BatchRecord, error) {
	rows, err := p.parse(content, format)
	if err != nil {
		return nil, err
	}
	if p.opts.MaxRows > 0 && len(rows) > p.opts.MaxRows {
		return nil, &ParseError{
			Format: format,
			Err:    fmt.Errorf("%d rows exceeds the limit of %d", len(rows), p.opts.MaxRows),
		}
	}

	out := make([]types.BatchRecord, 0, len(rows))
	for i, row := range rows {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("ingest: %w", err)
			}
		}
		out = append(out, Normalize(row, i))
	}

	slog.Debug("ingest: file analyzed", "format", format, "rows", len(out))
	return out, nil
}

func (p *Pipeline) parse(content []byte, format Format) ([]RawRow, error) {
	switch format {
	case FormatCSV:
		return parseCSV(content)
	case FormatJSON:
		return parseJSON(content)
	case FormatXLSX:
		return parseXLSX(content)
	}

	if !p.opts.DemoMode {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	slog.Warn("ingest: unknown format, generating demo dataset",
		"format", format, "rows", p.opts.DemoRows)
	return DemoRows(p.opts.DemoRows, p.opts.DemoSeed), nil
}
