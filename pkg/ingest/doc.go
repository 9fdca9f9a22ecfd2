// Package ingest turns uploaded batch files into scored BatchRecords.
//
// A file is parsed into RawRows (CSV, JSON or XLSX), each row's keys are
// normalized and mapped onto the canonical record schema, and every record
// is scored with compute.HistoricalQualityScore. Parsing is all-or-nothing:
// a malformed file yields a *ParseError and no records.
//
// The package also renders records back to CSV and merges them into the
// types.BatchData display shape.
package ingest
