// Package report produces narrative plant reports and assistant chat replies
// from a generative model. Generation failures never surface as errors to
// callers; each operation falls back to a fixed message instead.
package report
