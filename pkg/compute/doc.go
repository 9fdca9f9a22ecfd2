// Package compute implements the batch quality models and the statistical
// anomaly detector. Every function here is pure: no I/O, no shared state,
// and the same inputs always produce the same outputs.
//
// Two quality models live side by side and are intentionally not merged:
// HistoricalQualityScore grades a finished batch from its lab results, and
// PredictedQualityScore estimates the final grade of a batch still in process.
package compute
