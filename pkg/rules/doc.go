// Package rules evaluates the plant's operational thresholds against current
// process state and batch history and produces alerts, notifications and at
// most one popup per evaluation.
//
// Evaluation is pure: it performs no I/O and cannot fail. The caller owns the
// resulting values and decides where to record or deliver them.
//
// The package also holds the export compliance check run against destination
// and quality rules before a batch is released for shipping.
package rules
