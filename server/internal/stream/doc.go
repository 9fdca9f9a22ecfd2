// Package stream simulates the plant's live sensor feeds and watches them:
// drying readings update the drying snapshot and trigger rule evaluation,
// and every feed keeps a rolling window scanned for anomalous readings.
package stream
