// Package types defines the shared Go types used by the analytics packages,
// the server and the CLI. These are the canonical in-memory representations
// of batch, process and alert data, separate from any file or wire format.
package types
