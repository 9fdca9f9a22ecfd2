// Package store holds the server's in-memory state: the live batch dataset
// and the process snapshots written by the sensor stream. Nothing is
// persisted; a restart begins again from the seed data.
package store
