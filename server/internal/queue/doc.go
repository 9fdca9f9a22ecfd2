// Package queue runs background jobs (batch uploads, image inference and
// report generation) and publishes their progress to subscribers.
package queue
