// Package alerts records the findings of the operational rule engine into
// the plant's alert and notification feeds, suppresses repeats of the same
// finding within a cooldown, and delivers High and Critical alerts to Teams,
// Slack or generic HTTP webhooks.
package alerts
