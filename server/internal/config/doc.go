// Package config loads the server configuration from the `server:` section
// of config.yaml and watches the file for changes.
//
// Config sections:
//   - http_port, log_level
//   - auth       API key mode and the role header
//   - ingest     demo mode, row and upload size limits
//   - rules      operational rule thresholds
//   - alerts     cooldown, feed size, webhook targets
//   - report     narrative report generator
//   - queue      job progress tick and retention
//   - stream     simulated sensor stream and anomaly window
//   - snapshot   drying snapshot TTL
//   - compliance export rules
//
// Load(path) applies defaults before unmarshalling, then validates.
// Secrets are never stored in the file; *_env fields name the variables
// that hold them.
package config
