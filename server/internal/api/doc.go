// Package api implements the HTTP REST API of the plant server.
//
// New(deps) returns an http.Handler that serves:
//
//	GET    /api/v1/health                     service status, batch and alert counts
//	GET    /api/v1/batches                    live dataset, newest first
//	GET    /api/v1/batches/{id}               one batch; 404 if unknown
//	POST   /api/v1/batches/analyze            score an uploaded file without merging
//	POST   /api/v1/batches/import             score and merge; ?async=1 queues an UPLOAD job
//	POST   /api/v1/batches/export             records JSON in, CSV out
//	GET    /api/v1/templates/{csv|json}       example upload file
//	GET    /api/v1/drying                     live drying snapshots
//	POST   /api/v1/quality/predict            in-process quality prediction
//	POST   /api/v1/quality/score              historical quality score and risk
//	POST   /api/v1/anomalies                  z-score anomaly scan
//	POST   /api/v1/rules/evaluate             run the operational rules
//	GET    /api/v1/alerts                     alert feed; ?status=Active for unresolved
//	POST   /api/v1/alerts/{id}/resolve        resolve one alert
//	GET    /api/v1/notifications              notification feed
//	POST   /api/v1/notifications/{id}/read    mark one notification read
//	GET    /api/v1/popup                      current popup; DELETE dismisses it
//	POST   /api/v1/compliance/evaluate        export compliance check
//	POST   /api/v1/reports                    queue a REPORT_GENERATION job
//	POST   /api/v1/chat                       assistant reply
//	GET    /api/v1/jobs, /api/v1/jobs/{id}    background jobs
//	GET    /api/v1/audit?q=                   audit trail (Plant Manager only)
//	GET    /api/v1/stream/windows             sensor windows and their anomalies
//
// All endpoints respond with JSON except the CSV export and templates, and
// return 405 for unsupported methods. Every route but health passes through
// auth.Middleware. Unparseable uploads return 422 with
// ingest.UserMessage; unsupported formats return 415.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
