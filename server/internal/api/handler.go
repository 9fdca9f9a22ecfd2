package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/cocoaplant/cocoaplant/pkg/ingest"
	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/alerts"
	"github.com/cocoaplant/cocoaplant/server/internal/audit"
	"github.com/cocoaplant/cocoaplant/server/internal/auth"
	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
	"github.com/cocoaplant/cocoaplant/server/internal/queue"
	"github.com/cocoaplant/cocoaplant/server/internal/report"
	"github.com/cocoaplant/cocoaplant/server/internal/store"
	"github.com/cocoaplant/cocoaplant/server/internal/stream"
)

// UserHeader optionally names the person behind a request in the audit log.
const UserHeader = "X-Plant-User"

const (
	defaultUser      = "Current User"
	defaultMaxUpload = 10 << 20
	maxJSONBody      = 1 << 20
)

// Deps are the services the API reads and drives. Batches, Snapshots,
// Pipeline, Alerts, Queue and Audit are required.
type Deps struct {
	Batches   *store.Batches
	Snapshots *store.Snapshots
	Pipeline  *ingest.Pipeline
	Alerts    *alerts.Engine
	Reports   *report.Service
	Queue     *queue.Queue
	Audit     *audit.Log
	Monitor   *stream.Monitor
	Stream    *stream.Simulator
	Metrics   *metrics.Registry

	// Compliance returns the export rules in force.
	Compliance func() []rules.ExportRule

	MaxUploadBytes int64
	Auth           auth.Options
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	d   Deps
	mux *http.ServeMux
}

// New creates a Handler and registers all routes. Every route except
// /api/v1/health requires a known role.
func New(d Deps) http.Handler {
	if d.MaxUploadBytes <= 0 {
		d.MaxUploadBytes = defaultMaxUpload
	}
	if d.Reports == nil {
		d.Reports = report.NewService(report.Static{}, report.Options{})
	}
	if d.Compliance == nil {
		d.Compliance = func() []rules.ExportRule { return nil }
	}
	h := &Handler{d: d, mux: http.NewServeMux()}

	gated := http.NewServeMux()
	gated.HandleFunc("/api/v1/batches", h.listBatches)
	gated.HandleFunc("/api/v1/batches/", h.batchSubtree) // analyze | import | export | {id}
	gated.HandleFunc("/api/v1/templates/", h.template)
	gated.HandleFunc("/api/v1/drying", h.drying)
	gated.HandleFunc("/api/v1/quality/predict", h.predict)
	gated.HandleFunc("/api/v1/quality/score", h.score)
	gated.HandleFunc("/api/v1/anomalies", h.anomalies)
	gated.HandleFunc("/api/v1/rules/evaluate", h.evaluate)
	gated.HandleFunc("/api/v1/alerts", h.listAlerts)
	gated.HandleFunc("/api/v1/alerts/", h.resolveAlert) // {id}/resolve
	gated.HandleFunc("/api/v1/notifications", h.listNotifications)
	gated.HandleFunc("/api/v1/notifications/", h.readNotification) // {id}/read
	gated.HandleFunc("/api/v1/popup", h.popup)
	gated.HandleFunc("/api/v1/compliance/evaluate", h.compliance)
	gated.HandleFunc("/api/v1/reports", h.reports)
	gated.HandleFunc("/api/v1/chat", h.chat)
	gated.HandleFunc("/api/v1/jobs", h.listJobs)
	gated.HandleFunc("/api/v1/jobs/", h.getJob)
	gated.HandleFunc("/api/v1/audit", h.auditLog)
	gated.HandleFunc("/api/v1/stream/windows", h.windows)

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.Handle("/api/v1/", auth.Middleware(d.Auth)(gated))

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) {
		return
	}
	resp := HealthResponse{
		Status:       "ok",
		BatchCount:   h.d.Batches.Count(),
		DryingCount:  len(h.d.Snapshots.List()),
		ActiveAlerts: len(h.d.Alerts.Active()),
	}
	for _, j := range h.d.Queue.List() {
		if j.Status == queue.StatusPending || j.Status == queue.StatusProcessing {
			resp.PendingJobs++
		}
	}
	if h.d.Stream != nil {
		resp.StreamRunning = h.d.Stream.Connected()
	}
	jsonResp(w, http.StatusOK, resp)
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

// method writes 405 and returns false unless r uses one of allowed.
func method(w http.ResponseWriter, r *http.Request, allowed ...string) bool {
	for _, m := range allowed {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	return false
}

// decodeJSON reads a JSON body into v, writing 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// caller identifies the requester for audit records.
type caller struct {
	user string
	role types.Role
	addr string
}

func callerOf(r *http.Request) caller {
	role, _ := auth.RoleFrom(r.Context())
	user := strings.TrimSpace(r.Header.Get(UserHeader))
	if user == "" {
		user = defaultUser
	}
	return caller{user: user, role: role, addr: r.RemoteAddr}
}

func (c caller) event(action, resource, details string, status audit.Status) audit.Event {
	return audit.Event{
		User:     c.user,
		Role:     c.role,
		Action:   action,
		Resource: resource,
		Details:  details,
		Status:   status,
		Addr:     c.addr,
	}
}

// allow writes 403 and returns false when the caller's role may not use
// resource. Denials are audited.
func (h *Handler) allow(w http.ResponseWriter, r *http.Request, resource auth.Resource, action string) bool {
	c := callerOf(r)
	if auth.Allowed(c.role, resource) {
		return true
	}
	h.d.Audit.Record(c.event(action, string(resource), "Access denied for role "+string(c.role), audit.StatusDenied))
	jsonErr(w, http.StatusForbidden, "role not permitted")
	return false
}

// subpath splits the path below prefix into its segments.
func subpath(r *http.Request, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}
