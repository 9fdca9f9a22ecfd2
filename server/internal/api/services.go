package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cocoaplant/cocoaplant/server/internal/audit"
	"github.com/cocoaplant/cocoaplant/server/internal/auth"
	"github.com/cocoaplant/cocoaplant/server/internal/queue"
	"github.com/cocoaplant/cocoaplant/server/internal/report"
	"github.com/cocoaplant/cocoaplant/server/internal/stream"
)

// reports handles POST /api/v1/reports. Generation runs as a
// REPORT_GENERATION job; the job ID is returned with 202.
func (h *Handler) reports(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceReports, "REPORT_GENERATE") {
		return
	}
	var req ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t := report.ParseType(req.Type)
	if t == report.Custom && strings.TrimSpace(req.Prompt) == "" {
		jsonErr(w, http.StatusBadRequest, "custom reports need a prompt")
		return
	}

	c := callerOf(r)
	title := fmt.Sprintf("Generating %s report", t)
	id := h.d.Queue.Add(queue.KindReportGeneration, title, func(ctx context.Context) (any, error) {
		data, n := h.reportContext(t)
		text := h.d.Reports.Report(ctx, t, data, req.Prompt)
		h.d.Audit.Record(c.event("REPORT_GENERATE", "Reports",
			fmt.Sprintf("Generated dynamic %s report for %d batches", t, n), audit.StatusSuccess))
		return ReportResult{Type: t, Text: text}, nil
	})
	if id == "" {
		jsonErr(w, http.StatusServiceUnavailable, "job queue closed")
		return
	}
	jsonResp(w, http.StatusAccepted, JobAccepted{JobID: id})
}

// reportContext returns the data a report of type t is generated over and
// the number of batches in it.
func (h *Handler) reportContext(t report.Type) (any, int) {
	batches := h.d.Batches.List()
	if t == report.Maintenance {
		return map[string]any{
			"alerts": h.d.Alerts.Active(),
			"drying": h.d.Snapshots.List(),
		}, len(batches)
	}
	return batches, len(batches)
}

// chat returns POST /api/v1/chat.
func (h *Handler) chat(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceDashboard, "ASSISTANT_CHAT") {
		return
	}
	var req ChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		jsonErr(w, http.StatusBadRequest, "message is required")
		return
	}
	role, _ := auth.RoleFrom(r.Context())
	reply := h.d.Reports.Chat(r.Context(), req.Message, string(role), req.View, req.History)
	jsonResp(w, http.StatusOK, ChatResponse{Reply: reply})
}

// listJobs returns GET /api/v1/jobs, newest first.
func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceJobs, "JOB_VIEW") {
		return
	}
	jsonResp(w, http.StatusOK, h.d.Queue.List())
}

// getJob returns GET /api/v1/jobs/{id}.
func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	parts := subpath(r, "/api/v1/jobs/")
	if len(parts) == 0 {
		h.listJobs(w, r)
		return
	}
	if len(parts) != 1 {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceJobs, "JOB_VIEW") {
		return
	}
	j, ok := h.d.Queue.Get(parts[0])
	if !ok {
		jsonErr(w, http.StatusNotFound, "job not found")
		return
	}
	jsonResp(w, http.StatusOK, j)
}

// auditLog returns GET /api/v1/audit?q=, Plant Manager only.
func (h *Handler) auditLog(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceAudit, "AUDIT_VIEW") {
		return
	}
	jsonResp(w, http.StatusOK, h.d.Audit.Filter(r.URL.Query().Get("q")))
}

// windows returns GET /api/v1/stream/windows.
func (h *Handler) windows(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceStream, "STREAM_VIEW") {
		return
	}
	if h.d.Monitor == nil {
		jsonResp(w, http.StatusOK, []stream.WindowSnapshot{})
		return
	}
	jsonResp(w, http.StatusOK, h.d.Monitor.Windows())
}
