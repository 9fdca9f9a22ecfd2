package api

import (
	"net/http"

	"github.com/cocoaplant/cocoaplant/pkg/compute"
	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/audit"
	"github.com/cocoaplant/cocoaplant/server/internal/auth"
)

// predict returns POST /api/v1/quality/predict.
func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceQuality, "QUALITY_PREDICT") {
		return
	}
	var req PredictRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	jsonResp(w, http.StatusOK, PredictResponse{
		PredictedScore: compute.PredictedQualityScore(req.FermHours, req.AvgTemp, req.Moisture, req.DefectRate),
	})
}

// score returns POST /api/v1/quality/score.
func (h *Handler) score(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceQuality, "QUALITY_SCORE") {
		return
	}
	var req ScoreRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	q, risk := compute.HistoricalQualityScore(req.Moisture, req.FreeFattyAcids, req.FermentedMold)
	jsonResp(w, http.StatusOK, ScoreResponse{QualityScore: q, RiskLevel: risk})
}

// anomalies returns POST /api/v1/anomalies.
func (h *Handler) anomalies(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceQuality, "ANOMALY_SCAN") {
		return
	}
	var req AnomalyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	found := compute.DetectAnomalies(req.Readings, req.Sigma)
	if found == nil {
		found = []compute.Anomaly{}
	}
	jsonResp(w, http.StatusOK, AnomalyResponse{Anomalies: found})
}

// evaluate returns POST /api/v1/rules/evaluate: the findings recorded after
// cooldown suppression, so a repeated request within the cooldown returns
// nothing new. ?record=0 returns the raw rule output without recording it.
func (h *Handler) evaluate(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceAlerts, "RULES_EVALUATE") {
		return
	}
	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Drying == nil {
		req.Drying = h.d.Snapshots.List()
	}
	if req.History == nil {
		req.History = h.d.Batches.Recent(h.d.Alerts.Thresholds().ConsecutiveBatches)
	}
	predicted := 100.0
	if req.Predicted != nil {
		predicted = *req.Predicted
	}
	if r.URL.Query().Get("record") == "0" {
		jsonResp(w, http.StatusOK, h.d.Alerts.Preview(req.Drying, req.History, predicted))
		return
	}
	jsonResp(w, http.StatusOK, h.d.Alerts.Evaluate(req.Drying, req.History, predicted))
}

// listAlerts returns GET /api/v1/alerts, newest first. ?status=Active
// limits the list to unresolved alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceAlerts, "ALERT_VIEW") {
		return
	}
	if r.URL.Query().Get("status") == types.AlertActive {
		jsonResp(w, http.StatusOK, h.d.Alerts.Active())
		return
	}
	jsonResp(w, http.StatusOK, h.d.Alerts.Alerts())
}

// resolveAlert handles POST /api/v1/alerts/{id}/resolve.
func (h *Handler) resolveAlert(w http.ResponseWriter, r *http.Request) {
	parts := subpath(r, "/api/v1/alerts/")
	if len(parts) == 0 {
		h.listAlerts(w, r)
		return
	}
	if len(parts) != 2 || parts[1] != "resolve" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceAlerts, "ALERT_RESOLVE") {
		return
	}
	a, ok := h.d.Alerts.Resolve(parts[0])
	if !ok {
		jsonErr(w, http.StatusNotFound, "alert not found")
		return
	}
	h.d.Audit.Record(callerOf(r).event("ALERT_RESOLVE", "Alerts", "Resolved alert "+a.ID, audit.StatusSuccess))
	jsonResp(w, http.StatusOK, a)
}

// listNotifications returns GET /api/v1/notifications, newest first.
func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet) || !h.allow(w, r, auth.ResourceAlerts, "NOTIFICATION_VIEW") {
		return
	}
	jsonResp(w, http.StatusOK, h.d.Alerts.Notifications())
}

// readNotification handles POST /api/v1/notifications/{id}/read.
func (h *Handler) readNotification(w http.ResponseWriter, r *http.Request) {
	parts := subpath(r, "/api/v1/notifications/")
	if len(parts) == 0 {
		h.listNotifications(w, r)
		return
	}
	if len(parts) != 2 || parts[1] != "read" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceAlerts, "NOTIFICATION_READ") {
		return
	}
	if !h.d.Alerts.MarkRead(parts[0]) {
		jsonErr(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// popup handles GET (current popup, 204 when none) and DELETE (dismiss) on
// /api/v1/popup.
func (h *Handler) popup(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodGet, http.MethodDelete) || !h.allow(w, r, auth.ResourceAlerts, "POPUP_VIEW") {
		return
	}
	if r.Method == http.MethodDelete {
		h.d.Alerts.DismissPopup()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	p, ok := h.d.Alerts.Popup()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	jsonResp(w, http.StatusOK, p)
}

// compliance returns POST /api/v1/compliance/evaluate.
func (h *Handler) compliance(w http.ResponseWriter, r *http.Request) {
	if !method(w, r, http.MethodPost) || !h.allow(w, r, auth.ResourceCompliance, "COMPLIANCE_CHECK") {
		return
	}
	var req rules.ExportCandidate
	if !decodeJSON(w, r, &req) {
		return
	}
	res := rules.EvaluateCompliance(req, h.d.Compliance())
	status := audit.StatusSuccess
	if !res.Compliant {
		status = audit.StatusFailed
	}
	h.d.Audit.Record(callerOf(r).event("COMPLIANCE_CHECK", "Compliance",
		"Checked batch "+req.BatchID+" for "+req.Destination, status))
	jsonResp(w, http.StatusOK, res)
}
