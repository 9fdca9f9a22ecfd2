package api

import (
	"github.com/cocoaplant/cocoaplant/pkg/compute"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/report"
)

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string `json:"status"`
	BatchCount    int    `json:"batch_count"`
	DryingCount   int    `json:"drying_count"`
	ActiveAlerts  int    `json:"active_alerts"`
	PendingJobs   int    `json:"pending_jobs"`
	StreamRunning bool   `json:"stream_running"`
}

// AnalyzeResponse is the payload for POST /api/v1/batches/analyze and the
// synchronous form of POST /api/v1/batches/import.
type AnalyzeResponse struct {
	Filename string              `json:"filename,omitempty"`
	Format   string              `json:"format"`
	Records  []types.BatchRecord `json:"records"`
	Summary  compute.Summary     `json:"summary"`

	// Imported is the dataset size after a merge; omitted by analyze.
	Imported int `json:"imported,omitempty"`
}

// JobAccepted is returned for work handed to the background queue.
type JobAccepted struct {
	JobID string `json:"jobId"`
}

// PredictRequest is the body of POST /api/v1/quality/predict.
type PredictRequest struct {
	FermHours  float64 `json:"fermHours"`
	AvgTemp    float64 `json:"avgTemp"`
	Moisture   float64 `json:"moisture"`
	DefectRate float64 `json:"defectRate"`
}

// PredictResponse is the payload for POST /api/v1/quality/predict.
type PredictResponse struct {
	PredictedScore float64 `json:"predictedScore"`
}

// ScoreRequest is the body of POST /api/v1/quality/score.
type ScoreRequest struct {
	Moisture       float64 `json:"moisture"`
	FreeFattyAcids float64 `json:"freeFattyAcids"`
	FermentedMold  float64 `json:"fermentedMold"`
}

// ScoreResponse is the payload for POST /api/v1/quality/score.
type ScoreResponse struct {
	QualityScore int             `json:"qualityScore"`
	RiskLevel    types.RiskLevel `json:"riskLevel"`
}

// AnomalyRequest is the body of POST /api/v1/anomalies.
type AnomalyRequest struct {
	Readings []float64 `json:"readings"`
	Sigma    float64   `json:"sigma"`
}

// AnomalyResponse is the payload for POST /api/v1/anomalies.
type AnomalyResponse struct {
	Anomalies []compute.Anomaly `json:"anomalies"`
}

// EvaluateRequest is the body of POST /api/v1/rules/evaluate. Omitted
// drying or history fall back to the live state; an omitted prediction
// never fires the quality rule.
type EvaluateRequest struct {
	Drying    []types.DryingBatch `json:"drying"`
	History   []types.BatchData   `json:"history"`
	Predicted *float64            `json:"predicted"`
}

// ReportRequest is the body of POST /api/v1/reports.
type ReportRequest struct {
	Type   string `json:"type"`
	Prompt string `json:"prompt,omitempty"`
}

// ReportResult is the result of a finished report job.
type ReportResult struct {
	Type report.Type `json:"type"`
	Text string      `json:"text"`
}

// ChatRequest is the body of POST /api/v1/chat.
type ChatRequest struct {
	Message string        `json:"message"`
	View    string        `json:"view,omitempty"`
	History []report.Turn `json:"history,omitempty"`
}

// ChatResponse is the payload for POST /api/v1/chat.
type ChatResponse struct {
	Reply string `json:"reply"`
}

type errorResponse struct {
	Error string `json:"error"`
}
