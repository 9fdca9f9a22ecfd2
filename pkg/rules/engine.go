package rules

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Thresholds configure the three operational rules.
type Thresholds struct {
	// MoistureMargin is how far above target a drying batch may sit.
	MoistureMargin float64 `yaml:"moisture_margin" json:"moistureMargin"`

	// DefectRateLimit is the defect rate every recent batch must exceed
	// for a QA hold.
	DefectRateLimit float64 `yaml:"defect_rate_limit" json:"defectRateLimit"`

	// ConsecutiveBatches is how many of the newest batches are inspected.
	ConsecutiveBatches int `yaml:"consecutive_batches" json:"consecutiveBatches"`

	// PredictedQualityFloor is the predicted score below which a rework
	// job is raised.
	PredictedQualityFloor float64 `yaml:"predicted_quality_floor" json:"predictedQualityFloor"`
}

// DefaultThresholds returns the plant's standard rule thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MoistureMargin:        0.5,
		DefectRateLimit:       2.0,
		ConsecutiveBatches:    3,
		PredictedQualityFloor: 90,
	}
}

// Rule names a rule; it is the first half of every finding's key.
type Rule string

const (
	RuleMoistureDeviation  Rule = "moisture_deviation"
	RuleConsecutiveDefects Rule = "consecutive_defects"
	RulePredictedQuality   Rule = "predicted_quality"
)

// Finding ties an emitted alert or notification to the rule and subject
// that produced it. Key is stable across evaluations of the same condition.
// Moisture findings also carry the popup describing their batch.
type Finding struct {
	Rule         Rule                `json:"rule"`
	Key          string              `json:"key"`
	Alert        *types.Alert        `json:"alert,omitempty"`
	Notification *types.Notification `json:"notification,omitempty"`
	Popup        *types.Popup        `json:"popup,omitempty"`
}

// Result is the output of one evaluation.
type Result struct {
	Alerts        []types.Alert        `json:"alerts"`
	Notifications []types.Notification `json:"notifications"`
	Popup         *types.Popup         `json:"popup,omitempty"`
	Findings      []Finding            `json:"findings"`
}

// Engine evaluates the rules with a fixed set of thresholds.
// An Engine holds no mutable state and is safe for concurrent use.
type Engine struct {
	th        Thresholds
	now       func() time.Time // injectable for deterministic tests
	newID     func() string
	jobNumber func() int
}

// New returns an Engine. Zero-valued thresholds take their defaults.
func New(th Thresholds) *Engine {
	def := DefaultThresholds()
	if th.MoistureMargin <= 0 {
		th.MoistureMargin = def.MoistureMargin
	}
	if th.DefectRateLimit <= 0 {
		th.DefectRateLimit = def.DefectRateLimit
	}
	if th.ConsecutiveBatches <= 0 {
		th.ConsecutiveBatches = def.ConsecutiveBatches
	}
	if th.PredictedQualityFloor <= 0 {
		th.PredictedQualityFloor = def.PredictedQualityFloor
	}
	return &Engine{
		th:        th,
		now:       time.Now,
		newID:     func() string { return uuid.NewString()[:8] },
		jobNumber: func() int { return rand.IntN(1000) },
	}
}

// Thresholds returns the thresholds the engine evaluates with.
func (e *Engine) Thresholds() Thresholds { return e.th }

// Evaluate runs every rule against the given state. history is ordered
// newest first. All rules run on every call; none short-circuits another.
func (e *Engine) Evaluate(drying []types.DryingBatch, history []types.BatchData, predicted float64) Result {
	ts := e.now().UTC().Format(time.RFC3339)
	res := Result{
		Alerts:        []types.Alert{},
		Notifications: []types.Notification{},
		Findings:      []Finding{},
	}

	e.moistureDeviation(&res, drying, ts)
	e.consecutiveDefects(&res, history, ts)
	e.predictedQuality(&res, predicted, ts)

	return res
}

func (e *Engine) moistureDeviation(res *Result, drying []types.DryingBatch, ts string) {
	for _, b := range drying {
		if b.Status != types.DryingStatusDrying || b.CurrentMoisture <= b.TargetMoisture+e.th.MoistureMargin {
			continue
		}
		mc := fmtNum(b.CurrentMoisture)
		a := types.Alert{
			ID:          fmt.Sprintf("AUTO-MST-%s-%s", b.ID, e.newID()),
			Type:        "Process Control",
			Severity:    types.SeverityHigh,
			Location:    b.Method,
			Timestamp:   ts,
			Description: fmt.Sprintf("Batch %s moisture (%s%%) exceeds target by >%s%%.", b.ID, mc, fmtNum(e.th.MoistureMargin)),
			Status:      types.AlertActive,
		}
		res.addAlert(RuleMoistureDeviation, b.ID, a)

		p := types.Popup{
			Title:   "Critical Moisture Deviation",
			Message: fmt.Sprintf("Batch %s is drying too slowly (%s%%). Risk of mold development.", b.ID, mc),
			Action:  "Extend drying cycle by 2 hours & Increase fan speed to 1400 RPM.",
		}
		res.Findings[len(res.Findings)-1].Popup = &p
		if res.Popup == nil {
			first := p
			res.Popup = &first
		}
	}
}

func (e *Engine) consecutiveDefects(res *Result, history []types.BatchData, ts string) {
	n := e.th.ConsecutiveBatches
	if len(history) < n {
		return
	}
	for _, b := range history[:n] {
		if b.DefectRate <= e.th.DefectRateLimit {
			return
		}
	}

	limit := fmtNum(e.th.DefectRateLimit)
	res.addAlert(RuleConsecutiveDefects, "", types.Alert{
		ID:          "AUTO-DEF-" + e.newID(),
		Type:        "Quality",
		Severity:    types.SeverityCritical,
		Location:    "Grading Line",
		Timestamp:   ts,
		Description: fmt.Sprintf("High defect rate (>%s%%) detected in last %d consecutive batches.", limit, n),
		Status:      types.AlertActive,
	})
	res.addNotification(RuleConsecutiveDefects, "", types.Notification{
		ID:        "NOTIF-QA-" + e.newID(),
		Title:     "QA Hold Triggered",
		Message:   "System has auto-placed active batches on HOLD. QA Manager notified.",
		Timestamp: ts,
		Type:      types.NotifyCritical,
		Source:    "System",
	})
}

func (e *Engine) predictedQuality(res *Result, predicted float64, ts string) {
	if predicted >= e.th.PredictedQualityFloor {
		return
	}
	res.addNotification(RulePredictedQuality, "", types.Notification{
		ID:    "NOTIF-REWORK-" + e.newID(),
		Title: "Rework Job Created",
		Message: fmt.Sprintf("Predicted quality %s below threshold (%s). Rework Job #RW-%d auto-generated.",
			fmtNum(predicted), fmtNum(e.th.PredictedQualityFloor), e.jobNumber()),
		Timestamp: ts,
		Type:      types.NotifyWarning,
		Source:    "AI Watchdog",
	})
}

func (r *Result) addAlert(rule Rule, subject string, a types.Alert) {
	r.Alerts = append(r.Alerts, a)
	cp := a
	r.Findings = append(r.Findings, Finding{Rule: rule, Key: key(rule, subject), Alert: &cp})
}

func (r *Result) addNotification(rule Rule, subject string, n types.Notification) {
	r.Notifications = append(r.Notifications, n)
	cp := n
	r.Findings = append(r.Findings, Finding{Rule: rule, Key: key(rule, subject), Notification: &cp})
}

func key(rule Rule, subject string) string {
	if subject == "" {
		return string(rule)
	}
	return string(rule) + ":" + subject
}

func fmtNum(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
