package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

var fixedTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

// newTestEngine returns an Engine with a fixed clock, sequential IDs and a
// fixed rework job number.
func newTestEngine(th Thresholds) *Engine {
	e := New(th)
	e.now = func() time.Time { return fixedTime }
	n := 0
	e.newID = func() string {
		n++
		return string(rune('a' + n - 1))
	}
	e.jobNumber = func() int { return 417 }
	return e
}

func drying(id string, current, target float64, status string) types.DryingBatch {
	return types.DryingBatch{ID: id, CurrentMoisture: current, TargetMoisture: target, Method: "Solar Tunnel A", Status: status}
}

func history(rates ...float64) []types.BatchData {
	out := make([]types.BatchData, len(rates))
	for i, r := range rates {
		out[i] = types.BatchData{ID: "B" + string(rune('0'+i)), DefectRate: r}
	}
	return out
}

func TestEvaluate_NothingFires(t *testing.T) {
	res := newTestEngine(Thresholds{}).Evaluate(
		[]types.DryingBatch{drying("DRY-1", 7.4, 7.0, types.DryingStatusDrying)},
		history(0.5, 1.2, 0.1),
		95,
	)
	assert.Empty(t, res.Alerts)
	assert.Empty(t, res.Notifications)
	assert.Nil(t, res.Popup)
	assert.NotNil(t, res.Alerts, "empty result must encode as [] not null")
}

func TestEvaluate_MoistureDeviation(t *testing.T) {
	res := newTestEngine(Thresholds{}).Evaluate(
		[]types.DryingBatch{drying("DRY-201", 12.4, 7.0, types.DryingStatusDrying)},
		nil, 95,
	)
	require.Len(t, res.Alerts, 1)
	a := res.Alerts[0]
	assert.Equal(t, "AUTO-MST-DRY-201-a", a.ID)
	assert.Equal(t, "Process Control", a.Type)
	assert.Equal(t, types.SeverityHigh, a.Severity)
	assert.Equal(t, "Solar Tunnel A", a.Location)
	assert.Equal(t, "2024-05-06T07:08:09Z", a.Timestamp)
	assert.Equal(t, "Batch DRY-201 moisture (12.4%) exceeds target by >0.5%.", a.Description)
	assert.Equal(t, types.AlertActive, a.Status)

	require.NotNil(t, res.Popup)
	assert.Equal(t, "Critical Moisture Deviation", res.Popup.Title)
	assert.Equal(t, "Batch DRY-201 is drying too slowly (12.4%). Risk of mold development.", res.Popup.Message)
	assert.Equal(t, "Extend drying cycle by 2 hours & Increase fan speed to 1400 RPM.", res.Popup.Action)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, "moisture_deviation:DRY-201", res.Findings[0].Key)
}

func TestEvaluate_MoistureBoundaryAndStatus(t *testing.T) {
	res := newTestEngine(Thresholds{}).Evaluate([]types.DryingBatch{
		drying("AT-MARGIN", 7.5, 7.0, types.DryingStatusDrying),
		drying("DONE", 12, 7, types.DryingStatusCompleted),
		drying("ALERTED", 12, 7, types.DryingStatusAlert),
	}, nil, 95)
	assert.Empty(t, res.Alerts, "exactly target+margin and non-drying batches must not fire")
}

func TestEvaluate_PopupFirstMatchWins(t *testing.T) {
	res := newTestEngine(Thresholds{}).Evaluate([]types.DryingBatch{
		drying("DRY-1", 9, 7, types.DryingStatusDrying),
		drying("DRY-2", 10, 7, types.DryingStatusDrying),
	}, nil, 95)
	require.Len(t, res.Alerts, 2)
	require.NotNil(t, res.Popup)
	assert.Contains(t, res.Popup.Message, "DRY-1")

	require.Len(t, res.Findings, 2)
	require.NotNil(t, res.Findings[1].Popup)
	assert.Contains(t, res.Findings[1].Popup.Message, "DRY-2", "each moisture finding describes its own batch")
}

func TestEvaluate_ConsecutiveDefects(t *testing.T) {
	tests := []struct {
		name      string
		history   []types.BatchData
		wantFires bool
	}{
		{name: "two high batches never fire", history: history(3, 4)},
		{name: "three high batches fire", history: history(2.1, 3, 5), wantFires: true},
		{name: "only newest three are inspected", history: history(2.5, 2.5, 2.5, 0), wantFires: true},
		{name: "one low batch blocks", history: history(3, 1.9, 3)},
		{name: "exactly the limit does not count", history: history(2, 3, 3)},
		{name: "missing defect rate reads as zero", history: append(history(3, 3), types.BatchData{ID: "X"})},
		{name: "empty history", history: nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := newTestEngine(Thresholds{}).Evaluate(nil, tc.history, 95)
			if !tc.wantFires {
				assert.Empty(t, res.Alerts)
				assert.Empty(t, res.Notifications)
				return
			}
			require.Len(t, res.Alerts, 1)
			require.Len(t, res.Notifications, 1)

			a := res.Alerts[0]
			assert.Equal(t, types.SeverityCritical, a.Severity)
			assert.Equal(t, "Quality", a.Type)
			assert.Equal(t, "Grading Line", a.Location)
			assert.Equal(t, "High defect rate (>2%) detected in last 3 consecutive batches.", a.Description)

			n := res.Notifications[0]
			assert.Equal(t, "QA Hold Triggered", n.Title)
			assert.Equal(t, types.NotifyCritical, n.Type)
			assert.Equal(t, "System", n.Source)
			assert.False(t, n.Read)
		})
	}
}

func TestEvaluate_PredictedQuality(t *testing.T) {
	res := newTestEngine(Thresholds{}).Evaluate(nil, nil, 87.5)
	require.Len(t, res.Notifications, 1)
	n := res.Notifications[0]
	assert.Equal(t, "NOTIF-REWORK-a", n.ID)
	assert.Equal(t, "Rework Job Created", n.Title)
	assert.Equal(t, "Predicted quality 87.5 below threshold (90). Rework Job #RW-417 auto-generated.", n.Message)
	assert.Equal(t, types.NotifyWarning, n.Type)
	assert.Equal(t, "AI Watchdog", n.Source)

	res = newTestEngine(Thresholds{}).Evaluate(nil, nil, 90)
	assert.Empty(t, res.Notifications, "exactly the floor does not fire")
}

func TestEvaluate_AllRulesIndependent(t *testing.T) {
	res := newTestEngine(Thresholds{}).Evaluate(
		[]types.DryingBatch{drying("DRY-201", 12.4, 7.0, types.DryingStatusDrying)},
		history(3, 3, 3),
		80,
	)
	assert.Len(t, res.Alerts, 2)
	assert.Len(t, res.Notifications, 2)
	assert.Len(t, res.Findings, 4)
	assert.NotNil(t, res.Popup)
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	e := newTestEngine(Thresholds{MoistureMargin: 2, DefectRateLimit: 1, ConsecutiveBatches: 2, PredictedQualityFloor: 70})
	res := e.Evaluate(
		[]types.DryingBatch{drying("DRY-1", 8.5, 7.0, types.DryingStatusDrying)},
		history(1.5, 1.5),
		75,
	)
	require.Len(t, res.Alerts, 1, "only the defect rule fires with these thresholds")
	assert.Equal(t, "High defect rate (>1%) detected in last 2 consecutive batches.", res.Alerts[0].Description)
	assert.Len(t, res.Notifications, 1)
}

func TestNew_DefaultsZeroThresholds(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), New(Thresholds{}).Thresholds())
}

func TestNew_IDsAreRandom(t *testing.T) {
	e := New(Thresholds{})
	a := e.Evaluate(nil, nil, 10).Notifications[0].ID
	b := e.Evaluate(nil, nil, 10).Notifications[0].ID
	assert.NotEqual(t, a, b)
}
