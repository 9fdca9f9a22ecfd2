package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/cocoaplant/cocoaplant/pkg/compute"
	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
	"github.com/cocoaplant/cocoaplant/server/internal/store"
)

// Events published by the Monitor.
const (
	EventSensor  = "sensor"
	EventAnomaly = "anomaly"
)

// Defaults applied to a drying snapshot first seen on the stream.
const (
	defaultTargetMoisture = 7.0
	defaultDryingMethod   = "Solar Tunnel B"
)

// Evaluator runs the operational rules. *alerts.Engine satisfies it.
type Evaluator interface {
	Evaluate(drying []types.DryingBatch, history []types.BatchData, predicted float64) rules.Result
}

// Publisher pushes an event to live clients. *ws.Hub satisfies it.
type Publisher interface {
	Publish(event string, data any)
}

// AnomalyEvent is published when the newest reading of a feed is anomalous.
type AnomalyEvent struct {
	Type      types.SensorType `json:"type"`
	BatchID   string           `json:"batchId"`
	Timestamp time.Time        `json:"timestamp"`
	Value     float64          `json:"value"`
	ZScore    float64          `json:"zScore"`
}

// WindowSnapshot is the current state of one sensor window.
type WindowSnapshot struct {
	Type      types.SensorType  `json:"type"`
	BatchID   string            `json:"batchId"`
	Values    []float64         `json:"values"`
	Anomalies []compute.Anomaly `json:"anomalies"`
}

// MonitorOptions wires a Monitor to the rest of the server. Any field may
// be nil except Snapshots and Batches.
type MonitorOptions struct {
	Snapshots *store.Snapshots
	Batches   *store.Batches
	Rules     Evaluator
	Publisher Publisher
	Metrics   *metrics.Registry
	Window    int
	Sigma     float64

	// HistoryDepth is how many recent batches feed the defect rule (default 3).
	HistoryDepth int
}

// Monitor consumes sensor readings.
type Monitor struct {
	opts MonitorOptions

	mu       sync.Mutex
	windows  map[types.SensorType]*Window
	batchIDs map[types.SensorType]string
	latest   map[types.SensorType]float64
}

// NewMonitor creates a Monitor.
func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Sigma <= 0 {
		opts.Sigma = compute.DefaultSigma
	}
	if opts.HistoryDepth <= 0 {
		opts.HistoryDepth = rules.DefaultThresholds().ConsecutiveBatches
	}
	m := &Monitor{
		opts:     opts,
		windows:  make(map[types.SensorType]*Window),
		batchIDs: make(map[types.SensorType]string),
		latest:   make(map[types.SensorType]float64),
	}
	for _, t := range types.SensorTypes {
		m.windows[t] = NewWindow(opts.Window)
	}
	return m
}

// Attach subscribes the Monitor to every feed of sim. The returned func
// detaches it.
func (m *Monitor) Attach(sim *Simulator) (detach func()) {
	cancels := make([]func(), 0, len(types.SensorTypes))
	for _, t := range types.SensorTypes {
		cancels = append(cancels, sim.Subscribe(t, m.Handle))
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

// Handle processes one reading.
func (m *Monitor) Handle(u types.SensorUpdate) {
	m.opts.Metrics.Inc(metrics.SensorReadingsTotal, "type", string(u.Type))
	m.publish(EventSensor, u)

	w := m.window(u)
	w.Add(u.Value)
	values := w.Values()
	if found := compute.DetectAnomalies(values, m.opts.Sigma); len(found) > 0 {
		last := found[len(found)-1]
		if last.Index == len(values)-1 {
			m.opts.Metrics.Inc(metrics.AnomaliesTotal, "type", string(u.Type))
			slog.Warn("stream: anomalous reading",
				"type", u.Type,
				"batch", u.BatchID,
				"value", u.Value,
				"z", last.ZScore,
			)
			m.publish(EventAnomaly, AnomalyEvent{
				Type:      u.Type,
				BatchID:   u.BatchID,
				Timestamp: u.Timestamp,
				Value:     u.Value,
				ZScore:    last.ZScore,
			})
		}
	}

	if u.Type == types.SensorDrying {
		m.dryingReading(u)
	}
}

func (m *Monitor) window(u types.SensorUpdate) *Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.windows[u.Type]
	if !ok {
		w = NewWindow(m.opts.Window)
		m.windows[u.Type] = w
	}
	m.batchIDs[u.Type] = u.BatchID
	m.latest[u.Type] = u.Value
	return w
}

// dryingReading writes the reading into the drying snapshot and evaluates
// the rules against the live state.
func (m *Monitor) dryingReading(u types.SensorUpdate) {
	m.opts.Snapshots.Update(u.BatchID, func(b types.DryingBatch) types.DryingBatch {
		b.CurrentMoisture = u.Value
		if b.TargetMoisture == 0 {
			b.TargetMoisture = defaultTargetMoisture
		}
		if b.Method == "" {
			b.Method = defaultDryingMethod
		}
		if b.Status == "" {
			b.Status = types.DryingStatusDrying
		}
		return b
	})

	if m.opts.Rules == nil {
		return
	}
	history := m.opts.Batches.Recent(m.opts.HistoryDepth)
	m.opts.Rules.Evaluate(m.opts.Snapshots.List(), history, m.predicted(u.Value, history))
}

// predicted estimates the in-process quality from the latest fermentation
// temperature, the drying moisture and the newest batch's defect rate.
func (m *Monitor) predicted(moisture float64, history []types.BatchData) float64 {
	m.mu.Lock()
	temp, ok := m.latest[types.SensorFermentation]
	m.mu.Unlock()
	if !ok {
		temp = compute.MinFermentationTemp
	}
	var defectRate float64
	if len(history) > 0 {
		defectRate = history[0].DefectRate
	}
	return compute.PredictedQualityScore(compute.IdealFermentationHours, temp, moisture, defectRate)
}

// Windows returns the current window of every feed with its anomalies, in
// feed order.
func (m *Monitor) Windows() []WindowSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WindowSnapshot, 0, len(m.windows))
	for _, t := range types.SensorTypes {
		w, ok := m.windows[t]
		if !ok {
			continue
		}
		values := w.Values()
		found := compute.DetectAnomalies(values, m.opts.Sigma)
		if found == nil {
			found = []compute.Anomaly{}
		}
		out = append(out, WindowSnapshot{
			Type:      t,
			BatchID:   m.batchIDs[t],
			Values:    values,
			Anomalies: found,
		})
	}
	return out
}

func (m *Monitor) publish(event string, data any) {
	if m.opts.Publisher != nil {
		m.opts.Publisher.Publish(event, data)
	}
}
