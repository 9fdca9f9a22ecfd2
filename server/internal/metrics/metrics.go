package metrics

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

// Metric names exported by the server.
const (
	ImportsTotal         = "cocoaplant_imports_total"
	RecordsIngestedTotal = "cocoaplant_records_ingested_total"
	AlertsTotal          = "cocoaplant_alerts_total"
	NotificationsTotal   = "cocoaplant_notifications_total"
	SuppressedTotal      = "cocoaplant_findings_suppressed_total"
	AnomaliesTotal       = "cocoaplant_anomalies_total"
	ReportsTotal         = "cocoaplant_reports_total"
	JobsTotal            = "cocoaplant_jobs_total"
	SensorReadingsTotal  = "cocoaplant_sensor_readings_total"
	BatchesGauge         = "cocoaplant_batches"
	WSClientsGauge       = "cocoaplant_websocket_clients"
)

var help = map[string]string{
	ImportsTotal:         "Batch file imports by format and result.",
	RecordsIngestedTotal: "Batch records produced by the ingestion pipeline.",
	AlertsTotal:          "Alerts recorded by severity.",
	NotificationsTotal:   "Notifications recorded by type.",
	SuppressedTotal:      "Rule findings suppressed by cooldown.",
	AnomaliesTotal:       "Sensor readings flagged as anomalous by sensor type.",
	ReportsTotal:         "Narrative reports by type and outcome.",
	JobsTotal:            "Background jobs finished by kind and status.",
	SensorReadingsTotal:  "Simulated sensor readings by sensor type.",
	BatchesGauge:         "Batches in the live dataset.",
	WSClientsGauge:       "Connected WebSocket clients.",
}

type series struct {
	labels []*dto.LabelPair
	value  float64
}

// Registry holds counters and gauges. The zero value is not usable; call New.
// A nil *Registry is a valid no-op sink.
type Registry struct {
	mu       sync.Mutex
	counters map[string]map[string]*series // name -> label key -> series
	gauges   map[string]func() float64
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		counters: make(map[string]map[string]*series),
		gauges:   make(map[string]func() float64),
	}
}

// Inc adds 1 to the counter name. labels are alternating name/value pairs.
func (r *Registry) Inc(name string, labels ...string) {
	r.Add(name, 1, labels...)
}

// Add adds v to the counter name. Negative values are ignored.
func (r *Registry) Add(name string, v float64, labels ...string) {
	if r == nil || v < 0 {
		return
	}
	if len(labels)%2 != 0 {
		slog.Warn("metrics: odd label list, dropping last", "metric", name)
		labels = labels[:len(labels)-1]
	}

	key := strings.Join(labels, "\xff")
	r.mu.Lock()
	defer r.mu.Unlock()
	fam, ok := r.counters[name]
	if !ok {
		fam = make(map[string]*series)
		r.counters[name] = fam
	}
	s, ok := fam[key]
	if !ok {
		s = &series{labels: labelPairs(labels)}
		fam[key] = s
	}
	s.value += v
}

// Gauge registers fn as the value source of gauge name. fn is called on
// every Gather and must be safe for concurrent use.
func (r *Registry) Gauge(name string, fn func() float64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gauges[name] = fn
}

// Value returns the current value of a counter series, or 0.
func (r *Registry) Value(name string, labels ...string) float64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.counters[name][strings.Join(labels, "\xff")]; ok {
		return s.value
	}
	return 0
}

// Gather snapshots every metric as Prometheus metric families, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	out := make([]*dto.MetricFamily, 0, len(r.counters)+len(r.gauges))
	for name, fam := range r.counters {
		mf := &dto.MetricFamily{
			Name: ptr(name),
			Help: ptr(help[name]),
			Type: dto.MetricType_COUNTER.Enum(),
		}
		keys := make([]string, 0, len(fam))
		for k := range fam {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s := fam[k]
			mf.Metric = append(mf.Metric, &dto.Metric{
				Label:   s.labels,
				Counter: &dto.Counter{Value: ptr(s.value)},
			})
		}
		out = append(out, mf)
	}
	gauges := make(map[string]func() float64, len(r.gauges))
	for name, fn := range r.gauges {
		gauges[name] = fn
	}
	r.mu.Unlock()

	// Gauge callbacks may take other locks; call them outside ours.
	for name, fn := range gauges {
		out = append(out, &dto.MetricFamily{
			Name:   ptr(name),
			Help:   ptr(help[name]),
			Type:   dto.MetricType_GAUGE.Enum(),
			Metric: []*dto.Metric{{Gauge: &dto.Gauge{Value: ptr(fn())}}},
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

// ServeHTTP writes the text exposition of all metrics.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	enc := expfmt.NewEncoder(w, format)
	for _, mf := range r.Gather() {
		if err := enc.Encode(mf); err != nil {
			slog.Error("metrics: encode failed", "metric", mf.GetName(), "err", err)
			return
		}
	}
}

func labelPairs(kv []string) []*dto.LabelPair {
	if len(kv) == 0 {
		return nil
	}
	out := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &dto.LabelPair{Name: ptr(kv[i]), Value: ptr(kv[i+1])})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GetName() < out[j].GetName() })
	return out
}

func ptr[T any](v T) *T { return &v }
