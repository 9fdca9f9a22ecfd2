package stream

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/cocoaplant/cocoaplant/pkg/rules"
	"github.com/cocoaplant/cocoaplant/pkg/types"
	"github.com/cocoaplant/cocoaplant/server/internal/metrics"
	"github.com/cocoaplant/cocoaplant/server/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestSimulator_EmitRanges(t *testing.T) {
	sim := NewSimulator(time.Second, 42)

	got := map[types.SensorType][]types.SensorUpdate{}
	var mu sync.Mutex
	for _, st := range types.SensorTypes {
		sim.Subscribe(st, func(u types.SensorUpdate) {
			mu.Lock()
			got[u.Type] = append(got[u.Type], u)
			mu.Unlock()
		})
	}
	for i := 0; i < 100; i++ {
		sim.Emit()
	}

	cases := []struct {
		typ      types.SensorType
		batch    string
		min, max float64
	}{
		{types.SensorFermentation, "FERM-B01", 45, 47},
		{types.SensorDrying, "DRY-1001", 12, 13.5},
		{types.SensorRoasting, "RST-BATCH-8901", 138, 143},
	}
	for _, tc := range cases {
		updates := got[tc.typ]
		if len(updates) != 100 {
			t.Fatalf("%s: got %d readings, want 100", tc.typ, len(updates))
		}
		for _, u := range updates {
			if u.BatchID != tc.batch {
				t.Errorf("%s: batch got %q, want %q", tc.typ, u.BatchID, tc.batch)
			}
			if u.Value < tc.min || u.Value > tc.max {
				t.Errorf("%s: value %v outside [%v, %v]", tc.typ, u.Value, tc.min, tc.max)
			}
		}
	}
}

func TestSimulator_SubscribeCancel(t *testing.T) {
	sim := NewSimulator(time.Second, 1)
	n := 0
	cancel := sim.Subscribe(types.SensorRoasting, func(types.SensorUpdate) { n++ })
	sim.Emit()
	cancel()
	sim.Emit()
	if n != 1 {
		t.Errorf("got %d readings, want 1", n)
	}
}

func TestSimulator_ConnectOnce(t *testing.T) {
	sim := NewSimulator(5*time.Millisecond, 7)

	var mu sync.Mutex
	n := 0
	sim.Subscribe(types.SensorDrying, func(types.SensorUpdate) {
		mu.Lock()
		n++
		mu.Unlock()
	})

	sim.Connect()
	sim.Connect()
	if !sim.Connected() {
		t.Fatal("Connected: want true")
	}
	time.Sleep(60 * time.Millisecond)
	sim.Disconnect()
	sim.Disconnect()
	if sim.Connected() {
		t.Error("Connected after Disconnect: want false")
	}

	mu.Lock()
	got := n
	mu.Unlock()
	// One ticker yields about 12 readings in 60ms; two would yield twice that.
	if got == 0 || got > 18 {
		t.Errorf("got %d readings, want between 1 and 18", got)
	}

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if n != got {
		t.Errorf("readings after Disconnect: got %d more", n-got)
	}
}

func TestWindow_Bounded(t *testing.T) {
	w := NewWindow(3)
	for _, v := range []float64{1, 2, 3, 4, 5} {
		w.Add(v)
	}
	got := w.Values()
	want := []float64{3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got %v, want %v", got, want)
			break
		}
	}
	got[0] = 99
	if w.Values()[0] != 3 {
		t.Error("Values must return a copy")
	}
	if w.Len() != 3 {
		t.Errorf("Len: got %d, want 3", w.Len())
	}
}

type fakeEvaluator struct {
	calls     int
	drying    []types.DryingBatch
	history   []types.BatchData
	predicted float64
}

func (f *fakeEvaluator) Evaluate(drying []types.DryingBatch, history []types.BatchData, predicted float64) rules.Result {
	f.calls++
	f.drying, f.history, f.predicted = drying, history, predicted
	return rules.Result{}
}

type fakePublisher struct {
	events []string
	data   []any
}

func (f *fakePublisher) Publish(event string, data any) {
	f.events = append(f.events, event)
	f.data = append(f.data, data)
}

func newTestMonitor() (*Monitor, *fakeEvaluator, *fakePublisher, *store.Snapshots) {
	snaps := store.NewSnapshots(0)
	eval := &fakeEvaluator{}
	pub := &fakePublisher{}
	m := NewMonitor(MonitorOptions{
		Snapshots: snaps,
		Batches:   store.NewBatches(store.SeedHistory()),
		Rules:     eval,
		Publisher: pub,
		Metrics:   metrics.New(),
		Window:    20,
	})
	return m, eval, pub, snaps
}

func reading(typ types.SensorType, batch string, v float64) types.SensorUpdate {
	return types.SensorUpdate{Type: typ, Timestamp: time.Unix(0, 0).UTC(), Value: v, BatchID: batch}
}

func TestMonitor_DryingUpdatesSnapshotAndEvaluates(t *testing.T) {
	m, eval, pub, snaps := newTestMonitor()

	m.Handle(reading(types.SensorFermentation, "FERM-B01", 46))
	if eval.calls != 0 {
		t.Fatalf("fermentation reading should not evaluate rules, got %d calls", eval.calls)
	}

	m.Handle(reading(types.SensorDrying, "DRY-1001", 12.8))
	if eval.calls != 1 {
		t.Fatalf("got %d evaluations, want 1", eval.calls)
	}

	snap, ok := snaps.Get("DRY-1001")
	if !ok {
		t.Fatal("drying snapshot not written")
	}
	if snap.CurrentMoisture != 12.8 || snap.TargetMoisture != 7 || snap.Status != types.DryingStatusDrying {
		t.Errorf("snapshot: got %+v", snap)
	}
	if len(eval.drying) != 1 || eval.drying[0].ID != "DRY-1001" {
		t.Errorf("evaluated drying: got %+v", eval.drying)
	}
	if len(eval.history) != 3 {
		t.Errorf("history: got %d batches, want 3", len(eval.history))
	}
	// 98 - 0.5 * 2.5 with fermentation at 46°C and moisture above 6%.
	if eval.predicted != 96.8 {
		t.Errorf("predicted: got %v, want 96.8", eval.predicted)
	}
	if len(pub.events) != 2 || pub.events[0] != EventSensor {
		t.Errorf("events: got %v", pub.events)
	}
}

func TestMonitor_KeepsExistingSnapshotFields(t *testing.T) {
	m, _, _, snaps := newTestMonitor()
	snaps.Put(types.DryingBatch{ID: "DRY-1001", TargetMoisture: 6.5, Method: "Solar Tunnel A", Status: types.DryingStatusCompleted})

	m.Handle(reading(types.SensorDrying, "DRY-1001", 12))
	snap, _ := snaps.Get("DRY-1001")
	if snap.TargetMoisture != 6.5 || snap.Method != "Solar Tunnel A" || snap.Status != types.DryingStatusCompleted {
		t.Errorf("snapshot fields overwritten: got %+v", snap)
	}
}

func TestMonitor_PublishesAnomaly(t *testing.T) {
	m, _, pub, _ := newTestMonitor()

	for i := 0; i < 19; i++ {
		m.Handle(reading(types.SensorRoasting, "RST-BATCH-8901", 140))
	}
	m.Handle(reading(types.SensorRoasting, "RST-BATCH-8901", 400))

	var found *AnomalyEvent
	for i, ev := range pub.events {
		if ev == EventAnomaly {
			a := pub.data[i].(AnomalyEvent)
			found = &a
		}
	}
	if found == nil {
		t.Fatal("expected an anomaly event")
	}
	if found.Value != 400 || found.Type != types.SensorRoasting {
		t.Errorf("anomaly: got %+v", *found)
	}
	if got := m.opts.Metrics.Value(metrics.AnomaliesTotal, "type", "roasting"); got != 1 {
		t.Errorf("anomalies metric: got %v, want 1", got)
	}

	var roast WindowSnapshot
	for _, w := range m.Windows() {
		if w.Type == types.SensorRoasting {
			roast = w
		}
	}
	if len(roast.Values) != 20 || len(roast.Anomalies) != 1 || roast.Anomalies[0].Index != 19 {
		t.Errorf("roasting window: got %+v", roast)
	}
}

func TestMonitor_WindowsEmpty(t *testing.T) {
	m, _, _, _ := newTestMonitor()
	ws := m.Windows()
	if len(ws) != len(types.SensorTypes) {
		t.Fatalf("got %d windows, want %d", len(ws), len(types.SensorTypes))
	}
	for _, w := range ws {
		if w.Anomalies == nil {
			t.Errorf("%s: anomalies must be non-nil", w.Type)
		}
	}
}

func TestMonitor_Attach(t *testing.T) {
	m, eval, _, _ := newTestMonitor()
	sim := NewSimulator(time.Second, 3)

	detach := m.Attach(sim)
	sim.Emit()
	detach()
	sim.Emit()

	if eval.calls != 1 {
		t.Errorf("got %d evaluations, want 1", eval.calls)
	}
}
