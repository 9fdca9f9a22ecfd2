package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// feed describes one simulated sensor.
type feed struct {
	typ      types.SensorType
	batchID  string
	min, max float64
}

var feeds = []feed{
	{types.SensorFermentation, "FERM-B01", 45, 47},
	{types.SensorDrying, "DRY-1001", 12, 13.5},
	{types.SensorRoasting, "RST-BATCH-8901", 138, 143},
}

// Simulator emits one reading per sensor feed on every tick. At most one
// ticker is active regardless of how often Connect is called.
type Simulator struct {
	interval time.Duration
	now      func() time.Time

	fakeMu sync.Mutex
	fake   *gofakeit.Faker

	mu        sync.Mutex
	listeners map[types.SensorType]map[int]func(types.SensorUpdate)
	nextSub   int
	stop      chan struct{}
	done      chan struct{}
}

// NewSimulator creates a disconnected Simulator. seed 0 picks a random seed.
func NewSimulator(interval time.Duration, seed int64) *Simulator {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	listeners := make(map[types.SensorType]map[int]func(types.SensorUpdate), len(types.SensorTypes))
	for _, t := range types.SensorTypes {
		listeners[t] = make(map[int]func(types.SensorUpdate))
	}
	return &Simulator{
		interval:  interval,
		now:       time.Now,
		fake:      gofakeit.New(seed),
		listeners: listeners,
	}
}

// Connected reports whether the ticker is running.
func (s *Simulator) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stop != nil
}

// Connect starts the ticker. It is a no-op when already connected.
func (s *Simulator) Connect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	slog.Info("stream: connected", "interval", s.interval)
}

// Disconnect stops the ticker and waits for it to exit.
func (s *Simulator) Disconnect() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
	slog.Info("stream: disconnected")
}

func (s *Simulator) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Emit()
		}
	}
}

// Subscribe registers fn for readings of type t. The returned func
// unsubscribes.
func (s *Simulator) Subscribe(t types.SensorType, fn func(types.SensorUpdate)) (cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs, ok := s.listeners[t]
	if !ok {
		subs = make(map[int]func(types.SensorUpdate))
		s.listeners[t] = subs
	}
	id := s.nextSub
	s.nextSub++
	subs[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners[t], id)
		s.mu.Unlock()
	}
}

// Emit generates one reading per feed and delivers it to subscribers, in
// fermentation, drying, roasting order.
func (s *Simulator) Emit() {
	ts := s.now().UTC()
	for _, f := range feeds {
		u := types.SensorUpdate{
			Type:      f.typ,
			Timestamp: ts,
			Value:     s.reading(f.min, f.max),
			BatchID:   f.batchID,
		}
		s.notify(u)
	}
}

func (s *Simulator) reading(min, max float64) float64 {
	s.fakeMu.Lock()
	defer s.fakeMu.Unlock()
	return s.fake.Float64Range(min, max)
}

func (s *Simulator) notify(u types.SensorUpdate) {
	s.mu.Lock()
	subs := make([]func(types.SensorUpdate), 0, len(s.listeners[u.Type]))
	for _, fn := range s.listeners[u.Type] {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn(u)
	}
}
