package stream

import "sync"

// DefaultWindow is the number of readings a Window keeps by default.
const DefaultWindow = 50

// Window is a bounded buffer of the most recent readings of one sensor,
// oldest first.
type Window struct {
	mu     sync.Mutex
	size   int
	values []float64
}

// NewWindow returns a Window holding at most size readings.
func NewWindow(size int) *Window {
	if size <= 0 {
		size = DefaultWindow
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

// Add appends v, dropping the oldest reading when full.
func (w *Window) Add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.values) >= w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:len(w.values)-1]
	}
	w.values = append(w.values, v)
}

// Values returns a copy of the buffered readings, oldest first.
func (w *Window) Values() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]float64{}, w.values...)
}

// Len returns the number of buffered readings.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.values)
}
