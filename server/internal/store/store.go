package store

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Entry is a drying snapshot together with the time it was last written.
type Entry struct {
	Batch     types.DryingBatch
	UpdatedAt time.Time
}

// Snapshots is a thread-safe in-memory store of drying batch snapshots,
// keyed by batch ID. A background goroutine (Run) periodically evicts
// entries that have not been updated within the configured TTL.
type Snapshots struct {
	mu   sync.RWMutex
	data map[string]*Entry
	ttl  time.Duration    // <= 0 disables expiry
	now  func() time.Time // injectable for deterministic tests
}

// NewSnapshots creates a snapshot store with the given TTL.
func NewSnapshots(ttl time.Duration) *Snapshots {
	return &Snapshots{
		data: make(map[string]*Entry),
		ttl:  ttl,
		now:  time.Now,
	}
}

// TTL returns the configured retention.
func (s *Snapshots) TTL() time.Duration { return s.ttl }

// Put stores or replaces the snapshot for b.ID.
func (s *Snapshots) Put(b types.DryingBatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[b.ID] = &Entry{Batch: b, UpdatedAt: s.now()}
}

// Update applies fn to the snapshot for id under the write lock and stores
// the result. A missing id starts from a zero DryingBatch with that ID.
func (s *Snapshots) Update(id string, fn func(types.DryingBatch) types.DryingBatch) types.DryingBatch {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := types.DryingBatch{ID: id}
	if e, ok := s.data[id]; ok {
		cur = e.Batch
	}
	next := fn(cur)
	next.ID = id
	s.data[id] = &Entry{Batch: next, UpdatedAt: s.now()}
	return next
}

// Get returns the snapshot for id and whether one was found. The entry may
// be stale if the TTL has elapsed but eviction has not yet run.
func (s *Snapshots) Get(id string) (types.DryingBatch, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[id]
	if !ok {
		return types.DryingBatch{}, false
	}
	return e.Batch, true
}

// List returns the live snapshots sorted by ID. Stale entries that have not
// yet been evicted are excluded.
func (s *Snapshots) List() []types.DryingBatch {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cutoff := s.now().Add(-s.ttl)
	out := make([]types.DryingBatch, 0, len(s.data))
	for _, e := range s.data {
		if s.ttl <= 0 || e.UpdatedAt.After(cutoff) {
			out = append(out, e.Batch)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the total number of entries held, including stale ones.
func (s *Snapshots) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Evict removes entries whose UpdatedAt is older than now minus TTL and
// returns the number removed.
func (s *Snapshots) Evict(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-s.ttl)
	removed := 0
	for id, e := range s.data {
		if !e.UpdatedAt.After(cutoff) {
			delete(s.data, id)
			removed++
		}
	}
	return removed
}

// Run starts the background TTL eviction loop. It ticks at half the TTL
// (minimum 1 second) and blocks until ctx is cancelled.
func (s *Snapshots) Run(ctx context.Context) {
	if s.ttl <= 0 {
		<-ctx.Done()
		return
	}
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := s.Evict(now); n > 0 {
				slog.Debug("store: evicted stale snapshots", "count", n)
			}
		}
	}
}
