package store

import (
	"sync"

	"github.com/cocoaplant/cocoaplant/pkg/types"
)

// Batches is the live batch dataset, newest first.
// All methods are safe for concurrent use; readers receive copies.
type Batches struct {
	mu   sync.RWMutex
	list []types.BatchData
}

// NewBatches returns a dataset seeded with initial, newest first.
func NewBatches(initial []types.BatchData) *Batches {
	return &Batches{list: append([]types.BatchData(nil), initial...)}
}

// Import places batches ahead of the existing dataset in one step, keeping
// their order. It returns the new dataset size.
func (b *Batches) Import(batches []types.BatchData) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := make([]types.BatchData, 0, len(batches)+len(b.list))
	next = append(next, batches...)
	next = append(next, b.list...)
	b.list = next
	return len(b.list)
}

// List returns a copy of the whole dataset.
func (b *Batches) List() []types.BatchData {
	return b.Recent(-1)
}

// Recent returns a copy of the n newest batches; n < 0 returns all.
func (b *Batches) Recent(n int) []types.BatchData {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n < 0 || n > len(b.list) {
		n = len(b.list)
	}
	return append([]types.BatchData(nil), b.list[:n]...)
}

// Get returns the newest batch with the given ID.
func (b *Batches) Get(id string) (types.BatchData, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, d := range b.list {
		if d.ID == id {
			return d, true
		}
	}
	return types.BatchData{}, false
}

// Count returns the dataset size.
func (b *Batches) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.list)
}
