// Package dedupe tracks which natural keys already exist in the external store.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen keys so each one takes the insert path at most once.
type Deduper[K comparable] interface {
	// SeenAndRecord atomically checks if key was seen and records it if not.
	// Returns true if key was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, key K) bool

	// Seen reports whether key is recorded without changing the set.
	Seen(ctx context.Context, key K) bool

	// Unrecord removes a key so a failed insert is retried on the next run.
	Unrecord(ctx context.Context, key K)

	Size() int64
}

// inMemoryDeduper is an unbounded mutex-guarded set. It never evicts:
// forgetting an existing key would send a stored record down the insert path.
type inMemoryDeduper[K comparable] struct {
	mu   sync.RWMutex
	seen map[K]struct{}
	size atomic.Int64
}

// NewInMemoryDeduper creates an empty in-memory deduper.
func NewInMemoryDeduper[K comparable](opts ...Option) Deduper[K] {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &inMemoryDeduper[K]{
		seen: make(map[K]struct{}, cfg.capacity),
	}
}

// FromKeys creates a deduper pre-populated with keys, typically the result of
// a warm-up bulk read.
func FromKeys[K comparable](keys []K, opts ...Option) Deduper[K] {
	d := NewInMemoryDeduper[K](append([]Option{WithCapacity(len(keys))}, opts...)...)
	ctx := context.Background()
	for _, k := range keys {
		d.SeenAndRecord(ctx, k)
	}
	return d
}

func (d *inMemoryDeduper[K]) SeenAndRecord(_ context.Context, key K) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		return true
	}
	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper[K]) Seen(_ context.Context, key K) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, exists := d.seen[key]
	return exists
}

func (d *inMemoryDeduper[K]) Unrecord(_ context.Context, key K) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.seen[key]; exists {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

// Size returns the current number of recorded keys.
func (d *inMemoryDeduper[K]) Size() int64 {
	return d.size.Load()
}
