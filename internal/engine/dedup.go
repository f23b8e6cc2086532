package engine

import "sync"

// Dedup is the processed-message set. It remembers event keys in insertion
// order and, past the limit, evicts the oldest half in one sweep so steady
// traffic does not pay a per-message eviction cost.
type Dedup struct {
	mu    sync.Mutex
	seen  map[string]struct{}
	order []string
	limit int
}

// NewDedup creates the set. limit <= 0 falls back to 10000.
func NewDedup(limit int) *Dedup {
	if limit <= 0 {
		limit = 10000
	}
	return &Dedup{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// Seen reports whether the key was already processed.
func (d *Dedup) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.seen[key]
	return ok
}

// Mark records the key, evicting the oldest half when the set outgrows the
// limit.
func (d *Dedup) Mark(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return
	}
	d.seen[key] = struct{}{}
	d.order = append(d.order, key)

	if len(d.seen) > d.limit {
		half := len(d.order) / 2
		for _, old := range d.order[:half] {
			delete(d.seen, old)
		}
		d.order = append([]string(nil), d.order[half:]...)
	}
}

// Len returns the current set size.
func (d *Dedup) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
