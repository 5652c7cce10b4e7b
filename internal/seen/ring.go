// Package seen keeps fingerprints of already-announced plays so a
// score fetched twice is processed at most once.
package seen

import "sync"

// Record fingerprints one announced play.
type Record struct {
	Score  int64
	MapID  int64
	UserID int64
}

// Ring is a bounded FIFO of the most recent records with O(1) lookup.
// Once full, appending evicts the oldest entry.
type Ring struct {
	mu    sync.Mutex
	limit int
	order []Record
	index map[Record]int
	head  int
}

func NewRing(limit int) *Ring {
	return &Ring{
		limit: limit,
		order: make([]Record, 0, limit),
		index: make(map[Record]int, limit),
	}
}

// Contains reports whether the record was already announced.
func (r *Ring) Contains(rec Record) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.index[rec]
	return ok
}

// Add appends a record, evicting the oldest entry when the ring is
// full. Re-adding a present record refreshes nothing; the ring tracks
// first announcement only.
func (r *Ring) Add(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[rec]; ok {
		return
	}

	if len(r.order) < r.limit {
		r.index[rec] = len(r.order)
		r.order = append(r.order, rec)
		return
	}

	evicted := r.order[r.head]
	delete(r.index, evicted)
	r.order[r.head] = rec
	r.index[rec] = r.head
	r.head = (r.head + 1) % r.limit
}

// Len returns the number of records currently held.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.order)
}
