// Package combattest provides scripted random sources for deterministic combat tests.
package combattest

import "sync"

// Rand replays a fixed sequence of rolls so tests can force hits, misses and criticals.
// Once a queue drains, Float64 returns Fallback and Intn returns zero.
type Rand struct {
	mu       sync.Mutex
	floats   []float64
	ints     []int
	Fallback float64
}

// NewRand scripts the float rolls; exhausted queues fall back to 0.99 (a miss for every check).
func NewRand(floats ...float64) *Rand {
	return &Rand{floats: append([]float64(nil), floats...), Fallback: 0.99}
}

// WithInts scripts the integer rolls returned by Intn.
func (r *Rand) WithInts(ints ...int) *Rand {
	r.mu.Lock()
	r.ints = append(r.ints, ints...)
	r.mu.Unlock()
	return r
}

// Float64 pops the next scripted float.
func (r *Rand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.floats) == 0 {
		return r.Fallback
	}
	value := r.floats[0]
	r.floats = r.floats[1:]
	return value
}

// Intn pops the next scripted integer folded into [0, n).
func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n <= 0 || len(r.ints) == 0 {
		return 0
	}
	value := r.ints[0]
	r.ints = r.ints[1:]
	if value < 0 {
		value = -value
	}
	return value % n
}

// Remaining reports how many scripted floats are still queued.
func (r *Rand) Remaining() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.floats)
}
