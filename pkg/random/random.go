// Package random provides a seeded, concurrency-safe random source shared by
// the simulators.
package random

import (
	"math/rand"
	"sync"
	"time"
)

// Source wraps a *rand.Rand behind a mutex so the ticking updater and
// request handlers can draw from one seeded stream.
type Source struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a source. A zero seed means "seed from the clock".
func New(seed int64) *Source {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Source{rng: rand.New(rand.NewSource(seed))}
}

// Uniform returns a float in [lo, hi).
func (s *Source) Uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Float64()*(hi-lo)
}

// IntRange returns an int in [lo, hi], both inclusive.
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Intn(hi-lo+1)
}

// Int64Range returns an int64 in [lo, hi], both inclusive.
func (s *Source) Int64Range(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo + s.rng.Int63n(hi-lo+1)
}

// Chance reports true with probability p.
func (s *Source) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64() < p
}

// Choice picks one element of items. It panics on an empty slice.
func Choice[T any](s *Source, items []T) T {
	return items[s.IntRange(0, len(items)-1)]
}
