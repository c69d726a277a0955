// Package random provides the randomness source shared by the generator and
// the scorer. Sessions run concurrently, so the source is mutex guarded.
package random

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Source is the subset of *rand.Rand used by this service.
type Source interface {
	Float64() float64
	IntN(n int) int
}

// Locked is a goroutine-safe Source.
type Locked struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// New returns a Locked source. A zero seed picks one from the clock.
func New(seed uint64) *Locked {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Locked{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns a value in [0, 1).
func (l *Locked) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.Float64()
}

// IntN returns a value in [0, n).
func (l *Locked) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rnd.IntN(n)
}

// Uniform draws from [lo, hi).
func Uniform(src Source, lo, hi float64) float64 {
	return lo + (hi-lo)*src.Float64()
}

// IntRange draws an integer from [lo, hi], both inclusive.
func IntRange(src Source, lo, hi int) int {
	return lo + src.IntN(hi-lo+1)
}
