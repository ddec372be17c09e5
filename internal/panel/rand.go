package panel

import (
	"math/rand"
	"sync"
)

// Rand is the minimal randomness handle the simulation draws from.
// *math/rand.Rand satisfies it.
type Rand interface {
	// Float64 returns a uniform draw in [0, 1).
	Float64() float64
	// NormFloat64 returns a standard normal draw.
	NormFloat64() float64
}

// OwnedRand returns a seeded generator for exclusive use by one owner.
// Exclusive ownership is what makes a run independently replayable.
func OwnedRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

// NewSharedRand returns a seeded generator safe to hand to many owners.
// Draw interleaving depends on call order across owners, so individual
// owners are not replayable in isolation.
func NewSharedRand(seed int64) Rand {
	return &lockedRand{src: rand.New(rand.NewSource(seed))}
}

type lockedRand struct {
	mu  sync.Mutex
	src *rand.Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.Float64()
}

func (l *lockedRand) NormFloat64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.src.NormFloat64()
}

// gauss returns a draw from N(mu, sigma) using the supplied handle.
func gauss(rng Rand, mu, sigma float64) float64 {
	return mu + sigma*rng.NormFloat64()
}
