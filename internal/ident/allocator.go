package ident

import (
	"errors"
	"fmt"
	"sync"
)

// Rand is the draw source for candidate indexes.
// *math/rand.Rand satisfies it.
type Rand interface {
	Intn(n int) int
}

const (
	DefaultLetters = 2
	DefaultDigits  = 6

	// Random probing gives up after this many collisions and switches to a
	// deterministic sweep, so dense occupancy degrades instead of spinning.
	maxRandomAttempts = 64

	maxLetters = 4
	maxDigits  = 12
)

var (
	ErrSpaceExhausted = errors.New("ident: id space exhausted")
	ErrNilRand        = errors.New("ident: rand handle is nil")
	ErrBadScheme      = errors.New("ident: invalid id scheme")
)

// Allocator hands out unique ids drawn from a fixed letters+digits scheme.
// The id space is finite; exhaustion is reported, never looped on. Safe for
// use by multiple collections sharing one process-wide id space.
type Allocator struct {
	mu       sync.Mutex
	rng      Rand
	letters  int
	digits   int
	capacity int
	reserved map[string]struct{}
}

// New returns an allocator over the default AA000000 scheme.
func New(rng Rand) (*Allocator, error) {
	return NewWithScheme(rng, DefaultLetters, DefaultDigits)
}

// NewWithScheme returns an allocator over a custom scheme size. Shrunken
// schemes keep exhaustion behavior testable.
func NewWithScheme(rng Rand, letters, digits int) (*Allocator, error) {
	if rng == nil {
		return nil, ErrNilRand
	}
	if letters < 0 || digits < 0 || letters+digits == 0 {
		return nil, fmt.Errorf("%w: %d letters, %d digits", ErrBadScheme, letters, digits)
	}
	if letters > maxLetters || digits > maxDigits {
		return nil, fmt.Errorf("%w: %d letters, %d digits exceeds supported size", ErrBadScheme, letters, digits)
	}
	capacity := 1
	for i := 0; i < letters; i++ {
		capacity *= 26
	}
	for i := 0; i < digits; i++ {
		capacity *= 10
	}
	return &Allocator{
		rng:      rng,
		letters:  letters,
		digits:   digits,
		capacity: capacity,
		reserved: make(map[string]struct{}),
	}, nil
}

// Allocate reserves and returns a previously unissued id. Returns
// ErrSpaceExhausted once every id in the scheme is reserved.
func (a *Allocator) Allocate() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.reserved) >= a.capacity {
		return "", ErrSpaceExhausted
	}
	for attempt := 0; attempt < maxRandomAttempts; attempt++ {
		id := a.idAt(a.rng.Intn(a.capacity))
		if _, taken := a.reserved[id]; !taken {
			a.reserved[id] = struct{}{}
			return id, nil
		}
	}
	start := a.rng.Intn(a.capacity)
	for i := 0; i < a.capacity; i++ {
		id := a.idAt((start + i) % a.capacity)
		if _, taken := a.reserved[id]; !taken {
			a.reserved[id] = struct{}{}
			return id, nil
		}
	}
	return "", ErrSpaceExhausted
}

// Release returns an id to the pool and reports whether it was reserved.
func (a *Allocator) Release(id string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.reserved[id]; !ok {
		return false
	}
	delete(a.reserved, id)
	return true
}

// Reserved returns the number of ids currently held.
func (a *Allocator) Reserved() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reserved)
}

// Capacity returns the total size of the id space.
func (a *Allocator) Capacity() int {
	return a.capacity
}

// idAt maps a space index to its id string: the digit block is the index
// modulo 10^digits zero-padded, the letter block is the remainder in base 26.
func (a *Allocator) idAt(idx int) string {
	buf := make([]byte, a.letters+a.digits)
	for i := a.letters + a.digits - 1; i >= a.letters; i-- {
		buf[i] = '0' + byte(idx%10)
		idx /= 10
	}
	for i := a.letters - 1; i >= 0; i-- {
		buf[i] = 'A' + byte(idx%26)
		idx /= 26
	}
	return string(buf)
}
