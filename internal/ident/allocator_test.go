package ident

import (
	"errors"
	"math/rand"
	"regexp"
	"sync"
	"testing"

	"github.com/MewKitBit/Solaris/internal/testutil/testlog"
)

func TestAllocateUniqueWellFormedIDs(t *testing.T) {
	testlog.Start(t)

	alloc, err := New(rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if got := alloc.Capacity(); got != 26*26*1000000 {
		t.Fatalf("capacity=%d, want %d", got, 26*26*1000000)
	}

	form := regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id, err := alloc.Allocate()
		if err != nil {
			t.Fatalf("allocate %d failed: %v", i, err)
		}
		if !form.MatchString(id) {
			t.Fatalf("id %q does not match scheme", id)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
	if got := alloc.Reserved(); got != 1000 {
		t.Fatalf("reserved=%d, want 1000", got)
	}
}

func TestExhaustionYieldsExplicitError(t *testing.T) {
	testlog.Start(t)

	alloc, err := NewWithScheme(rand.New(rand.NewSource(7)), 0, 1)
	if err != nil {
		t.Fatalf("NewWithScheme failed: %v", err)
	}
	if got := alloc.Capacity(); got != 10 {
		t.Fatalf("capacity=%d, want 10", got)
	}

	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		id, err := alloc.Allocate()
		if err != nil {
			t.Fatalf("allocate %d failed: %v", i, err)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != 10 {
		t.Fatalf("expected the full space, got %d distinct ids", len(seen))
	}
	if _, err := alloc.Allocate(); !errors.Is(err, ErrSpaceExhausted) {
		t.Fatalf("exhausted allocate err=%v, want ErrSpaceExhausted", err)
	}
}

func TestReleaseEnablesReuse(t *testing.T) {
	testlog.Start(t)

	alloc, err := NewWithScheme(rand.New(rand.NewSource(7)), 0, 1)
	if err != nil {
		t.Fatalf("NewWithScheme failed: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := alloc.Allocate(); err != nil {
			t.Fatalf("allocate %d failed: %v", i, err)
		}
	}

	if alloc.Release("99") {
		t.Fatalf("released an id outside the space")
	}
	if !alloc.Release("4") {
		t.Fatalf("release of a reserved id reported false")
	}
	if alloc.Release("4") {
		t.Fatalf("double release reported true")
	}

	id, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("allocate after release failed: %v", err)
	}
	if id != "4" {
		t.Fatalf("allocate returned %q, want the only free id \"4\"", id)
	}
}

func TestSchemeValidation(t *testing.T) {
	testlog.Start(t)

	if _, err := New(nil); !errors.Is(err, ErrNilRand) {
		t.Fatalf("nil rand err=%v", err)
	}
	rng := rand.New(rand.NewSource(7))
	if _, err := NewWithScheme(rng, -1, 6); !errors.Is(err, ErrBadScheme) {
		t.Fatalf("negative letters err=%v", err)
	}
	if _, err := NewWithScheme(rng, 0, 0); !errors.Is(err, ErrBadScheme) {
		t.Fatalf("empty scheme err=%v", err)
	}
	if _, err := NewWithScheme(rng, 5, 6); !errors.Is(err, ErrBadScheme) {
		t.Fatalf("oversized scheme err=%v", err)
	}
}

func TestConcurrentAllocateStaysUnique(t *testing.T) {
	testlog.Start(t)

	alloc, err := NewWithScheme(rand.New(rand.NewSource(7)), 1, 3)
	if err != nil {
		t.Fatalf("NewWithScheme failed: %v", err)
	}

	const workers, perWorker = 8, 200
	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := alloc.Allocate()
				if err != nil {
					t.Errorf("allocate failed: %v", err)
					return
				}
				ids <- id
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q under concurrency", id)
		}
		seen[id] = struct{}{}
	}
	if len(seen) != workers*perWorker {
		t.Fatalf("got %d ids, want %d", len(seen), workers*perWorker)
	}
}
