package farm

import (
	"errors"
	"math"
	"math/rand"
	"regexp"
	"testing"

	"github.com/MewKitBit/Solaris/internal/ident"
	"github.com/MewKitBit/Solaris/internal/panel"
	"github.com/MewKitBit/Solaris/internal/testutil/testlog"
)

func newTestCollection(t *testing.T, cfg Config) (*Collection, *ident.Allocator) {
	t.Helper()
	alloc, err := ident.New(rand.New(rand.NewSource(101)))
	if err != nil {
		t.Fatalf("allocator failed: %v", err)
	}
	c, err := New(cfg, alloc, panel.OwnedRand(cfg.Seed))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, alloc
}

// armUnit rolls the scheduling draw until the countdown arms.
func armUnit(t *testing.T, c *Collection, id string) int {
	t.Helper()
	for i := 0; i < 200; i++ {
		res, err := c.ScheduleReplacement(id)
		if err != nil {
			t.Fatalf("schedule %s failed: %v", id, err)
		}
		if res.Outcome == ScheduleArmed {
			return res.Days
		}
	}
	t.Fatalf("unit %s never armed in 200 draws", id)
	return 0
}

func TestNewPopulatesCollection(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 12
	c, alloc := newTestCollection(t, cfg)

	if got := c.Len(); got != 12 {
		t.Fatalf("len=%d, want 12", got)
	}
	if got := alloc.Reserved(); got != 12 {
		t.Fatalf("allocator reserved=%d, want 12", got)
	}

	form := regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)
	for _, snap := range c.Snapshot() {
		if !form.MatchString(snap.ID) {
			t.Fatalf("member id %q does not match scheme", snap.ID)
		}
		if snap.ActiveHours != 0 || snap.Health != 1 || snap.Cleanliness != 1 {
			t.Fatalf("member %s not pristine: %+v", snap.ID, snap)
		}
		if snap.DaysToReplace != panel.UnscheduledDays {
			t.Fatalf("member %s born scheduled: %d", snap.ID, snap.DaysToReplace)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	testlog.Start(t)

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero units", func(c *Config) { c.UnitCount = 0 }},
		{"negative soiling mu", func(c *Config) { c.SoilingMu = -0.1 }},
		{"negative soiling sigma", func(c *Config) { c.SoilingSigma = -0.1 }},
		{"negative replacement days", func(c *Config) { c.ReplacementDays = -1 }},
		{"unknown rand policy", func(c *Config) { c.RandPolicy = "psychic" }},
		{"bad unit template", func(c *Config) { c.Unit.MaxOutput = 0 }},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !errors.Is(err, ErrInvalidConf) {
			t.Fatalf("%s: err=%v, want ErrInvalidConf", tc.name, err)
		}
	}
}

func TestNewRejectsNilDependencies(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 2
	alloc, err := ident.New(rand.New(rand.NewSource(101)))
	if err != nil {
		t.Fatalf("allocator failed: %v", err)
	}
	if _, err := New(cfg, nil, panel.OwnedRand(1)); !errors.Is(err, ErrNilAllocator) {
		t.Fatalf("nil allocator err=%v", err)
	}
	if _, err := New(cfg, alloc, nil); !errors.Is(err, ErrNilRand) {
		t.Fatalf("nil rand err=%v", err)
	}
}

func TestScheduleBandsFollowTheDraw(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 60
	cfg.ReplacementDays = 3
	cfg.Seed = 21
	c, _ := newTestCollection(t, cfg)
	replica := rand.New(rand.NewSource(21))

	armed, deferred := 0, 0
	for _, id := range c.IDs() {
		r := replica.Float64()
		res, err := c.ScheduleReplacement(id)
		if err != nil {
			t.Fatalf("schedule %s failed: %v", id, err)
		}

		var wantOutcome ScheduleOutcome
		wantDays := panel.UnscheduledDays
		switch {
		case r < 0.04:
			wantOutcome = ScheduleArmed
			wantDays = cfg.ReplacementDays - 1
			if wantDays < 0 {
				wantDays = 0
			}
		case r > 0.65 && r < 0.85:
			wantOutcome = ScheduleArmed
			wantDays = cfg.ReplacementDays + 1
		case r >= 0.85:
			wantOutcome = ScheduleArmed
			wantDays = cfg.ReplacementDays + 2
		default:
			wantOutcome = ScheduleDeferred
		}
		if res.Outcome != wantOutcome || res.Days != wantDays {
			t.Fatalf("unit %s draw %v: got %v/%d, want %v/%d",
				id, r, res.Outcome, res.Days, wantOutcome, wantDays)
		}
		switch res.Outcome {
		case ScheduleArmed:
			armed++
		case ScheduleDeferred:
			deferred++
		}
	}
	if armed == 0 || deferred == 0 {
		t.Fatalf("draws not exercised: armed=%d deferred=%d", armed, deferred)
	}

	// A second roll on an armed unit must not draw again.
	for _, id := range c.IDs() {
		snap, err := c.Unit(id)
		if err != nil {
			t.Fatalf("unit %s: %v", id, err)
		}
		if snap.DaysToReplace == panel.UnscheduledDays {
			continue
		}
		res, err := c.ScheduleReplacement(id)
		if err != nil {
			t.Fatalf("re-schedule %s failed: %v", id, err)
		}
		if res.Outcome != ScheduleAlreadyScheduled || res.Days != snap.DaysToReplace {
			t.Fatalf("re-schedule got %v/%d, want already_scheduled/%d", res.Outcome, res.Days, snap.DaysToReplace)
		}
		break
	}
}

func TestReplaceSweepSwapsDueUnits(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 6
	cfg.ReplacementDays = 2
	c, alloc := newTestCollection(t, cfg)
	reservedBefore := alloc.Reserved()

	oldID := c.IDs()[0]
	days := armUnit(t, c, oldID)

	var swaps []Replacement
	sweeps := 0
	for len(swaps) == 0 {
		sweeps++
		if sweeps > days+1 {
			t.Fatalf("no swap after %d sweeps for countdown %d", sweeps, days)
		}
		swaps = c.ReplaceIfNeeded()
	}
	if sweeps != days+1 {
		t.Fatalf("swap happened at sweep %d, want %d", sweeps, days+1)
	}
	if len(swaps) != 1 || swaps[0].OldID != oldID || swaps[0].Err != nil {
		t.Fatalf("unexpected swaps: %+v", swaps)
	}

	newID := swaps[0].NewID
	if newID == oldID {
		t.Fatalf("retired id was reused")
	}
	if _, err := c.Unit(oldID); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("old unit still resolvable: %v", err)
	}
	fresh, err := c.Unit(newID)
	if err != nil {
		t.Fatalf("fresh unit missing: %v", err)
	}
	if fresh.ActiveHours != 0 || fresh.Health != 1 || fresh.Cleanliness != 1 ||
		fresh.DaysToReplace != panel.UnscheduledDays || fresh.FailureDetected {
		t.Fatalf("replacement not pristine: %+v", fresh)
	}

	if got := c.Len(); got != cfg.UnitCount {
		t.Fatalf("len=%d, want %d", got, cfg.UnitCount)
	}
	if got := c.ReplacedCount(); got != 1 {
		t.Fatalf("replaced count=%d, want 1", got)
	}
	retired := c.RetiredIDs()
	if len(retired) != 1 || retired[0] != oldID {
		t.Fatalf("retired ids=%v, want [%s]", retired, oldID)
	}
	// The old id stays reserved, so the allocator grows by exactly one.
	if got := alloc.Reserved(); got != reservedBefore+1 {
		t.Fatalf("allocator reserved=%d, want %d", got, reservedBefore+1)
	}
}

func TestReplaceSweepLeavesUnscheduledAlone(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 5
	c, _ := newTestCollection(t, cfg)

	for i := 0; i < 4; i++ {
		if swaps := c.ReplaceIfNeeded(); len(swaps) != 0 {
			t.Fatalf("sweep %d replaced unscheduled units: %+v", i, swaps)
		}
	}
	for _, snap := range c.Snapshot() {
		if snap.DaysToReplace != panel.UnscheduledDays {
			t.Fatalf("unit %s countdown moved to %d", snap.ID, snap.DaysToReplace)
		}
	}
}

func TestSoilingEventDrawsOncePerHour(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 8
	cfg.Seed = 33
	c, _ := newTestCollection(t, cfg)
	replica := rand.New(rand.NewSource(33))

	mags := c.ApplySoilingEvent(3)
	if len(mags) != 3 {
		t.Fatalf("got %d magnitudes, want 3", len(mags))
	}
	for h, mag := range mags {
		want := cfg.SoilingMu + cfg.SoilingSigma*replica.NormFloat64()
		if want < 0 {
			want = 0
		}
		if math.Abs(mag-want) > 1e-12 {
			t.Fatalf("hour %d magnitude got=%v want=%v", h, mag, want)
		}
	}

	for _, snap := range c.Snapshot() {
		if snap.Cleanliness > 1 || snap.Cleanliness < cfg.Unit.MinCleanliness {
			t.Fatalf("unit %s cleanliness %v out of bounds", snap.ID, snap.Cleanliness)
		}
	}

	if got := c.ApplySoilingEvent(0); got != nil {
		t.Fatalf("zero-hour event drew %v", got)
	}
}

func TestStepOutputsSumsMembers(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 7
	cfg.Unit.FailureRate = 0
	cfg.Unit.Fluctuation = 0
	c, _ := newTestCollection(t, cfg)

	const ideal, hours = 280.0, 6.0
	total := c.StepOutputs(ideal, hours)

	deg := hours * cfg.Unit.FirstYearDegradation / panel.HoursPerYear
	perUnit := ideal * (1 - deg)
	want := float64(cfg.UnitCount) * perUnit
	if math.Abs(total-want) > 1e-9 {
		t.Fatalf("total got=%v want=%v", total, want)
	}

	if _, err := c.StepUnit("ZZ999999", ideal, 1); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("unknown unit err=%v", err)
	}
}

func TestFlagFailureLatches(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 3
	c, _ := newTestCollection(t, cfg)

	id := c.IDs()[1]
	if err := c.FlagFailure(id); err != nil {
		t.Fatalf("flag failed: %v", err)
	}
	snap, err := c.Unit(id)
	if err != nil {
		t.Fatalf("unit: %v", err)
	}
	if !snap.FailureDetected {
		t.Fatalf("latch not visible in snapshot")
	}
	if err := c.FlagFailure("ZZ999999"); !errors.Is(err, ErrUnknownUnit) {
		t.Fatalf("unknown unit err=%v", err)
	}
}

func TestAllocatorExhaustionSurfacesInSweep(t *testing.T) {
	testlog.Start(t)

	alloc, err := ident.NewWithScheme(rand.New(rand.NewSource(101)), 0, 1)
	if err != nil {
		t.Fatalf("allocator failed: %v", err)
	}
	cfg := DefaultConfig()
	cfg.UnitCount = 10
	cfg.ReplacementDays = 0
	c, err := New(cfg, alloc, panel.OwnedRand(5))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	id := c.IDs()[0]
	days := armUnit(t, c, id)
	for i := 0; i < days; i++ {
		c.ReplaceIfNeeded()
	}

	swaps := c.ReplaceIfNeeded()
	if len(swaps) != 1 {
		t.Fatalf("swaps=%+v, want one failed slot", swaps)
	}
	if !errors.Is(swaps[0].Err, ident.ErrSpaceExhausted) {
		t.Fatalf("swap err=%v, want ErrSpaceExhausted", swaps[0].Err)
	}
	if swaps[0].OldID != id {
		t.Fatalf("failed slot=%s, want %s", swaps[0].OldID, id)
	}
	// The due unit keeps its slot so a later sweep can retry.
	if got := c.Len(); got != 10 {
		t.Fatalf("len=%d, want 10", got)
	}
	if _, err := c.Unit(id); err != nil {
		t.Fatalf("due unit evicted despite failed allocation: %v", err)
	}
}

func TestCleanAllAppliesRain(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 4
	c, _ := newTestCollection(t, cfg)

	c.ApplySoilingEvent(48)
	for _, snap := range c.Snapshot() {
		if snap.Cleanliness >= 1 {
			t.Fatalf("unit %s still pristine after two days of dust", snap.ID)
		}
	}

	c.CleanAll(0)
	for _, snap := range c.Snapshot() {
		if snap.Cleanliness != 1 {
			t.Fatalf("unit %s cleanliness %v after manual wash, want 1", snap.ID, snap.Cleanliness)
		}
	}
}

func TestCloseReleasesAndBlocks(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 6
	c, alloc := newTestCollection(t, cfg)

	id := c.IDs()[0]
	days := armUnit(t, c, id)
	for i := 0; i <= days; i++ {
		c.ReplaceIfNeeded()
	}
	if got := c.ReplacedCount(); got != 1 {
		t.Fatalf("replaced=%d, want 1", got)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if got := alloc.Reserved(); got != 0 {
		t.Fatalf("allocator reserved=%d after close, want 0", got)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}

	if _, err := c.StepUnit("AB123456", 100, 1); !errors.Is(err, ErrClosed) {
		t.Fatalf("step on closed err=%v", err)
	}
	if _, err := c.ScheduleReplacement("AB123456"); !errors.Is(err, ErrClosed) {
		t.Fatalf("schedule on closed err=%v", err)
	}
}

func TestSharedRandPolicy(t *testing.T) {
	testlog.Start(t)

	cfg := DefaultConfig()
	cfg.UnitCount = 5
	cfg.RandPolicy = RandShared
	c, _ := newTestCollection(t, cfg)

	total := c.StepOutputs(300, 1)
	if total <= 0 {
		t.Fatalf("shared-policy farm produced %v", total)
	}
	c.ApplySoilingEvent(1)
	for _, snap := range c.Snapshot() {
		if snap.Cleanliness < cfg.Unit.MinCleanliness || snap.Cleanliness > 1 {
			t.Fatalf("unit %s cleanliness %v out of bounds", snap.ID, snap.Cleanliness)
		}
	}
}
