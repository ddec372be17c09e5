package farm

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/MewKitBit/Solaris/internal/ident"
	"github.com/MewKitBit/Solaris/internal/panel"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilAllocator = errors.New("farm: allocator is nil")
	ErrNilRand      = errors.New("farm: rand handle is nil")
	ErrUnknownUnit  = errors.New("farm: unknown unit")
	ErrClosed       = errors.New("farm: collection is closed")
	ErrInvalidConf  = errors.New("farm: invalid config")
)

// RandPolicy declares how member units obtain randomness. A collection runs
// exactly one policy; mixing is impossible by construction.
type RandPolicy string

const (
	// RandOwned gives every unit its own generator seeded from the farm
	// seed plus its creation ordinal. Runs replay deterministically.
	RandOwned RandPolicy = "owned"
	// RandShared hands every unit the same locked generator. Cheaper, but
	// per-unit draw sequences depend on call interleaving.
	RandShared RandPolicy = "shared"
)

// Replacement-chance bands drawn by ScheduleReplacement. Most of the mass
// falls between the early and late bands and leaves the unit unscheduled.
const (
	earlyBand    = 0.04
	lateBandLow  = 0.65
	lateBandHigh = 0.85
	earlyOffset  = -1
	lateOffset   = 1
	latestOffset = 2
)

// Config carries the collection parameters and the unit template.
type Config struct {
	UnitCount       int
	Unit            panel.Params
	SoilingMu       float64
	SoilingSigma    float64
	ReplacementDays int
	RandPolicy      RandPolicy
	Seed            int64
}

// DefaultConfig returns a small dusty farm with deterministic replay.
func DefaultConfig() Config {
	return Config{
		UnitCount:       40,
		Unit:            panel.DefaultParams(),
		SoilingMu:       0.001,
		SoilingSigma:    0.0015,
		ReplacementDays: 3,
		RandPolicy:      RandOwned,
		Seed:            1,
	}
}

// WithDefaults fills unset policy selectors.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(string(c.RandPolicy)) == "" {
		c.RandPolicy = RandOwned
	}
	c.Unit = c.Unit.WithDefaults()
	return c
}

// Validate checks collection parameter ranges and the unit template.
func (c Config) Validate() error {
	if c.UnitCount <= 0 {
		return fmt.Errorf("%w: unit_count %d must be positive", ErrInvalidConf, c.UnitCount)
	}
	if c.SoilingMu < 0 {
		return fmt.Errorf("%w: soiling_mu %v must not be negative", ErrInvalidConf, c.SoilingMu)
	}
	if c.SoilingSigma < 0 {
		return fmt.Errorf("%w: soiling_sigma %v must not be negative", ErrInvalidConf, c.SoilingSigma)
	}
	if c.ReplacementDays < 0 {
		return fmt.Errorf("%w: replacement_days %d must not be negative", ErrInvalidConf, c.ReplacementDays)
	}
	switch c.RandPolicy {
	case RandOwned, RandShared:
	default:
		return fmt.Errorf("%w: unknown rand_policy %q", ErrInvalidConf, c.RandPolicy)
	}
	if err := c.Unit.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConf, err)
	}
	return nil
}

// ScheduleOutcome reports what a scheduling draw did to a unit.
type ScheduleOutcome int

const (
	// ScheduleArmed means the countdown was set this call.
	ScheduleArmed ScheduleOutcome = iota
	// ScheduleDeferred means the draw left the unit unscheduled; callers
	// retry on a later observation.
	ScheduleDeferred
	// ScheduleAlreadyScheduled means the unit had an armed countdown.
	ScheduleAlreadyScheduled
)

func (o ScheduleOutcome) String() string {
	switch o {
	case ScheduleArmed:
		return "armed"
	case ScheduleDeferred:
		return "deferred"
	case ScheduleAlreadyScheduled:
		return "already_scheduled"
	default:
		return "unknown"
	}
}

// ScheduleResult is the outcome of one scheduling call.
type ScheduleResult struct {
	Outcome ScheduleOutcome
	Days    int
}

// Replacement records one slot swap performed by a replacement sweep.
// Err is set when a fresh id could not be allocated; the old unit then
// stays in place and the sweep retries it next time.
type Replacement struct {
	OldID string
	NewID string
	Err   error
}

// Collection owns a set of units keyed by allocated id.
type Collection struct {
	mu    sync.RWMutex
	cfg   Config
	rng   panel.Rand
	alloc *ident.Allocator

	members  map[string]*panel.Unit
	retired  []string
	unitSeq  int64
	unitRand panel.Rand // set under RandShared
	replaced int
	closed   bool
}

// New bulk-populates a collection from the config. The rand handle drives
// the collection's own draws (scheduling, soiling magnitudes); unit handles
// follow the configured policy.
func New(cfg Config, alloc *ident.Allocator, rng panel.Rand) (*Collection, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, ErrNilAllocator
	}
	if rng == nil {
		return nil, ErrNilRand
	}

	c := &Collection{
		cfg:     cfg,
		rng:     rng,
		alloc:   alloc,
		members: make(map[string]*panel.Unit, cfg.UnitCount),
	}
	if cfg.RandPolicy == RandShared {
		c.unitRand = panel.NewSharedRand(cfg.Seed)
	}
	for i := 0; i < cfg.UnitCount; i++ {
		u, err := c.instantiateUnit()
		if err != nil {
			c.releaseAllLocked()
			return nil, fmt.Errorf("farm: populate unit %d: %w", i, err)
		}
		c.members[u.ID()] = u
	}
	return c, nil
}

// instantiateUnit merges a fresh id into the template and builds a unit with
// pristine state. Callers hold the write lock or are inside New.
func (c *Collection) instantiateUnit() (*panel.Unit, error) {
	id, err := c.alloc.Allocate()
	if err != nil {
		return nil, err
	}
	c.unitSeq++
	rng := c.unitRand
	if c.cfg.RandPolicy == RandOwned {
		rng = panel.OwnedRand(c.cfg.Seed + c.unitSeq)
	}
	u, err := panel.New(id, c.cfg.Unit, rng)
	if err != nil {
		c.alloc.Release(id)
		return nil, err
	}
	return u, nil
}

// StepUnit advances one unit by hours against the ideal power value.
func (c *Collection) StepUnit(id string, idealPower, hours float64) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, ErrClosed
	}
	u, ok := c.members[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	return u.StepOutput(idealPower, hours), nil
}

// StepOutputs advances every unit by hours and returns the summed realized
// output. Units are stepped in id order so owned-policy runs replay exactly.
func (c *Collection) StepOutputs(idealPower, hours float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}
	var total float64
	for _, id := range c.sortedIDsLocked() {
		total += c.members[id].StepOutput(idealPower, hours)
	}
	return total
}

// ApplySoilingEvent draws one farm-wide soiling magnitude per hour and
// applies each uniformly to every member. Returns the per-hour magnitudes.
func (c *Collection) ApplySoilingEvent(hours int) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || hours <= 0 {
		return nil
	}
	mags := make([]float64, 0, hours)
	ids := c.sortedIDsLocked()
	for h := 0; h < hours; h++ {
		mag := c.cfg.SoilingMu + c.cfg.SoilingSigma*c.rng.NormFloat64()
		if mag < 0 {
			mag = 0
		}
		for _, id := range ids {
			c.members[id].ApplySoiling(mag)
		}
		mags = append(mags, mag)
	}
	return mags
}

// CleanAll applies one rain amount to every member, as rain falls on the
// whole farm. Zero rain is the manual wash of the entire field.
func (c *Collection) CleanAll(rainAmount float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	for _, id := range c.sortedIDsLocked() {
		c.members[id].Clean(rainAmount)
	}
}

// FlagFailure latches an externally observed failure on one unit.
func (c *Collection) FlagFailure(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	u, ok := c.members[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	u.FlagFailure()
	return nil
}

// ScheduleReplacement rolls the replacement draw for an unscheduled unit.
// The bands mirror maintenance crew availability: a small chance of an early
// slot, a moderate chance of running one or two days late, and the rest of
// the mass deferring the decision entirely.
func (c *Collection) ScheduleReplacement(id string) (ScheduleResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ScheduleResult{}, ErrClosed
	}
	u, ok := c.members[id]
	if !ok {
		return ScheduleResult{}, fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	if u.ReplacePhase() != panel.ReplaceUnscheduled {
		return ScheduleResult{Outcome: ScheduleAlreadyScheduled, Days: u.DaysToReplace()}, nil
	}

	days := panel.UnscheduledDays
	switch r := c.rng.Float64(); {
	case r < earlyBand:
		days = c.cfg.ReplacementDays + earlyOffset
		if days < 0 {
			days = 0
		}
	case r > lateBandLow && r < lateBandHigh:
		days = c.cfg.ReplacementDays + lateOffset
	case r >= lateBandHigh:
		days = c.cfg.ReplacementDays + latestOffset
	}
	if days == panel.UnscheduledDays {
		return ScheduleResult{Outcome: ScheduleDeferred, Days: days}, nil
	}
	if err := u.ScheduleReplace(days); err != nil {
		return ScheduleResult{}, err
	}
	log.Debug().Str("unit", id).Int("days", days).Msg("replacement_scheduled")
	return ScheduleResult{Outcome: ScheduleArmed, Days: days}, nil
}

// ReplaceIfNeeded sweeps the members once: due units are retired and their
// slots refilled with fresh units under new ids, armed countdowns tick down
// one day, unscheduled units are untouched. Retired ids stay reserved for
// the collection's lifetime so they are never reissued.
func (c *Collection) ReplaceIfNeeded() []Replacement {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	var swaps []Replacement
	for _, id := range c.sortedIDsLocked() {
		u := c.members[id]
		switch u.ReplacePhase() {
		case panel.ReplaceDue:
			fresh, err := c.instantiateUnit()
			if err != nil {
				log.Error().Str("unit", id).Err(err).Msg("replacement_alloc_failed")
				swaps = append(swaps, Replacement{OldID: id, Err: err})
				continue
			}
			delete(c.members, id)
			c.retired = append(c.retired, id)
			c.members[fresh.ID()] = fresh
			c.replaced++
			log.Debug().Str("old", id).Str("new", fresh.ID()).Msg("unit_replaced")
			swaps = append(swaps, Replacement{OldID: id, NewID: fresh.ID()})
		case panel.ReplaceScheduled:
			u.TickReplace()
		}
	}
	return swaps
}

// Unit returns the snapshot of one member.
func (c *Collection) Unit(id string) (panel.Snapshot, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.members[id]
	if !ok {
		return panel.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownUnit, id)
	}
	return u.Snapshot(), nil
}

// Snapshot returns every member's snapshot ordered by id.
func (c *Collection) Snapshot() []panel.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]panel.Snapshot, 0, len(c.members))
	for _, id := range c.sortedIDsLocked() {
		out = append(out, c.members[id].Snapshot())
	}
	return out
}

// IDs returns the member ids in sorted order.
func (c *Collection) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sortedIDsLocked()
}

// Len returns the member count.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.members)
}

// ReplacedCount returns how many slot swaps this collection has performed.
func (c *Collection) ReplacedCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.replaced
}

// RetiredIDs returns a copy of the permanently retired ids.
func (c *Collection) RetiredIDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.retired))
	copy(out, c.retired)
	return out
}

// Close releases every member and retired id back to the allocator.
// Further operations fail with ErrClosed. Close is idempotent.
func (c *Collection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.releaseAllLocked()
	c.closed = true
	return nil
}

func (c *Collection) releaseAllLocked() {
	for id := range c.members {
		c.alloc.Release(id)
	}
	for _, id := range c.retired {
		c.alloc.Release(id)
	}
	c.members = make(map[string]*panel.Unit)
	c.retired = nil
}

func (c *Collection) sortedIDsLocked() []string {
	ids := make([]string, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
