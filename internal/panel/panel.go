package panel

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// HoursPerYear converts annualized degradation rates to per-hour rates.
const HoursPerYear = 8760.0

const (
	// Per-unit soiling noise around the farm-wide draw.
	dirtNoiseSigma = 0.0005

	// Rain below this amount (mm) cements dirt instead of washing it off.
	rainThresholdMM    = 2.0
	cementationPenalty = 0.005
	rainMaxEffect      = 0.70
	rainRate           = 0.15

	// Fluctuation amplification is capped so a dying unit cannot swing
	// output by more than ten times its base amplitude.
	instabilityCap = 10.0
	healthEpsilon  = 1e-6
)

// UnscheduledDays is the replacement countdown value of an unscheduled unit.
const UnscheduledDays = -1

var (
	ErrInvalidParams     = errors.New("invalid panel params")
	ErrNilRand           = errors.New("panel rand handle is nil")
	ErrReplaceTransition = errors.New("invalid replacement transition")
	ErrNegativeCountdown = errors.New("replacement countdown must not be negative")
)

// State is the one-way lifecycle position of a unit.
type State int

const (
	StateHealthy State = iota
	StateFailing
	StateDead
)

func (s State) String() string {
	switch s {
	case StateHealthy:
		return "healthy"
	case StateFailing:
		return "failing"
	case StateDead:
		return "dead"
	default:
		return "unknown"
	}
}

// ReplacePhase is the declared replacement sub-state of a unit.
type ReplacePhase int

const (
	ReplaceUnscheduled ReplacePhase = iota
	ReplaceScheduled
	ReplaceDue
)

func (p ReplacePhase) String() string {
	switch p {
	case ReplaceUnscheduled:
		return "unscheduled"
	case ReplaceScheduled:
		return "scheduled"
	case ReplaceDue:
		return "due"
	default:
		return "unknown"
	}
}

// OutputLaw selects how accumulated degradation enters the output product.
type OutputLaw string

const (
	// OutputLawComplement multiplies by (1 - degradation) and centers the
	// fluctuation factor at 1. Output shrinks as the unit wears out.
	OutputLawComplement OutputLaw = "complement"
	// OutputLawLiteral multiplies by the raw degradation fraction and uses
	// the bare fluctuation draw as the factor, reproducing the historical
	// contract where output grows with accumulated wear.
	OutputLawLiteral OutputLaw = "literal"
)

// RainLaw selects the sign convention of the rain-effectiveness curve.
type RainLaw string

const (
	// RainLawSaturating approaches the maximum effect as rain increases.
	RainLawSaturating RainLaw = "saturating"
	// RainLawLiteral keeps the historical positive exponent, which drives
	// effectiveness negative; cleanliness is still floored afterwards.
	RainLawLiteral RainLaw = "literal"
)

// Params is the immutable construction template for a unit.
type Params struct {
	MaxOutput              float64
	Fluctuation            float64
	FailureRate            float64
	FailureProgressionRate float64
	// FirstYearDegradation and AnnualDegradation are annualized fractions;
	// construction divides them by HoursPerYear.
	FirstYearDegradation float64
	AnnualDegradation    float64
	MinCleanliness       float64
	OutputLaw            OutputLaw
	RainLaw              RainLaw
}

// DefaultParams returns a plausible mid-size module template.
func DefaultParams() Params {
	return Params{
		MaxOutput:              300.0,
		Fluctuation:            0.05,
		FailureRate:            0.00001,
		FailureProgressionRate: 0.0001,
		FirstYearDegradation:   0.02,
		AnnualDegradation:      0.005,
		MinCleanliness:         0.8,
		OutputLaw:              OutputLawComplement,
		RainLaw:                RainLawSaturating,
	}
}

// WithDefaults fills unset law selectors.
func (p Params) WithDefaults() Params {
	if strings.TrimSpace(string(p.OutputLaw)) == "" {
		p.OutputLaw = OutputLawComplement
	}
	if strings.TrimSpace(string(p.RainLaw)) == "" {
		p.RainLaw = RainLawSaturating
	}
	return p
}

// Validate checks template ranges before any unit is built from them.
func (p Params) Validate() error {
	if p.MaxOutput <= 0 {
		return fmt.Errorf("%w: max_output %v must be positive", ErrInvalidParams, p.MaxOutput)
	}
	if p.Fluctuation < 0 || p.Fluctuation > 1 {
		return fmt.Errorf("%w: fluctuation %v outside [0, 1]", ErrInvalidParams, p.Fluctuation)
	}
	if p.FailureRate < 0 || p.FailureRate >= 1 {
		return fmt.Errorf("%w: failure_rate %v outside [0, 1)", ErrInvalidParams, p.FailureRate)
	}
	if p.FailureProgressionRate < 0 {
		return fmt.Errorf("%w: failure_progression_rate %v must not be negative", ErrInvalidParams, p.FailureProgressionRate)
	}
	if p.FirstYearDegradation < 0 {
		return fmt.Errorf("%w: first_year_degradation %v must not be negative", ErrInvalidParams, p.FirstYearDegradation)
	}
	if p.AnnualDegradation < 0 {
		return fmt.Errorf("%w: annual_degradation %v must not be negative", ErrInvalidParams, p.AnnualDegradation)
	}
	if p.MinCleanliness < 0 || p.MinCleanliness > 1 {
		return fmt.Errorf("%w: min_cleanliness %v outside [0, 1]", ErrInvalidParams, p.MinCleanliness)
	}
	switch p.OutputLaw {
	case OutputLawComplement, OutputLawLiteral:
	default:
		return fmt.Errorf("%w: unknown output_law %q", ErrInvalidParams, p.OutputLaw)
	}
	switch p.RainLaw {
	case RainLawSaturating, RainLawLiteral:
	default:
		return fmt.Errorf("%w: unknown rain_law %q", ErrInvalidParams, p.RainLaw)
	}
	return nil
}

// Unit is one simulated panel instance.
type Unit struct {
	id  string
	rng Rand

	maxOutput              float64
	fluctuation            float64
	failureRate            float64
	failureProgressionRate float64
	firstPhasePerHour      float64
	annualPerHour          float64
	minCleanliness         float64
	outputLaw              OutputLaw
	rainLaw                RainLaw

	activeHours        float64
	currentDegradation float64
	health             float64
	failing            bool
	failureDetected    bool
	cleanliness        float64
	daysToReplace      int
	currentOutput      float64
}

// New builds a fresh unit from the template with pristine state.
func New(id string, p Params, rng Rand) (*Unit, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidParams)
	}
	if rng == nil {
		return nil, ErrNilRand
	}
	p = p.WithDefaults()
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Unit{
		id:                     id,
		rng:                    rng,
		maxOutput:              p.MaxOutput,
		fluctuation:            p.Fluctuation,
		failureRate:            p.FailureRate,
		failureProgressionRate: p.FailureProgressionRate,
		firstPhasePerHour:      p.FirstYearDegradation / HoursPerYear,
		annualPerHour:          p.AnnualDegradation / HoursPerYear,
		minCleanliness:         p.MinCleanliness,
		outputLaw:              p.OutputLaw,
		rainLaw:                p.RainLaw,
		health:                 1.0,
		cleanliness:            1.0,
		daysToReplace:          UnscheduledDays,
	}, nil
}

// StepOutput advances the unit by hours and realizes the ideal power value.
// Non-positive hours advance nothing and return the last output.
func (u *Unit) StepOutput(idealPower, hours float64) float64 {
	if hours <= 0 {
		return u.currentOutput
	}
	u.activeHours += hours
	u.updateHealth()

	if u.health <= 0 {
		u.currentOutput = 0
		return 0
	}

	u.accrueDegradation(hours)

	amp := 1.0 / (u.health + healthEpsilon)
	if amp > instabilityCap {
		amp = instabilityCap
	}
	amplitude := u.fluctuation * amp
	draw := (2*u.rng.Float64() - 1) * amplitude

	fluctFactor := draw
	wearFactor := u.currentDegradation
	if u.outputLaw == OutputLawComplement {
		fluctFactor = 1 + draw
		wearFactor = 1 - u.currentDegradation
	}

	u.currentOutput = idealPower * fluctFactor * u.cleanliness * wearFactor
	return u.currentOutput
}

// updateHealth runs the failure-onset check and progresses an active failure.
// The onset hazard compounds over total operated hours, so it is re-evaluated
// against the full active_hours each step.
func (u *Unit) updateHealth() {
	if !u.failing {
		hazard := 1 - math.Pow(1-u.failureRate, u.activeHours)
		if u.rng.Float64() < hazard {
			u.failing = true
		}
	}
	if u.failing {
		// Loss scales with cumulative hours, so progression accelerates
		// the longer a failing unit stays in service.
		u.health -= u.failureProgressionRate * u.activeHours
		if u.health < 0 {
			u.health = 0
		}
	}
}

// accrueDegradation applies the biphasic model to the hours of this step,
// splitting proportionally when the step straddles the first-year boundary.
func (u *Unit) accrueDegradation(hours float64) {
	start := u.activeHours - hours
	var add float64
	switch {
	case start >= HoursPerYear:
		add = hours * u.annualPerHour
	case u.activeHours <= HoursPerYear:
		add = hours * u.firstPhasePerHour
	default:
		firstPart := HoursPerYear - start
		add = firstPart*u.firstPhasePerHour + (u.activeHours-HoursPerYear)*u.annualPerHour
	}
	u.currentDegradation += add
	if u.currentDegradation > 1 {
		u.currentDegradation = 1
	}
}

// ApplySoiling dirties the unit by the farm-wide increment plus unit noise.
// Returns the resulting cleanliness.
func (u *Unit) ApplySoiling(delta float64) float64 {
	if delta < 0 {
		delta = 0
	}
	remaining := u.cleanliness - u.minCleanliness
	u.cleanliness -= remaining * (delta + gauss(u.rng, 0, dirtNoiseSigma))
	if u.cleanliness < u.minCleanliness {
		u.cleanliness = u.minCleanliness
	}
	if u.cleanliness > 1 {
		u.cleanliness = 1
	}
	return u.cleanliness
}

// Clean restores cleanliness for a rain amount in mm. Zero rain is a manual
// wash and resets cleanliness fully. Light rain below the threshold cements
// dirt instead. Returns the resulting cleanliness.
func (u *Unit) Clean(rainAmount float64) float64 {
	if rainAmount == 0 {
		u.cleanliness = 1
		return u.cleanliness
	}
	if rainAmount < rainThresholdMM {
		u.cleanliness -= cementationPenalty
		if u.cleanliness < u.minCleanliness {
			u.cleanliness = u.minCleanliness
		}
		return u.cleanliness
	}

	effectiveness := rainMaxEffect * (1 - math.Exp(-rainRate*rainAmount))
	if u.rainLaw == RainLawLiteral {
		effectiveness = rainMaxEffect * (1 - math.Exp(rainRate*rainAmount))
	}
	u.cleanliness += (1 - u.cleanliness) * effectiveness
	if u.cleanliness > 1 {
		u.cleanliness = 1
	}
	if u.cleanliness < u.minCleanliness {
		u.cleanliness = u.minCleanliness
	}
	return u.cleanliness
}

// ScheduleReplace arms the replacement countdown. Only an unscheduled unit
// may be armed; the transition rule is part of the type, not convention.
func (u *Unit) ScheduleReplace(days int) error {
	if days < 0 {
		return fmt.Errorf("%w: got %d", ErrNegativeCountdown, days)
	}
	if u.daysToReplace != UnscheduledDays {
		return transitionError(u.ReplacePhase(), ReplaceScheduled)
	}
	u.daysToReplace = days
	return nil
}

// TickReplace counts an armed countdown down by one day and returns the
// remaining days. Unscheduled units are untouched and report UnscheduledDays.
func (u *Unit) TickReplace() int {
	if u.daysToReplace > 0 {
		u.daysToReplace--
	}
	return u.daysToReplace
}

// ReplacePhase derives the replacement sub-state from the countdown.
func (u *Unit) ReplacePhase() ReplacePhase {
	switch {
	case u.daysToReplace == UnscheduledDays:
		return ReplaceUnscheduled
	case u.daysToReplace == 0:
		return ReplaceDue
	default:
		return ReplaceScheduled
	}
}

func transitionError(from, to ReplacePhase) error {
	return fmt.Errorf("%w: %s -> %s", ErrReplaceTransition, from, to)
}

// FlagFailure latches an externally observed failure on the unit. The latch
// clears only through replacement.
func (u *Unit) FlagFailure() {
	u.failureDetected = true
}

// FailureDetected reports whether an external observer flagged this unit.
func (u *Unit) FailureDetected() bool {
	return u.failureDetected
}

// ID returns the immutable unit identifier.
func (u *Unit) ID() string { return u.id }

// ActiveHours returns total hours operated.
func (u *Unit) ActiveHours() float64 { return u.activeHours }

// Health returns the current health index in [0, 1].
func (u *Unit) Health() float64 { return u.health }

// Cleanliness returns the current soiling state in [min_cleanliness, 1].
func (u *Unit) Cleanliness() float64 { return u.cleanliness }

// Degradation returns the accumulated wear fraction in [0, 1].
func (u *Unit) Degradation() float64 { return u.currentDegradation }

// CurrentOutput returns the last realized output in watts.
func (u *Unit) CurrentOutput() float64 { return u.currentOutput }

// DaysToReplace returns the countdown, UnscheduledDays when unscheduled.
func (u *Unit) DaysToReplace() int { return u.daysToReplace }

// Failing reports whether failure onset has occurred.
func (u *Unit) Failing() bool { return u.failing }

// State derives the lifecycle state from failure and health.
func (u *Unit) State() State {
	switch {
	case u.health <= 0:
		return StateDead
	case u.failing:
		return StateFailing
	default:
		return StateHealthy
	}
}

// Snapshot is the read-only projection exposed to reporting layers.
type Snapshot struct {
	ID              string  `json:"id"`
	State           string  `json:"state"`
	MaxOutput       float64 `json:"max_output_watts"`
	ActiveHours     float64 `json:"active_hours"`
	Health          float64 `json:"health"`
	Cleanliness     float64 `json:"cleanliness"`
	Degradation     float64 `json:"degradation"`
	OutputWatts     float64 `json:"output_watts"`
	DaysToReplace   int     `json:"days_to_replace"`
	FailureDetected bool    `json:"failure_detected"`
}

// Snapshot returns a copy of the observable unit state.
func (u *Unit) Snapshot() Snapshot {
	return Snapshot{
		ID:              u.id,
		State:           u.State().String(),
		MaxOutput:       u.maxOutput,
		ActiveHours:     u.activeHours,
		Health:          u.health,
		Cleanliness:     u.cleanliness,
		Degradation:     u.currentDegradation,
		OutputWatts:     u.currentOutput,
		DaysToReplace:   u.daysToReplace,
		FailureDetected: u.failureDetected,
	}
}
