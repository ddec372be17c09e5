package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MewKitBit/Solaris/internal/farm"
	"github.com/MewKitBit/Solaris/internal/ident"
	"github.com/MewKitBit/Solaris/internal/observability"
	"github.com/MewKitBit/Solaris/internal/panel"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrNilCollection = errors.New("sim: collection is nil")
	ErrNilAllocator  = errors.New("sim: allocator is nil")
	ErrInvalidRun    = errors.New("sim: invalid run config")
)

// RunConfig carries the driver-loop knobs layered on top of the farm config.
type RunConfig struct {
	ScenarioName string
	// CollapseFraction is the observation threshold: a unit producing less
	// than this fraction of the ideal value while the sun is up is flagged
	// as failed and offered for replacement scheduling.
	CollapseFraction float64
	// SweepIntervalHours is how often the replacement sweep runs; countdowns
	// are day-granular, so this defaults to 24.
	SweepIntervalHours int
	// WashIntervalHours schedules a manual wash of the whole field.
	// Zero disables washing.
	WashIntervalHours int
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		ScenarioName:       "solaris",
		CollapseFraction:   0.25,
		SweepIntervalHours: 24,
		WashIntervalHours:  0,
	}
}

func (c RunConfig) Validate() error {
	if c.CollapseFraction <= 0 || c.CollapseFraction >= 1 {
		return fmt.Errorf("%w: collapse_fraction %v outside (0, 1)", ErrInvalidRun, c.CollapseFraction)
	}
	if c.SweepIntervalHours <= 0 {
		return fmt.Errorf("%w: sweep_interval_hours %d must be positive", ErrInvalidRun, c.SweepIntervalHours)
	}
	if c.WashIntervalHours < 0 {
		return fmt.Errorf("%w: wash_interval_hours %d must not be negative", ErrInvalidRun, c.WashIntervalHours)
	}
	return nil
}

// StepRecord is the per-step projection handed to the step hook.
type StepRecord struct {
	RunID        string             `json:"run_id"`
	Step         int                `json:"step"`
	Timestamp    time.Time          `json:"timestamp"`
	IdealWatts   float64            `json:"ideal_watts"`
	OutputWatts  float64            `json:"output_watts"`
	Stats        OutputStats        `json:"stats"`
	Soiling      []float64          `json:"soiling"`
	Replacements []farm.Replacement `json:"replacements,omitempty"`
	Units        []panel.Snapshot   `json:"units"`
}

// RunSummary is the terminal report of one run.
type RunSummary struct {
	RunID            string        `json:"run_id"`
	Scenario         string        `json:"scenario"`
	Steps            int           `json:"steps"`
	EnergyWattHours  float64       `json:"energy_watt_hours"`
	FinalStats       OutputStats   `json:"final_stats"`
	FailuresObserved int           `json:"failures_observed"`
	Replacements     int           `json:"replacements"`
	Elapsed          time.Duration `json:"elapsed"`
}

// RunStatus is the live view served by the monitor API.
type RunStatus struct {
	RunID          string    `json:"run_id"`
	Scenario       string    `json:"scenario"`
	StepsCompleted int       `json:"steps_completed"`
	TotalSteps     int       `json:"total_steps"`
	Running        bool      `json:"running"`
	StartedAt      time.Time `json:"started_at"`
}

// StepHook observes each completed step. Hooks run on the simulation
// goroutine and must not block on external systems.
type StepHook func(StepRecord)

// Runner drives one collection over one ideal-power series, hour by hour.
type Runner struct {
	cfg    RunConfig
	coll   *farm.Collection
	alloc  *ident.Allocator
	series Series
	hook   StepHook

	mu     sync.Mutex
	status RunStatus
}

// NewRunner wires a run. The hook may be nil.
func NewRunner(cfg RunConfig, coll *farm.Collection, alloc *ident.Allocator, s Series, hook StepHook) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if coll == nil {
		return nil, ErrNilCollection
	}
	if alloc == nil {
		return nil, ErrNilAllocator
	}
	if len(s) == 0 {
		return nil, ErrEmptySeries
	}
	return &Runner{
		cfg:    cfg,
		coll:   coll,
		alloc:  alloc,
		series: s,
		hook:   hook,
		status: RunStatus{
			RunID:      uuid.NewString(),
			Scenario:   cfg.ScenarioName,
			TotalSteps: len(s),
		},
	}, nil
}

// Status returns the live run view.
func (r *Runner) Status() RunStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Collection exposes the farm for read-only snapshot access.
func (r *Runner) Collection() *farm.Collection {
	return r.coll
}

// Run executes the full series. Cancelling the context stops the run between
// steps and returns the summary accumulated so far alongside the context
// error.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	start := time.Now()
	r.mu.Lock()
	r.status.Running = true
	r.status.StartedAt = start
	runID := r.status.RunID
	r.mu.Unlock()

	log.Info().
		Str("run", runID).
		Str("scenario", r.cfg.ScenarioName).
		Int("steps", len(r.series)).
		Int("units", r.coll.Len()).
		Msg("run_started")

	summary := RunSummary{RunID: runID, Scenario: r.cfg.ScenarioName}
	var runErr error

	for i, point := range r.series {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		rec := r.step(i, point, runID, &summary)
		summary.Steps++
		summary.EnergyWattHours += rec.OutputWatts
		summary.FinalStats = rec.Stats

		r.mu.Lock()
		r.status.StepsCompleted = summary.Steps
		r.mu.Unlock()

		if r.hook != nil {
			r.hook(rec)
		}
	}

	summary.Elapsed = time.Since(start)
	r.mu.Lock()
	r.status.Running = false
	r.mu.Unlock()

	log.Info().
		Str("run", runID).
		Int("steps", summary.Steps).
		Float64("energy_wh", summary.EnergyWattHours).
		Int("failures", summary.FailuresObserved).
		Int("replacements", summary.Replacements).
		Dur("elapsed", summary.Elapsed).
		Msg("run_finished")
	return summary, runErr
}

// step advances one simulated hour: farm-wide soiling, per-unit output,
// failure observation, scheduling, and the periodic replacement sweep.
func (r *Runner) step(i int, point Point, runID string, summary *RunSummary) StepRecord {
	hour := i + 1

	soiling := r.coll.ApplySoilingEvent(1)
	for _, mag := range soiling {
		observability.RecordSoilingMagnitude(mag)
	}

	ids := r.coll.IDs()
	outputs := make([]float64, 0, len(ids))
	var healthSum, cleanSum float64
	for _, id := range ids {
		out, err := r.coll.StepUnit(id, point.IdealWatts, 1)
		if err != nil {
			continue
		}
		outputs = append(outputs, out)
	}

	r.observeFailures(ids, point.IdealWatts, summary)

	var replacements []farm.Replacement
	if hour%r.cfg.SweepIntervalHours == 0 {
		replacements = r.coll.ReplaceIfNeeded()
		swapped := 0
		for _, swap := range replacements {
			if swap.Err == nil {
				swapped++
			}
		}
		summary.Replacements += swapped
		observability.RecordReplacements(swapped)
		observability.RecordIDSpaceReserved(r.alloc.Reserved())
	}

	if r.cfg.WashIntervalHours > 0 && hour%r.cfg.WashIntervalHours == 0 {
		r.coll.CleanAll(0)
		log.Debug().Str("run", runID).Int("step", i).Msg("manual_wash")
	}

	units := r.coll.Snapshot()
	for _, snap := range units {
		healthSum += snap.Health
		cleanSum += snap.Cleanliness
	}
	stats := ComputeOutputStats(outputs)
	if n := float64(len(units)); n > 0 {
		observability.RecordStep(stats.SumWatts, healthSum/n, cleanSum/n)
	}

	return StepRecord{
		RunID:        runID,
		Step:         i,
		Timestamp:    point.Timestamp,
		IdealWatts:   point.IdealWatts,
		OutputWatts:  stats.SumWatts,
		Stats:        stats,
		Soiling:      soiling,
		Replacements: replacements,
		Units:        units,
	}
}

// observeFailures plays the external observer: a unit producing a collapsed
// output in daylight gets its failure latch set and a scheduling draw. The
// draw may defer; deferred units are simply observed again next hour.
func (r *Runner) observeFailures(ids []string, idealWatts float64, summary *RunSummary) {
	if idealWatts <= 0 {
		return
	}
	threshold := r.cfg.CollapseFraction * idealWatts
	for _, id := range ids {
		snap, err := r.coll.Unit(id)
		if err != nil {
			// Replaced mid-sweep; the fresh unit is observed next hour.
			continue
		}
		if snap.OutputWatts >= threshold {
			continue
		}
		if !snap.FailureDetected {
			if err := r.coll.FlagFailure(id); err != nil {
				continue
			}
			summary.FailuresObserved++
			observability.RecordFailureObserved()
			log.Warn().
				Str("unit", id).
				Float64("output", snap.OutputWatts).
				Float64("threshold", threshold).
				Str("state", snap.State).
				Msg("failure_observed")
		}
		if _, err := r.coll.ScheduleReplacement(id); err != nil {
			log.Error().Str("unit", id).Err(err).Msg("schedule_failed")
		}
	}
}
