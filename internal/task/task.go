// Package task runs simulated long-running jobs that report progress ticks
// and finish after a fixed duration unless their context is cancelled.
package task

import (
	"context"
	"math/rand"
	"time"
)

// Plan describes the pacing of a simulated job.
type Plan struct {
	Name string
	// Interval between progress ticks. Zero disables ticking.
	Interval time.Duration
	// Step is the fixed progress added per tick.
	Step float64
	// Jitter, when positive, replaces Step with a random step in [0, Jitter).
	Jitter float64
	// Cap bounds progress before completion.
	Cap float64
	// Duration until the job completes.
	Duration time.Duration
}

// Preset plans mirroring the dashboard's timings.
var (
	Normalize  = Plan{Name: "normalize", Interval: 200 * time.Millisecond, Step: 10, Cap: 100, Duration: 2 * time.Second}
	Preprocess = Plan{Name: "preprocess", Duration: 2 * time.Second}
	Train      = Plan{Name: "train", Interval: 300 * time.Millisecond, Jitter: 15, Cap: 95, Duration: 2 * time.Second}
	Predict    = Plan{Name: "predict", Duration: time.Second}
)

// Scaled returns a copy of p with every duration multiplied by f.
func (p Plan) Scaled(f float64) Plan {
	p.Interval = time.Duration(float64(p.Interval) * f)
	p.Duration = time.Duration(float64(p.Duration) * f)
	return p
}

// Tick is reported on every progress update.
type Tick struct {
	Plan     string
	Progress float64
	Done     bool
}

// Runner executes plans. The zero value is usable.
type Runner struct {
	// Rand supplies jitter; nil uses the global source.
	Rand *rand.Rand
}

// Run blocks until the plan completes or ctx is done. onTick may be nil.
// On completion it reports a final tick with progress 100.
func (r *Runner) Run(ctx context.Context, p Plan, onTick func(Tick)) error {
	if onTick == nil {
		onTick = func(Tick) {}
	}
	done := time.NewTimer(p.Duration)
	defer done.Stop()

	var tickC <-chan time.Time
	if p.Interval > 0 {
		t := time.NewTicker(p.Interval)
		defer t.Stop()
		tickC = t.C
	}
	limit := p.Cap
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	progress := 0.0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tickC:
			if progress >= limit {
				continue
			}
			progress += r.step(p)
			if progress > limit {
				progress = limit
			}
			onTick(Tick{Plan: p.Name, Progress: progress})
		case <-done.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			onTick(Tick{Plan: p.Name, Progress: 100, Done: true})
			return nil
		}
	}
}

func (r *Runner) step(p Plan) float64 {
	if p.Jitter <= 0 {
		return p.Step
	}
	if r.Rand != nil {
		return r.Rand.Float64() * p.Jitter
	}
	return rand.Float64() * p.Jitter
}
