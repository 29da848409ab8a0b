// Package plateau detects loss plateaus and drives learning-rate decay.
//
// A Detector watches one scalar loss per tick. When the loss has not improved
// on the best value seen for `patience` ticks it signals a plateau, and the
// caller steps the schedule through Sync:
//
//	if det.Observe(loss) {
//	    det.Sync(optimizer)
//	}
//
// After a plateau signal the patience window restarts from the signalling
// tick, so successive decays are at least `patience` ticks apart even when
// the loss never improves again.
//
// A Detector is not safe for concurrent use.
package plateau

import (
	"log/slog"
	"math"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/observability"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
)

// Optimizer is the optimizer state a detector writes learning rates into.
type Optimizer interface {
	SetLR(lr float64)
}

// Detector tracks the best loss seen and decides when to advance a schedule.
type Detector struct {
	patience    int
	minimumRate float64
	schedule    schedule.Schedule
	logger      *slog.Logger

	lastTick int
	bestTick int
	bestLoss float64
}

// Option configures a Detector.
type Option func(*Detector)

// WithMinimumRate sets the floor applied to the schedule's value.
// Default: 0
func WithMinimumRate(rate float64) Option {
	return func(d *Detector) {
		d.minimumRate = rate
	}
}

// WithLogger sets the logger used for decay diagnostics.
// A nil logger disables them.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

// New creates a detector that owns s.
// Returns a ConfigError if patience is not positive, the minimum rate is
// negative or NaN, or s is nil.
func New(patience int, s schedule.Schedule, opts ...Option) (*Detector, error) {
	d := &Detector{
		patience: patience,
		schedule: s,
		logger:   slog.Default(),
		bestLoss: math.Inf(1),
	}
	for _, opt := range opts {
		opt(d)
	}

	if patience <= 0 {
		return nil, &tkerrors.ConfigError{Field: "patience", Value: patience, Reason: "must be positive"}
	}
	if d.minimumRate < 0 || math.IsNaN(d.minimumRate) {
		return nil, &tkerrors.ConfigError{Field: "minimum_rate", Value: d.minimumRate, Reason: "must be a non-negative number"}
	}
	if s == nil {
		return nil, &tkerrors.ConfigError{Field: "schedule", Value: nil, Reason: "must not be nil"}
	}
	return d, nil
}

// Observe records one tick's loss and reports whether a plateau was reached.
//
// A loss strictly below the best seen becomes the new best and restarts the
// patience window. Otherwise, once `patience` ticks have passed since the
// best (or since the previous plateau signal), Observe returns true and
// restarts the window from the current tick. NaN never improves on the best.
func (d *Detector) Observe(loss float64) bool {
	tick := d.lastTick + 1
	plateau := false

	switch {
	case loss < d.bestLoss:
		d.bestLoss = loss
		d.bestTick = tick
	case tick-d.bestTick >= d.patience:
		d.bestTick = tick
		plateau = true
	}

	d.lastTick = tick
	return plateau
}

// EffectiveRate returns the schedule's current value clamped to the minimum rate.
func (d *Detector) EffectiveRate() float64 {
	return math.Max(d.minimumRate, d.schedule.Value())
}

// Sync advances the schedule one step and writes the new effective rate into
// opt. Call it only after Observe returned true.
//
// The comparison is made on effective (floor-clamped) rates: when the step
// does not change the effective rate, for instance because the schedule is
// already below the floor, nothing is written. Sync reports whether opt was
// updated.
func (d *Detector) Sync(opt Optimizer) bool {
	before := d.EffectiveRate()
	d.schedule.Advance()
	after := d.EffectiveRate()

	if after == before {
		return false
	}
	opt.SetLR(after)
	observability.LogDecay(d.logger, d.lastTick, before, after)
	return true
}

// ResetTo seeks the schedule to position and writes the effective rate into
// opt unconditionally. Tick counters and the best loss are left untouched.
func (d *Detector) ResetTo(opt Optimizer, position int) {
	d.schedule.Seek(position)
	opt.SetLR(d.EffectiveRate())
}

// ResetSchedule replaces the schedule with s, taking ownership of it, and
// writes the effective rate into opt unconditionally.
// A nil schedule is rejected with a ConfigError and nothing is written.
func (d *Detector) ResetSchedule(opt Optimizer, s schedule.Schedule) error {
	if s == nil {
		return &tkerrors.ConfigError{Field: "schedule", Value: nil, Reason: "must not be nil"}
	}
	d.schedule = s
	opt.SetLR(d.EffectiveRate())
	return nil
}

// Patience returns the number of non-improving ticks tolerated before a plateau.
func (d *Detector) Patience() int { return d.patience }

// MinimumRate returns the learning-rate floor.
func (d *Detector) MinimumRate() float64 { return d.minimumRate }

// LastTick returns the number of ticks observed.
func (d *Detector) LastTick() int { return d.lastTick }

// BestTick returns the tick at which the patience window last restarted.
func (d *Detector) BestTick() int { return d.bestTick }

// BestLoss returns the lowest loss observed, +Inf before any observation.
func (d *Detector) BestLoss() float64 { return d.bestLoss }

// Schedule returns the owned schedule.
func (d *Detector) Schedule() schedule.Schedule { return d.schedule }
