package trainkit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/observability"
	"github.com/randalmurphal/trainkit/pkg/trainkit/plateau"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
)

// DetectorKey is the extras key a Loop stores its detector under.
const DetectorKey = "plateau"

// Snapshot captures the values to checkpoint at the end of an epoch.
// It is called only on epochs the store will persist.
type Snapshot func() (Values, error)

// Loop drives a detector and a store from the end of each training epoch.
// A Loop is not safe for concurrent use.
type Loop struct {
	store     *checkpoint.Store
	detector  *plateau.Detector
	optimizer plateau.Optimizer
	runID     string
	logger    *slog.Logger
	metrics   observability.MetricsRecorder
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithRunID tags every bundle the loop writes. Use the RunID of a resumed
// bundle to keep one id across restarts.
// Default: a random UUID.
func WithRunID(id string) LoopOption {
	return func(l *Loop) {
		if id != "" {
			l.runID = id
		}
	}
}

// WithLogger sets the logger for per-epoch diagnostics. A nil logger
// disables them.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.logger = logger
	}
}

// WithMetrics sets the recorder learning-rate decays are reported to.
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) LoopOption {
	return func(l *Loop) {
		if m != nil {
			l.metrics = m
		}
	}
}

// NewLoop creates a loop that writes learning rates into optimizer.
func NewLoop(store *checkpoint.Store, detector *plateau.Detector, optimizer plateau.Optimizer, opts ...LoopOption) *Loop {
	l := &Loop{
		store:     store,
		detector:  detector,
		optimizer: optimizer,
		runID:     uuid.NewString(),
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RunID returns the id attached to bundles written by the loop.
func (l *Loop) RunID() string { return l.runID }

// Detector returns the loop's detector.
func (l *Loop) Detector() *plateau.Detector { return l.detector }

// EndEpoch feeds loss to the detector, steps the schedule on a plateau and
// persists a checkpoint if the store's cadence selects epoch.
//
// decayed reports whether a new learning rate was written into the
// optimizer. A plateau at the rate floor does not count. The snapshot is
// taken after the decay, so it sees the updated optimizer.
func (l *Loop) EndEpoch(ctx context.Context, epoch int, loss float64, snapshot Snapshot) (decayed bool, err error) {
	if l.detector.Observe(loss) {
		decayed = l.detector.Sync(l.optimizer)
		if decayed {
			l.metrics.RecordDecay(ctx, l.detector.EffectiveRate())
		} else if logger := observability.EnrichLogger(l.logger, l.runID, epoch); logger != nil {
			logger.Debug("plateau detected at rate floor",
				slog.Float64("lr", l.detector.EffectiveRate()),
			)
		}
	}

	if !l.store.ShouldPersist(epoch) {
		return decayed, nil
	}
	if snapshot == nil {
		return decayed, &tkerrors.ConfigError{Field: "snapshot", Value: nil, Reason: "required on persisted epochs"}
	}

	v, err := snapshot()
	if err != nil {
		return decayed, fmt.Errorf("snapshot epoch %d: %w", epoch, err)
	}
	if v.RunID == "" {
		v.RunID = l.runID
	}
	if err := Checkpoint(ctx, l.store, epoch, v, Named(DetectorKey, l.detector)); err != nil {
		return decayed, fmt.Errorf("checkpoint epoch %d: %w", epoch, err)
	}
	return decayed, nil
}

// RestoreDetector rebuilds the detector a Loop stored in b, taking
// ownership of s. It returns false when b is nil or holds no detector.
func RestoreDetector(b *checkpoint.Bundle, s schedule.Schedule, opts ...plateau.Option) (*plateau.Detector, bool, error) {
	if b == nil {
		return nil, false, nil
	}
	raw, ok := b.Other[DetectorKey]
	if !ok {
		return nil, false, nil
	}
	d, err := plateau.Restore(raw, s, opts...)
	if err != nil {
		return nil, true, fmt.Errorf("restore detector: %w", err)
	}
	return d, true, nil
}
