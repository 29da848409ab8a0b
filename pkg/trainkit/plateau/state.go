package plateau

import (
	"encoding/json"
	"fmt"
	"math"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
)

// State is the serializable snapshot of a Detector.
// The schedule itself is not serialized, only its position; the caller
// supplies an equivalent schedule on Restore.
type State struct {
	Patience         int      `json:"patience"`
	MinimumRate      float64  `json:"minimum_rate"`
	LastTick         int      `json:"last_tick"`
	BestTick         int      `json:"best_tick"`
	BestLoss         *float64 `json:"best_loss"`                   // nil until a finite loss is observed
	BestLossNegInf   bool     `json:"best_loss_neg_inf,omitempty"` // JSON has no -Inf
	SchedulePosition int      `json:"schedule_position"`
}

// State returns a snapshot of the detector.
func (d *Detector) State() State {
	st := State{
		Patience:         d.patience,
		MinimumRate:      d.minimumRate,
		LastTick:         d.lastTick,
		BestTick:         d.bestTick,
		SchedulePosition: d.schedule.Position(),
	}
	switch {
	case math.IsInf(d.bestLoss, 1):
	case math.IsInf(d.bestLoss, -1):
		st.BestLossNegInf = true
	default:
		best := d.bestLoss
		st.BestLoss = &best
	}
	return st
}

// MarshalJSON implements json.Marshaler so a detector can be stored in a
// checkpoint bundle's extras.
func (d *Detector) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.State())
}

// Restore rebuilds a detector from data produced by MarshalJSON.
// s is sought to the saved position and owned by the returned detector.
// Options are applied after the saved parameters, so WithMinimumRate
// overrides the stored floor.
func Restore(data []byte, s schedule.Schedule, opts ...Option) (*Detector, error) {
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode plateau state: %w", err)
	}
	return FromState(st, s, opts...)
}

// FromState rebuilds a detector from a snapshot.
func FromState(st State, s schedule.Schedule, opts ...Option) (*Detector, error) {
	all := append([]Option{WithMinimumRate(st.MinimumRate)}, opts...)
	d, err := New(st.Patience, s, all...)
	if err != nil {
		return nil, err
	}

	if st.LastTick < 0 {
		return nil, &tkerrors.ConfigError{Field: "last_tick", Value: st.LastTick, Reason: "must not be negative"}
	}
	if st.BestTick > st.LastTick {
		return nil, &tkerrors.ConfigError{
			Field:  "best_tick",
			Value:  st.BestTick,
			Reason: fmt.Sprintf("must not exceed last_tick %d", st.LastTick),
		}
	}

	d.lastTick = st.LastTick
	d.bestTick = st.BestTick
	switch {
	case st.BestLossNegInf:
		d.bestLoss = math.Inf(-1)
	case st.BestLoss != nil:
		d.bestLoss = *st.BestLoss
	}
	s.Seek(st.SchedulePosition)
	return d, nil
}
