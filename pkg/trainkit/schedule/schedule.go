// Package schedule defines the learning-rate schedule contract consumed by
// the plateau detector.
//
// A Schedule is a stateful cursor over a pure function of an integer
// position. Reading the value never moves the cursor; Advance moves it one
// step and reports the value that was current before the move; Seek jumps to
// any position. Because values depend only on position, seeking back and
// replaying the same steps reproduces the same sequence.
//
// A Schedule is owned by a single detector at a time and is not safe for
// concurrent use.
package schedule

import "math"

// Schedule is a position-addressable sequence of learning-rate values.
type Schedule interface {
	// Value returns the value at the current position without advancing.
	Value() float64

	// Advance moves to the next position and returns the value that was
	// current before the move.
	Advance() float64

	// Seek moves the cursor to position.
	Seek(position int)

	// Position returns the current position.
	Position() int
}

// Func is a schedule backed by a closed-form function of position.
type Func struct {
	fn  func(position int) float64
	pos int
}

// Compile-time interface check.
var _ Schedule = (*Func)(nil)

// NewFunc creates a schedule that evaluates fn at the current position,
// starting at position 0.
func NewFunc(fn func(position int) float64) *Func {
	return &Func{fn: fn}
}

// Value implements Schedule.
func (f *Func) Value() float64 {
	return f.fn(f.pos)
}

// Advance implements Schedule.
func (f *Func) Advance() float64 {
	prev := f.fn(f.pos)
	f.pos++
	return prev
}

// Seek implements Schedule.
func (f *Func) Seek(position int) {
	f.pos = position
}

// Position implements Schedule.
func (f *Func) Position() int {
	return f.pos
}

// Constant returns a schedule whose value never changes.
func Constant(value float64) *Func {
	return NewFunc(func(int) float64 { return value })
}

// Exponential returns a schedule producing initial * gamma^position.
//
// Example:
//
//	s := schedule.Exponential(0.1, 0.5) // 0.1, 0.05, 0.025, ...
func Exponential(initial, gamma float64) *Func {
	return NewFunc(func(position int) float64 {
		return initial * math.Pow(gamma, float64(position))
	})
}

// StepDecay returns a schedule that multiplies initial by factor once every
// `every` positions. Non-positive every is treated as 1.
func StepDecay(initial, factor float64, every int) *Func {
	if every <= 0 {
		every = 1
	}
	return NewFunc(func(position int) float64 {
		// floor division so negative positions step the other way
		steps := position / every
		if position < 0 && position%every != 0 {
			steps--
		}
		return initial * math.Pow(factor, float64(steps))
	})
}
