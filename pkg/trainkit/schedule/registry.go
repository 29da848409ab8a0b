package schedule

import (
	"math"
	"sort"
	"sync"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
)

// Built-in schedule kinds.
const (
	KindConstant    = "constant"
	KindExponential = "exponential"
	KindStep        = "step"
	KindTable       = "table"
)

// Params are the numeric parameters a Builder reads. Each kind uses the
// subset it needs.
type Params struct {
	// Initial is the value at position 0.
	Initial float64 `yaml:"initial" json:"initial"`
	// Factor is the per-step multiplier of exponential and step schedules.
	Factor float64 `yaml:"factor" json:"factor"`
	// Every is the step length of a step schedule.
	Every int `yaml:"every" json:"every"`
	// Values are the entries of a table schedule.
	Values []float64 `yaml:"values" json:"values"`
}

// Builder creates a schedule from params.
type Builder func(Params) (Schedule, error)

// builders maps kinds to constructors. Reads dominate, so it is guarded by
// an RWMutex.
var builders = struct {
	mu      sync.RWMutex
	entries map[string]Builder
}{
	entries: map[string]Builder{
		KindConstant:    buildConstant,
		KindExponential: buildExponential,
		KindStep:        buildStep,
		KindTable:       buildTable,
	},
}

// Register adds or replaces the builder for kind.
func Register(kind string, b Builder) {
	builders.mu.Lock()
	defer builders.mu.Unlock()
	builders.entries[kind] = b
}

// Kinds returns the registered kinds in sorted order.
func Kinds() []string {
	builders.mu.RLock()
	defer builders.mu.RUnlock()
	kinds := make([]string, 0, len(builders.entries))
	for k := range builders.entries {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Build creates a schedule of the given kind.
// Unknown kinds and invalid params are reported as ConfigError.
func Build(kind string, p Params) (Schedule, error) {
	builders.mu.RLock()
	b, ok := builders.entries[kind]
	builders.mu.RUnlock()
	if !ok {
		return nil, &tkerrors.ConfigError{Field: "schedule.kind", Value: kind, Reason: "unknown schedule kind"}
	}
	return b(p)
}

func checkInitial(p Params) error {
	if p.Initial < 0 || math.IsNaN(p.Initial) || math.IsInf(p.Initial, 0) {
		return &tkerrors.ConfigError{Field: "schedule.initial", Value: p.Initial, Reason: "must be a finite non-negative number"}
	}
	return nil
}

func checkFactor(p Params) error {
	if !(p.Factor > 0) || math.IsInf(p.Factor, 0) {
		return &tkerrors.ConfigError{Field: "schedule.factor", Value: p.Factor, Reason: "must be a finite positive number"}
	}
	return nil
}

func buildConstant(p Params) (Schedule, error) {
	if err := checkInitial(p); err != nil {
		return nil, err
	}
	return Constant(p.Initial), nil
}

func buildExponential(p Params) (Schedule, error) {
	if err := checkInitial(p); err != nil {
		return nil, err
	}
	if err := checkFactor(p); err != nil {
		return nil, err
	}
	return Exponential(p.Initial, p.Factor), nil
}

func buildStep(p Params) (Schedule, error) {
	if err := checkInitial(p); err != nil {
		return nil, err
	}
	if err := checkFactor(p); err != nil {
		return nil, err
	}
	if p.Every <= 0 {
		return nil, &tkerrors.ConfigError{Field: "schedule.every", Value: p.Every, Reason: "must be positive"}
	}
	return StepDecay(p.Initial, p.Factor, p.Every), nil
}

func buildTable(p Params) (Schedule, error) {
	if len(p.Values) == 0 {
		return nil, &tkerrors.ConfigError{Field: "schedule.values", Value: p.Values, Reason: "must not be empty"}
	}
	return NewTable(p.Values...), nil
}
