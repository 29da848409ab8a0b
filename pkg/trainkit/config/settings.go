package config

import (
	"math"
	"strings"

	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
)

// Backend names accepted in CheckpointSettings.Backend.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Settings is the complete run configuration.
type Settings struct {
	Checkpoint CheckpointSettings `yaml:"checkpoint" json:"checkpoint"`
	Plateau    PlateauSettings    `yaml:"plateau" json:"plateau"`
}

// CheckpointSettings configures the checkpoint store.
type CheckpointSettings struct {
	// Dir is the checkpoint directory (file backend) or database path (sqlite backend).
	Dir string `yaml:"dir" json:"dir"`
	// Backend is "file" (default), "sqlite" or "memory".
	Backend string `yaml:"backend" json:"backend"`
	// SaveEvery persists only epochs divisible by it. Default 1.
	SaveEvery int `yaml:"save_every" json:"save_every"`
	// Resume is "scratch", "latest" (default) or "epoch:<n>".
	Resume string `yaml:"resume" json:"resume"`
	// Extension of checkpoint entries. Default "json".
	Extension string `yaml:"extension" json:"extension"`
}

// PlateauSettings configures the plateau detector.
type PlateauSettings struct {
	Patience    int              `yaml:"patience" json:"patience"`
	MinimumRate float64          `yaml:"minimum_rate" json:"minimum_rate"`
	Schedule    ScheduleSettings `yaml:"schedule" json:"schedule"`
}

// ScheduleSettings selects a registered schedule kind and its parameters.
type ScheduleSettings struct {
	// Kind is a name registered with schedule.Register. Default "exponential".
	Kind            string `yaml:"kind" json:"kind"`
	schedule.Params `yaml:",inline"`
}

// Build creates the configured schedule.
func (s ScheduleSettings) Build() (schedule.Schedule, error) {
	return schedule.Build(s.Kind, s.Params)
}

// Default returns settings with every default applied and no directory.
func Default() Settings {
	return Settings{
		Checkpoint: CheckpointSettings{
			Backend:   BackendFile,
			SaveEvery: 1,
			Resume:    "latest",
			Extension: checkpoint.DefaultExtension,
		},
		Plateau: PlateauSettings{
			Patience: 10,
			Schedule: ScheduleSettings{
				Kind:   schedule.KindExponential,
				Params: schedule.Params{Initial: 0.1, Factor: 0.1},
			},
		},
	}
}

// BackendName returns the normalized backend name; empty means file.
func (c CheckpointSettings) BackendName() string {
	name := strings.ToLower(strings.TrimSpace(c.Backend))
	if name == "" {
		return BackendFile
	}
	return name
}

// Policy parses the configured resume policy.
func (c CheckpointSettings) Policy() (checkpoint.Policy, error) {
	return checkpoint.ParsePolicy(c.Resume)
}

// Validate reports the first invalid setting as a ConfigError.
func (s Settings) Validate() error {
	c := s.Checkpoint
	switch c.BackendName() {
	case BackendFile, BackendSQLite:
		if c.Dir == "" {
			return &tkerrors.ConfigError{Field: "checkpoint.dir", Value: c.Dir, Reason: "required for " + c.BackendName() + " backend"}
		}
	case BackendMemory:
	default:
		return &tkerrors.ConfigError{Field: "checkpoint.backend", Value: c.Backend, Reason: "want file, sqlite or memory"}
	}
	if c.SaveEvery <= 0 {
		return &tkerrors.ConfigError{Field: "checkpoint.save_every", Value: c.SaveEvery, Reason: "must be positive"}
	}
	if _, err := c.Policy(); err != nil {
		return err
	}

	p := s.Plateau
	if p.Patience <= 0 {
		return &tkerrors.ConfigError{Field: "plateau.patience", Value: p.Patience, Reason: "must be positive"}
	}
	if p.MinimumRate < 0 || math.IsNaN(p.MinimumRate) {
		return &tkerrors.ConfigError{Field: "plateau.minimum_rate", Value: p.MinimumRate, Reason: "must be a non-negative number"}
	}
	if _, err := p.Schedule.Build(); err != nil {
		return err
	}
	return nil
}
