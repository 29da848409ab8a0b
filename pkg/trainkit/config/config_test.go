package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	"github.com/randalmurphal/trainkit/pkg/trainkit/config"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestDefault verifies defaults are complete except for the directory.
func TestDefault(t *testing.T) {
	s := config.Default()

	assert.Equal(t, config.BackendFile, s.Checkpoint.Backend)
	assert.Equal(t, 1, s.Checkpoint.SaveEvery)
	assert.Equal(t, "json", s.Checkpoint.Extension)
	assert.Equal(t, 10, s.Plateau.Patience)
	assert.Equal(t, schedule.KindExponential, s.Plateau.Schedule.Kind)

	err := s.Validate()
	require.Error(t, err, "file backend requires a directory")

	s.Checkpoint.Dir = "ckpt"
	assert.NoError(t, s.Validate())
}

// TestValidate verifies each invalid setting is reported with its field.
func TestValidate(t *testing.T) {
	valid := func() config.Settings {
		s := config.Default()
		s.Checkpoint.Dir = "ckpt"
		return s
	}

	tests := []struct {
		name   string
		mutate func(*config.Settings)
		field  string
	}{
		{"missing dir", func(s *config.Settings) { s.Checkpoint.Dir = "" }, "checkpoint.dir"},
		{"unknown backend", func(s *config.Settings) { s.Checkpoint.Backend = "s3" }, "checkpoint.backend"},
		{"zero cadence", func(s *config.Settings) { s.Checkpoint.SaveEvery = 0 }, "checkpoint.save_every"},
		{"bad resume", func(s *config.Settings) { s.Checkpoint.Resume = "newest" }, "resume"},
		{"zero patience", func(s *config.Settings) { s.Plateau.Patience = 0 }, "plateau.patience"},
		{"negative floor", func(s *config.Settings) { s.Plateau.MinimumRate = -0.1 }, "plateau.minimum_rate"},
		{"unknown schedule", func(s *config.Settings) { s.Plateau.Schedule.Kind = "cosine" }, "schedule.kind"},
		{"bad schedule params", func(s *config.Settings) { s.Plateau.Schedule.Factor = 0 }, "schedule.factor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(&s)

			err := s.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, tkerrors.ErrConfiguration)

			var cfgErr *tkerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

// TestValidate_MemoryBackendNeedsNoDir verifies the memory backend is directory-free.
func TestValidate_MemoryBackendNeedsNoDir(t *testing.T) {
	s := config.Default()
	s.Checkpoint.Backend = "Memory"
	assert.NoError(t, s.Validate())
	assert.Equal(t, config.BackendMemory, s.Checkpoint.BackendName())
}

// TestFromYAML verifies YAML overrides on top of defaults.
func TestFromYAML(t *testing.T) {
	data := []byte(`
checkpoint:
  dir: ./checkpoints
  save_every: 5
  resume: epoch:40
plateau:
  patience: 3
  minimum_rate: 0.00001
  schedule:
    kind: table
    values: [0.1, 0.01, 0.001]
`)

	s, err := config.FromYAML(data)
	require.NoError(t, err)

	assert.Equal(t, "./checkpoints", s.Checkpoint.Dir)
	assert.Equal(t, 5, s.Checkpoint.SaveEvery)
	assert.Equal(t, config.BackendFile, s.Checkpoint.Backend)
	assert.Equal(t, 3, s.Plateau.Patience)
	assert.InDelta(t, 1e-5, s.Plateau.MinimumRate, 1e-12)
	assert.Equal(t, schedule.KindTable, s.Plateau.Schedule.Kind)
	assert.Equal(t, []float64{0.1, 0.01, 0.001}, s.Plateau.Schedule.Values)

	sched, err := s.Plateau.Schedule.Build()
	require.NoError(t, err)
	sched.Seek(2)
	assert.Equal(t, 0.001, sched.Value())

	policy, err := s.Checkpoint.Policy()
	require.NoError(t, err)
	assert.Equal(t, checkpoint.AtEpoch(40), policy)
}

// TestFromYAML_Errors verifies parse and validation failures.
func TestFromYAML_Errors(t *testing.T) {
	tests := []struct {
		name      string
		data      string
		wantCfErr bool
	}{
		{"invalid yaml", "checkpoint: [unclosed", false},
		{"unknown key", "checkpoint:\n  directory: x\n", false},
		{"empty document fails validation", "", true},
		{"invalid value", "checkpoint:\n  dir: x\n  save_every: -1\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.FromYAML([]byte(tt.data))
			require.Error(t, err)
			assert.Equal(t, tt.wantCfErr, isConfigError(err))
		})
	}
}

// TestFromJSON verifies JSON loading.
func TestFromJSON(t *testing.T) {
	s, err := config.FromJSON([]byte(`{"checkpoint":{"backend":"sqlite","dir":"runs.db"},"plateau":{"patience":2}}`))
	require.NoError(t, err)

	assert.Equal(t, config.BackendSQLite, s.Checkpoint.BackendName())
	assert.Equal(t, "runs.db", s.Checkpoint.Dir)
	assert.Equal(t, 2, s.Plateau.Patience)
	assert.Equal(t, 1, s.Checkpoint.SaveEvery)

	s, err = config.FromJSON([]byte(`{"checkpoint":{"backend":"memory"},"plateau":{"patience":1,"schedule":{"kind":"step","initial":1,"factor":0.5,"every":3}}}`))
	require.NoError(t, err)
	assert.Equal(t, schedule.Params{Initial: 1, Factor: 0.5, Every: 3}, s.Plateau.Schedule.Params)

	_, err = config.FromJSON([]byte(`{"plateau":{"patience":"three"}}`))
	assert.Error(t, err)

	_, err = config.FromJSON([]byte(`{"extra":true}`))
	assert.Error(t, err)
}

// TestFromFile verifies extension detection.
func TestFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "train.yml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("checkpoint:\n  dir: out\n"), 0o644))
	s, err := config.FromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, "out", s.Checkpoint.Dir)

	jsonPath := filepath.Join(dir, "train.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"checkpoint":{"dir":"out2"}}`), 0o644))
	s, err = config.FromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "out2", s.Checkpoint.Dir)

	tomlPath := filepath.Join(dir, "train.toml")
	require.NoError(t, os.WriteFile(tomlPath, []byte(""), 0o644))
	_, err = config.FromFile(tomlPath)
	assert.Error(t, err)

	_, err = config.FromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func isConfigError(err error) bool {
	var cfgErr *tkerrors.ConfigError
	return errors.As(err, &cfgErr)
}
