package trainkit

import (
	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	"github.com/randalmurphal/trainkit/pkg/trainkit/config"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/plateau"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
)

// OpenStore builds a store from settings. opts are applied after the
// settings and override them. Close the store to release a sqlite backend.
func OpenStore(c config.CheckpointSettings, opts ...checkpoint.StoreOption) (*checkpoint.Store, error) {
	policy, err := c.Policy()
	if err != nil {
		return nil, err
	}

	all := []checkpoint.StoreOption{checkpoint.WithPolicy(policy)}
	if c.SaveEvery != 0 {
		all = append(all, checkpoint.WithSaveEvery(c.SaveEvery))
	}
	if c.Extension != "" {
		all = append(all, checkpoint.WithExtension(c.Extension))
	}
	all = append(all, opts...)

	switch c.BackendName() {
	case config.BackendFile:
		return checkpoint.NewStore(c.Dir, all...)

	case config.BackendSQLite:
		if c.Dir == "" {
			return nil, &tkerrors.ConfigError{Field: "checkpoint.dir", Value: c.Dir, Reason: "required for sqlite backend"}
		}
		b, err := checkpoint.NewSQLiteBackend(c.Dir)
		if err != nil {
			return nil, err
		}
		s, err := checkpoint.NewStoreWithBackend(b, all...)
		if err != nil {
			_ = b.Close()
			return nil, err
		}
		return s, nil

	case config.BackendMemory:
		return checkpoint.NewStoreWithBackend(checkpoint.NewMemoryBackend(), all...)
	}

	return nil, &tkerrors.ConfigError{Field: "checkpoint.backend", Value: c.Backend, Reason: "want file, sqlite or memory"}
}

// NewDetector builds a detector from settings over s. A nil s is built from
// p.Schedule.
func NewDetector(p config.PlateauSettings, s schedule.Schedule, opts ...plateau.Option) (*plateau.Detector, error) {
	if s == nil {
		built, err := p.Schedule.Build()
		if err != nil {
			return nil, err
		}
		s = built
	}
	all := append([]plateau.Option{plateau.WithMinimumRate(p.MinimumRate)}, opts...)
	return plateau.New(p.Patience, s, all...)
}
