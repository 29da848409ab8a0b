package trainkit

import (
	"context"
	"fmt"

	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
)

// PlacementFunc moves a device-sensitive blob to where training runs.
type PlacementFunc func(checkpoint.Blob) (checkpoint.Blob, error)

// InitFunc builds the initial state of a run that has no checkpoint.
type InitFunc func() (*checkpoint.Bundle, error)

type startConfig struct {
	placement PlacementFunc
	init      InitFunc
}

// StartOption configures Start.
type StartOption func(*startConfig)

// WithPlacement applies fn to the model parameters, model states and
// optimizer state of a loaded bundle. The log and extras are never placed.
// Default: identity.
func WithPlacement(fn PlacementFunc) StartOption {
	return func(c *startConfig) {
		if fn != nil {
			c.placement = fn
		}
	}
}

// WithInit sets the initializer invoked when no checkpoint is found.
// Its bundle is returned as-is together with epoch 1.
func WithInit(fn InitFunc) StartOption {
	return func(c *startConfig) {
		c.init = fn
	}
}

func identity(b checkpoint.Blob) (checkpoint.Blob, error) { return b, nil }

// Start resolves policy against store and loads the bundle to resume from.
//
// It returns the bundle and the next epoch to train. When nothing is found
// the bundle is nil (or the WithInit result) and the epoch is 1.
func Start(ctx context.Context, store *checkpoint.Store, policy checkpoint.Policy, opts ...StartOption) (*checkpoint.Bundle, int, error) {
	cfg := startConfig{placement: identity}
	for _, opt := range opts {
		opt(&cfg)
	}

	path, next, err := store.ResolveResume(ctx, policy)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve resume: %w", err)
	}

	if path == "" {
		if cfg.init == nil {
			return nil, next, nil
		}
		b, err := cfg.init()
		if err != nil {
			return nil, 0, fmt.Errorf("initialize run: %w", err)
		}
		return b, next, nil
	}

	b, err := store.Load(ctx, path)
	if err != nil {
		return nil, 0, err
	}

	fields := []struct {
		name string
		blob *checkpoint.Blob
	}{
		{checkpoint.KeyModelParameters, &b.ModelParameters},
		{checkpoint.KeyModelStates, &b.ModelStates},
		{checkpoint.KeyOptState, &b.OptState},
	}
	for _, f := range fields {
		if *f.blob == nil {
			continue
		}
		placed, err := cfg.placement(*f.blob)
		if err != nil {
			return nil, 0, fmt.Errorf("place %s: %w", f.name, err)
		}
		*f.blob = placed
	}
	return b, next, nil
}
