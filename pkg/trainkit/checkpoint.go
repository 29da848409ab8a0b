package trainkit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
)

// Values are the named values every checkpoint carries.
type Values struct {
	ModelParameters checkpoint.Blob
	// ModelStates is optional.
	ModelStates checkpoint.Blob
	OptState    checkpoint.Blob
	Log         []json.RawMessage
	// RunID tags the bundle. A random one is generated when empty.
	RunID string
}

// Extra is an additional named object stored in a bundle's extras.
type Extra struct {
	Name  string
	Value any
}

// Named builds an Extra.
func Named(name string, v any) Extra {
	return Extra{Name: name, Value: v}
}

// Checkpoint persists v and extras as the bundle for epoch, subject to the
// store's save cadence. Extras are JSON-encoded; a later extra replaces an
// earlier one with the same name.
func Checkpoint(ctx context.Context, store *checkpoint.Store, epoch int, v Values, extras ...Extra) error {
	if !store.ShouldPersist(epoch) {
		return nil
	}

	b, err := bundleOf(v, extras)
	if err != nil {
		return err
	}
	return store.Persist(ctx, epoch, b)
}

func bundleOf(v Values, extras []Extra) (*checkpoint.Bundle, error) {
	if v.ModelParameters == nil {
		return nil, &tkerrors.ConfigError{Field: checkpoint.KeyModelParameters, Value: nil, Reason: "required"}
	}
	if v.OptState == nil {
		return nil, &tkerrors.ConfigError{Field: checkpoint.KeyOptState, Value: nil, Reason: "required"}
	}

	b := &checkpoint.Bundle{
		ModelParameters: v.ModelParameters,
		ModelStates:     v.ModelStates,
		OptState:        v.OptState,
		Log:             v.Log,
		Other:           make(map[string]json.RawMessage, len(extras)),
		RunID:           v.RunID,
	}
	if b.Log == nil {
		b.Log = []json.RawMessage{}
	}
	if b.RunID == "" {
		b.RunID = uuid.NewString()
	}

	for _, e := range extras {
		if e.Name == "" {
			return nil, &tkerrors.ConfigError{Field: "extra", Value: e.Value, Reason: "name must not be empty"}
		}
		if err := b.SetOther(e.Name, e.Value); err != nil {
			return nil, err
		}
	}
	return b, nil
}
