package trainkit_test

import (
	"encoding/json"
	"testing"

	"github.com/randalmurphal/trainkit/pkg/trainkit"
	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	"github.com/stretchr/testify/require"
)

// fakeOptimizer records every learning rate written to it.
type fakeOptimizer struct {
	writes []float64
}

func (o *fakeOptimizer) SetLR(lr float64) {
	o.writes = append(o.writes, lr)
}

func (o *fakeOptimizer) lr() float64 {
	if len(o.writes) == 0 {
		return 0
	}
	return o.writes[len(o.writes)-1]
}

// newMemoryStore returns a quiet store over a fresh memory backend.
func newMemoryStore(t *testing.T, opts ...checkpoint.StoreOption) (*checkpoint.Store, *checkpoint.MemoryBackend) {
	t.Helper()
	mem := checkpoint.NewMemoryBackend()
	opts = append([]checkpoint.StoreOption{checkpoint.WithLogger(nil)}, opts...)
	store, err := checkpoint.NewStoreWithBackend(mem, opts...)
	require.NoError(t, err)
	return store, mem
}

func sampleValues() trainkit.Values {
	return trainkit.Values{
		ModelParameters: checkpoint.Blob("weights"),
		ModelStates:     checkpoint.Blob("batchnorm"),
		OptState:        checkpoint.Blob("sgd"),
		Log:             []json.RawMessage{json.RawMessage(`{"loss":1.5}`)},
	}
}
