package trainkit_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/randalmurphal/trainkit/pkg/trainkit"
	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckpoint_PersistsValuesAndExtras(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	type sampler struct {
		Seed  int64 `json:"seed"`
		Index int   `json:"index"`
	}

	err := trainkit.Checkpoint(ctx, store, 3, sampleValues(),
		trainkit.Named("sampler", sampler{Seed: 7, Index: 128}),
		trainkit.Named("note", "warmup done"),
	)
	require.NoError(t, err)

	b, err := store.Load(ctx, store.PathFor(3))
	require.NoError(t, err)

	assert.Equal(t, 3, b.Epoch)
	assert.Equal(t, checkpoint.Blob("weights"), b.ModelParameters)
	assert.Equal(t, checkpoint.Blob("batchnorm"), b.ModelStates)
	assert.Equal(t, checkpoint.Blob("sgd"), b.OptState)
	require.Len(t, b.Log, 1)
	assert.JSONEq(t, `{"loss":1.5}`, string(b.Log[0]))

	var got sampler
	ok, err := b.GetOther("sampler", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampler{Seed: 7, Index: 128}, got)

	var note string
	ok, err = b.GetOther("note", &note)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "warmup done", note)
}

func TestCheckpoint_RunID(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	require.NoError(t, trainkit.Checkpoint(ctx, store, 1, sampleValues()))
	b, err := store.Load(ctx, store.PathFor(1))
	require.NoError(t, err)
	_, err = uuid.Parse(b.RunID)
	assert.NoError(t, err, "generated run id should be a UUID")

	v := sampleValues()
	v.RunID = "run-42"
	require.NoError(t, trainkit.Checkpoint(ctx, store, 2, v))
	b, err = store.Load(ctx, store.PathFor(2))
	require.NoError(t, err)
	assert.Equal(t, "run-42", b.RunID)
}

func TestCheckpoint_RespectsCadence(t *testing.T) {
	ctx := context.Background()
	store, mem := newMemoryStore(t, checkpoint.WithSaveEvery(5))

	for epoch := 1; epoch <= 10; epoch++ {
		require.NoError(t, trainkit.Checkpoint(ctx, store, epoch, sampleValues()))
	}

	assert.Equal(t, 2, mem.Writes())
	indices, err := store.ListExistingIndices()
	require.NoError(t, err)
	assert.Equal(t, []int{5, 10}, indices)
}

func TestCheckpoint_NilLogStoredEmpty(t *testing.T) {
	ctx := context.Background()
	store, _ := newMemoryStore(t)

	v := sampleValues()
	v.Log = nil
	require.NoError(t, trainkit.Checkpoint(ctx, store, 1, v))

	b, err := store.Load(ctx, store.PathFor(1))
	require.NoError(t, err)
	assert.NotNil(t, b.Log)
	assert.Empty(t, b.Log)
	assert.NotNil(t, b.Other)
}

func TestCheckpoint_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*trainkit.Values)
		extras []trainkit.Extra
		field  string
	}{
		{"missing parameters", func(v *trainkit.Values) { v.ModelParameters = nil }, nil, checkpoint.KeyModelParameters},
		{"missing optimizer state", func(v *trainkit.Values) { v.OptState = nil }, nil, checkpoint.KeyOptState},
		{"unnamed extra", func(*trainkit.Values) {}, []trainkit.Extra{trainkit.Named("", 1)}, "extra"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mem := newMemoryStore(t)
			v := sampleValues()
			tt.mutate(&v)

			err := trainkit.Checkpoint(context.Background(), store, 1, v, tt.extras...)
			require.Error(t, err)

			var cfgErr *tkerrors.ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
			assert.Zero(t, mem.Writes())
		})
	}
}

func TestCheckpoint_UnencodableExtra(t *testing.T) {
	store, mem := newMemoryStore(t)

	err := trainkit.Checkpoint(context.Background(), store, 1, sampleValues(),
		trainkit.Named("callback", func() {}),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "callback")
	assert.Zero(t, mem.Writes())
}
