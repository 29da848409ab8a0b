package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/trainkit/pkg/trainkit"
	"github.com/randalmurphal/trainkit/pkg/trainkit/checkpoint"
	"github.com/randalmurphal/trainkit/pkg/trainkit/plateau"
	"github.com/randalmurphal/trainkit/pkg/trainkit/schedule"
)

// paramBytes approximates a small model's serialized parameters.
const paramBytes = 256 << 10

type logRecord struct {
	Epoch int     `json:"epoch"`
	Loss  float64 `json:"loss"`
}

type nopOptimizer struct{}

func (nopOptimizer) SetLR(float64) {}

// BenchmarkFileStore_Persist measures an atomic file write per epoch.
func BenchmarkFileStore_Persist(b *testing.B) {
	store := createFileStore(b)
	benchmarkPersist(b, store)
}

// BenchmarkFileStore_Load measures reading and decoding one bundle.
func BenchmarkFileStore_Load(b *testing.B) {
	store := createFileStore(b)
	benchmarkLoad(b, store)
}

// BenchmarkSQLiteStore_Persist measures an upsert per epoch.
func BenchmarkSQLiteStore_Persist(b *testing.B) {
	store := createSQLiteStore(b)
	benchmarkPersist(b, store)
}

// BenchmarkSQLiteStore_Load measures reading and decoding one bundle.
func BenchmarkSQLiteStore_Load(b *testing.B) {
	store := createSQLiteStore(b)
	benchmarkLoad(b, store)
}

// BenchmarkMemoryStore_Persist baseline without storage I/O.
func BenchmarkMemoryStore_Persist(b *testing.B) {
	store, err := checkpoint.NewStoreWithBackend(checkpoint.NewMemoryBackend(), checkpoint.WithLogger(nil))
	if err != nil {
		b.Fatal(err)
	}
	benchmarkPersist(b, store)
}

// BenchmarkResolveResume measures resume resolution over many entries.
func BenchmarkResolveResume(b *testing.B) {
	for _, n := range []int{10, 100, 1000} {
		b.Run(fmt.Sprintf("entries=%d", n), func(b *testing.B) {
			mem := checkpoint.NewMemoryBackend()
			store, err := checkpoint.NewStoreWithBackend(mem, checkpoint.WithLogger(nil))
			if err != nil {
				b.Fatal(err)
			}
			for e := 1; e <= n; e++ {
				mem.Put(store.PathFor(e), nil)
			}
			ctx := context.Background()
			policy := checkpoint.AtEpoch(n + 10)

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_, _, _ = store.ResolveResume(ctx, policy)
			}
		})
	}
}

// BenchmarkDetector_Observe measures one plateau check with schedule sync.
func BenchmarkDetector_Observe(b *testing.B) {
	d, err := plateau.New(5, schedule.Exponential(0.1, 0.5), plateau.WithLogger(nil), plateau.WithMinimumRate(1e-6))
	if err != nil {
		b.Fatal(err)
	}
	opt := nopOptimizer{}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if d.Observe(1.0) {
			d.Sync(opt)
		}
	}
}

// BenchmarkBundleEncode measures JSON encoding of log records.
func BenchmarkBundleEncode(b *testing.B) {
	bundle := &checkpoint.Bundle{}
	for e := 0; e < 1000; e++ {
		if err := bundle.AppendLog(logRecord{Epoch: e, Loss: rand.Float64()}); err != nil {
			b.Fatal(err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = json.Marshal(bundle.Log)
	}
}

// Helper functions

func benchmarkPersist(b *testing.B, store *checkpoint.Store) {
	b.Helper()
	ctx := context.Background()
	v := createValues()
	b.SetBytes(int64(len(v.ModelParameters)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := trainkit.Checkpoint(ctx, store, i%100, v); err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkLoad(b *testing.B, store *checkpoint.Store) {
	b.Helper()
	ctx := context.Background()
	v := createValues()
	if err := trainkit.Checkpoint(ctx, store, 1, v); err != nil {
		b.Fatal(err)
	}
	path := store.PathFor(1)
	b.SetBytes(int64(len(v.ModelParameters)))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := store.Load(ctx, path); err != nil {
			b.Fatal(err)
		}
	}
}

func createValues() trainkit.Values {
	params := make(checkpoint.Blob, paramBytes)
	for i := range params {
		params[i] = byte(i)
	}
	log := make([]json.RawMessage, 0, 50)
	for e := 0; e < 50; e++ {
		rec, _ := json.Marshal(logRecord{Epoch: e, Loss: 1 / float64(e+1)})
		log = append(log, rec)
	}
	return trainkit.Values{
		ModelParameters: params,
		OptState:        params[:paramBytes/4],
		Log:             log,
		RunID:           "bench",
	}
}

func createFileStore(b *testing.B) *checkpoint.Store {
	b.Helper()
	store, err := checkpoint.NewStore(b.TempDir(), checkpoint.WithLogger(nil))
	if err != nil {
		b.Fatal(err)
	}
	return store
}

func createSQLiteStore(b *testing.B) *checkpoint.Store {
	b.Helper()
	backend, err := checkpoint.NewSQLiteBackend(filepath.Join(b.TempDir(), "bench.db"))
	if err != nil {
		b.Fatal(err)
	}
	store, err := checkpoint.NewStoreWithBackend(backend, checkpoint.WithLogger(nil))
	if err != nil {
		backend.Close()
		b.Fatal(err)
	}
	b.Cleanup(func() { store.Close() })
	return store
}
