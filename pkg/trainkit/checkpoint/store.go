// Package checkpoint persists per-epoch training bundles and resolves where
// an interrupted run should resume.
//
// Entries are named checkpoint=<epoch>.<ext>; the epoch number is the
// checkpoint's identity and at most one entry exists per epoch. A Store holds
// configuration only. The durable state lives in its Backend, which is
// created lazily on the first persist and never compacted or pruned.
//
// A Store is driven by a single training process and does no locking;
// concurrent writers to the same directory are not supported.
package checkpoint

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
	"github.com/randalmurphal/trainkit/pkg/trainkit/observability"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultExtension is the file extension of stored bundles.
const DefaultExtension = "json"

const namePrefix = "checkpoint="

// Store persists bundles keyed by epoch and resolves resume points.
type Store struct {
	backend   Backend
	saveEvery int
	policy    Policy
	ext       string
	pattern   *regexp.Regexp

	retry tkerrors.RetryConfig

	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSaveEvery persists only epochs divisible by n.
// Default: 1
func WithSaveEvery(n int) StoreOption {
	return func(s *Store) {
		s.saveEvery = n
	}
}

// WithPolicy sets the policy returned by DefaultPolicy.
// Default: Latest
func WithPolicy(p Policy) StoreOption {
	return func(s *Store) {
		s.policy = p
	}
}

// WithExtension sets the entry name extension, with or without a leading dot.
// Default: "json"
func WithExtension(ext string) StoreOption {
	return func(s *Store) {
		s.ext = strings.TrimPrefix(ext, ".")
	}
}

// WithRetry sets how transient write failures are retried. Writes replace
// the whole entry, so a retried write never leaves a partial bundle.
// Default: errors.DefaultRetry
func WithRetry(cfg tkerrors.RetryConfig) StoreOption {
	return func(s *Store) {
		s.retry = cfg
	}
}

// WithLogger sets the logger for diagnostics. A nil logger disables them.
// Default: slog.Default()
func WithLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics recorder.
// Default: observability.NoopMetrics{}
func WithMetrics(m observability.MetricsRecorder) StoreOption {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithSpanManager sets the span manager used to trace store operations.
// Default: observability.NoopSpanManager{}
func WithSpanManager(sm observability.SpanManager) StoreOption {
	return func(s *Store) {
		if sm != nil {
			s.spans = sm
		}
	}
}

// NewStore creates a store writing files into dir.
// Returns a ConfigError for an empty dir or invalid options.
func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if dir == "" {
		return nil, &tkerrors.ConfigError{Field: "dir", Value: dir, Reason: "must not be empty"}
	}
	return NewStoreWithBackend(NewFileBackend(dir), opts...)
}

// NewStoreWithBackend creates a store over an arbitrary backend.
func NewStoreWithBackend(b Backend, opts ...StoreOption) (*Store, error) {
	if b == nil {
		return nil, &tkerrors.ConfigError{Field: "backend", Value: nil, Reason: "must not be nil"}
	}

	s := &Store{
		backend:   b,
		saveEvery: 1,
		policy:    Latest,
		ext:       DefaultExtension,
		retry:     tkerrors.DefaultRetry,
		logger:    slog.Default(),
		metrics:   observability.NoopMetrics{},
		spans:     observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.saveEvery <= 0 {
		return nil, &tkerrors.ConfigError{Field: "save_every", Value: s.saveEvery, Reason: "must be positive"}
	}
	if s.ext == "" || strings.ContainsAny(s.ext, `/\`) {
		return nil, &tkerrors.ConfigError{Field: "extension", Value: s.ext, Reason: "must be a non-empty name without separators"}
	}
	if s.policy.Kind == FromEpoch && s.policy.Epoch < 0 {
		return nil, &tkerrors.ConfigError{Field: "resume", Value: s.policy.String(), Reason: "epoch must not be negative"}
	}

	s.pattern = regexp.MustCompile(`^` + regexp.QuoteMeta(namePrefix) + `(0|[1-9]\d*)\.` + regexp.QuoteMeta(s.ext) + `$`)
	return s, nil
}

// Backend returns the underlying storage.
func (s *Store) Backend() Backend { return s.backend }

// SaveEvery returns the persist cadence.
func (s *Store) SaveEvery() int { return s.saveEvery }

// DefaultPolicy returns the configured resume policy.
func (s *Store) DefaultPolicy() Policy { return s.policy }

// Name returns the entry name for epoch.
func (s *Store) Name(epoch int) string {
	return namePrefix + strconv.Itoa(epoch) + "." + s.ext
}

// PathFor returns the location of the checkpoint for epoch.
// It performs no I/O and does not check existence.
func (s *Store) PathFor(epoch int) string {
	return s.backend.Locate(s.Name(epoch))
}

// ListExistingIndices returns the epochs that have a checkpoint, ascending.
// A missing directory yields an empty slice.
func (s *Store) ListExistingIndices() ([]int, error) {
	names, err := s.backend.Names()
	if err != nil {
		return nil, &tkerrors.IOError{Op: "list", Path: s.backend.Root(), Err: err}
	}

	indices := make([]int, 0, len(names))
	for _, name := range names {
		m := s.pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		epoch, err := strconv.Atoi(m[1])
		if err != nil {
			// out of int range; not one of ours
			continue
		}
		indices = append(indices, epoch)
	}
	sort.Ints(indices)
	return indices, nil
}

// IndexOfLatest returns the highest epoch with a checkpoint.
// ok is false when there are none.
func (s *Store) IndexOfLatest() (epoch int, ok bool, err error) {
	indices, err := s.ListExistingIndices()
	if err != nil || len(indices) == 0 {
		return 0, false, err
	}
	return indices[len(indices)-1], true, nil
}

// IndexOfLatestBefore returns the highest epoch with a checkpoint strictly
// below n. ok is false when there is none.
func (s *Store) IndexOfLatestBefore(n int) (epoch int, ok bool, err error) {
	indices, err := s.ListExistingIndices()
	if err != nil {
		return 0, false, err
	}
	i := sort.SearchInts(indices, n)
	if i == 0 {
		return 0, false, nil
	}
	return indices[i-1], true, nil
}

// ResolveResume decides where training continues under policy.
// It returns the checkpoint location to load, or "" to start from scratch,
// and the next epoch to train.
//
//   - Scratch: ("", 1)
//   - Latest: the highest existing epoch e gives (PathFor(e), e+1); none gives ("", 1)
//   - AtEpoch(n): PathFor(n) if it exists; otherwise the highest epoch below
//     n, logged as a warning; otherwise ("", 1)
//
// Only a missing entry triggers the fallback. Listing failures are returned.
func (s *Store) ResolveResume(ctx context.Context, policy Policy) (path string, next int, err error) {
	ctx, span := s.spans.StartSpan(ctx, "resolve", attribute.String("policy", policy.String()))
	defer func() {
		s.spans.EndSpanWithError(span, err)
	}()

	outcome := observability.ResumeScratch
	defer func() {
		if err == nil {
			s.metrics.RecordResume(ctx, outcome)
			observability.LogResumeResolved(s.logger, policy.String(), path, next)
		}
	}()

	switch policy.Kind {
	case FromScratch:
		return "", 1, nil

	case FromLatest:
		latest, ok, err := s.IndexOfLatest()
		if err != nil {
			return "", 0, err
		}
		if !ok {
			return "", 1, nil
		}
		outcome = observability.ResumeFound
		return s.PathFor(latest), latest + 1, nil

	case FromEpoch:
		requested := s.PathFor(policy.Epoch)
		exists, err := s.backend.Exists(requested)
		if err != nil {
			return "", 0, &tkerrors.IOError{Op: "stat", Path: requested, Err: err}
		}
		if exists {
			outcome = observability.ResumeFound
			return requested, policy.Epoch + 1, nil
		}

		earlier, ok, err := s.IndexOfLatestBefore(policy.Epoch)
		if err != nil {
			return "", 0, err
		}
		if !ok {
			return "", 1, nil
		}
		outcome = observability.ResumeFallback
		observability.LogResumeFallback(s.logger, policy.Epoch, earlier)
		s.spans.AddSpanEvent(ctx, "fallback",
			attribute.Int("requested_epoch", policy.Epoch),
			attribute.Int("found_epoch", earlier),
		)
		return s.PathFor(earlier), earlier + 1, nil
	}

	return "", 0, &tkerrors.ConfigError{Field: "resume", Value: int(policy.Kind), Reason: "unknown policy kind"}
}

// ShouldPersist reports whether Persist would write for epoch.
func (s *Store) ShouldPersist(epoch int) bool {
	return epoch >= 0 && epoch%s.saveEvery == 0
}

// Persist writes b as the checkpoint for epoch if the cadence allows it;
// otherwise it does nothing. The storage is created on first write and the
// whole bundle is written in one atomic step, replacing any previous entry
// for the same epoch.
func (s *Store) Persist(ctx context.Context, epoch int, b *Bundle) (err error) {
	if !s.ShouldPersist(epoch) {
		return nil
	}
	if b == nil {
		return &tkerrors.ConfigError{Field: "bundle", Value: nil, Reason: "must not be nil"}
	}
	if b.ModelParameters == nil {
		return &tkerrors.ConfigError{Field: KeyModelParameters, Value: nil, Reason: "required"}
	}
	if b.OptState == nil {
		return &tkerrors.ConfigError{Field: KeyOptState, Value: nil, Reason: "required"}
	}

	path := s.PathFor(epoch)
	ctx, span := s.spans.StartSpan(ctx, "persist",
		attribute.Int("epoch", epoch),
		attribute.String("path", path),
	)
	defer func() {
		s.spans.EndSpanWithError(span, err)
	}()

	start := time.Now()
	elapsedMs := observability.TimedOperation()
	var size int
	defer func() {
		s.metrics.RecordPersist(ctx, epoch, int64(size), time.Since(start), err)
		if err != nil {
			observability.LogPersistError(s.logger, epoch, path, err)
		}
	}()

	observability.LogPersistStart(s.logger, epoch, path)

	created, err := s.backend.Ensure()
	if err != nil {
		return &tkerrors.IOError{Op: "mkdir", Path: s.backend.Root(), Err: err}
	}
	if created {
		observability.LogDirCreated(s.logger, s.backend.Root())
	}

	data, err := b.encode(epoch, start)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	attempts, err := tkerrors.Retry(ctx, s.retry, func(context.Context) error {
		return s.backend.Write(path, data)
	})
	if attempts > 1 {
		s.spans.AddSpanEvent(ctx, "write_retried", attribute.Int("attempts", attempts))
	}
	if err != nil {
		return &tkerrors.IOError{Op: "write", Path: path, Err: err}
	}

	size = len(data)
	observability.LogPersistComplete(s.logger, epoch, path, size, elapsedMs())
	return nil
}

// Load reads and decodes the bundle at path.
// A missing entry is an IOError wrapping ErrNotFound; an entry with an
// absent or malformed field is a CorruptCheckpointError.
func (s *Store) Load(ctx context.Context, path string) (b *Bundle, err error) {
	ctx, span := s.spans.StartSpan(ctx, "load", attribute.String("path", path))
	defer func() {
		s.spans.EndSpanWithError(span, err)
	}()

	start := time.Now()
	defer func() {
		s.metrics.RecordLoad(ctx, time.Since(start), err)
	}()

	data, err := s.backend.Read(path)
	if err != nil {
		return nil, &tkerrors.IOError{Op: "read", Path: path, Err: err}
	}

	b, err = decode(path, data)
	if err != nil {
		return nil, err
	}
	observability.LogLoaded(s.logger, path, b.Epoch, len(data))
	return b, nil
}

// Close releases the backend if it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
