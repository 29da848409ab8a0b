// Package observability provides the diagnostics emitted around checkpointing
// and learning-rate decay: structured logging, metrics, and tracing.
//
// Features:
//   - Structured logging via slog (Go stdlib)
//   - Metrics via OpenTelemetry
//   - Tracing via OpenTelemetry
//
// Diagnostics never affect return values. Every helper accepts a nil logger
// and does nothing with it, and the metrics and tracing interfaces have no-op
// implementations for when they are disabled.
package observability

import (
	"log/slog"
	"time"
)

// EnrichLogger adds run context to a logger.
// Returns a new logger with run_id and epoch fields.
//
// Example:
//
//	enriched := EnrichLogger(logger, "run-123", 7)
//	enriched.Info("epoch finished") // includes run_id and epoch
func EnrichLogger(logger *slog.Logger, runID string, epoch int) *slog.Logger {
	if logger == nil {
		return nil
	}
	return logger.With(
		slog.String("run_id", runID),
		slog.Int("epoch", epoch),
	)
}

// LogResumeResolved logs the outcome of resume resolution.
// An empty path means training starts from scratch.
func LogResumeResolved(logger *slog.Logger, policy, path string, nextEpoch int) {
	if logger == nil {
		return
	}
	if path == "" {
		logger.Info("no checkpoint found, starting from scratch",
			slog.String("policy", policy),
			slog.Int("next_epoch", nextEpoch),
		)
		return
	}
	logger.Info("resuming from checkpoint",
		slog.String("policy", policy),
		slog.String("path", path),
		slog.Int("next_epoch", nextEpoch),
	)
}

// LogResumeFallback logs that a requested checkpoint was missing and an
// earlier one is used instead.
func LogResumeFallback(logger *slog.Logger, requested, found int) {
	if logger == nil {
		return
	}
	logger.Warn("requested checkpoint not found, falling back to earlier checkpoint",
		slog.Int("requested_epoch", requested),
		slog.Int("found_epoch", found),
	)
}

// LogDirCreated logs creation of the checkpoint directory.
func LogDirCreated(logger *slog.Logger, dir string) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint directory created",
		slog.String("dir", dir),
	)
}

// LogPersistStart logs the start of a checkpoint write.
func LogPersistStart(logger *slog.Logger, epoch int, path string) {
	if logger == nil {
		return
	}
	logger.Info("saving checkpoint",
		slog.Int("epoch", epoch),
		slog.String("path", path),
	)
}

// LogPersistComplete logs a successful checkpoint write.
func LogPersistComplete(logger *slog.Logger, epoch int, path string, sizeBytes int, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Info("checkpoint saved",
		slog.Int("epoch", epoch),
		slog.String("path", path),
		slog.Int("size_bytes", sizeBytes),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogPersistError logs a failed checkpoint write.
func LogPersistError(logger *slog.Logger, epoch int, path string, err error) {
	if logger == nil {
		return
	}
	logger.Error("checkpoint save failed",
		slog.Int("epoch", epoch),
		slog.String("path", path),
		slog.String("error", err.Error()),
		slog.String("error_kind", ErrorKind(err)),
	)
}

// LogLoaded logs a checkpoint read.
func LogLoaded(logger *slog.Logger, path string, epoch int, sizeBytes int) {
	if logger == nil {
		return
	}
	logger.Debug("checkpoint loaded",
		slog.String("path", path),
		slog.Int("epoch", epoch),
		slog.Int("size_bytes", sizeBytes),
	)
}

// LogDecay logs a plateau-triggered learning-rate change.
func LogDecay(logger *slog.Logger, tick int, oldRate, newRate float64) {
	if logger == nil {
		return
	}
	logger.Info("loss plateau, learning rate decayed",
		slog.Int("tick", tick),
		slog.Float64("old_lr", oldRate),
		slog.Float64("new_lr", newRate),
	)
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Milliseconds())
	}
}
