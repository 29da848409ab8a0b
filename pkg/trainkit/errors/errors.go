// Package errors defines the failure taxonomy shared by trainkit packages.
//
// Three kinds of failure are surfaced to callers:
//   - ConfigError: invalid construction parameters, raised immediately
//   - IOError: unexpected filesystem or database failure
//   - CorruptCheckpointError: a checkpoint exists but cannot be decoded
//
// Each typed error matches its sentinel through errors.Is, so callers can
// branch on the category without type assertions:
//
//	if errors.Is(err, tkerrors.ErrCorruptCheckpoint) {
//	    // refuse to resume
//	}
//
// A missing checkpoint directory is never an error; it means no checkpoints
// have been written yet.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for each failure category.
var (
	// ErrConfiguration indicates invalid construction parameters.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrIO indicates an unexpected storage failure.
	ErrIO = errors.New("checkpoint i/o failure")

	// ErrCorruptCheckpoint indicates a checkpoint that exists but cannot be decoded.
	ErrCorruptCheckpoint = errors.New("corrupt checkpoint")

	// ErrNotFound indicates a checkpoint entry does not exist.
	ErrNotFound = errors.New("checkpoint not found")
)

// ConfigError reports an invalid construction parameter.
type ConfigError struct {
	// Field is the parameter name, e.g. "patience".
	Field string
	// Value is the rejected value.
	Value any
	// Reason describes the constraint that was violated.
	Reason string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

// Unwrap returns ErrConfiguration for errors.Is support.
func (e *ConfigError) Unwrap() error {
	return ErrConfiguration
}

// IOError wraps a storage failure with the operation and location involved.
type IOError struct {
	// Op is the operation that failed ("list", "read", "write", "mkdir").
	Op string
	// Path is the file, directory or entry involved.
	Path string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("checkpoint %s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *IOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// CorruptCheckpointError reports a checkpoint that is missing a required
// field or cannot be decoded.
type CorruptCheckpointError struct {
	// Path is the checkpoint location.
	Path string
	// Field is the offending bundle field, empty if the whole entry is unreadable.
	Field string
	// Err is the underlying decode error, if any.
	Err error
}

// Error implements the error interface.
func (e *CorruptCheckpointError) Error() string {
	msg := "corrupt checkpoint " + e.Path
	if e.Field != "" {
		msg += ": field " + e.Field
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *CorruptCheckpointError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrCorruptCheckpoint.
func (e *CorruptCheckpointError) Is(target error) bool {
	return target == ErrCorruptCheckpoint
}

// IsNotFound reports whether err means a checkpoint entry does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
