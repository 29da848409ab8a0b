package checkpoint

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	tkerrors "github.com/randalmurphal/trainkit/pkg/trainkit/errors"
)

// Version is the current bundle format version.
// Increment when making breaking changes to the envelope.
const Version = 1

// Bundle field keys as written to storage.
const (
	KeyModelParameters = "model_parameters"
	KeyModelStates     = "model_states"
	KeyOptState        = "opt_state"
	KeyLog             = "log"
	KeyOther           = "other"
)

// requiredKeys must be present in every stored bundle.
var requiredKeys = []string{KeyModelParameters, KeyOptState, KeyLog, KeyOther}

var errMissingField = errors.New("missing required field")

// Blob is an opaque serialized value such as model parameters or optimizer state.
type Blob []byte

// Bundle is the unit persisted for one epoch: model parameters and state,
// optimizer state, the training log, and named extra objects.
type Bundle struct {
	ModelParameters Blob
	// ModelStates holds non-trainable model state; nil when the model has none.
	ModelStates Blob
	OptState    Blob
	// Log is the ordered training log. Record shape is caller-defined.
	Log []json.RawMessage
	// Other maps names to extra serialized objects, e.g. a plateau detector.
	Other map[string]json.RawMessage

	// Metadata filled in on Load.
	Epoch     int
	RunID     string
	CreatedAt time.Time
}

// envelope is the on-disk layout of a bundle.
type envelope struct {
	Version         int                        `json:"version"`
	Epoch           int                        `json:"epoch"`
	RunID           string                     `json:"run_id,omitempty"`
	Timestamp       time.Time                  `json:"timestamp"`
	ModelParameters Blob                       `json:"model_parameters"`
	ModelStates     Blob                       `json:"model_states,omitempty"`
	OptState        Blob                       `json:"opt_state"`
	Log             []json.RawMessage          `json:"log"`
	Other           map[string]json.RawMessage `json:"other"`
}

// AppendLog serializes record and appends it to the training log.
func (b *Bundle) AppendLog(record any) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode log record: %w", err)
	}
	b.Log = append(b.Log, data)
	return nil
}

// SetOther serializes v and stores it under key in the extras mapping.
func (b *Bundle) SetOther(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode extra %q: %w", key, err)
	}
	if b.Other == nil {
		b.Other = make(map[string]json.RawMessage)
	}
	b.Other[key] = data
	return nil
}

// GetOther decodes the extra stored under key into v.
// Returns false if no such extra exists.
func (b *Bundle) GetOther(key string, v any) (bool, error) {
	data, ok := b.Other[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("decode extra %q: %w", key, err)
	}
	return true, nil
}

// LogRecords decodes every training-log record into T.
func LogRecords[T any](b *Bundle) ([]T, error) {
	records := make([]T, 0, len(b.Log))
	for i, raw := range b.Log {
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode log record %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// encode serializes the bundle for epoch. A nil log or extras mapping is
// written empty so the stored bundle always carries every required key.
func (b *Bundle) encode(epoch int, now time.Time) ([]byte, error) {
	log := b.Log
	if log == nil {
		log = []json.RawMessage{}
	}
	other := b.Other
	if other == nil {
		other = map[string]json.RawMessage{}
	}
	return json.Marshal(envelope{
		Version:         Version,
		Epoch:           epoch,
		RunID:           b.RunID,
		Timestamp:       now.UTC(),
		ModelParameters: b.ModelParameters,
		ModelStates:     b.ModelStates,
		OptState:        b.OptState,
		Log:             log,
		Other:           other,
	})
}

// decode parses a stored bundle, reporting the first absent or malformed
// field as a CorruptCheckpointError.
func decode(path string, data []byte) (*Bundle, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &tkerrors.CorruptCheckpointError{Path: path, Err: err}
	}

	var version int
	if err := decodeField(path, fields, "version", &version); err != nil {
		return nil, err
	}
	if version != Version {
		return nil, &tkerrors.CorruptCheckpointError{
			Path:  path,
			Field: "version",
			Err:   fmt.Errorf("got %d, expected %d", version, Version),
		}
	}

	b := &Bundle{}
	targets := map[string]any{
		KeyModelParameters: &b.ModelParameters,
		KeyOptState:        &b.OptState,
		KeyLog:             &b.Log,
		KeyOther:           &b.Other,
	}
	for _, key := range requiredKeys {
		if raw, ok := fields[key]; ok && isNull(raw) {
			return nil, &tkerrors.CorruptCheckpointError{Path: path, Field: key, Err: errMissingField}
		}
		if err := decodeField(path, fields, key, targets[key]); err != nil {
			return nil, err
		}
	}

	optional := []struct {
		key    string
		target any
	}{
		{KeyModelStates, &b.ModelStates},
		{"epoch", &b.Epoch},
		{"run_id", &b.RunID},
		{"timestamp", &b.CreatedAt},
	}
	for _, opt := range optional {
		if _, ok := fields[opt.key]; !ok {
			continue
		}
		if err := decodeField(path, fields, opt.key, opt.target); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func decodeField(path string, fields map[string]json.RawMessage, key string, target any) error {
	raw, ok := fields[key]
	if !ok {
		return &tkerrors.CorruptCheckpointError{Path: path, Field: key, Err: errMissingField}
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return &tkerrors.CorruptCheckpointError{Path: path, Field: key, Err: err}
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
