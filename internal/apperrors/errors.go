// Package apperrors defines the typed error taxonomy used across the
// pipeline: transient I/O, malformed payloads, degenerate geometry, and
// persistence failures each get their own type so callers can branch on
// errors.As instead of string matching.
package apperrors

import (
	"errors"
	"fmt"
)

// TransientIOError wraps a recoverable bus or network failure. It is
// returned to the caller (bus.Dial, the publish and subscribe calls),
// which logs it; reconnection with backoff is left to the MQTT client.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("transient i/o error in %s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error { return e.Err }

// NewTransientIOError constructs a TransientIOError.
func NewTransientIOError(op string, err error) *TransientIOError {
	return &TransientIOError{Op: op, Err: err}
}

// MalformedPayloadError wraps a payload that failed decoding or schema
// validation. The pipeline logs it at warn with the topic and a digest
// and drops the message; it never aborts the pipeline.
type MalformedPayloadError struct {
	Topic string
	Err   error
}

func (e *MalformedPayloadError) Error() string {
	return fmt.Sprintf("malformed payload on %q: %v", e.Topic, e.Err)
}

func (e *MalformedPayloadError) Unwrap() error { return e.Err }

// NewMalformedPayloadError constructs a MalformedPayloadError.
func NewMalformedPayloadError(topic string, err error) *MalformedPayloadError {
	return &MalformedPayloadError{Topic: topic, Err: err}
}

// DegenerateGeometryError wraps a homography or ROI computation that
// could not be solved (rank-deficient linear system, collinear corners).
// The config controller rejects the update and keeps the previous ROI.
type DegenerateGeometryError struct {
	Op  string
	Err error
}

func (e *DegenerateGeometryError) Error() string {
	return fmt.Sprintf("degenerate geometry in %s: %v", e.Op, e.Err)
}

func (e *DegenerateGeometryError) Unwrap() error { return e.Err }

// NewDegenerateGeometryError constructs a DegenerateGeometryError.
func NewDegenerateGeometryError(op string, err error) *DegenerateGeometryError {
	return &DegenerateGeometryError{Op: op, Err: err}
}

// PersistenceError wraps a disk-write failure for the config controller.
// The in-memory config remains authoritative; the write is retried on
// the next save.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence error in %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NewPersistenceError constructs a PersistenceError.
func NewPersistenceError(op string, err error) *PersistenceError {
	return &PersistenceError{Op: op, Err: err}
}

// IsTransientIO reports whether err is (or wraps) a TransientIOError.
func IsTransientIO(err error) bool {
	var target *TransientIOError
	return errors.As(err, &target)
}

// IsMalformedPayload reports whether err is (or wraps) a MalformedPayloadError.
func IsMalformedPayload(err error) bool {
	var target *MalformedPayloadError
	return errors.As(err, &target)
}

// IsDegenerateGeometry reports whether err is (or wraps) a DegenerateGeometryError.
func IsDegenerateGeometry(err error) bool {
	var target *DegenerateGeometryError
	return errors.As(err, &target)
}

// IsPersistence reports whether err is (or wraps) a PersistenceError.
func IsPersistence(err error) bool {
	var target *PersistenceError
	return errors.As(err, &target)
}
