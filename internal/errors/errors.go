// Package errors defines the error kinds the core reports, per the error
// handling design: a small closed set of semantic kinds rather than one
// error type per Go package, so callers can dispatch on Kind regardless
// of which component raised it.
package errors

import (
	"fmt"
	"time"
)

// Kind is the semantic error classification surfaced to callers.
type Kind string

const (
	KindIO         Kind = "io_error"
	KindParse      Kind = "parse_error"
	KindExtraction Kind = "extraction_error"
	KindStorage    Kind = "storage_error"
	KindSchema     Kind = "schema_error"
	KindContention Kind = "contention_error"
	KindTimeout    Kind = "timeout_error"
	KindConfig     Kind = "config_error"
)

// CoreError is the single error type the core returns; Kind drives
// caller behavior (retry, fatal, per-file skip) and Underlying carries
// the original cause for errors.Is/As.
type CoreError struct {
	Kind        Kind
	Operation   string
	Path        string
	Underlying  error
	Timestamp   time.Time
	Recoverable bool
}

func new(kind Kind, op string, err error) *CoreError {
	return &CoreError{
		Kind:      kind,
		Operation: op,
		Underlying: err,
		Timestamp: time.Now(),
	}
}

// WithPath attaches the file path the error concerns.
func (e *CoreError) WithPath(path string) *CoreError {
	e.Path = path
	return e
}

// WithRecoverable marks the error retryable/non-fatal to the run.
func (e *CoreError) WithRecoverable(recoverable bool) *CoreError {
	e.Recoverable = recoverable
	return e
}

func (e *CoreError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s failed for %s: %v", e.Kind, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *CoreError) Unwrap() error {
	return e.Underlying
}

// IsRecoverable reports whether the run should continue past this error.
func (e *CoreError) IsRecoverable() bool {
	return e.Recoverable
}

// IO wraps a filesystem failure outside the store.
func IO(op string, err error) *CoreError {
	return new(KindIO, op, err).WithRecoverable(true)
}

// Parse wraps a fatal grammar parse failure. The file is still tracked
// with an empty extraction, so this is always recoverable at the run
// level.
func Parse(op string, err error) *CoreError {
	return new(KindParse, op, err).WithRecoverable(true)
}

// Extraction wraps a query-execution failure over a syntax tree.
func Extraction(op string, err error) *CoreError {
	return new(KindExtraction, op, err).WithRecoverable(true)
}

// Storage wraps a store operation that failed after exhausting retries.
// Storage errors are surfaced, not swallowed, because they threaten
// cross-file consistency.
func Storage(op string, err error) *CoreError {
	return new(KindStorage, op, err).WithRecoverable(false)
}

// Schema wraps a schema-version mismatch or corrupt database. Always fatal.
func Schema(op string, err error) *CoreError {
	return new(KindSchema, op, err).WithRecoverable(false)
}

// Contention wraps a bounded-retry exhaustion on the write path.
func Contention(op string, err error) *CoreError {
	return new(KindContention, op, err).WithRecoverable(false)
}

// Timeout wraps a deadline exceeded on a query or run.
func Timeout(op string, err error) *CoreError {
	return new(KindTimeout, op, err).WithRecoverable(false)
}

// Config wraps a malformed sidecar or tag rule.
func Config(op string, err error) *CoreError {
	return new(KindConfig, op, err).WithRecoverable(true)
}

// Is lets callers write `errors.Is(err, errors.KindStorage)`-style checks
// via a small adapter, since Kind itself isn't an error.
func Is(err error, kind Kind) bool {
	ce, ok := err.(*CoreError)
	if !ok {
		return false
	}
	return ce.Kind == kind
}

// Multi aggregates independent per-file errors collected during a run
// (e.g. parse warnings) without aborting the run.
type Multi struct {
	Errors []error
}

// NewMulti builds a Multi, dropping nil entries.
func NewMulti(errs []error) *Multi {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return &Multi{Errors: filtered}
}

func (m *Multi) Error() string {
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}
	return fmt.Sprintf("%d errors (first: %v)", len(m.Errors), m.Errors[0])
}

func (m *Multi) Unwrap() []error {
	return m.Errors
}
