// Package errors provides the kernel's unified error taxonomy.
//
// Every failure surfaced by a kernel component carries one of the seven
// kinds below rather than a free-form error code; callers switch on Kind,
// not on string matching or sentinel values.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed error taxonomy from the error handling design.
type Kind string

const (
	// KindValidation covers malformed input: empty name, dimension
	// mismatch, bad JSON. Surfaced to the caller, never retried.
	KindValidation Kind = "validation"
	// KindNotFound covers a missing hook, tenant, session, or vector.
	KindNotFound Kind = "not_found"
	// KindConflict covers a duplicate hook name, duplicate session id,
	// or a unique-constraint violation.
	KindConflict Kind = "conflict"
	// KindTimeout covers a step, workflow, or remote hook exceeding its
	// budget. Retried per policy; otherwise surfaced.
	KindTimeout Kind = "timeout"
	// KindCircuitOpen covers rejection by a circuit breaker. Surfaced;
	// the caller may retry after the breaker's timeout elapses.
	KindCircuitOpen Kind = "circuit_open"
	// KindTransient covers I/O or network failure from the storage or
	// distributed hook layer. Retried by the executor per backoff policy.
	KindTransient Kind = "transient"
	// KindFatal covers an invariant violation, e.g. a missing tenant
	// context. Surfaced; the operation fails, the process continues.
	KindFatal Kind = "fatal"
)

// KernelError is the structured error type every kernel package returns.
type KernelError struct {
	Kind    Kind
	Message string
	Field   string // offending field/key, when applicable
	Details map[string]interface{}
	Err     error
}

func (e *KernelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *KernelError) Unwrap() error { return e.Err }

// WithDetails attaches additional machine-readable context.
func (e *KernelError) WithDetails(key string, value interface{}) *KernelError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates a KernelError of the given kind.
func New(kind Kind, message string) *KernelError {
	return &KernelError{Kind: kind, Message: message}
}

// Wrap creates a KernelError of the given kind around an existing error.
func Wrap(kind Kind, message string, err error) *KernelError {
	return &KernelError{Kind: kind, Message: message, Err: err}
}

// Validation builders

func Validation(field, reason string) *KernelError {
	return New(KindValidation, reason).withField(field)
}

func MissingParameter(param string) *KernelError {
	return New(KindValidation, "missing required parameter").withField(param)
}

func DimensionMismatch(expected, got int) *KernelError {
	return New(KindValidation, "vector dimension mismatch").
		WithDetails("expected", expected).WithDetails("got", got)
}

// Resource builders

func NotFound(resource, id string) *KernelError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource)).WithDetails("id", id)
}

func Conflict(message string) *KernelError {
	return New(KindConflict, message)
}

func DuplicateHook(point, name string) *KernelError {
	return New(KindConflict, "duplicate hook").WithDetails("point", point).WithDetails("name", name)
}

// Timing / resilience builders

func Timeout(operation string) *KernelError {
	return New(KindTimeout, "operation timed out").WithDetails("operation", operation)
}

func CircuitOpen(path string) *KernelError {
	return New(KindCircuitOpen, "circuit breaker open").WithDetails("path", path)
}

func Transient(operation string, err error) *KernelError {
	return Wrap(KindTransient, "transient failure", err).WithDetails("operation", operation)
}

func Fatal(message string, err error) *KernelError {
	return Wrap(KindFatal, message, err)
}

func (e *KernelError) withField(field string) *KernelError {
	e.Field = field
	return e
}

// Is / As helpers

func As(err error) *KernelError {
	var ke *KernelError
	if errors.As(err, &ke) {
		return ke
	}
	return nil
}

func KindOf(err error) Kind {
	if ke := As(err); ke != nil {
		return ke.Kind
	}
	return KindFatal
}

// HTTPStatus projects a Kind onto the optional debug/control HTTP surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindCircuitOpen:
		return http.StatusServiceUnavailable
	case KindTransient:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
