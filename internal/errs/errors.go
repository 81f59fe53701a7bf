package errs

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a remote entity that no longer exists (HTTP 404).
// Callers translate it to a local delete instead of propagating a failure.
var ErrNotFound = errors.New("entity not found")

// ErrCredentialTimeout is returned when no valid bearer token became
// available within the configured wait window.
var ErrCredentialTimeout = errors.New("credential unavailable")

// StorageError wraps a local store I/O failure. It is always fatal to the
// immediate caller and must never be silently ignored.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error in %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Storage wraps err as a StorageError for operation op.
func Storage(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// TransportKind classifies remote API and push-transport failures.
type TransportKind int

const (
	TransportClient TransportKind = iota
	TransportServer
	TransportTimeout
)

func (k TransportKind) String() string {
	switch k {
	case TransportClient:
		return "client"
	case TransportServer:
		return "server"
	case TransportTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// TransportError wraps a remote API or push-transport failure. The failed
// operation leaves local state unchanged and the next scheduled cycle retries.
type TransportError struct {
	Kind   TransportKind
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transport error (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("transport error (%s): %v", e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Transport wraps err as a TransportError of the given kind.
func Transport(kind TransportKind, status int, err error) error {
	return &TransportError{Kind: kind, Status: status, Err: err}
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// ValidationError wraps a push payload that could not be decoded. The message
// is dropped and logged without affecting other queued messages.
type ValidationError struct {
	Topic string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload on topic %s: %v", e.Topic, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
