package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmbeddingUnavailable signals an embedding provider failure or timeout.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrModelCallFailed signals a language-model gateway failure (network, HTTP, timeout).
	ErrModelCallFailed = errors.New("model call failed")
	// ErrMalformedModelOutput signals model output without the required keys.
	ErrMalformedModelOutput = errors.New("malformed model output")
	// ErrIndexInconsistent signals a dimension or row/metadata mismatch in the snapshot.
	ErrIndexInconsistent = errors.New("index inconsistent")
	// ErrSnapshotUnavailable signals that no vector snapshot could be read.
	ErrSnapshotUnavailable = errors.New("vector snapshot unavailable")
	// ErrItemNotFound signals a missing index entry.
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidItem signals an item that cannot be indexed.
	ErrInvalidItem = errors.New("invalid item")
)

// ModelCallKind classifies a gateway failure.
type ModelCallKind string

// Gateway failure kinds.
const (
	ModelCallTimeout     ModelCallKind = "timeout"
	ModelCallHTTP        ModelCallKind = "http"
	ModelCallNetwork     ModelCallKind = "network"
	ModelCallUnavailable ModelCallKind = "unavailable"
)

// ModelCallError wraps ErrModelCallFailed with the failure kind.
type ModelCallError struct {
	Kind       ModelCallKind
	StatusCode int // set for ModelCallHTTP
	Err        error
}

func (e *ModelCallError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrModelCallFailed.Error(), e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the sentinel and the transport cause: callers can
// match ErrModelCallFailed as well as context.DeadlineExceeded.
func (e *ModelCallError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrModelCallFailed}
	}
	return []error{ErrModelCallFailed, e.Err}
}

// NewModelCallError creates a typed gateway error.
func NewModelCallError(kind ModelCallKind, status int, cause error) error {
	return &ModelCallError{Kind: kind, StatusCode: status, Err: cause}
}

// IsModelFailure reports whether err should send a caller down its non-model path.
// Malformed output is treated exactly like a failed call.
func IsModelFailure(err error) bool {
	return errors.Is(err, ErrModelCallFailed) || errors.Is(err, ErrMalformedModelOutput)
}
