package dishfinder

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is() to check.
var (
	ErrBadRequest       = errors.New("dishfinder: bad request")
	ErrUnauthorized     = errors.New("dishfinder: unauthorized")
	ErrItemNotFound     = errors.New("dishfinder: item not found")
	ErrUnavailable      = errors.New("dishfinder: service unavailable")
	ErrServer           = errors.New("dishfinder: server error")
	ErrUnexpectedStatus = errors.New("dishfinder: unexpected status")
)

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("dishfinder: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("dishfinder: http %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap maps the response to a sentinel.
func (e *APIError) Unwrap() error {
	switch {
	case e.Code == "item_not_found":
		return ErrItemNotFound
	case e.StatusCode == 401:
		return ErrUnauthorized
	case e.StatusCode == 503 || e.StatusCode == 502:
		return ErrUnavailable
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return ErrBadRequest
	case e.StatusCode >= 500:
		return ErrServer
	default:
		return ErrUnexpectedStatus
	}
}
