package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error kinds. Match with errors.Is against any error returned by the client.
var (
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("authentication required")
	ErrForbidden  = errors.New("forbidden")
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrOutOfStock = errors.New("insufficient stock")
	ErrBadRequest = errors.New("bad request")
	ErrServer     = errors.New("server error")

	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// Error is a failed call to the backend.
type Error struct {
	Kind    error
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.Error()
	}
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ValidationError is raised client-side before any request is issued.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Message returns the text a view shows inline for err.
func Message(err error) string {
	var verr *ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func classify(status int, message string) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusNotFound:
		return ErrNotFound
	case isStockMessage(message) && status < http.StatusInternalServerError:
		return ErrOutOfStock
	case status == http.StatusConflict:
		return ErrConflict
	case status >= http.StatusInternalServerError:
		return ErrServer
	default:
		return ErrBadRequest
	}
}

func isStockMessage(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "insufficient stock") || strings.Contains(m, "out of stock")
}
