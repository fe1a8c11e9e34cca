// Package apperror holds the error taxonomy shared by usecases, clients and handlers.
package apperror

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")

	// ErrInvalidTransition is returned when a post is already terminal.
	ErrInvalidTransition = errors.New("post status transition not allowed")
)

// ConfigurationError reports missing vendor credentials or settings.
type ConfigurationError struct {
	Component string
	Reason    string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not configured: %s", e.Component, e.Reason)
}

// ValidationError reports a malformed request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports an absent resource, scoped to the caller.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// CSRF failure codes surfaced on the callback redirect.
const (
	CodeInvalidCallback = "invalid_callback"
	CodeInvalidState    = "invalid_state"
	CodeStateExpired    = "state_expired"
	CodeUnauthorized    = "unauthorized"
)

// CsrfError is raised when the OAuth state is absent, expired, replayed or
// bound to another user.
type CsrfError struct {
	Code string
}

func (e *CsrfError) Error() string { return "oauth state rejected: " + e.Code }

// CallbackError carries a machine-readable redirect code for callback failures
// that happen before state validation.
type CallbackError struct {
	Code string
}

func (e *CallbackError) Error() string { return "oauth callback rejected: " + e.Code }

// IdentityError reports that the vendor returned no usable account, e.g. a
// Google user without a YouTube channel.
type IdentityError struct {
	Platform string
	Code     string
	Reason   string
}

func (e *IdentityError) Error() string {
	return fmt.Sprintf("%s: %s", e.Platform, e.Reason)
}

// VendorError wraps a non-2xx or malformed platform API response.
type VendorError struct {
	Platform   string
	Op         string
	StatusCode int
	Message    string
}

func (e *VendorError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s failed (%d): %s", e.Platform, e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Platform, e.Op, e.Message)
}

// TimeoutError reports that a bounded wait ran out of attempts.
type TimeoutError struct {
	Platform string
	Op       string
	Attempts int
	Interval time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s timed out after %d attempts (%s)", e.Platform, e.Op, e.Attempts, time.Duration(e.Attempts)*e.Interval)
}
