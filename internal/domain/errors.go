package domain

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common error conditions.
var (
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that an entity with the same key was already stored.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that the input data is invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSourceAuth indicates that a source rejected the credentials (401/403).
	ErrSourceAuth = errors.New("source authentication failed")

	// ErrSourceRateLimited indicates that a source returned 429.
	ErrSourceRateLimited = errors.New("source rate limited")

	// ErrSourceUnavailable indicates a transport failure or a 5xx response.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrMalformedResponse indicates a response body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed source response")

	// ErrMalformedRecord indicates a single record that could not be normalized.
	ErrMalformedRecord = errors.New("malformed record")

	// ErrRunCancelled indicates a cooperative stop of a harvesting run.
	ErrRunCancelled = errors.New("run cancelled")

	// ErrSourceNotRegistered indicates a query named a source with no adapter.
	ErrSourceNotRegistered = errors.New("source not registered")

	// ErrTooManyRuns indicates the service is already running its maximum number of harvests.
	ErrTooManyRuns = errors.New("too many active runs")

	// ErrRunInProgress indicates the run has not finished yet.
	ErrRunInProgress = errors.New("run in progress")
)

// ValidationError represents a validation error for a specific field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NotFoundError provides details about a not found entity.
type NotFoundError struct {
	Entity string
	ID     string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// SourceAuthError is returned when a source rejects the configured credentials.
// It is never retried.
type SourceAuthError struct {
	Source     SourceID
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *SourceAuthError) Error() string {
	return fmt.Sprintf("%s rejected credentials (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *SourceAuthError) Unwrap() error {
	return ErrSourceAuth
}

// RateLimitError is returned on 429. RetryAfter is zero if the source did not advertise one.
type RateLimitError struct {
	Source     SourceID
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited by %s: retry after %s", e.Source, e.RetryAfter)
	}
	return fmt.Sprintf("rate limited by %s", e.Source)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *RateLimitError) Unwrap() error {
	return ErrSourceRateLimited
}

// UnavailableError wraps transport failures and 5xx responses.
type UnavailableError struct {
	Source     SourceID
	StatusCode int
	Cause      error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Source, e.Cause)
	}
	return fmt.Sprintf("%s unavailable (status %d)", e.Source, e.StatusCode)
}

// Is matches ErrSourceUnavailable.
func (e *UnavailableError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// Unwrap returns the transport cause, if any.
func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// ExternalAPIError provides details about a non-retryable API error that is
// neither an auth failure nor a rate limit.
type ExternalAPIError struct {
	Source     SourceID
	StatusCode int
	Message    string
	Cause      error
}

// Error implements the error interface.
func (e *ExternalAPIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Source, e.StatusCode, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *ExternalAPIError) Unwrap() error {
	return e.Cause
}

// MalformedRecordError describes a record dropped during normalization.
type MalformedRecordError struct {
	Source SourceID
	Reason string
}

// Error implements the error interface.
func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed %s record: %s", e.Source, e.Reason)
}

// Unwrap returns the underlying sentinel error for use with errors.Is.
func (e *MalformedRecordError) Unwrap() error {
	return ErrMalformedRecord
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(entity, id string) *NotFoundError {
	return &NotFoundError{
		Entity: entity,
		ID:     id,
	}
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewSourceAuthError creates a new SourceAuthError.
func NewSourceAuthError(source SourceID, statusCode int, message string) *SourceAuthError {
	return &SourceAuthError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
	}
}

// NewRateLimitError creates a new RateLimitError.
func NewRateLimitError(source SourceID, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		Source:     source,
		RetryAfter: retryAfter,
	}
}

// NewUnavailableError creates a new UnavailableError.
func NewUnavailableError(source SourceID, statusCode int, cause error) *UnavailableError {
	return &UnavailableError{
		Source:     source,
		StatusCode: statusCode,
		Cause:      cause,
	}
}

// NewExternalAPIError creates a new ExternalAPIError.
func NewExternalAPIError(source SourceID, statusCode int, message string, cause error) *ExternalAPIError {
	return &ExternalAPIError{
		Source:     source,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// NewMalformedResponseError wraps a decode failure of a whole response body.
func NewMalformedResponseError(source SourceID, cause error) error {
	return fmt.Errorf("%s: %w: %v", source, ErrMalformedResponse, cause)
}

// NewMalformedRecordError creates a new MalformedRecordError.
func NewMalformedRecordError(source SourceID, reason string) *MalformedRecordError {
	return &MalformedRecordError{
		Source: source,
		Reason: reason,
	}
}

// IsRetryable reports whether a source error is transient.
// Only rate limits and unavailability are retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSourceRateLimited) || errors.Is(err, ErrSourceUnavailable)
}

// RetryAfter extracts the advertised delay from a rate limit error, if any.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

// ErrorKind returns a short label for metrics and run reports.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSourceAuth):
		return "auth"
	case errors.Is(err, ErrSourceRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrSourceUnavailable):
		return "unavailable"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, ErrMalformedRecord):
		return "malformed_record"
	case errors.Is(err, ErrRunCancelled):
		return "cancelled"
	default:
		return "api_error"
	}
}
