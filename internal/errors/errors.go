// Package errors provides centralized error definitions and error handling utilities
// for the Shimmer codebase. It defines the failure taxonomy shared by the
// filesystem, retry, parallel, temp-directory and single-instance packages,
// semantic error types with context wrapping, and classification helpers.
//
// # Error Types
//
//   - NotFoundError: a path or primitive did not exist when it was required
//   - AccessDeniedError: an attribute change or delete failed on a persistent
//     lock or permission problem
//   - TimeoutError: a wait exceeded the caller's bound
//   - ConfigurationError: a required configuration value is missing or invalid
//   - BatchError: the first failure of a bounded-parallelism batch
//   - ValidationError: invalid input supplied by a caller
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewNotFoundError("directory", path)
//	err := errors.NewTimeoutError("acquire instance guard", 5*time.Second)
//	err := errors.NewConfigurationError("paths.temp_root", "not set")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrTimeout) { ... }
//
//	var batchErr *errors.BatchError
//	if errors.As(err, &batchErr) { ... }
//
// Filesystem errors coming straight from the OS can be mapped onto the
// taxonomy with [Classify]; the original cause stays reachable through Unwrap.
package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

var (
	// ErrNotFound indicates that a required path or primitive does not exist.
	ErrNotFound = New("not found")
	// ErrAccessDenied indicates a persistent lock or permission failure.
	ErrAccessDenied = New("access denied")
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrConfiguration indicates a missing or invalid configuration value.
	ErrConfiguration = New("configuration error")
	// ErrBatchFailed indicates that at least one unit of a parallel batch failed.
	ErrBatchFailed = New("batch failed")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// ShimmerError is the base interface for all Shimmer errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type ShimmerError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Taxonomy
// -----------------------------------------------------------------------------

// NotFoundError represents a path or primitive that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("directory", "/opt/app")
//	fmt.Println(err) // "directory '/opt/app' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if target == ErrNotFound {
		return true
	}
	return e.baseError.Is(target)
}

// AccessDeniedError represents an attribute change or delete that kept failing
// because of an external lock or missing permission.
//
// Example:
//
//	err := errors.NewAccessDeniedError("delete", "/opt/app/app.exe", cause)
//	fmt.Println(err) // "access denied [op=delete, path=/opt/app/app.exe]: permission denied"
type AccessDeniedError struct {
	baseError
	Operation string
	Path      string
}

// NewAccessDeniedError creates a new AccessDeniedError.
func NewAccessDeniedError(operation, path string, cause error) *AccessDeniedError {
	return &AccessDeniedError{
		baseError: baseError{
			message:    "access denied",
			cause:      cause,
			severity:   SeverityError,
			retryable:  true, // external locks usually clear up
			userFacing: true,
		},
		Operation: operation,
		Path:      path,
	}
}

// Error returns the formatted error message.
func (e *AccessDeniedError) Error() string {
	var parts []string
	if e.Operation != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Operation))
	}
	if e.Path != "" {
		parts = append(parts, fmt.Sprintf("path=%s", e.Path))
	}

	prefix := "access denied"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("access denied [%s]", strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", prefix, e.cause)
	}
	return prefix
}

// Is checks if this error matches the target.
func (e *AccessDeniedError) Is(target error) bool {
	if _, ok := target.(*AccessDeniedError); ok {
		return true
	}
	if target == ErrAccessDenied {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("acquire instance guard", 30*time.Second)
//	fmt.Println(err) // "timeout error: acquire instance guard (timeout: 30s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if target == ErrTimeout {
		return true
	}
	return e.baseError.Is(target)
}

// ConfigurationError represents a configuration value that is missing or invalid.
//
// Example:
//
//	err := errors.NewConfigurationError("paths.temp_root", "not set")
//	fmt.Println(err) // "configuration error [key=paths.temp_root]: not set"
type ConfigurationError struct {
	baseError
	Key string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(key, message string) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Key: key,
	}
}

// WithCause adds a cause to the error.
func (e *ConfigurationError) WithCause(cause error) *ConfigurationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	prefix := "configuration error"
	if e.Key != "" {
		prefix = fmt.Sprintf("configuration error [key=%s]", e.Key)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	if target == ErrConfiguration {
		return true
	}
	return e.baseError.Is(target)
}

// BatchError carries the first failure observed in a bounded-parallelism batch.
// Later failures and the results of units that were still in flight are not
// reported; callers must assume any number of items already took effect.
type BatchError struct {
	baseError
	// Index is the position of the failing item in the input sequence.
	Index int
	// Scheduled is the number of units that had been dispatched when the
	// batch stopped.
	Scheduled int
}

// NewBatchError creates a new BatchError wrapping the first failure.
func NewBatchError(index, scheduled int, cause error) *BatchError {
	return &BatchError{
		baseError: baseError{
			message:    "batch failed",
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: false,
		},
		Index:     index,
		Scheduled: scheduled,
	}
}

// Error returns the formatted error message.
func (e *BatchError) Error() string {
	return fmt.Sprintf("batch failed [item=%d, scheduled=%d]: %v", e.Index, e.Scheduled, e.cause)
}

// Is checks if this error matches the target.
func (e *BatchError) Is(target error) bool {
	if _, ok := target.(*BatchError); ok {
		return true
	}
	if target == ErrBatchFailed {
		return true
	}
	return e.baseError.Is(target)
}

// IsRetryable defers to the first failure.
func (e *BatchError) IsRetryable() bool {
	return IsRetryable(e.cause)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("degree of parallelism must be at least 1")
//	err = err.WithField("degree").WithValue(0)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if target == ErrInvalidInput {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// Classify maps an OS filesystem error onto the taxonomy. Errors wrapping
// fs.ErrNotExist become a NotFoundError and errors wrapping fs.ErrPermission
// become an AccessDeniedError; the original error stays the cause. Anything
// else, including errors that are already classified, is returned unchanged.
func Classify(err error, operation, path string) error {
	if err == nil {
		return nil
	}

	var shimmerErr ShimmerError
	if As(err, &shimmerErr) {
		return err
	}

	switch {
	case Is(err, fs.ErrNotExist):
		return NewNotFoundError("path", path).WithCause(err)
	case Is(err, fs.ErrPermission):
		return NewAccessDeniedError(operation, path, err)
	default:
		return err
	}
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing ShimmerError with IsRetryable() returning true
//   - Errors wrapping ErrTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var shimmerErr ShimmerError
	if As(err, &shimmerErr) {
		return shimmerErr.IsRetryable()
	}

	return Is(err, ErrTimeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to remove directory")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
