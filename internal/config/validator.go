package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "retry.max_attempts")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Bounds enforced by Validate.
const (
	maxRetryAttempts = 100
	maxRetryDelayMs  = 60_000
	maxDegree        = 1024
	maxPathLength    = 4096
)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validatePaths()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateParallel()...)
	errors = append(errors, c.validateInstance()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError
	errors = append(errors, validatePath("paths.temp_root", c.Paths.TempRoot)...)
	errors = append(errors, validatePath("paths.lock_dir", c.Paths.LockDir)...)
	return errors
}

// validatePath checks an optional path value for characters and lengths no
// filesystem accepts. Empty values are valid.
func validatePath(field, path string) []ValidationError {
	if path == "" {
		return nil
	}

	var errors []ValidationError

	// Check for null bytes which are invalid in paths
	if strings.ContainsRune(path, '\x00') {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: "path contains invalid null character",
		})
	}

	if len(path) > maxPathLength {
		errors = append(errors, ValidationError{
			Field:   field,
			Value:   path,
			Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
		})
	}

	return errors
}

// validateRetry validates the RetryConfig
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	} else if c.Retry.MaxAttempts > maxRetryAttempts {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: fmt.Sprintf("exceeds maximum of %d", maxRetryAttempts),
		})
	}

	if c.Retry.DelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.delay_ms",
			Value:   c.Retry.DelayMs,
			Message: "must be non-negative",
		})
	} else if c.Retry.DelayMs > maxRetryDelayMs {
		errors = append(errors, ValidationError{
			Field:   "retry.delay_ms",
			Value:   c.Retry.DelayMs,
			Message: fmt.Sprintf("exceeds maximum of %dms", maxRetryDelayMs),
		})
	}

	return errors
}

// validateParallel validates the ParallelConfig
func (c *Config) validateParallel() []ValidationError {
	var errors []ValidationError

	if c.Parallel.Degree < 1 {
		errors = append(errors, ValidationError{
			Field:   "parallel.degree",
			Value:   c.Parallel.Degree,
			Message: "must be at least 1",
		})
	} else if c.Parallel.Degree > maxDegree {
		errors = append(errors, ValidationError{
			Field:   "parallel.degree",
			Value:   c.Parallel.Degree,
			Message: fmt.Sprintf("exceeds maximum of %d", maxDegree),
		})
	}

	return errors
}

// validateInstance validates the InstanceConfig
func (c *Config) validateInstance() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.Instance.Key) == "" {
		errors = append(errors, ValidationError{
			Field:   "instance.key",
			Value:   c.Instance.Key,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	errors = append(errors, validatePath("logging.dir", c.Logging.Dir)...)

	return errors
}
