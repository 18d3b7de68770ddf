// Package apperr defines the error taxonomy shared by the pipeline stages.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// TransientServiceError is a network, timeout or 5xx failure of the generation service.
// It is retried with backoff and becomes fatal only after the retry budget is spent.
type TransientServiceError struct {
	Err        error
	Op         string
	StatusCode int
}

func (e *TransientServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: transient service error (HTTP %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient service error: %v", e.Op, e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// SchemaReason tags why a structured reply was rejected.
type SchemaReason string

const (
	ReasonParse    SchemaReason = "parse"
	ReasonSchema   SchemaReason = "schema"
	ReasonOutRange SchemaReason = "out_of_range"
)

// SchemaValidationError is a malformed or out-of-range structured reply.
type SchemaValidationError struct {
	Reason SchemaReason
	Detail string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation failed (%s): %s", e.Reason, e.Detail)
}

// ConfigurationError is an invalid setting detected before any service call.
type ConfigurationError struct {
	Field   string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Field, e.Message)
}

// CoverageError describes ids that were missing from, or duplicated across, a cluster set.
// It is always corrected automatically and only ever logged.
type CoverageError struct {
	Missing    []int64
	Duplicated []int64
}

func (e *CoverageError) Error() string {
	parts := make([]string, 0, 2)
	if len(e.Missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing ids %v", e.Missing))
	}
	if len(e.Duplicated) > 0 {
		parts = append(parts, fmt.Sprintf("duplicated ids %v", e.Duplicated))
	}
	return "coverage repaired: " + strings.Join(parts, ", ")
}

// Empty reports whether nothing needed repair.
func (e *CoverageError) Empty() bool {
	return len(e.Missing) == 0 && len(e.Duplicated) == 0
}

// UpstreamError is a failure surfaced by the issue source after its own retries.
type UpstreamError struct {
	Err    error
	Source string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("issue source %s: %v", e.Source, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// StageError attributes a fatal failure to a pipeline stage and, when known,
// the issue or batch that was being processed.
type StageError struct {
	Err   error
	Stage string
	Item  string
}

func (e *StageError) Error() string {
	if e.Item != "" {
		return fmt.Sprintf("stage %s failed at %s: %v", e.Stage, e.Item, e.Err)
	}
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// IsTransient reports whether err is, or wraps, a TransientServiceError.
func IsTransient(err error) bool {
	var te *TransientServiceError
	return errors.As(err, &te)
}

// IsSchema reports whether err is, or wraps, a SchemaValidationError.
func IsSchema(err error) bool {
	var se *SchemaValidationError
	return errors.As(err, &se)
}

// IsConfiguration reports whether err is, or wraps, a ConfigurationError.
func IsConfiguration(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}
