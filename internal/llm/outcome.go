package llm

import (
	"fmt"

	"github.com/thebtf/ideaforge/internal/apperr"
)

// Failure explains why a reply could not be turned into a value.
type Failure struct {
	Reason apperr.SchemaReason
	Detail string
}

// Err converts the failure into a SchemaValidationError.
func (f *Failure) Err() error {
	if f == nil {
		return nil
	}
	return &apperr.SchemaValidationError{Reason: f.Reason, Detail: f.Detail}
}

func (f *Failure) String() string {
	return fmt.Sprintf("%s: %s", f.Reason, f.Detail)
}

// Outcome is either a validated value or a tagged Failure. Callers read both arms
// through Unpack.
type Outcome[T any] struct {
	value   T
	failure *Failure
}

// Valid wraps a validated value.
func Valid[T any](v T) Outcome[T] {
	return Outcome[T]{value: v}
}

// Rejected builds a failed outcome.
func Rejected[T any](reason apperr.SchemaReason, format string, args ...any) Outcome[T] {
	return Outcome[T]{failure: &Failure{Reason: reason, Detail: fmt.Sprintf(format, args...)}}
}

// RejectedWith carries an existing failure into an outcome of another type.
func RejectedWith[T any](f *Failure) Outcome[T] {
	return Outcome[T]{failure: f}
}

// Unpack returns the value and a nil failure, or the zero value and the failure.
func (o Outcome[T]) Unpack() (T, *Failure) {
	return o.value, o.failure
}

// OK reports whether the outcome holds a value.
func (o Outcome[T]) OK() bool {
	return o.failure == nil
}
