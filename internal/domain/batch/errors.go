package batch

import (
	"fmt"

	"batchtrack/internal/errs"
)

var (
	ErrValidation     = errs.NewKind(errs.KindValidation, "validation failed")
	ErrUnauthorized   = errs.NewKind(errs.KindUnauthorized, "actor role does not permit this transition")
	ErrInvalidState   = errs.NewKind(errs.KindInvalidState, "batch state does not permit this transition")
	ErrAlreadyClaimed = errs.NewKind(errs.KindAlreadyClaimed, "batch already claimed for testing")
	ErrBatchNotFound  = errs.NewKind(errs.KindNotFound, "batch not found")
	ErrSampleNotFound = errs.NewKind(errs.KindNotFound, "sample not found")
)

// ValidationError names the input field that failed validation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func (e *ValidationError) Kind() errs.Kind { return errs.KindValidation }

func required(field string) error {
	return &ValidationError{Field: field, Reason: "is required"}
}

func invalidState(action Action, status Status) error {
	return fmt.Errorf("%w: cannot %s while batch is %s", ErrInvalidState, action, status)
}

func unauthorized(action Action, role Role) error {
	return fmt.Errorf("%w: role %q cannot %s", ErrUnauthorized, role, action)
}
