package reconcile

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode identifies well-known error categories surfaced by a pass.
type ErrorCode string

const (
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeVersionUnsupported ErrorCode = "VERSION_UNSUPPORTED"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeTransport          ErrorCode = "TRANSPORT_ERROR"
	ErrCodeController         ErrorCode = "CONTROLLER_ERROR"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodePostcondition      ErrorCode = "POSTCONDITION_ERROR"
	ErrCodeCancelled          ErrorCode = "CANCELLED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// DomainError represents a typed error enriched with contextual data while
// remaining free from infrastructure dependencies.
type DomainError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause for errors.Is / errors.As usage.
func (e *DomainError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is allows errors.Is comparisons against other DomainError values.
func (e *DomainError) Is(target error) bool {
	var domainErr *DomainError
	if !errors.As(target, &domainErr) {
		return false
	}
	return e.Code == domainErr.Code && e.Message == domainErr.Message
}

// WithContext clones the error with additional contextual metadata.
func (e *DomainError) WithContext(ctx map[string]interface{}) *DomainError {
	if e == nil {
		return nil
	}
	merged := make(map[string]interface{}, len(e.Context)+len(ctx))
	for k, v := range e.Context {
		merged[k] = v
	}
	for k, v := range ctx {
		merged[k] = v
	}
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Context: merged,
	}
}

// NewError constructs a DomainError with the supplied code and message.
func NewError(code ErrorCode, message string, cause error, context map[string]interface{}) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
		Context: context,
	}
}

// CodeOf returns the code of the outermost DomainError in err's chain.
// Context cancellation maps to ErrCodeCancelled and deadlines to ErrCodeTimeout.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ErrCodeCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	}
	return ErrCodeInternal
}

// AsDomainError converts any error into a DomainError, keeping existing ones.
func AsDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return NewError(CodeOf(err), err.Error(), err, nil)
}

// Helper constructors to simplify error creation throughout the engine.

func NewValidationError(message string, context map[string]interface{}) *DomainError {
	return NewError(ErrCodeValidation, message, nil, context)
}

func NewVersionError(minimum, observed string) *DomainError {
	return NewError(ErrCodeVersionUnsupported,
		fmt.Sprintf("controller version %s is below the minimum supported version %s", observed, minimum),
		nil, map[string]interface{}{"minimum": minimum, "observed": observed})
}

func NewNotFoundError(collection, key string) *DomainError {
	return NewError(ErrCodeNotFound, fmt.Sprintf("%s %q not found", collection, key), nil, map[string]interface{}{
		"collection": collection,
		"key":        key,
	})
}

func NewConflictError(field string, have, want interface{}) *DomainError {
	return NewError(ErrCodeConflict, fmt.Sprintf("field %q is immutable and cannot be changed", field), nil, map[string]interface{}{
		"field": field,
		"have":  have,
		"want":  want,
	})
}

func NewTransportError(operation string, cause error) *DomainError {
	return NewError(ErrCodeTransport, operation+" failed", cause, map[string]interface{}{"operation": operation})
}

func NewControllerError(task, reason string) *DomainError {
	return NewError(ErrCodeController, fmt.Sprintf("task %s failed: %s", task, reason), nil, map[string]interface{}{
		"task":   task,
		"reason": reason,
	})
}

func NewTimeoutError(task string, cause error) *DomainError {
	return NewError(ErrCodeTimeout, fmt.Sprintf("task %s did not complete before the deadline", task), cause, map[string]interface{}{
		"task": task,
	})
}

func NewPostconditionError(expected string, fields []string) *DomainError {
	return NewError(ErrCodePostcondition, "controller state does not match the applied configuration", nil, map[string]interface{}{
		"expected": expected,
		"fields":   fields,
	})
}
