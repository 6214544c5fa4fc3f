package errors

import (
	"fmt"
	"strings"
)

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}

	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Violation is a single offending field in a user-supplied record.
// Index is -1 when the violation is not tied to one record.
type Violation struct {
	Index   int
	Path    string
	Message string
}

func (v Violation) String() string {
	switch {
	case v.Index < 0 && v.Path == "":
		return v.Message
	case v.Index < 0:
		return fmt.Sprintf("%s: %s", v.Path, v.Message)
	case v.Path == "":
		return fmt.Sprintf("config[%d]: %s", v.Index, v.Message)
	default:
		return fmt.Sprintf("config[%d].%s: %s", v.Index, v.Path, v.Message)
	}
}

// ValidationError captures configuration validation issues. Violations holds
// every problem found, not just the first.
type ValidationError struct {
	Field      string
	Message    string
	Violations []Violation
	Err        error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// NewViolationsError aggregates violations into a single ValidationError.
// It returns nil when the list is empty.
func NewViolationsError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{
		Message:    fmt.Sprintf("%d violation(s) found", len(violations)),
		Violations: append([]Violation(nil), violations...),
	}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Violations) > 0 {
		lines := make([]string, 0, len(e.Violations))
		for _, v := range e.Violations {
			lines = append(lines, v.String())
		}
		return fmt.Sprintf("validation error: %s", strings.Join(lines, "; "))
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
