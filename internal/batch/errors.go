package batch

import (
	"fmt"
	"strings"

	"blendflow/internal/services"
)

// FieldError is one descriptor problem.
type FieldError struct {
	Field   string
	Message string
	Value   any
}

func (e FieldError) String() string {
	if e.Value != nil {
		return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError aggregates every field problem in a descriptor. It is
// classified as a validation failure.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) add(field, message string, value any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message, Value: value})
}

func (e *ValidationError) empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	if e.empty() {
		return "batch descriptor invalid"
	}
	lines := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		lines[i] = f.String()
	}
	return fmt.Sprintf("batch descriptor invalid (%d errors): %s", len(e.Fields), strings.Join(lines, "; "))
}

// Unwrap exposes the validation marker so services.Classify recognizes it.
func (e *ValidationError) Unwrap() error {
	return services.ErrValidation
}
