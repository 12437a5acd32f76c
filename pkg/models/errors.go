package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Error kinds raised by graph operations. Concrete errors are *GraphError values
// that unwrap to one of these.
var (
	// ErrValidation indicates malformed input such as an empty label or a self-loop.
	ErrValidation = errors.New("validation error")

	// ErrDuplicateID indicates an ID collision on add.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrNotFound indicates a reference to a node or edge that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDanglingReference indicates an edge endpoint that names a missing node.
	ErrDanglingReference = errors.New("dangling reference")

	// ErrInvalidTransition indicates an illegal status change or decision.
	ErrInvalidTransition = errors.New("invalid transition")
)

// GraphError wraps a graph error kind with the operation and entity involved.
type GraphError struct {
	Kind error
	Op   string
	ID   string
	Msg  string
}

func (e *GraphError) Error() string {
	var b strings.Builder

	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}

	b.WriteString(e.Kind.Error())

	if e.ID != "" {
		fmt.Fprintf(&b, " (%s)", e.ID)
	}

	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}

	return b.String()
}

func (e *GraphError) Unwrap() error {
	return e.Kind
}

// Code returns a stable snake_case identifier for the error kind.
func (e *GraphError) Code() string {
	switch {
	case errors.Is(e.Kind, ErrValidation):
		return "validation_error"
	case errors.Is(e.Kind, ErrDuplicateID):
		return "duplicate_id"
	case errors.Is(e.Kind, ErrNotFound):
		return "not_found"
	case errors.Is(e.Kind, ErrDanglingReference):
		return "dangling_reference"
	case errors.Is(e.Kind, ErrInvalidTransition):
		return "invalid_transition"
	}

	return "unknown"
}

// MarshalJSON renders the violation for API responses and exports.
func (e *GraphError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Code    string `json:"code"`
		Op      string `json:"op,omitempty"`
		ID      string `json:"id,omitempty"`
		Message string `json:"message"`
	}{
		Code:    e.Code(),
		Op:      e.Op,
		ID:      e.ID,
		Message: e.Msg,
	})
}

func newError(kind error, op, id, format string, args ...any) *GraphError {
	return &GraphError{
		Kind: kind,
		Op:   op,
		ID:   id,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// ViolationsError carries every violation found by a validation pass when a
// single error value is needed.
type ViolationsError struct {
	Violations []*GraphError
}

func (e *ViolationsError) Error() string {
	if len(e.Violations) == 1 {
		return "workflow graph is invalid: " + e.Violations[0].Error()
	}

	return fmt.Sprintf("workflow graph is invalid: %d violations, first: %s", len(e.Violations), e.Violations[0].Error())
}

// Unwrap exposes each violation to errors.Is and errors.As.
func (e *ViolationsError) Unwrap() []error {
	errs := make([]error, len(e.Violations))
	for i, v := range e.Violations {
		errs[i] = v
	}

	return errs
}

// AsViolations returns nil when violations is empty, otherwise a *ViolationsError.
func AsViolations(violations []*GraphError) error {
	if len(violations) == 0 {
		return nil
	}

	return &ViolationsError{Violations: violations}
}

// IsValidationError checks if an error is a validation error.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsDuplicateID checks if an error reports an ID collision.
func IsDuplicateID(err error) bool {
	return errors.Is(err, ErrDuplicateID)
}

// IsNotFound checks if an error reports a missing node or edge.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDanglingReference checks if an error reports an edge endpoint naming a missing node.
func IsDanglingReference(err error) bool {
	return errors.Is(err, ErrDanglingReference)
}

// IsInvalidTransition checks if an error reports an illegal status change.
func IsInvalidTransition(err error) bool {
	return errors.Is(err, ErrInvalidTransition)
}
