// Package services implements the workflow operations shared by the HTTP API,
// the CLI and the digest job on top of a persistence backend.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/stepflow/pkg/persistence"
)

// Request errors, reported as 400.
var (
	ErrInvalidSortField = errors.New("invalid sort field")
	ErrInvalidSortOrder = errors.New("invalid sort order")
	ErrInvalidStatus    = errors.New("invalid workflow status")

	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrNodesRequired        = errors.New("workflow must have at least one node")
	ErrStartNodeRequired    = errors.New("workflow must have a start node")
)

// Lifecycle conflicts, reported as 409.
var (
	ErrCannotModifyPublished = errors.New("cannot modify the structure of a published workflow")
	ErrAlreadyPublished      = errors.New("workflow is already published")
)

var ErrWorkflowNotFound = persistence.ErrWorkflowNotFound

// ServiceError attaches the operation and an API error code to one of the
// sentinels above.
type ServiceError struct {
	Op      string
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}

	return e.Op + ": " + e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err is a rejected request.
func IsValidationError(err error) bool {
	for _, target := range []error{
		ErrInvalidSortField,
		ErrInvalidSortOrder,
		ErrInvalidStatus,
		ErrWorkflowNameRequired,
		ErrNodesRequired,
		ErrStartNodeRequired,
	} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// IsConflictError reports whether err is a lifecycle conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotModifyPublished) || errors.Is(err, ErrAlreadyPublished)
}

func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: err}
}

func NewConflictError(op, code, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: code, Message: message, Err: err}
}
