package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// Violation is one entry of the violation list of a 422 response.
type Violation struct {
	Code    string `json:"code"`
	Op      string `json:"op"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message"`
}

// Error is a non-success API response, decoded from its problem body when
// there is one.
type Error struct {
	StatusCode int
	Type       string
	Title      string
	Detail     string
	Violations []Violation
	Errors     []string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error %d (%s): %s", e.StatusCode, e.Type, e.Detail)
	}

	return fmt.Sprintf("api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Is matches the domain sentinel of the problem type so callers can use the
// same checks as with a local store.
func (e *Error) Is(target error) bool {
	switch e.Type {
	case "not_found":
		return target == persistence.ErrWorkflowNotFound || target == models.ErrNotFound
	case "duplicate_id":
		return target == models.ErrDuplicateID
	case "dangling_reference":
		return target == models.ErrDanglingReference
	case "invalid_transition":
		return target == models.ErrInvalidTransition
	case "validation_error", "invalid_document":
		return target == models.ErrValidation
	}

	return false
}

func newError(statusCode int, body []byte) *Error {
	var problem struct {
		Type       string      `json:"type"`
		Title      string      `json:"title"`
		Detail     string      `json:"detail"`
		Violations []Violation `json:"violations"`
		Errors     []string    `json:"errors"`
	}

	e := &Error{StatusCode: statusCode}

	if err := json.Unmarshal(body, &problem); err != nil {
		e.Detail = string(body)

		return e
	}

	e.Type = problem.Type
	e.Title = problem.Title
	e.Detail = problem.Detail
	e.Violations = problem.Violations
	e.Errors = problem.Errors

	return e
}

// StatusCode returns the HTTP status of an API error, or zero.
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}

	return 0
}
