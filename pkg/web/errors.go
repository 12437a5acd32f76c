package web

import (
	"errors"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/schema"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

const problemContentType = "application/problem+json"

// Problem is an RFC 7807 body with the optional violation and schema lists.
type Problem struct {
	*problems.DefaultProblem

	Violations []*models.GraphError `json:"violations,omitempty"`
	Errors     []string             `json:"errors,omitempty"`
}

func newProblem(c fiber.Ctx, status int, problemType string) *Problem {
	return &Problem{
		DefaultProblem: problems.NewStatusProblem(status).
			WithInstance(c.Path()).
			WithType(problemType),
	}
}

func writeProblem(c fiber.Ctx, p *Problem) error {
	return c.Status(p.Status).JSON(p, problemContentType)
}

func badRequest(c fiber.Ctx, detail string) error {
	p := newProblem(c, fiber.StatusBadRequest, "validation_error")
	p.Detail = detail

	return writeProblem(c, p)
}

func internalError(c fiber.Ctx, err error) error {
	p := newProblem(c, fiber.StatusInternalServerError, "internal_error")
	p.DefaultProblem = p.WithError(err)

	return writeProblem(c, p)
}

// handleServiceError maps domain, service and persistence errors to problems.
func handleServiceError(c fiber.Ctx, err error) error {
	var (
		violations *models.ViolationsError
		invalid    *schema.ValidationError
	)

	switch {
	case errors.As(err, &violations):
		p := newProblem(c, fiber.StatusUnprocessableEntity, "invalid_document")
		p.Detail = err.Error()
		p.Violations = violations.Violations

		return writeProblem(c, p)

	case errors.As(err, &invalid):
		p := newProblem(c, fiber.StatusBadRequest, "validation_error")
		p.Detail = schema.ErrInvalidDocument.Error()
		p.Errors = invalid.Errors

		return writeProblem(c, p)

	case models.IsDuplicateID(err):
		return simpleProblem(c, fiber.StatusConflict, "duplicate_id", err)

	case models.IsDanglingReference(err):
		return simpleProblem(c, fiber.StatusUnprocessableEntity, "dangling_reference", err)

	case models.IsInvalidTransition(err):
		return simpleProblem(c, fiber.StatusConflict, "invalid_transition", err)

	case models.IsNotFound(err), persistence.IsWorkflowNotFound(err):
		return simpleProblem(c, fiber.StatusNotFound, "not_found", err)

	case models.IsValidationError(err), services.IsValidationError(err):
		return simpleProblem(c, fiber.StatusBadRequest, "validation_error", err)

	case services.IsConflictError(err):
		return simpleProblem(c, fiber.StatusConflict, "conflict", err)

	default:
		return internalError(c, err)
	}
}

func simpleProblem(c fiber.Ctx, status int, problemType string, err error) error {
	p := newProblem(c, status, problemType)
	p.Detail = err.Error()

	return writeProblem(c, p)
}
