// Package web provides HTTP handlers and REST API endpoints for approval workflows.
package web

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/schema"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

var errInvalidJSON = errors.New("invalid JSON format")

type APIHandlers struct {
	workflowService   *services.Workflow
	publishingService *services.Publishing
	approvalsService  *services.Approvals
	validator         *validator.Validate
}

func NewAPIHandlers(
	workflowService *services.Workflow,
	publishingService *services.Publishing,
	approvalsService *services.Approvals,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		workflowService:   workflowService,
		publishingService: publishingService,
		approvalsService:  approvalsService,
		validator:         validator,
	}
}

// Register mounts every API route on the router.
func (h *APIHandlers) Register(router fiber.Router) {
	router.Get("/health", h.HealthCheck)
	router.Get("/summary", h.GetSummary)
	router.Get("/approvals/pending", h.GetPendingApprovals)
	router.Get("/published/:name", h.GetPublishedWorkflow)

	w := router.Group("/workflows")
	w.Get("/", h.GetWorkflows)
	w.Post("/", h.CreateWorkflow)
	w.Get("/:id", h.GetWorkflow)
	w.Put("/:id", h.UpdateWorkflow)
	w.Delete("/:id", h.DeleteWorkflow)
	w.Post("/:id/publish", h.PublishWorkflow)
	w.Post("/:id/draft", h.CreateDraftFromPublished)
	w.Get("/:id/validate", h.ValidateWorkflow)
	w.Get("/:id/progress", h.GetProgress)
	w.Get("/:id/steps", h.GetSteps)

	w.Post("/:id/nodes", h.AddNode)
	w.Patch("/:id/nodes/:nodeId", h.UpdateNode)
	w.Delete("/:id/nodes/:nodeId", h.RemoveNode)
	w.Put("/:id/nodes/:nodeId/status", h.UpdateNodeStatus)

	w.Post("/:id/edges", h.AddEdge)
	w.Patch("/:id/edges/:edgeId", h.UpdateEdge)
	w.Delete("/:id/edges/:edgeId", h.RemoveEdge)
	w.Post("/:id/edges/:edgeId/decision", h.DecideEdge)
	w.Get("/:id/edges/:edgeId/traversable", h.IsTraversable)
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	req, err := h.parseListWorkflowsRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	result, err := h.workflowService.ListWorkflows(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":     result.Workflows,
		"total_count":   result.TotalCount,
		"has_next_page": result.HasNextPage,
		"pagination": fiber.Map{
			"limit":  req.Limit,
			"offset": req.Offset,
		},
		"sorting": fiber.Map{
			"sort_by":    req.SortBy,
			"sort_order": req.SortOrder,
		},
	})
}

// parseListWorkflowsRequest parses query parameters for listing workflows.
func (h *APIHandlers) parseListWorkflowsRequest(c fiber.Ctx) (*services.ListWorkflowsRequest, error) {
	req := &services.ListWorkflowsRequest{}

	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil {
			return nil, err
		}

		req.Limit = limit
	}

	if offsetStr := c.Query("offset"); offsetStr != "" {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, err
		}

		req.Offset = offset
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		req.Status = &status
	}

	req.Name = c.Query("name")
	req.CreatedBy = c.Query("created_by")
	req.SortBy = c.Query("sort_by")
	req.SortOrder = c.Query("sort_order")

	return req, nil
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	workflow, err := h.workflowService.FetchByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow.Snapshot())
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	doc, err := schema.Decode(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	created, err := h.workflowService.Create(c.Context(), *doc)
	if err != nil {
		return handleServiceError(c, err)
	}

	c.Location("/workflows/" + created.ID)

	return c.Status(fiber.StatusCreated).JSON(created.Snapshot())
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	doc, err := schema.Decode(c.Body())
	if err != nil {
		return handleServiceError(c, err)
	}

	updated, err := h.workflowService.Update(c.Context(), c.Params("id"), *doc)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(updated.Snapshot())
}

func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	err := h.workflowService.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) PublishWorkflow(c fiber.Ctx) error {
	published, err := h.publishingService.PublishWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(published.Snapshot())
}

func (h *APIHandlers) CreateDraftFromPublished(c fiber.Ctx) error {
	draft, err := h.publishingService.CreateDraftFromPublished(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(draft.Snapshot())
}

func (h *APIHandlers) GetPublishedWorkflow(c fiber.Ctx) error {
	name, err := url.PathUnescape(c.Params("name"))
	if err != nil {
		return badRequest(c, "Invalid workflow name")
	}

	workflow, err := h.publishingService.GetPublishedWorkflow(c.Context(), name)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow.Snapshot())
}

func (h *APIHandlers) ValidateWorkflow(c fiber.Ctx) error {
	violations, err := h.workflowService.Validate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(ValidationResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	})
}

func (h *APIHandlers) GetProgress(c fiber.Ctx) error {
	progress, err := h.workflowService.Progress(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(progress)
}

func (h *APIHandlers) GetSteps(c fiber.Ctx) error {
	steps, err := h.workflowService.Steps(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(steps)
}

func (h *APIHandlers) GetPendingApprovals(c fiber.Ctx) error {
	pending, err := h.approvalsService.Pending(c.Context(), c.Query("role"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(pending)
}

func (h *APIHandlers) GetSummary(c fiber.Ctx) error {
	summary, err := h.approvalsService.Summary(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, ok := h.workflowService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Stepflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Stepflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

// bind decodes and validates a JSON request body.
func (h *APIHandlers) bind(c fiber.Ctx, req any) error {
	if err := c.Bind().JSON(req); err != nil {
		return errInvalidJSON
	}

	return h.validator.Struct(req)
}
