package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

type Workflow struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewWorkflow creates a new workflow service. A nil publisher drops events.
func NewWorkflow(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Workflow {
	if publisher == nil {
		publisher = eventbus.Nop{}
	}

	return &Workflow{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "workflow_service"),
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// ListWorkflowsRequest contains options for listing workflows.
type ListWorkflowsRequest struct {
	// Pagination
	Limit  int
	Offset int

	// Filtering
	Status    *models.WorkflowStatus
	Name      string
	CreatedBy string

	// Sorting
	SortBy    string
	SortOrder string
}

// ListWorkflowsResponse contains the result of listing workflows.
type ListWorkflowsResponse struct {
	Workflows   []*models.Document `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}

// ListWorkflows retrieves workflows with filtering, sorting, and pagination.
func (w *Workflow) ListWorkflows(ctx context.Context, req ListWorkflowsRequest) (*ListWorkflowsResponse, error) {
	if req.Status != nil && !req.Status.Valid() {
		return nil, NewValidationError(
			"ListWorkflows",
			"INVALID_STATUS",
			fmt.Sprintf("invalid status '%s'", *req.Status),
			ErrInvalidStatus,
		)
	}

	opts, err := persistence.NormalizeListOptions(persistence.ListWorkflowsOptions{
		Limit:     req.Limit,
		Offset:    req.Offset,
		Status:    req.Status,
		Name:      strings.TrimSpace(req.Name),
		CreatedBy: strings.TrimSpace(req.CreatedBy),
		SortBy:    req.SortBy,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		return nil, mapListError(err)
	}

	result, err := w.persistence.WorkflowRepository().ListWorkflows(ctx, opts)
	if err != nil {
		if mapped := mapListError(err); mapped != err {
			return nil, mapped
		}

		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	workflows := result.Workflows
	if workflows == nil {
		workflows = []*models.Document{}
	}

	return &ListWorkflowsResponse{
		Workflows:   workflows,
		TotalCount:  result.TotalCount,
		HasNextPage: result.HasNextPage,
	}, nil
}

func mapListError(err error) error {
	switch {
	case errors.Is(err, persistence.ErrInvalidSortField):
		return NewValidationError("ListWorkflows", "INVALID_SORT_FIELD",
			"invalid sort field, allowed: created_at, updated_at, name", ErrInvalidSortField)
	case errors.Is(err, persistence.ErrInvalidSortOrder):
		return NewValidationError("ListWorkflows", "INVALID_SORT_ORDER",
			"invalid sort order, allowed: asc, desc", ErrInvalidSortOrder)
	default:
		return err
	}
}

// FetchByID loads and revalidates a workflow. A stored document with
// violations yields an error wrapping *models.ViolationsError.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	return loadWorkflow(ctx, w.persistence.WorkflowRepository(), id)
}

// Validate returns every violation of the stored document without rejecting it.
func (w *Workflow) Validate(ctx context.Context, id string) ([]*models.GraphError, error) {
	doc, err := loadDocument(ctx, w.persistence.WorkflowRepository(), id)
	if err != nil {
		return nil, err
	}

	violations := doc.Validate()
	if violations == nil {
		violations = []*models.GraphError{}
	}

	return violations, nil
}

// Create stores a new draft workflow from a document. Server-owned fields
// (ID, status, timestamps) are ignored.
func (w *Workflow) Create(ctx context.Context, doc models.Document) (workflow *models.Workflow, err error) {
	ctx, span := startSpan(ctx, "workflow.create", "")
	defer func() { finishSpan(span, err) }()

	doc.ID = ""
	doc.Status = models.WorkflowStatusDraft
	doc.PublishedAt = nil

	workflow, err = models.Hydrate(doc)
	if err != nil {
		return nil, err
	}

	snapshot := workflow.Snapshot()

	err = w.persistence.WorkflowRepository().Save(ctx, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	workflow.ID = snapshot.ID
	workflow.CreatedAt = snapshot.CreatedAt
	workflow.UpdatedAt = snapshot.UpdatedAt

	w.logger.InfoContext(ctx, "workflow created", "workflow_id", workflow.ID, "nodes", workflow.Graph().NodeCount())
	w.emitSaved(ctx, workflow, true)

	return workflow, nil
}

// Update replaces the content of a workflow. Lifecycle fields stay as stored.
// A published workflow only accepts documents that advance node statuses or
// record edge decisions.
func (w *Workflow) Update(ctx context.Context, workflowID string, doc models.Document) (workflow *models.Workflow, err error) {
	ctx, span := startSpan(ctx, "workflow.update", workflowID)
	defer func() { finishSpan(span, err) }()

	existing, err := loadDocument(ctx, w.persistence.WorkflowRepository(), workflowID)
	if err != nil {
		return nil, err
	}

	err = CheckPublishedUpdate("Update", existing, &doc)
	if err != nil {
		return nil, err
	}

	doc.ID = workflowID
	doc.Status = existing.Status
	doc.CreatedAt = existing.CreatedAt
	doc.PublishedAt = existing.PublishedAt

	workflow, err = models.Hydrate(doc)
	if err != nil {
		return nil, err
	}

	err = w.save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	w.emitSaved(ctx, workflow, false)

	return workflow, nil
}

// Delete removes a workflow by its ID.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	if _, err := loadDocument(ctx, w.persistence.WorkflowRepository(), workflowID); err != nil {
		return err
	}

	err := w.persistence.WorkflowRepository().Delete(ctx, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	w.logger.InfoContext(ctx, "workflow deleted", "workflow_id", workflowID)
	w.emit(ctx, workflowID, events.WorkflowDeleted{
		BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, workflowID),
	})

	return nil
}

// Progress projects the status of every node of the workflow.
func (w *Workflow) Progress(ctx context.Context, workflowID string) (models.GraphProgress, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return models.GraphProgress{}, err
	}

	return models.ProjectGraph(workflow.Graph()), nil
}

// Steps lists the workflow steps in traversal order.
func (w *Workflow) Steps(ctx context.Context, workflowID string) ([]models.Step, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	return workflow.Graph().Steps(), nil
}

// IsTraversable reports whether the edge can be followed.
func (w *Workflow) IsTraversable(ctx context.Context, workflowID, edgeID string) (bool, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return false, err
	}

	return workflow.Graph().IsTraversable(edgeID)
}

func (w *Workflow) save(ctx context.Context, workflow *models.Workflow) error {
	snapshot := workflow.Snapshot()

	err := w.persistence.WorkflowRepository().Save(ctx, &snapshot)
	if err != nil {
		return err
	}

	workflow.ID = snapshot.ID
	workflow.CreatedAt = snapshot.CreatedAt
	workflow.UpdatedAt = snapshot.UpdatedAt

	return nil
}

func (w *Workflow) emitSaved(ctx context.Context, workflow *models.Workflow, created bool) {
	w.emit(ctx, workflow.ID, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, workflow.ID),
		Name:      workflow.Name,
		Version:   workflow.Version,
		Status:    workflow.Status,
		NodeCount: workflow.Graph().NodeCount(),
		EdgeCount: workflow.Graph().EdgeCount(),
		Created:   created,
	})
}

// emit publishes after the change is stored; a failed publish is logged only.
func (w *Workflow) emit(ctx context.Context, key string, event eventbus.Event) {
	publish(ctx, w.publisher, w.logger, key, event)
}

func publish(ctx context.Context, publisher eventbus.EventPublisher, logger *slog.Logger, key string, event eventbus.Event) {
	err := publisher.Publish(ctx, key, event)
	if err != nil {
		logger.WarnContext(ctx, "failed to publish event", "event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

func loadDocument(ctx context.Context, repo persistence.WorkflowRepository, id string) (*models.Document, error) {
	doc, err := repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if doc == nil {
		return nil, persistence.NewWorkflowError("GetByID", id, ErrWorkflowNotFound)
	}

	return doc, nil
}

func loadWorkflow(ctx context.Context, repo persistence.WorkflowRepository, id string) (*models.Workflow, error) {
	doc, err := loadDocument(ctx, repo, id)
	if err != nil {
		return nil, err
	}

	workflow, err := models.Hydrate(*doc)
	if err != nil {
		return nil, fmt.Errorf("stored workflow %s is invalid: %w", id, err)
	}

	return workflow, nil
}

// CheckPublishedUpdate reports whether doc may replace the stored document
// existing. Drafts accept anything. A published workflow rejects structural
// changes with ErrCannotModifyPublished and status changes its node and edge
// state machines do not allow with the first models.ErrInvalidTransition found.
func CheckPublishedUpdate(op string, existing, doc *models.Document) error {
	if existing.Status != models.WorkflowStatusPublished {
		return nil
	}

	if !models.SameStructure(existing, doc) {
		return cannotModifyPublished(op, existing.ID)
	}

	if violations := models.CheckProgress(existing, doc); len(violations) > 0 {
		return violations[0]
	}

	return nil
}

func cannotModifyPublished(op, workflowID string) error {
	return NewConflictError(op, "CANNOT_MODIFY_PUBLISHED",
		fmt.Sprintf("workflow %s is published; create a draft to change its structure", workflowID),
		ErrCannotModifyPublished)
}
