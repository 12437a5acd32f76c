package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// Publishing handles the draft → published → unpublished lifecycle. At most
// one workflow per name is published at a time.
type Publishing struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewPublishing creates a new workflow publishing service.
func NewPublishing(persistence persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Publishing {
	if publisher == nil {
		publisher = eventbus.Nop{}
	}

	return &Publishing{
		persistence: persistence,
		publisher:   publisher,
		logger:      logger.With("module", "publishing_service"),
	}
}

// PublishWorkflow publishes a draft. A workflow with the same name that was
// published before is moved to unpublished.
func (p *Publishing) PublishWorkflow(ctx context.Context, workflowID string) (workflow *models.Workflow, err error) {
	ctx, span := startSpan(ctx, "workflow.publish", workflowID)
	defer func() { finishSpan(span, err) }()

	repo := p.persistence.WorkflowRepository()

	workflow, err = loadWorkflow(ctx, repo, workflowID)
	if err != nil {
		return nil, err
	}

	if workflow.IsPublished() {
		return nil, NewConflictError("PublishWorkflow", "ALREADY_PUBLISHED",
			fmt.Sprintf("workflow %s is already published", workflowID), ErrAlreadyPublished)
	}

	if err := p.validateForPublishing(workflow); err != nil {
		return nil, err
	}

	previous, err := p.findPublished(ctx, workflow.Name)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	workflow.Status = models.WorkflowStatusPublished
	workflow.PublishedAt = &now

	snapshot := workflow.Snapshot()

	err = repo.Save(ctx, &snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to publish workflow: %w", err)
	}

	workflow.UpdatedAt = snapshot.UpdatedAt

	published := events.WorkflowPublished{
		BaseEvent:   events.NewBaseEvent(events.WorkflowPublishedEvent, workflow.ID),
		Name:        workflow.Name,
		Version:     workflow.Version,
		PublishedAt: now,
	}

	for _, doc := range previous {
		if doc.ID == workflow.ID {
			continue
		}

		doc.Status = models.WorkflowStatusUnpublished

		err = repo.Save(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("failed to unpublish previous version %s: %w", doc.ID, err)
		}

		published.Replaced = doc.ID

		publish(ctx, p.publisher, p.logger, doc.ID, events.WorkflowUnpublished{
			BaseEvent: events.NewBaseEvent(events.WorkflowUnpublishedEvent, doc.ID),
			Name:      doc.Name,
		})
	}

	p.logger.InfoContext(ctx, "workflow published",
		"workflow_id", workflow.ID, "name", workflow.Name, "replaced", published.Replaced)
	publish(ctx, p.publisher, p.logger, workflow.ID, published)

	return workflow, nil
}

// GetPublishedWorkflow returns the published workflow with the given name.
func (p *Publishing) GetPublishedWorkflow(ctx context.Context, name string) (*models.Workflow, error) {
	docs, err := p.findPublished(ctx, name)
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, persistence.NewWorkflowError("GetPublishedWorkflow", name, ErrWorkflowNotFound)
	}

	workflow, err := models.Hydrate(*docs[0])
	if err != nil {
		return nil, fmt.Errorf("stored workflow %s is invalid: %w", docs[0].ID, err)
	}

	return workflow, nil
}

// CreateDraftFromPublished copies a workflow into a new draft with the same
// graph, ready for structural edits.
func (p *Publishing) CreateDraftFromPublished(ctx context.Context, workflowID string) (*models.Workflow, error) {
	repo := p.persistence.WorkflowRepository()

	source, err := loadWorkflow(ctx, repo, workflowID)
	if err != nil {
		return nil, err
	}

	doc := source.Snapshot()
	doc.ID = ""
	doc.Status = models.WorkflowStatusDraft
	doc.PublishedAt = nil
	doc.CreatedAt = time.Time{}

	err = repo.Save(ctx, &doc)
	if err != nil {
		return nil, fmt.Errorf("failed to create draft: %w", err)
	}

	draft, err := models.Hydrate(doc)
	if err != nil {
		return nil, err
	}

	publish(ctx, p.publisher, p.logger, draft.ID, events.WorkflowSaved{
		BaseEvent: events.NewBaseEvent(events.WorkflowSavedEvent, draft.ID),
		Name:      draft.Name,
		Version:   draft.Version,
		Status:    draft.Status,
		NodeCount: draft.Graph().NodeCount(),
		EdgeCount: draft.Graph().EdgeCount(),
		Created:   true,
	})

	return draft, nil
}

func (p *Publishing) findPublished(ctx context.Context, name string) ([]*models.Document, error) {
	status := models.WorkflowStatusPublished

	result, err := p.persistence.WorkflowRepository().ListWorkflows(ctx, persistence.ListWorkflowsOptions{
		Status:    &status,
		Name:      name,
		Limit:     persistence.MaxListLimit,
		SortBy:    "updated_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find published workflows: %w", err)
	}

	return result.Workflows, nil
}

// validateForPublishing ensures a workflow is ready to be published.
func (p *Publishing) validateForPublishing(workflow *models.Workflow) error {
	if strings.TrimSpace(workflow.Name) == "" {
		return NewValidationError("PublishWorkflow", "NAME_REQUIRED", "workflow name is required", ErrWorkflowNameRequired)
	}

	if workflow.Graph().NodeCount() == 0 {
		return NewValidationError("PublishWorkflow", "NODES_REQUIRED", "workflow must have at least one node", ErrNodesRequired)
	}

	for _, node := range workflow.Graph().Nodes() {
		if node.IsStart() {
			return nil
		}
	}

	return NewValidationError("PublishWorkflow", "START_NODE_REQUIRED", "workflow must have a start node", ErrStartNodeRequired)
}
