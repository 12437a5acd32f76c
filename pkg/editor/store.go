package editor

import (
	"context"
	"fmt"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/services"
)

// Store loads and saves whole workflow documents.
type Store interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	// Create stores a new document and returns it with its assigned ID.
	Create(ctx context.Context, doc models.Document) (*models.Document, error)
	Update(ctx context.Context, id string, doc models.Document) (*models.Document, error)
}

// RepositoryStore is a Store backed directly by a workflow repository.
type RepositoryStore struct {
	repo persistence.WorkflowRepository
}

var _ Store = (*RepositoryStore)(nil)

func NewRepositoryStore(repo persistence.WorkflowRepository) *RepositoryStore {
	return &RepositoryStore{repo: repo}
}

func (s *RepositoryStore) Get(ctx context.Context, id string) (*models.Document, error) {
	doc, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if doc == nil {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return doc, nil
}

func (s *RepositoryStore) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	doc.ID = ""

	if err := s.repo.Save(ctx, &doc); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return &doc, nil
}

// Update applies the same published workflow rules as services.Workflow.Update.
func (s *RepositoryStore) Update(ctx context.Context, id string, doc models.Document) (*models.Document, error) {
	existing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	err = services.CheckPublishedUpdate("Update", existing, &doc)
	if err != nil {
		return nil, err
	}

	doc.ID = id
	doc.Status = existing.Status
	doc.PublishedAt = existing.PublishedAt

	if err := s.repo.Save(ctx, &doc); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return &doc, nil
}
