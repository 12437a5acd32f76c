// Package persistence provides the storage boundary for workflow documents.
package persistence

import (
	"context"

	"github.com/dukex/stepflow/pkg/models"
)

// Persistence is a storage backend for workflow documents.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	HealthCheck(ctx context.Context) error

	Close(ctx context.Context) error
}

// WorkflowRepository stores serialized workflow documents. Repositories never
// interpret the graph; revalidation happens when a document is hydrated.
type WorkflowRepository interface {
	// GetAll returns every stored document.
	GetAll(ctx context.Context) ([]*models.Document, error)

	// ListWorkflows returns a filtered, sorted page of documents.
	ListWorkflows(ctx context.Context, opts ListWorkflowsOptions) (*WorkflowListResult, error)

	// GetByID returns the document with the given ID, or nil and no error when it does not exist.
	GetByID(ctx context.Context, id string) (*models.Document, error)

	// Save inserts or replaces a document. An empty ID is assigned on insert;
	// createdAt and updatedAt are stamped.
	Save(ctx context.Context, doc *models.Document) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, id string) error
}

// ListWorkflowsOptions filters and pages ListWorkflows.
type ListWorkflowsOptions struct {
	Limit     int
	Offset    int
	Status    *models.WorkflowStatus
	Name      string
	CreatedBy string
	SortBy    string // created_at, updated_at or name
	SortOrder string // asc or desc
}

// WorkflowListResult is one page of documents.
type WorkflowListResult struct {
	Workflows   []*models.Document `json:"workflows"`
	TotalCount  int64              `json:"total_count"`
	HasNextPage bool               `json:"has_next_page"`
}
