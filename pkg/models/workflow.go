package models

import (
	"time"
)

// Workflow is the editable aggregate: document info plus the graph it owns.
// The graph is only reachable through Graph and is never shared with a snapshot.
type Workflow struct {
	ID          string
	Name        string
	Description string
	Version     string
	Status      WorkflowStatus
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time

	graph *Graph
}

// NewWorkflow creates an empty draft workflow.
func NewWorkflow(name, description, version, createdBy string) *Workflow {
	return &Workflow{
		Name:        name,
		Description: description,
		Version:     version,
		Status:      WorkflowStatusDraft,
		CreatedBy:   createdBy,
		graph:       NewGraph(),
	}
}

// Hydrate revalidates a serialized document and builds an editable workflow
// from it. When the document has violations no workflow is returned and the
// error is a *ViolationsError listing all of them.
func Hydrate(doc Document) (*Workflow, error) {
	if violations := doc.Validate(); len(violations) > 0 {
		return nil, AsViolations(violations)
	}

	graph, violations := NewGraphFrom(doc.Nodes, doc.Edges)
	if len(violations) > 0 {
		return nil, AsViolations(violations)
	}

	status := doc.Status
	if status == "" {
		status = WorkflowStatusDraft
	}

	w := &Workflow{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Version:     doc.Version,
		Status:      status,
		CreatedBy:   doc.CreatedBy,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
		graph:       graph,
	}

	if doc.PublishedAt != nil {
		at := *doc.PublishedAt
		w.PublishedAt = &at
	}

	return w, nil
}

// Graph returns the graph owned by the workflow. Edits made through it are
// edits of the workflow.
func (w *Workflow) Graph() *Graph {
	return w.graph
}

// Snapshot captures the workflow as a document. The result shares no memory
// with the workflow, so later edits never leak into it.
func (w *Workflow) Snapshot() Document {
	doc := Document{
		ID:          w.ID,
		Name:        w.Name,
		Description: w.Description,
		Version:     w.Version,
		Status:      w.Status,
		CreatedBy:   w.CreatedBy,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		Nodes:       w.graph.Nodes(),
		Edges:       w.graph.Edges(),
	}

	if w.PublishedAt != nil {
		at := *w.PublishedAt
		doc.PublishedAt = &at
	}

	return doc
}

// IsPublished reports whether the workflow is the active published version.
func (w *Workflow) IsPublished() bool {
	return w.Status == WorkflowStatusPublished
}
