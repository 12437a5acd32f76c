package models

import (
	"strings"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow document.
type WorkflowStatus string

const (
	WorkflowStatusDraft       WorkflowStatus = "draft"       // Editable, default on create
	WorkflowStatusPublished   WorkflowStatus = "published"   // Current active version
	WorkflowStatusUnpublished WorkflowStatus = "unpublished" // Superseded or withdrawn
)

// Valid reports whether s is one of the known workflow statuses.
func (s WorkflowStatus) Valid() bool {
	switch s {
	case WorkflowStatusDraft, WorkflowStatusPublished, WorkflowStatusUnpublished:
		return true
	}

	return false
}

// Document is the serialized workflow: document info plus ordered nodes and edges.
// It is the wire contract shared by persistence, the HTTP API and exports.
type Document struct {
	ID          string         `json:"id,omitempty"          yaml:"id,omitempty"`
	Name        string         `json:"name"                  yaml:"name"                  validate:"required"`
	Description string         `json:"description"           yaml:"description"`
	Version     string         `json:"version"               yaml:"version"`
	Status      WorkflowStatus `json:"status"                yaml:"status"`
	CreatedBy   string         `json:"createdBy"             yaml:"createdBy"`
	CreatedAt   time.Time      `json:"createdAt,omitzero"    yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt,omitzero"    yaml:"updatedAt,omitempty"`
	PublishedAt *time.Time     `json:"publishedAt,omitempty" yaml:"publishedAt,omitempty"`
	Nodes       []StepNode     `json:"nodes"                 yaml:"nodes"`
	Edges       []ApprovalEdge `json:"edges"                 yaml:"edges"`
}

// Validate checks the document fields and its graph, returning every violation.
func (d *Document) Validate() []*GraphError {
	const op = "Document"

	var violations []*GraphError

	if strings.TrimSpace(d.Name) == "" {
		violations = append(violations, newError(ErrValidation, op, d.ID, "workflow name is required"))
	}

	if d.Status != "" && !d.Status.Valid() {
		violations = append(violations, newError(ErrValidation, op, d.ID, "unknown workflow status %q", d.Status))
	}

	return append(violations, Validate(d.Nodes, d.Edges)...)
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() Document {
	c := *d

	if d.PublishedAt != nil {
		at := *d.PublishedAt
		c.PublishedAt = &at
	}

	c.Nodes = make([]StepNode, len(d.Nodes))
	for i := range d.Nodes {
		c.Nodes[i] = *d.Nodes[i].Clone()
	}

	c.Edges = make([]ApprovalEdge, len(d.Edges))
	for i := range d.Edges {
		c.Edges[i] = *d.Edges[i].Clone()
	}

	return c
}
