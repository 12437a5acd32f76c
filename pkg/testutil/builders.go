// Package testutil provides test data builders for workflow documents.
package testutil

import (
	"time"

	"github.com/dukex/stepflow/pkg/models"
)

// CreateTestDocument creates a three step expense workflow with default
// values that can be overridden. The gated first edge is already approved.
func CreateTestDocument(overrides ...func(*models.Document)) *models.Document {
	completedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	approvedAt := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	doc := &models.Document{
		Name:        "Expense approval",
		Description: "Approvals over 1k",
		Version:     "1.0",
		Status:      models.WorkflowStatusDraft,
		CreatedBy:   "admin@co",
		Nodes: []models.StepNode{
			CreateTestNode("start", models.NodeTypeStart, func(n *models.StepNode) {
				n.Label = "Submit"
				n.Status = models.NodeStatusCompleted
				n.CompletedAt = &completedAt
			}),
			CreateTestNode("review", models.NodeTypeProcess, func(n *models.StepNode) {
				n.Label = "Manager review"
				n.AssignedTo = "mgr@co"
				n.Metadata = map[string]any{"templateIds": []any{"tpl-1"}}
			}),
			CreateTestNode("end", models.NodeTypeEnd, func(n *models.StepNode) {
				n.Label = "Done"
			}),
		},
		Edges: []models.ApprovalEdge{
			CreateTestEdge("e1", "start", "review", func(e *models.ApprovalEdge) {
				e.RoleID = "role-7"
				e.ApprovalRequired = true
				e.Status = models.EdgeStatusApproved
				e.ApprovedAt = &approvedAt
				e.ApprovedBy = "mgr@co"
				e.Comments = "ok"
			}),
			CreateTestEdge("e2", "review", "end", func(e *models.ApprovalEdge) {
				e.Role = "Reviewer"
			}),
		},
	}

	for _, override := range overrides {
		override(doc)
	}

	return doc
}

// CreateTestNode creates a pending node labelled after its ID.
func CreateTestNode(id string, nodeType models.NodeType, overrides ...func(*models.StepNode)) models.StepNode {
	node := models.StepNode{
		ID:       id,
		Label:    "Step " + id,
		NodeType: nodeType,
		Status:   models.NodeStatusPending,
	}

	for _, override := range overrides {
		override(&node)
	}

	return node
}

// CreateTestEdge creates an ungated pending edge for the Manager role.
func CreateTestEdge(id, source, target string, overrides ...func(*models.ApprovalEdge)) models.ApprovalEdge {
	edge := models.ApprovalEdge{
		ID:     id,
		Source: source,
		Target: target,
		Role:   "Manager",
		Status: models.EdgeStatusPending,
	}

	for _, override := range overrides {
		override(&edge)
	}

	return edge
}

// WithID sets the document ID.
func WithID(id string) func(*models.Document) {
	return func(d *models.Document) {
		d.ID = id
	}
}

// WithName sets the document name.
func WithName(name string) func(*models.Document) {
	return func(d *models.Document) {
		d.Name = name
	}
}

// WithStatus sets the document status.
func WithStatus(status models.WorkflowStatus) func(*models.Document) {
	return func(d *models.Document) {
		d.Status = status
	}
}

// WithoutDecisions resets every node and edge to pending, as a freshly
// authored document would be.
func WithoutDecisions() func(*models.Document) {
	return func(d *models.Document) {
		for i := range d.Nodes {
			d.Nodes[i].Status = models.NodeStatusPending
			d.Nodes[i].CompletedAt = nil
		}

		for i := range d.Edges {
			d.Edges[i].Status = models.EdgeStatusPending
			d.Edges[i].ApprovedAt = nil
			d.Edges[i].ApprovedBy = ""
			d.Edges[i].Comments = ""
		}
	}
}
