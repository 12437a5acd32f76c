package services

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
)

// PendingApproval is a gated edge still waiting for its decision.
type PendingApproval struct {
	WorkflowID   string `json:"workflowId" yaml:"workflowId"`
	WorkflowName string `json:"workflowName" yaml:"workflowName"`
	EdgeID       string `json:"edgeId" yaml:"edgeId"`
	FromStepID   string `json:"fromStepId" yaml:"fromStepId"`
	FromStep     string `json:"fromStep" yaml:"fromStep"`
	StepID       string `json:"stepId" yaml:"stepId"`
	Step         string `json:"step" yaml:"step"`
	Role         string `json:"role" yaml:"role"`
	RoleID       string `json:"roleId,omitempty" yaml:"roleId,omitempty"`
	RequestedBy  string `json:"requestedBy" yaml:"requestedBy"`
}

// Summary counts workflows by status and the approvals still pending.
type Summary struct {
	TotalWorkflows   int `json:"totalWorkflows" yaml:"totalWorkflows"`
	Drafts           int `json:"drafts" yaml:"drafts"`
	Published        int `json:"published" yaml:"published"`
	Unpublished      int `json:"unpublished" yaml:"unpublished"`
	PendingApprovals int `json:"pendingApprovals" yaml:"pendingApprovals"`
}

// Approvals answers cross-workflow questions about outstanding decisions.
type Approvals struct {
	persistence persistence.Persistence
}

func NewApprovals(persistence persistence.Persistence) *Approvals {
	return &Approvals{persistence: persistence}
}

// Pending lists every pending gated edge of the live (draft or published)
// workflows, optionally restricted to one role.
func (a *Approvals) Pending(ctx context.Context, role string) ([]PendingApproval, error) {
	docs, err := a.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	slices.SortStableFunc(docs, func(x, y *models.Document) int {
		return cmp.Or(cmp.Compare(x.Name, y.Name), cmp.Compare(x.ID, y.ID))
	})

	pending := make([]PendingApproval, 0)

	for _, doc := range docs {
		if doc.Status == models.WorkflowStatusUnpublished {
			continue
		}

		pending = append(pending, pendingIn(doc, role)...)
	}

	return pending, nil
}

// Summary computes workflow and approval counts.
func (a *Approvals) Summary(ctx context.Context) (*Summary, error) {
	docs, err := a.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	summary := &Summary{TotalWorkflows: len(docs)}

	for _, doc := range docs {
		switch doc.Status {
		case models.WorkflowStatusPublished:
			summary.Published++
		case models.WorkflowStatusUnpublished:
			summary.Unpublished++

			continue
		case models.WorkflowStatusDraft, "":
			summary.Drafts++
		}

		summary.PendingApprovals += len(pendingIn(doc, ""))
	}

	return summary, nil
}

func pendingIn(doc *models.Document, role string) []PendingApproval {
	labels := make(map[string]string, len(doc.Nodes))
	for _, node := range doc.Nodes {
		labels[node.ID] = node.Label
	}

	var pending []PendingApproval

	for _, edge := range doc.Edges {
		if !edge.ApprovalRequired || edge.Status != models.EdgeStatusPending {
			continue
		}

		if role != "" && edge.Role != role {
			continue
		}

		pending = append(pending, PendingApproval{
			WorkflowID:   doc.ID,
			WorkflowName: doc.Name,
			EdgeID:       edge.ID,
			FromStepID:   edge.Source,
			FromStep:     labels[edge.Source],
			StepID:       edge.Target,
			Step:         labels[edge.Target],
			Role:         edge.Role,
			RoleID:       edge.RoleID,
			RequestedBy:  doc.CreatedBy,
		})
	}

	return pending
}
