package web

import (
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/services"
)

// AddNodeRequest represents the request body for adding a node to a workflow.
type AddNodeRequest struct {
	ID          string            `json:"id,omitempty"`
	Label       string            `json:"label"                 validate:"required"`
	NodeType    models.NodeType   `json:"nodeType,omitempty"    validate:"omitempty,oneof=start end decision process"`
	Status      models.NodeStatus `json:"status,omitempty"      validate:"omitempty,oneof=pending in_progress completed rejected"`
	Description string            `json:"description,omitempty"`
	AssignedTo  string            `json:"assignedTo,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
}

func (r AddNodeRequest) toService() services.AddNodeRequest {
	return services.AddNodeRequest{
		ID:          r.ID,
		Label:       r.Label,
		NodeType:    r.NodeType,
		Status:      r.Status,
		Description: r.Description,
		AssignedTo:  r.AssignedTo,
		Metadata:    r.Metadata,
	}
}

// UpdateNodeRequest represents a partial node update. Status is changed
// through its own endpoint.
type UpdateNodeRequest struct {
	Label       *string          `json:"label,omitempty"       validate:"omitempty,min=1"`
	NodeType    *models.NodeType `json:"nodeType,omitempty"    validate:"omitempty,oneof=start end decision process"`
	Description *string          `json:"description,omitempty"`
	AssignedTo  *string          `json:"assignedTo,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

func (r UpdateNodeRequest) toModel() models.NodeUpdate {
	return models.NodeUpdate{
		Label:       r.Label,
		NodeType:    r.NodeType,
		Description: r.Description,
		AssignedTo:  r.AssignedTo,
		Metadata:    r.Metadata,
	}
}

// UpdateNodeStatusRequest represents the request body for a node status change.
type UpdateNodeStatusRequest struct {
	Status models.NodeStatus `json:"status" validate:"required,oneof=pending in_progress completed rejected"`
}

// AddEdgeRequest represents the request body for connecting two nodes.
type AddEdgeRequest struct {
	ID               string `json:"id,omitempty"`
	Source           string `json:"source"           validate:"required"`
	Target           string `json:"target"           validate:"required,nefield=Source"`
	Role             string `json:"role"             validate:"required"`
	RoleID           string `json:"roleId,omitempty"`
	ApprovalRequired bool   `json:"approvalRequired"`
}

func (r AddEdgeRequest) toService() services.AddEdgeRequest {
	return services.AddEdgeRequest{
		ID:               r.ID,
		Source:           r.Source,
		Target:           r.Target,
		Role:             r.Role,
		RoleID:           r.RoleID,
		ApprovalRequired: r.ApprovalRequired,
	}
}

// UpdateEdgeRequest represents a partial edge update.
type UpdateEdgeRequest struct {
	Role             *string `json:"role,omitempty"             validate:"omitempty,min=1"`
	RoleID           *string `json:"roleId,omitempty"`
	ApprovalRequired *bool   `json:"approvalRequired,omitempty"`
}

func (r UpdateEdgeRequest) toModel() models.EdgeUpdate {
	return models.EdgeUpdate{
		Role:             r.Role,
		RoleID:           r.RoleID,
		ApprovalRequired: r.ApprovalRequired,
	}
}

// DecisionRequest represents an approver's decision on a gated edge.
type DecisionRequest struct {
	Decision   models.Decision `json:"decision"           validate:"required,oneof=approved rejected"`
	ApproverID string          `json:"approverId"         validate:"required"`
	Comments   string          `json:"comments,omitempty"`
}

// TraversableResponse reports whether an edge may be followed.
type TraversableResponse struct {
	EdgeID      string `json:"edgeId"`
	Traversable bool   `json:"traversable"`
}

// ValidationResponse lists the violations of a stored workflow.
type ValidationResponse struct {
	Valid      bool                 `json:"valid"`
	Violations []*models.GraphError `json:"violations"`
}
