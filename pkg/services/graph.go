package services

import (
	"context"
	"fmt"

	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// AddNodeRequest describes a node to add. An empty ID is generated.
type AddNodeRequest struct {
	ID          string
	Label       string
	NodeType    models.NodeType
	Status      models.NodeStatus
	Description string
	AssignedTo  string
	Metadata    map[string]any
}

// AddEdgeRequest describes an edge to add. An empty ID is generated.
type AddEdgeRequest struct {
	ID               string
	Source           string
	Target           string
	Role             string
	RoleID           string
	ApprovalRequired bool
}

// AddNode adds a node to a draft workflow.
func (w *Workflow) AddNode(ctx context.Context, workflowID string, req AddNodeRequest) (node *models.StepNode, err error) {
	ctx, span := startSpan(ctx, "workflow.add_node", workflowID)
	defer func() { finishSpan(span, err) }()

	var status []models.NodeStatus
	if req.Status != "" {
		status = append(status, req.Status)
	}

	node, err = models.NewStepNode(req.NodeType, req.Label, status...)
	if err != nil {
		return nil, err
	}

	if req.ID != "" {
		node.ID = req.ID
	}

	node.Description = req.Description
	node.AssignedTo = req.AssignedTo
	node.Metadata = req.Metadata

	_, err = w.edit(ctx, "AddNode", workflowID, true, func(g *models.Graph) error {
		return g.AddNode(*node)
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// UpdateNode changes the descriptive fields of a node.
func (w *Workflow) UpdateNode(ctx context.Context, workflowID, nodeID string, update models.NodeUpdate) (node *models.StepNode, err error) {
	ctx, span := startSpan(ctx, "workflow.update_node", workflowID, attribute.String(otelhelper.NodeIDKey, nodeID))
	defer func() { finishSpan(span, err) }()

	_, err = w.edit(ctx, "UpdateNode", workflowID, true, func(g *models.Graph) error {
		node, err = g.UpdateNode(nodeID, update)

		return err
	})
	if err != nil {
		return nil, err
	}

	return node, nil
}

// RemoveNode removes a node and every edge touching it.
func (w *Workflow) RemoveNode(ctx context.Context, workflowID, nodeID string) (err error) {
	ctx, span := startSpan(ctx, "workflow.remove_node", workflowID, attribute.String(otelhelper.NodeIDKey, nodeID))
	defer func() { finishSpan(span, err) }()

	_, err = w.edit(ctx, "RemoveNode", workflowID, true, func(g *models.Graph) error {
		return g.RemoveNode(nodeID)
	})

	return err
}

// UpdateNodeStatus moves a node through its state machine. Allowed on
// published workflows.
func (w *Workflow) UpdateNodeStatus(ctx context.Context, workflowID, nodeID string, status models.NodeStatus) (node *models.StepNode, err error) {
	ctx, span := startSpan(ctx, "workflow.update_node_status", workflowID,
		attribute.String(otelhelper.NodeIDKey, nodeID),
		attribute.String(otelhelper.NodeStatusKey, string(status)),
	)
	defer func() { finishSpan(span, err) }()

	var from models.NodeStatus

	_, err = w.edit(ctx, "UpdateNodeStatus", workflowID, false, func(g *models.Graph) error {
		if current, ok := g.Node(nodeID); ok {
			from = current.Status
		}

		node, err = g.UpdateNodeStatus(nodeID, status)

		return err
	})
	if err != nil {
		return nil, err
	}

	w.emit(ctx, workflowID, events.NodeStatusChanged{
		BaseEvent: events.NewBaseEvent(events.NodeStatusChangedEvent, workflowID),
		NodeID:    nodeID,
		From:      from,
		To:        node.Status,
	})

	return node, nil
}

// AddEdge connects two existing nodes of a draft workflow.
func (w *Workflow) AddEdge(ctx context.Context, workflowID string, req AddEdgeRequest) (edge *models.ApprovalEdge, err error) {
	ctx, span := startSpan(ctx, "workflow.add_edge", workflowID)
	defer func() { finishSpan(span, err) }()

	edge, err = models.NewApprovalEdge(req.Source, req.Target, req.Role, req.ApprovalRequired)
	if err != nil {
		return nil, err
	}

	if req.ID != "" {
		edge.ID = req.ID
	}

	edge.RoleID = req.RoleID

	_, err = w.edit(ctx, "AddEdge", workflowID, true, func(g *models.Graph) error {
		return g.AddEdge(*edge)
	})
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// UpdateEdge changes the role or gate of an edge.
func (w *Workflow) UpdateEdge(ctx context.Context, workflowID, edgeID string, update models.EdgeUpdate) (edge *models.ApprovalEdge, err error) {
	ctx, span := startSpan(ctx, "workflow.update_edge", workflowID, attribute.String(otelhelper.EdgeIDKey, edgeID))
	defer func() { finishSpan(span, err) }()

	_, err = w.edit(ctx, "UpdateEdge", workflowID, true, func(g *models.Graph) error {
		edge, err = g.UpdateEdge(edgeID, update)

		return err
	})
	if err != nil {
		return nil, err
	}

	return edge, nil
}

// RemoveEdge removes an edge.
func (w *Workflow) RemoveEdge(ctx context.Context, workflowID, edgeID string) (err error) {
	ctx, span := startSpan(ctx, "workflow.remove_edge", workflowID, attribute.String(otelhelper.EdgeIDKey, edgeID))
	defer func() { finishSpan(span, err) }()

	_, err = w.edit(ctx, "RemoveEdge", workflowID, true, func(g *models.Graph) error {
		return g.RemoveEdge(edgeID)
	})

	return err
}

// DecideEdge records the single approval decision of a gated edge. Allowed on
// published workflows.
func (w *Workflow) DecideEdge(
	ctx context.Context,
	workflowID, edgeID string,
	decision models.Decision,
	approverID, comments string,
) (edge *models.ApprovalEdge, err error) {
	ctx, span := startSpan(ctx, "workflow.decide_edge", workflowID,
		attribute.String(otelhelper.EdgeIDKey, edgeID),
		attribute.String(otelhelper.DecisionKey, string(decision)),
	)
	defer func() { finishSpan(span, err) }()

	_, err = w.edit(ctx, "DecideEdge", workflowID, false, func(g *models.Graph) error {
		edge, err = g.DecideEdge(edgeID, decision, approverID, comments)

		return err
	})
	if err != nil {
		return nil, err
	}

	w.logger.InfoContext(ctx, "edge decided",
		"workflow_id", workflowID, "edge_id", edgeID, "decision", decision, "approved_by", approverID)

	w.emit(ctx, workflowID, events.EdgeDecided{
		BaseEvent:  events.NewBaseEvent(events.EdgeDecidedEvent, workflowID),
		EdgeID:     edge.ID,
		Source:     edge.Source,
		Target:     edge.Target,
		Role:       edge.Role,
		Decision:   decision,
		ApprovedBy: edge.ApprovedBy,
		Comments:   edge.Comments,
	})

	return edge, nil
}

// edit loads the workflow, applies fn to its graph and stores the result.
// Nothing is stored when fn fails; graph mutations are atomic so the loaded
// copy is unchanged as well.
func (w *Workflow) edit(
	ctx context.Context,
	op, workflowID string,
	structural bool,
	fn func(g *models.Graph) error,
) (*models.Workflow, error) {
	workflow, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if structural && workflow.IsPublished() {
		return nil, cannotModifyPublished(op, workflowID)
	}

	err = fn(workflow.Graph())
	if err != nil {
		return nil, err
	}

	err = w.save(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to save workflow: %w", err)
	}

	w.logger.DebugContext(ctx, "workflow edited", "workflow_id", workflowID, "op", op)

	return workflow, nil
}
