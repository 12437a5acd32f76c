package services

import (
	"testing"

	"github.com/dukex/stepflow/pkg/events"
	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func createTestWorkflow(t *testing.T, service *Workflow) string {
	t.Helper()

	created, err := service.Create(t.Context(), testDocument("Expense approval"))
	require.NoError(t, err)

	return created.ID
}

func TestWorkflow_AddNode(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	node, err := service.AddNode(t.Context(), id, AddNodeRequest{
		ID:         "finance",
		Label:      "Finance review",
		AssignedTo: "cfo@co",
		Metadata:   map[string]any{"templateIds": []any{"tpl-1"}},
	})
	require.NoError(t, err)

	assert.Equal(t, models.NodeTypeProcess, node.NodeType)
	assert.Equal(t, models.NodeStatusPending, node.Status)

	workflow, err := service.FetchByID(t.Context(), id)
	require.NoError(t, err)

	stored, ok := workflow.Graph().Node("finance")
	require.True(t, ok)
	assert.Equal(t, "cfo@co", stored.AssignedTo)
	assert.Equal(t, []any{"tpl-1"}, stored.Metadata["templateIds"])
}

func TestWorkflow_AddNode_Rejected(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	before, err := service.FetchByID(t.Context(), id)
	require.NoError(t, err)

	_, err = service.AddNode(t.Context(), id, AddNodeRequest{ID: "review", Label: "Again"})
	assert.True(t, models.IsDuplicateID(err))

	_, err = service.AddNode(t.Context(), id, AddNodeRequest{ID: "second-start", Label: "Start 2", NodeType: models.NodeTypeStart})
	assert.True(t, models.IsValidationError(err))

	_, err = service.AddNode(t.Context(), id, AddNodeRequest{Label: " "})
	assert.True(t, models.IsValidationError(err))

	after, err := service.FetchByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, before.Snapshot().Nodes, after.Snapshot().Nodes)
}

func TestWorkflow_RemoveNode_Cascades(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	require.NoError(t, service.RemoveNode(t.Context(), id, "review"))

	workflow, err := service.FetchByID(t.Context(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, workflow.Graph().NodeCount())
	assert.Equal(t, 0, workflow.Graph().EdgeCount())

	err = service.RemoveNode(t.Context(), id, "review")
	assert.True(t, models.IsNotFound(err))
}

func TestWorkflow_UpdateNode(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	label := "Line manager review"
	node, err := service.UpdateNode(t.Context(), id, "review", models.NodeUpdate{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, label, node.Label)

	blank := ""
	_, err = service.UpdateNode(t.Context(), id, "review", models.NodeUpdate{Label: &blank})
	assert.True(t, models.IsValidationError(err))

	workflow, err := service.FetchByID(t.Context(), id)
	require.NoError(t, err)

	stored, _ := workflow.Graph().Node("review")
	assert.Equal(t, label, stored.Label)
}

func TestWorkflow_UpdateNodeStatus(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.AnythingOfType("events.WorkflowSaved")).Return(nil)
	bus.On("Publish", mock.Anything, mock.Anything, mock.MatchedBy(func(event events.NodeStatusChanged) bool {
		return event.NodeID == "review" && event.From == models.NodeStatusPending && event.To == models.NodeStatusInProgress
	})).Return(nil).Once()

	service := NewWorkflow(p, bus, testLogger())
	id := createTestWorkflow(t, service)

	node, err := service.UpdateNodeStatus(t.Context(), id, "review", models.NodeStatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, models.NodeStatusInProgress, node.Status)

	_, err = service.UpdateNodeStatus(t.Context(), id, "review", models.NodeStatusPending)
	assert.True(t, models.IsInvalidTransition(err))

	bus.AssertExpectations(t)
}

func TestWorkflow_Edges(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	_, err := service.AddNode(t.Context(), id, AddNodeRequest{ID: "finance", Label: "Finance"})
	require.NoError(t, err)

	edge, err := service.AddEdge(t.Context(), id, AddEdgeRequest{
		ID: "e3", Source: "review", Target: "finance", Role: "Finance", RoleID: "role-9", ApprovalRequired: true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusPending, edge.Status)
	assert.Equal(t, "role-9", edge.RoleID)

	_, err = service.AddEdge(t.Context(), id, AddEdgeRequest{Source: "review", Target: "ghost", Role: "Finance"})
	assert.True(t, models.IsDanglingReference(err))

	_, err = service.AddEdge(t.Context(), id, AddEdgeRequest{Source: "review", Target: "review", Role: "Finance"})
	assert.True(t, models.IsValidationError(err))

	role := "CFO"
	updated, err := service.UpdateEdge(t.Context(), id, "e3", models.EdgeUpdate{Role: &role})
	require.NoError(t, err)
	assert.Equal(t, "CFO", updated.Role)

	require.NoError(t, service.RemoveEdge(t.Context(), id, "e3"))

	err = service.RemoveEdge(t.Context(), id, "e3")
	assert.True(t, models.IsNotFound(err))
}

func TestWorkflow_DecideEdge(t *testing.T) {
	service, _ := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	edge, err := service.DecideEdge(t.Context(), id, "e1", models.DecisionApproved, "mgr@co", "looks good")
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusApproved, edge.Status)
	assert.Equal(t, "mgr@co", edge.ApprovedBy)

	traversable, err := service.IsTraversable(t.Context(), id, "e1")
	require.NoError(t, err)
	assert.True(t, traversable)

	_, err = service.DecideEdge(t.Context(), id, "e1", models.DecisionRejected, "other@co", "")
	assert.True(t, models.IsInvalidTransition(err))

	_, err = service.DecideEdge(t.Context(), id, "e2", models.DecisionApproved, "mgr@co", "")
	assert.True(t, models.IsInvalidTransition(err))

	workflow, err := service.FetchByID(t.Context(), id)
	require.NoError(t, err)

	stored, _ := workflow.Graph().Edge("e1")
	assert.Equal(t, models.EdgeStatusApproved, stored.Status)
	assert.Equal(t, "looks good", stored.Comments)
}

func TestWorkflow_PublishedRejectsStructuralEdits(t *testing.T) {
	service, p := newTestWorkflowService(t)

	doc := testDocument("Expense approval")
	doc.ID = "wf-published"
	doc.Status = models.WorkflowStatusPublished
	require.NoError(t, p.WorkflowRepository().Save(t.Context(), &doc))

	_, err := service.AddNode(t.Context(), "wf-published", AddNodeRequest{Label: "Extra"})
	assert.True(t, IsConflictError(err))

	err = service.RemoveNode(t.Context(), "wf-published", "review")
	assert.True(t, IsConflictError(err))

	err = service.RemoveEdge(t.Context(), "wf-published", "e1")
	assert.True(t, IsConflictError(err))

	_, err = service.UpdateNodeStatus(t.Context(), "wf-published", "start", models.NodeStatusInProgress)
	require.NoError(t, err)

	_, err = service.DecideEdge(t.Context(), "wf-published", "e1", models.DecisionApproved, "mgr@co", "")
	require.NoError(t, err)
}
