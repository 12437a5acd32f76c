package services

import (
	"errors"
	"testing"

	"github.com/dukex/stepflow/pkg/mocks"
	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestApprovals_PendingAndSummary(t *testing.T) {
	p := file.NewPersistence(t.TempDir())
	repo := p.WorkflowRepository()

	docs := []models.Document{testDocument("Bravo"), testDocument("Alpha"), testDocument("Superseded")}
	docs[0].ID = "wf-b"
	docs[0].Status = models.WorkflowStatusPublished
	docs[1].ID = "wf-a"
	docs[1].Status = models.WorkflowStatusDraft
	docs[1].Edges[1].ApprovalRequired = true
	docs[1].Edges[1].Role = "Finance"
	docs[2].ID = "wf-old"
	docs[2].Status = models.WorkflowStatusUnpublished

	for i := range docs {
		require.NoError(t, repo.Save(t.Context(), &docs[i]))
	}

	approvals := NewApprovals(p)

	pending, err := approvals.Pending(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, pending, 3)

	assert.Equal(t, PendingApproval{
		WorkflowID:   "wf-a",
		WorkflowName: "Alpha",
		EdgeID:       "e1",
		FromStepID:   "start",
		FromStep:     "Submit",
		StepID:       "review",
		Step:         "Manager review",
		Role:         "Manager",
		RequestedBy:  "requester@co",
	}, pending[0])
	assert.Equal(t, "Finance", pending[1].Role)
	assert.Equal(t, "wf-b", pending[2].WorkflowID)

	finance, err := approvals.Pending(t.Context(), "Finance")
	require.NoError(t, err)
	require.Len(t, finance, 1)
	assert.Equal(t, "e2", finance[0].EdgeID)

	summary, err := approvals.Summary(t.Context())
	require.NoError(t, err)
	assert.Equal(t, Summary{TotalWorkflows: 3, Drafts: 1, Published: 1, Unpublished: 1, PendingApprovals: 3}, *summary)
}

func TestApprovals_DecidedEdgesAreNotPending(t *testing.T) {
	service, p := newTestWorkflowService(t)
	id := createTestWorkflow(t, service)

	_, err := service.DecideEdge(t.Context(), id, "e1", models.DecisionRejected, "mgr@co", "no budget")
	require.NoError(t, err)

	pending, err := NewApprovals(p).Pending(t.Context(), "")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestApprovals_RepositoryError(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("GetAll", mock.Anything).Return(nil, errors.New("connection refused"))

	p := &mocks.MockPersistence{}
	p.On("WorkflowRepository").Return(repo)

	_, err := NewApprovals(p).Summary(t.Context())
	assert.ErrorContains(t, err, "connection refused")
}
