package editor

import (
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/dukex/stepflow/pkg/services"
	"github.com/dukex/stepflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepositoryStore(t *testing.T) {
	store := NewRepositoryStore(file.NewPersistence(t.TempDir()).WorkflowRepository())

	s := newEditedSession(t, store)

	result := <-s.Save(t.Context())
	require.NoError(t, result.Err)
	require.NotEmpty(t, result.Document.ID)

	id := result.Document.ID

	reopened := NewSession(store, testLogger())
	require.NoError(t, reopened.Open(t.Context(), id))

	doc, err := reopened.Document()
	require.NoError(t, err)
	assert.Equal(t, "Expense approval", doc.Name)
	assert.Len(t, doc.Nodes, 2)
	assert.Len(t, doc.Edges, 1)

	_, err = store.Update(t.Context(), "missing", doc)
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))

	_, err = store.Get(t.Context(), "missing")
	assert.True(t, persistence.IsWorkflowNotFound(err))

	created, err := store.Create(t.Context(), models.Document{ID: "ignored", Name: "Copy"})
	require.NoError(t, err)
	assert.NotEqual(t, "ignored", created.ID)
}

func TestRepositoryStore_PublishedWorkflow(t *testing.T) {
	repo := file.NewPersistence(t.TempDir()).WorkflowRepository()
	store := NewRepositoryStore(repo)

	published := testutil.CreateTestDocument(
		testutil.WithID("wf-published"),
		testutil.WithStatus(models.WorkflowStatusPublished),
		testutil.WithoutDecisions(),
	)
	require.NoError(t, repo.Save(t.Context(), published))

	t.Run("structural edit is rejected", func(t *testing.T) {
		s := NewSession(store, testLogger())
		require.NoError(t, s.Open(t.Context(), "wf-published"))
		require.NoError(t, s.RemoveNode("end"))

		result := <-s.Save(t.Context())
		require.Error(t, result.Err)
		assert.True(t, services.IsConflictError(result.Err))

		stored, err := repo.GetByID(t.Context(), "wf-published")
		require.NoError(t, err)
		assert.Len(t, stored.Nodes, 3)
		assert.Len(t, stored.Edges, 2)
	})

	t.Run("status and decision are saved", func(t *testing.T) {
		s := NewSession(store, testLogger())
		require.NoError(t, s.Open(t.Context(), "wf-published"))

		_, err := s.UpdateNodeStatus("start", models.NodeStatusInProgress)
		require.NoError(t, err)
		_, err = s.DecideEdge("e1", models.DecisionApproved, "mgr@co", "ok")
		require.NoError(t, err)

		result := <-s.Save(t.Context())
		require.NoError(t, result.Err)

		stored, err := repo.GetByID(t.Context(), "wf-published")
		require.NoError(t, err)
		assert.Equal(t, models.WorkflowStatusPublished, stored.Status)
		assert.Equal(t, models.NodeStatusInProgress, stored.Nodes[0].Status)
		assert.Equal(t, models.EdgeStatusApproved, stored.Edges[0].Status)
		assert.Equal(t, "mgr@co", stored.Edges[0].ApprovedBy)
	})
}
