package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu     sync.Mutex
	docs   map[string]models.Document
	saved  []models.Document
	err    error
	gate   chan struct{}
	nextID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]models.Document)}
}

func (f *fakeStore) Get(_ context.Context, id string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, ok := f.docs[id]
	if !ok {
		return nil, persistence.NewWorkflowError("Get", id, persistence.ErrWorkflowNotFound)
	}

	return &doc, nil
}

func (f *fakeStore) Create(ctx context.Context, doc models.Document) (*models.Document, error) {
	return f.put(ctx, doc)
}

func (f *fakeStore) Update(ctx context.Context, id string, doc models.Document) (*models.Document, error) {
	doc.ID = id

	return f.put(ctx, doc)
}

func (f *fakeStore) put(ctx context.Context, doc models.Document) (*models.Document, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}

	if doc.ID == "" {
		f.nextID++
		doc.ID = fmt.Sprintf("wf-%d", f.nextID)
		doc.CreatedAt = time.Now().UTC()
	}

	f.docs[doc.ID] = doc
	f.saved = append(f.saved, doc)

	return &doc, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func stepNode(id string, nodeType models.NodeType) models.StepNode {
	return models.StepNode{ID: id, Label: id, NodeType: nodeType, Status: models.NodeStatusPending}
}

func approvalEdge(id, source, target string) models.ApprovalEdge {
	return models.ApprovalEdge{
		ID: id, Source: source, Target: target, Role: "Manager",
		ApprovalRequired: true, Status: models.EdgeStatusPending,
	}
}

func newEditedSession(t *testing.T, store Store) *Session {
	t.Helper()

	s := NewSession(store, testLogger())
	s.New("Expense approval", "", "1.0", "requester@co")

	require.NoError(t, s.AddNode(stepNode("start", models.NodeTypeStart)))
	require.NoError(t, s.AddNode(stepNode("review", models.NodeTypeProcess)))
	require.NoError(t, s.AddEdge(approvalEdge("e1", "start", "review")))

	return s
}

func TestSession_NotLoaded(t *testing.T) {
	s := NewSession(newFakeStore(), testLogger())

	assert.False(t, s.Loaded())
	assert.ErrorIs(t, s.AddNode(stepNode("a", models.NodeTypeStart)), ErrNotLoaded)
	assert.ErrorIs(t, s.RemoveNode("a"), ErrNotLoaded)
	assert.ErrorIs(t, s.AddEdge(approvalEdge("e1", "a", "b")), ErrNotLoaded)
	assert.ErrorIs(t, s.RemoveEdge("e1"), ErrNotLoaded)
	assert.ErrorIs(t, s.SetInfo("n", "", ""), ErrNotLoaded)

	_, err := s.UpdateNodeStatus("a", models.NodeStatusInProgress)
	require.ErrorIs(t, err, ErrNotLoaded)

	_, err = s.DecideEdge("e1", models.DecisionApproved, "mgr@co", "")
	require.ErrorIs(t, err, ErrNotLoaded)

	_, err = s.Document()
	require.ErrorIs(t, err, ErrNotLoaded)

	result := <-s.Save(t.Context())
	require.ErrorIs(t, result.Err, ErrNotLoaded)
}

func TestSession_Open(t *testing.T) {
	store := newFakeStore()
	store.docs["wf-1"] = models.Document{
		ID:     "wf-1",
		Name:   "Onboarding",
		Status: models.WorkflowStatusDraft,
		Nodes:  []models.StepNode{stepNode("start", models.NodeTypeStart), stepNode("it", models.NodeTypeProcess)},
		Edges:  []models.ApprovalEdge{approvalEdge("e1", "start", "it")},
	}

	s := NewSession(store, testLogger())
	require.NoError(t, s.Open(t.Context(), "wf-1"))
	assert.True(t, s.Loaded())

	traversable, err := s.IsTraversable("e1")
	require.NoError(t, err)
	assert.False(t, traversable)

	violations, err := s.Validate()
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestSession_Open_Failures(t *testing.T) {
	store := newFakeStore()
	store.docs["corrupt"] = models.Document{
		ID:    "corrupt",
		Name:  "Corrupt",
		Nodes: []models.StepNode{stepNode("a", models.NodeTypeStart), stepNode("a", models.NodeTypeEnd)},
		Edges: []models.ApprovalEdge{approvalEdge("e1", "a", "ghost")},
	}

	s := newEditedSession(t, store)

	err := s.Open(t.Context(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
	assert.False(t, s.Loaded())

	err = s.Open(t.Context(), "corrupt")
	require.Error(t, err)
	assert.False(t, s.Loaded())

	var violations *models.ViolationsError
	require.ErrorAs(t, err, &violations)
	assert.Len(t, violations.Violations, 2)
	assert.True(t, models.IsDuplicateID(err))
	assert.True(t, models.IsDanglingReference(err))
}

func TestSession_Save_CreateRecordsID(t *testing.T) {
	store := newFakeStore()
	s := newEditedSession(t, store)

	result := <-s.Save(t.Context())
	require.NoError(t, result.Err)
	assert.Equal(t, "wf-1", result.Document.ID)

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, "wf-1", doc.ID)

	require.NoError(t, s.SetInfo("Expense approval", "v2", "2.0"))

	result = <-s.Save(t.Context())
	require.NoError(t, result.Err)
	assert.Equal(t, "wf-1", result.Document.ID)
	assert.Len(t, store.docs, 1)
	assert.Equal(t, "2.0", store.docs["wf-1"].Version)
}

func TestSession_Save_SnapshotsAtCallTime(t *testing.T) {
	store := newFakeStore()
	store.gate = make(chan struct{})
	s := newEditedSession(t, store)

	pending := s.Save(t.Context())

	require.NoError(t, s.AddNode(stepNode("end", models.NodeTypeEnd)))
	_, err := s.UpdateNodeStatus("start", models.NodeStatusInProgress)
	require.NoError(t, err)

	close(store.gate)

	result := <-pending
	require.NoError(t, result.Err)

	assert.Len(t, result.Document.Nodes, 2)
	assert.Equal(t, models.NodeStatusPending, result.Document.Nodes[0].Status)

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 3)
	assert.Equal(t, models.NodeStatusInProgress, doc.Nodes[0].Status)
}

func TestSession_Save_FailureKeepsState(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("connection refused")
	s := newEditedSession(t, store)

	before, err := s.Document()
	require.NoError(t, err)

	result := <-s.Save(t.Context())
	require.ErrorContains(t, result.Err, "connection refused")
	assert.Nil(t, result.Document)

	after, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, after.ID)

	store.mu.Lock()
	store.err = nil
	store.mu.Unlock()

	result = <-s.Save(t.Context())
	require.NoError(t, result.Err)
	assert.Equal(t, before.Nodes, result.Document.Nodes)
	assert.Equal(t, before.Edges, result.Document.Edges)
}

func TestSession_RejectedMutationLeavesGraph(t *testing.T) {
	s := newEditedSession(t, newFakeStore())

	before, err := s.Document()
	require.NoError(t, err)

	assert.True(t, models.IsDuplicateID(s.AddNode(stepNode("review", models.NodeTypeProcess))))
	assert.True(t, models.IsDanglingReference(s.AddEdge(approvalEdge("e2", "review", "ghost"))))

	_, err = s.UpdateNodeStatus("review", models.NodeStatusCompleted)
	assert.True(t, models.IsInvalidTransition(err))

	after, err := s.Document()
	require.NoError(t, err)
	assert.Equal(t, before, after)

	progress, err := s.Progress()
	require.NoError(t, err)
	assert.Equal(t, 2, progress.Total)
}

func TestSession_DecideAndRemove(t *testing.T) {
	s := newEditedSession(t, newFakeStore())

	edge, err := s.DecideEdge("e1", models.DecisionApproved, "mgr@co", "fine")
	require.NoError(t, err)
	assert.Equal(t, models.EdgeStatusApproved, edge.Status)

	role := "Director"
	_, err = s.UpdateEdge("e1", models.EdgeUpdate{Role: &role})
	require.NoError(t, err)

	label := "Director review"
	node, err := s.UpdateNode("review", models.NodeUpdate{Label: &label})
	require.NoError(t, err)
	assert.Equal(t, label, node.Label)

	require.NoError(t, s.RemoveEdge("e1"))
	require.NoError(t, s.RemoveNode("review"))

	doc, err := s.Document()
	require.NoError(t, err)
	assert.Len(t, doc.Nodes, 1)
	assert.Empty(t, doc.Edges)
}
