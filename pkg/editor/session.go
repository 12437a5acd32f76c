// Package editor implements an editing session over one workflow: load,
// mutate through the graph operations, and save snapshots asynchronously.
package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukex/stepflow/pkg/models"
)

// ErrNotLoaded is returned by every operation of a session with no workflow.
var ErrNotLoaded = errors.New("workflow not loaded")

// SaveResult is delivered once per Save call.
type SaveResult struct {
	Document *models.Document
	Err      error
}

// Session holds the workflow being edited. One actor edits at a time; the
// mutex only guards against the save goroutine recording an assigned ID.
type Session struct {
	store  Store
	logger *slog.Logger

	mu       sync.Mutex
	workflow *models.Workflow
}

func NewSession(store Store, logger *slog.Logger) *Session {
	return &Session{
		store:  store,
		logger: logger.With("module", "editor"),
	}
}

// New starts editing an empty, unsaved workflow.
func (s *Session) New(name, description, version, createdBy string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.workflow = models.NewWorkflow(name, description, version, createdBy)
}

// Open fetches a workflow and makes it editable. The session is unloaded
// while the fetch is outstanding and stays unloaded if it fails or the
// document does not validate.
func (s *Session) Open(ctx context.Context, id string) error {
	s.mu.Lock()
	s.workflow = nil
	s.mu.Unlock()

	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to open workflow %s: %w", id, err)
	}

	workflow, err := models.Hydrate(*doc)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.workflow = workflow
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "Workflow opened", "workflow_id", id, "nodes", workflow.Graph().NodeCount())

	return nil
}

// Loaded reports whether a workflow is available for editing.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.workflow != nil
}

// Document returns a detached snapshot of the workflow.
func (s *Session) Document() (models.Document, error) {
	var doc models.Document

	err := s.with(func(w *models.Workflow) error {
		doc = w.Snapshot()

		return nil
	})

	return doc, err
}

// SetInfo replaces the descriptive fields of the workflow.
func (s *Session) SetInfo(name, description, version string) error {
	return s.with(func(w *models.Workflow) error {
		w.Name = name
		w.Description = description
		w.Version = version

		return nil
	})
}

func (s *Session) AddNode(node models.StepNode) error {
	return s.withGraph(func(g *models.Graph) error {
		return g.AddNode(node)
	})
}

func (s *Session) UpdateNode(id string, update models.NodeUpdate) (*models.StepNode, error) {
	var node *models.StepNode

	err := s.withGraph(func(g *models.Graph) (err error) {
		node, err = g.UpdateNode(id, update)

		return err
	})

	return node, err
}

func (s *Session) RemoveNode(id string) error {
	return s.withGraph(func(g *models.Graph) error {
		return g.RemoveNode(id)
	})
}

func (s *Session) UpdateNodeStatus(id string, status models.NodeStatus) (*models.StepNode, error) {
	var node *models.StepNode

	err := s.withGraph(func(g *models.Graph) (err error) {
		node, err = g.UpdateNodeStatus(id, status)

		return err
	})

	return node, err
}

func (s *Session) AddEdge(edge models.ApprovalEdge) error {
	return s.withGraph(func(g *models.Graph) error {
		return g.AddEdge(edge)
	})
}

func (s *Session) UpdateEdge(id string, update models.EdgeUpdate) (*models.ApprovalEdge, error) {
	var edge *models.ApprovalEdge

	err := s.withGraph(func(g *models.Graph) (err error) {
		edge, err = g.UpdateEdge(id, update)

		return err
	})

	return edge, err
}

func (s *Session) RemoveEdge(id string) error {
	return s.withGraph(func(g *models.Graph) error {
		return g.RemoveEdge(id)
	})
}

func (s *Session) DecideEdge(id string, decision models.Decision, approverID, comments string) (*models.ApprovalEdge, error) {
	var edge *models.ApprovalEdge

	err := s.withGraph(func(g *models.Graph) (err error) {
		edge, err = g.DecideEdge(id, decision, approverID, comments)

		return err
	})

	return edge, err
}

func (s *Session) IsTraversable(edgeID string) (bool, error) {
	var traversable bool

	err := s.withGraph(func(g *models.Graph) (err error) {
		traversable, err = g.IsTraversable(edgeID)

		return err
	})

	return traversable, err
}

// Validate re-checks the whole graph and returns every violation found.
func (s *Session) Validate() ([]*models.GraphError, error) {
	var violations []*models.GraphError

	err := s.withGraph(func(g *models.Graph) error {
		violations = g.Validate()

		return nil
	})

	return violations, err
}

func (s *Session) Progress() (models.GraphProgress, error) {
	var progress models.GraphProgress

	err := s.withGraph(func(g *models.Graph) error {
		progress = models.ProjectGraph(g)

		return nil
	})

	return progress, err
}

// Save snapshots the workflow now and stores the snapshot in the background.
// Edits made after Save returns are not part of this save. A failed save
// leaves the session untouched so the same content can be saved again.
func (s *Session) Save(ctx context.Context) <-chan SaveResult {
	results := make(chan SaveResult, 1)

	s.mu.Lock()
	workflow := s.workflow

	if workflow == nil {
		s.mu.Unlock()

		results <- SaveResult{Err: ErrNotLoaded}
		close(results)

		return results
	}

	snapshot := workflow.Snapshot()
	s.mu.Unlock()

	go func() {
		defer close(results)

		saved, err := s.persist(ctx, snapshot)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to save workflow", "workflow_id", snapshot.ID, "error", err)
			results <- SaveResult{Err: fmt.Errorf("failed to save workflow: %w", err)}

			return
		}

		if snapshot.ID == "" {
			s.mu.Lock()
			if s.workflow == workflow && workflow.ID == "" {
				workflow.ID = saved.ID
				workflow.CreatedAt = saved.CreatedAt
			}
			s.mu.Unlock()
		}

		s.logger.InfoContext(ctx, "Workflow saved", "workflow_id", saved.ID)
		results <- SaveResult{Document: saved}
	}()

	return results
}

// persist creates the workflow on its first save and updates it afterwards.
func (s *Session) persist(ctx context.Context, snapshot models.Document) (*models.Document, error) {
	if snapshot.ID == "" {
		return s.store.Create(ctx, snapshot)
	}

	return s.store.Update(ctx, snapshot.ID, snapshot)
}

func (s *Session) with(fn func(w *models.Workflow) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.workflow == nil {
		return ErrNotLoaded
	}

	return fn(s.workflow)
}

func (s *Session) withGraph(fn func(g *models.Graph) error) error {
	return s.with(func(w *models.Workflow) error {
		return fn(w.Graph())
	})
}
