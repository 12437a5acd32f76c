package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/google/uuid"
)

const workflowColumns = `
			id
		  , name
		  , description
		  , version
		  , status
		  , created_by
		  , created_at
		  , updated_at
		  , published_at`

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows from the database.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Document, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	docs := make([]*models.Document, 0)

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, doc := range docs {
		if err := r.loadGraph(ctx, doc); err != nil {
			return nil, err
		}
	}

	return docs, nil
}

// ListWorkflows returns a filtered, sorted page of workflows.
func (r *WorkflowRepository) ListWorkflows(ctx context.Context, opts persistence.ListWorkflowsOptions) (*persistence.WorkflowListResult, error) {
	query, args, err := r.buildListQuery(opts)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	defer r.closeRows(ctx, rows)

	var (
		docs       = make([]*models.Document, 0)
		totalCount int64
	)

	for rows.Next() {
		var doc models.Document

		err := rows.Scan(
			&doc.ID,
			&doc.Name,
			&doc.Description,
			&doc.Version,
			&doc.Status,
			&doc.CreatedBy,
			&doc.CreatedAt,
			&doc.UpdatedAt,
			&doc.PublishedAt,
			&totalCount,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		docs = append(docs, &doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	for _, doc := range docs {
		if err := r.loadGraph(ctx, doc); err != nil {
			return nil, err
		}
	}

	normalized, _ := persistence.NormalizeListOptions(opts)

	return &persistence.WorkflowListResult{
		Workflows:   docs,
		TotalCount:  totalCount,
		HasNextPage: int64(normalized.Offset+len(docs)) < totalCount,
	}, nil
}

// buildListQuery renders the list query. Sort parameters come from an allowlist
// and every filter value is a bind parameter.
func (r *WorkflowRepository) buildListQuery(opts persistence.ListWorkflowsOptions) (string, []any, error) {
	opts, err := persistence.NormalizeListOptions(opts)
	if err != nil {
		return "", nil, err
	}

	var (
		where []string
		args  []any
	)

	if opts.Status != nil {
		args = append(args, *opts.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	if opts.CreatedBy != "" {
		args = append(args, opts.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}

	if opts.Name != "" {
		args = append(args, opts.Name)
		where = append(where, fmt.Sprintf("name = $%d", len(args)))
	}

	var b strings.Builder

	b.WriteString("SELECT")
	b.WriteString(workflowColumns)
	b.WriteString("\n\t\t  , COUNT(*) OVER() AS total_count\n\t\tFROM workflows")

	if len(where) > 0 {
		b.WriteString("\n\t\tWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	args = append(args, opts.Limit, opts.Offset)
	fmt.Fprintf(&b, "\n\t\tORDER BY %s %s, id\n\t\tLIMIT $%d OFFSET $%d",
		opts.SortBy, strings.ToUpper(opts.SortOrder), len(args)-1, len(args))

	return b.String(), args, nil
}

// GetByID returns the workflow, or nil when it does not exist.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	query := `SELECT` + workflowColumns + `
		FROM workflows
		WHERE id = $1`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	if err := r.loadGraph(ctx, doc); err != nil {
		return nil, err
	}

	return doc, nil
}

// Save upserts the workflow row and replaces its nodes and edges in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, doc *models.Document) (err error) {
	now := time.Now().UTC()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	doc.UpdatedAt = now

	if doc.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("failed to generate workflow ID: %w", err)
		}

		doc.ID = id.String()
	}

	status := doc.Status
	if status == "" {
		status = models.WorkflowStatusDraft
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO workflows (id, name, description, version, status, created_by, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			version = EXCLUDED.version,
			status = EXCLUDED.status,
			created_by = EXCLUDED.created_by,
			updated_at = EXCLUDED.updated_at,
			published_at = EXCLUDED.published_at
	`,
		doc.ID,
		doc.Name,
		doc.Description,
		doc.Version,
		status,
		doc.CreatedBy,
		doc.CreatedAt,
		doc.UpdatedAt,
		doc.PublishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow base: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", doc.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing edges: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", doc.ID)
	if err != nil {
		return fmt.Errorf("failed to delete existing nodes: %w", err)
	}

	if err = r.saveNodes(ctx, tx, doc); err != nil {
		return fmt.Errorf("failed to save workflow nodes: %w", err)
	}

	if err = r.saveEdges(ctx, tx, doc); err != nil {
		return fmt.Errorf("failed to save workflow edges: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Delete removes a workflow; nodes and edges cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}

func (r *WorkflowRepository) saveNodes(ctx context.Context, tx *sql.Tx, doc *models.Document) error {
	query := `
		INSERT INTO workflow_nodes (workflow_id, id, position, label, node_type, status, description, assigned_to, completed_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	for i, node := range doc.Nodes {
		var metadata sql.NullString

		if node.Metadata != nil {
			data, err := json.Marshal(node.Metadata)
			if err != nil {
				return fmt.Errorf("failed to marshal metadata of node %s: %w", node.ID, err)
			}

			metadata = sql.NullString{String: string(data), Valid: true}
		}

		_, err := tx.ExecContext(ctx, query,
			doc.ID,
			node.ID,
			i,
			node.Label,
			node.NodeType,
			node.Status,
			node.Description,
			node.AssignedTo,
			node.CompletedAt,
			metadata,
		)
		if err != nil {
			return fmt.Errorf("failed to save node %s: %w", node.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) saveEdges(ctx context.Context, tx *sql.Tx, doc *models.Document) error {
	query := `
		INSERT INTO workflow_edges (workflow_id, id, position, source_id, target_id, role, role_id, approval_required, status, approved_at, approved_by, comments)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	for i, edge := range doc.Edges {
		_, err := tx.ExecContext(ctx, query,
			doc.ID,
			edge.ID,
			i,
			edge.Source,
			edge.Target,
			edge.Role,
			edge.RoleID,
			edge.ApprovalRequired,
			edge.Status,
			edge.ApprovedAt,
			edge.ApprovedBy,
			edge.Comments,
		)
		if err != nil {
			return fmt.Errorf("failed to save edge %s: %w", edge.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) loadGraph(ctx context.Context, doc *models.Document) error {
	nodes, err := r.loadNodes(ctx, doc.ID)
	if err != nil {
		return err
	}

	edges, err := r.loadEdges(ctx, doc.ID)
	if err != nil {
		return err
	}

	doc.Nodes = nodes
	doc.Edges = edges

	return nil
}

func (r *WorkflowRepository) loadNodes(ctx context.Context, workflowID string) ([]models.StepNode, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, node_type, status, COALESCE(description, ''), COALESCE(assigned_to, ''), completed_at, metadata
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow nodes: %w", err)
	}

	defer r.closeRows(ctx, rows)

	nodes := make([]models.StepNode, 0)

	for rows.Next() {
		var (
			node         models.StepNode
			metadataJSON []byte
		)

		err := rows.Scan(
			&node.ID,
			&node.Label,
			&node.NodeType,
			&node.Status,
			&node.Description,
			&node.AssignedTo,
			&node.CompletedAt,
			&metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}

		if metadataJSON != nil {
			err := json.Unmarshal(metadataJSON, &node.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata of node %s: %w", node.ID, err)
			}
		}

		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating nodes: %w", err)
	}

	return nodes, nil
}

func (r *WorkflowRepository) loadEdges(ctx context.Context, workflowID string) ([]models.ApprovalEdge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, source_id, target_id, role, COALESCE(role_id, ''), approval_required, status,
			approved_at, COALESCE(approved_by, ''), COALESCE(comments, '')
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY position
	`, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow edges: %w", err)
	}

	defer r.closeRows(ctx, rows)

	edges := make([]models.ApprovalEdge, 0)

	for rows.Next() {
		var edge models.ApprovalEdge

		err := rows.Scan(
			&edge.ID,
			&edge.Source,
			&edge.Target,
			&edge.Role,
			&edge.RoleID,
			&edge.ApprovalRequired,
			&edge.Status,
			&edge.ApprovedAt,
			&edge.ApprovedBy,
			&edge.Comments,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}

		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}

	return edges, nil
}

func (r *WorkflowRepository) closeRows(ctx context.Context, rows *sql.Rows) {
	err := rows.Close()
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

func scanDocument(scanner interface {
	Scan(dest ...any) error
}) (*models.Document, error) {
	var doc models.Document

	err := scanner.Scan(
		&doc.ID,
		&doc.Name,
		&doc.Description,
		&doc.Version,
		&doc.Status,
		&doc.CreatedBy,
		&doc.CreatedAt,
		&doc.UpdatedAt,
		&doc.PublishedAt,
	)
	if err != nil {
		return nil, err
	}

	return &doc, nil
}
