package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/postgresql"
	"github.com/dukex/stepflow/pkg/testutil"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	// Drop tables in reverse dependency order (children first, parents last)
	for _, table := range []string{"workflow_edges", "workflow_nodes", "workflows", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("stepflow_test"),
			postgres.WithUsername("stepflow"),
			postgres.WithPassword("stepflow"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		dropDb(ctx, t, databaseURL)

		err = p.Close(ctx)
		require.NoError(t, err)

		cancel()
	})

	return p, ctx, databaseURL
}

func TestNewPersistence_Migrations(t *testing.T) {
	_, ctx, databaseURL := setupTestDB(t)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		err := db.Close()
		require.NoError(t, err)
	}()

	for _, table := range []string{"workflows", "workflow_nodes", "workflow_edges", "schema_migrations"} {
		var exists bool

		err = db.QueryRowContext(ctx, `SELECT EXISTS (SELECT FROM
information_schema.tables WHERE table_name = $1)`, table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	var version int

	err = db.QueryRowContext(ctx, "SELECT MAX(version) FROM schema_migrations").Scan(&version)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
}

func TestNewPersistence_HealthCheck(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	err := p.HealthCheck(ctx)
	assert.NoError(t, err)
}

func TestNewPersistence_SaveAndRetrieveWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	doc := testutil.CreateTestDocument(testutil.WithID(""))
	require.NoError(t, repo.Save(ctx, doc))
	require.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	retrieved, err := repo.GetByID(ctx, doc.ID)
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, doc.Name, retrieved.Name)
	assert.Equal(t, doc.CreatedBy, retrieved.CreatedBy)
	assert.Equal(t, models.WorkflowStatusDraft, retrieved.Status)

	require.Len(t, retrieved.Nodes, 3)
	assert.Equal(t, []string{"start", "review", "end"}, []string{retrieved.Nodes[0].ID, retrieved.Nodes[1].ID, retrieved.Nodes[2].ID})
	assert.Equal(t, "mgr@co", retrieved.Nodes[1].AssignedTo)
	assert.Equal(t, map[string]any{"templateIds": []any{"tpl-1"}}, retrieved.Nodes[1].Metadata)
	require.NotNil(t, retrieved.Nodes[0].CompletedAt)
	assert.True(t, doc.Nodes[0].CompletedAt.Equal(*retrieved.Nodes[0].CompletedAt))
	assert.Nil(t, retrieved.Nodes[2].CompletedAt)

	require.Len(t, retrieved.Edges, 2)
	assert.Equal(t, "role-7", retrieved.Edges[0].RoleID)
	assert.Equal(t, models.EdgeStatusApproved, retrieved.Edges[0].Status)
	assert.Equal(t, "mgr@co", retrieved.Edges[0].ApprovedBy)
	require.NotNil(t, retrieved.Edges[0].ApprovedAt)
	assert.False(t, retrieved.Edges[1].ApprovalRequired)
	assert.Nil(t, retrieved.Edges[1].ApprovedAt)

	_, err = models.Hydrate(*retrieved)
	assert.NoError(t, err)
}

func TestNewPersistence_GetByID_Missing(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	doc, err := p.WorkflowRepository().GetByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, doc)
}

func TestNewPersistence_UpdateWorkflow(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	doc := testutil.CreateTestDocument(testutil.WithID("wf-update"))
	require.NoError(t, repo.Save(ctx, doc))

	createdAt := doc.CreatedAt

	doc.Name = "Renamed"
	doc.Nodes = doc.Nodes[:2]
	doc.Edges = doc.Edges[:1]
	publishedAt := time.Now().UTC()
	doc.Status = models.WorkflowStatusPublished
	doc.PublishedAt = &publishedAt

	require.NoError(t, repo.Save(ctx, doc))

	retrieved, err := repo.GetByID(ctx, "wf-update")
	require.NoError(t, err)
	require.NotNil(t, retrieved)

	assert.Equal(t, "Renamed", retrieved.Name)
	assert.Equal(t, models.WorkflowStatusPublished, retrieved.Status)
	assert.NotNil(t, retrieved.PublishedAt)
	assert.Len(t, retrieved.Nodes, 2)
	assert.Len(t, retrieved.Edges, 1)
	assert.WithinDuration(t, createdAt, retrieved.CreatedAt, time.Millisecond)
}

func TestNewPersistence_ListWorkflows(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkflowRepository()

	for _, id := range []string{"wf-a", "wf-b", "wf-c"} {
		doc := testutil.CreateTestDocument(testutil.WithID(id), testutil.WithName("Workflow "+id))

		if id == "wf-b" {
			testutil.WithStatus(models.WorkflowStatusPublished)(doc)
		}

		require.NoError(t, repo.Save(ctx, doc))
	}

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "name", SortOrder: "asc", Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Workflows, 2)
	assert.Equal(t, int64(3), page.TotalCount)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, "wf-a", page.Workflows[0].ID)
	assert.Len(t, page.Workflows[0].Nodes, 3)

	published := models.WorkflowStatusPublished
	filtered, err := repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{Status: &published})
	require.NoError(t, err)
	require.Len(t, filtered.Workflows, 1)
	assert.Equal(t, "wf-b", filtered.Workflows[0].ID)
	assert.False(t, filtered.HasNextPage)

	_, err = repo.ListWorkflows(ctx, persistence.ListWorkflowsOptions{SortBy: "status"})
	assert.True(t, persistence.IsInvalidSortField(err))
}

func TestNewPersistence_DeleteWorkflow(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)
	repo := p.WorkflowRepository()

	require.NoError(t, repo.Save(ctx, testutil.CreateTestDocument(testutil.WithID("wf-delete"))))
	require.NoError(t, repo.Delete(ctx, "wf-delete"))

	doc, err := repo.GetByID(ctx, "wf-delete")
	require.NoError(t, err)
	assert.Nil(t, doc)

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() {
		require.NoError(t, db.Close())
	}()

	var count int

	err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM workflow_nodes WHERE workflow_id = $1", "wf-delete").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}
