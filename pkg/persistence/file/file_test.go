package file

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPersistence(t *testing.T) {
	persistence := NewPersistence("/tmp/test")
	fp := persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)

	persistence = NewPersistence("file:///tmp/test")
	fp = persistence.(*Persistence)
	assert.Equal(t, "/tmp/test", fp.root)
}

func TestPersistence_Close(t *testing.T) {
	persistence := NewPersistence("./test-data")
	err := persistence.Close(t.Context())
	assert.NoError(t, err)
}

func TestPersistence_HealthCheck(t *testing.T) {
	assert.NoError(t, NewPersistence(t.TempDir()).HealthCheck(t.Context()))
	assert.ErrorIs(t, NewPersistence(filepath.Join(t.TempDir(), "missing")).HealthCheck(t.Context()), os.ErrNotExist)
}

func TestPersistence_SaveWorkflow(t *testing.T) {
	testDir := t.TempDir()
	repo := NewPersistence(testDir).WorkflowRepository()

	doc := testutil.CreateTestDocument(testutil.WithID("test-workflow"))

	err := repo.Save(t.Context(), doc)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(testDir, "workflows", "test-workflow.json"))
	assert.False(t, doc.CreatedAt.IsZero())
	assert.False(t, doc.UpdatedAt.IsZero())
}

func TestPersistence_SaveWorkflow_UpdatesTimestamp(t *testing.T) {
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	doc := testutil.CreateTestDocument(testutil.WithID("update-workflow"))
	doc.CreatedAt = time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)

	err := repo.Save(t.Context(), doc)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), doc.CreatedAt)
	assert.True(t, doc.UpdatedAt.After(doc.CreatedAt))
}

func TestPersistence_SaveWorkflow_AssignsID(t *testing.T) {
	repo := NewPersistence(t.TempDir()).WorkflowRepository()

	doc := testutil.CreateTestDocument(testutil.WithID(""))

	require.NoError(t, repo.Save(t.Context(), doc))
	assert.NotEmpty(t, doc.ID)

	loaded, err := repo.GetByID(t.Context(), doc.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}
