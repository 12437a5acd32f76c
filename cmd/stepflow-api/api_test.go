package main

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/dukex/stepflow/pkg/channels/gochannel"
	"github.com/dukex/stepflow/pkg/eventbus"
	"github.com/dukex/stepflow/pkg/log"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func setupTestApp(t *testing.T, root string) *fiber.App {
	t.Helper()

	return NewAPI(slog.New(slog.DiscardHandler), file.NewPersistence(root), eventbus.Nop{}).App()
}

func get(t *testing.T, app *fiber.App, path string) (int, string) {
	t.Helper()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
	require.NoError(t, err)

	defer func() {
		err := resp.Body.Close()
		if err != nil {
			t.Logf("Failed to close response body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp.StatusCode, string(body)
}

func TestAPI_RootEndpoint(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	status, body := get(t, app, "/")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Stepflow API", body)
}

func TestAPI_HealthEndpoints(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	status, body := get(t, app, "/livez")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "OK", body)

	status, _ = get(t, app, "/readyz")
	assert.Equal(t, http.StatusOK, status)

	status, _ = get(t, app, "/health")
	assert.Equal(t, http.StatusOK, status)
}

func TestAPI_NotReadyWithoutStorage(t *testing.T) {
	app := setupTestApp(t, filepath.Join(t.TempDir(), "missing"))

	status, _ := get(t, app, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, status)

	status, _ = get(t, app, "/health")
	assert.Equal(t, http.StatusInternalServerError, status)
}

func TestAPI_GetWorkflows_Empty(t *testing.T) {
	app := setupTestApp(t, t.TempDir())

	status, body := get(t, app, "/workflows")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"workflows":[]`)
	assert.Contains(t, body, `"total_count":0`)
}

func TestAPI_AuditsEvents(t *testing.T) {
	output := &syncBuffer{}
	logger := log.New(output, "info")

	pub, sub, err := gochannel.CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub, logger)
	t.Cleanup(func() { _ = bus.Close() })

	require.NoError(t, subscribeAudit(t.Context(), bus, logger))

	app := NewAPI(logger, file.NewPersistence(t.TempDir()), bus).App()

	req := httptest.NewRequest(http.MethodPost, "/workflows", strings.NewReader(`{"name": "Onboarding"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	_ = resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Eventually(t, func() bool {
		return strings.Contains(output.String(), "event_type=workflow.saved")
	}, 5*time.Second, 20*time.Millisecond)
}
