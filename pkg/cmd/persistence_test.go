package cmd

import (
	"log/slog"
	"testing"

	"github.com/dukex/stepflow/pkg/persistence"
	"github.com/dukex/stepflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePersistenceProvider(t *testing.T) {
	tests := map[string]string{
		"./data":                       "file",
		"file:///var/lib/stepflow":     "file",
		"postgres://u:p@db/stepflow":   "postgres",
		"postgresql://u:p@db/stepflow": "postgresql",
		"redis://localhost:6379/0":     "redis",
		"mongodb://localhost":          "mongodb",
	}

	for url, want := range tests {
		assert.Equal(t, want, parsePersistenceProvider(url), url)
	}
}

func TestNewPersistence(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	p, err := NewPersistence(t.Context(), logger, "file://"+t.TempDir())
	require.NoError(t, err)
	assert.IsType(t, &file.Persistence{}, p)

	_, err = NewPersistence(t.Context(), logger, "mongodb://localhost")
	assert.ErrorIs(t, err, persistence.ErrUnsupportedDatabase)
}

func TestNewEventBus(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	bus, err := NewEventBus("gochannel", logger, "")
	require.NoError(t, err)
	assert.NoError(t, bus.Close())

	_, err = NewEventBus("kafka", logger, "")
	assert.Error(t, err)

	_, err = NewEventBus("nats", logger, "")
	assert.Error(t, err)
}
