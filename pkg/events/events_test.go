package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBaseEvent(t *testing.T) {
	event := NewBaseEvent(EdgeDecidedEvent, "wf-1")

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EdgeDecidedEvent, event.Type)
	assert.Equal(t, "wf-1", event.WorkflowID)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, time.Second)
	assert.NotNil(t, event.Metadata)
}

func TestEvents_GetType(t *testing.T) {
	tests := []struct {
		event interface{ GetType() EventType }
		want  EventType
	}{
		{WorkflowSaved{}, WorkflowSavedEvent},
		{WorkflowPublished{}, WorkflowPublishedEvent},
		{WorkflowUnpublished{}, WorkflowUnpublishedEvent},
		{WorkflowDeleted{}, WorkflowDeletedEvent},
		{NodeStatusChanged{}, NodeStatusChangedEvent},
		{EdgeDecided{}, EdgeDecidedEvent},
		{ApprovalDigest{}, ApprovalDigestEvent},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.GetType())
	}
}

func TestEdgeDecided_JSON(t *testing.T) {
	event := EdgeDecided{
		BaseEvent:  NewBaseEvent(EdgeDecidedEvent, "wf-1"),
		EdgeID:     "e1",
		Source:     "start",
		Target:     "review",
		Role:       "Manager",
		Decision:   models.DecisionApproved,
		ApprovedBy: "mgr@co",
	}

	data, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded EdgeDecided
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, "wf-1", decoded.WorkflowID)
	assert.Equal(t, models.DecisionApproved, decoded.Decision)
	assert.Contains(t, string(data), `"type":"edge.decided"`)
	assert.NotContains(t, string(data), `"comments"`)
}
