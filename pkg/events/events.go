// Package events defines the domain events published when workflows change.
package events

import (
	"time"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every stepflow event.
const Topic = "stepflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowSavedEvent       EventType = "workflow.saved"
	WorkflowPublishedEvent   EventType = "workflow.published"
	WorkflowUnpublishedEvent EventType = "workflow.unpublished"
	WorkflowDeletedEvent     EventType = "workflow.deleted"

	// Graph events.
	NodeStatusChangedEvent EventType = "node.status.changed"
	EdgeDecidedEvent       EventType = "edge.decided"

	// Scheduled events.
	ApprovalDigestEvent EventType = "approval.digest"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowSaved struct {
	BaseEvent

	Name      string                `json:"name"`
	Version   string                `json:"version"`
	Status    models.WorkflowStatus `json:"status"`
	NodeCount int                   `json:"node_count"`
	EdgeCount int                   `json:"edge_count"`
	Created   bool                  `json:"created"`
}

func (w WorkflowSaved) GetType() EventType {
	return WorkflowSavedEvent
}

type WorkflowPublished struct {
	BaseEvent

	Name        string    `json:"name"`
	Version     string    `json:"version"`
	PublishedAt time.Time `json:"published_at"`
	// Replaced is the previously published workflow with the same name, if any.
	Replaced string `json:"replaced,omitempty"`
}

func (w WorkflowPublished) GetType() EventType {
	return WorkflowPublishedEvent
}

type WorkflowUnpublished struct {
	BaseEvent

	Name string `json:"name"`
}

func (w WorkflowUnpublished) GetType() EventType {
	return WorkflowUnpublishedEvent
}

type WorkflowDeleted struct {
	BaseEvent
}

func (w WorkflowDeleted) GetType() EventType {
	return WorkflowDeletedEvent
}

type NodeStatusChanged struct {
	BaseEvent

	NodeID string            `json:"node_id"`
	From   models.NodeStatus `json:"from"`
	To     models.NodeStatus `json:"to"`
}

func (n NodeStatusChanged) GetType() EventType {
	return NodeStatusChangedEvent
}

type EdgeDecided struct {
	BaseEvent

	EdgeID     string          `json:"edge_id"`
	Source     string          `json:"source"`
	Target     string          `json:"target"`
	Role       string          `json:"role"`
	Decision   models.Decision `json:"decision"`
	ApprovedBy string          `json:"approved_by"`
	Comments   string          `json:"comments,omitempty"`
}

func (e EdgeDecided) GetType() EventType {
	return EdgeDecidedEvent
}

// ApprovalDigest is the periodic summary of workflows and outstanding approvals.
type ApprovalDigest struct {
	BaseEvent

	TotalWorkflows   int `json:"total_workflows"`
	Drafts           int `json:"drafts"`
	Published        int `json:"published"`
	Unpublished      int `json:"unpublished"`
	PendingApprovals int `json:"pending_approvals"`
}

func (a ApprovalDigest) GetType() EventType {
	return ApprovalDigestEvent
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
		Metadata:   make(map[string]any),
	}
}
