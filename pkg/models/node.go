// Package models defines the approval workflow graph: step nodes, approval edges,
// the graph aggregate that keeps them consistent, and the persisted document.
package models

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NodeType represents the role a step plays in the workflow.
type NodeType string

const (
	NodeTypeStart    NodeType = "start"
	NodeTypeEnd      NodeType = "end"
	NodeTypeDecision NodeType = "decision"
	NodeTypeProcess  NodeType = "process" // Default when unspecified
)

// Valid reports whether t is one of the known node types.
func (t NodeType) Valid() bool {
	switch t {
	case NodeTypeStart, NodeTypeEnd, NodeTypeDecision, NodeTypeProcess:
		return true
	}

	return false
}

// NodeStatus represents the lifecycle state of a step.
type NodeStatus string

const (
	NodeStatusPending    NodeStatus = "pending"
	NodeStatusInProgress NodeStatus = "in_progress"
	NodeStatusCompleted  NodeStatus = "completed" // Terminal
	NodeStatusRejected   NodeStatus = "rejected"  // Terminal
)

// Valid reports whether s is one of the known node statuses.
func (s NodeStatus) Valid() bool {
	switch s {
	case NodeStatusPending, NodeStatusInProgress, NodeStatusCompleted, NodeStatusRejected:
		return true
	}

	return false
}

// IsTerminal reports whether no further transition is allowed from s.
func (s NodeStatus) IsTerminal() bool {
	switch s {
	case NodeStatusCompleted, NodeStatusRejected:
		return true
	case NodeStatusPending, NodeStatusInProgress:
		return false
	}

	return false
}

// CanTransitionTo reports whether the state machine allows moving from s to to.
//
//	pending     -> in_progress | rejected
//	in_progress -> completed   | rejected
func (s NodeStatus) CanTransitionTo(to NodeStatus) bool {
	switch s {
	case NodeStatusPending:
		return to == NodeStatusInProgress || to == NodeStatusRejected
	case NodeStatusInProgress:
		return to == NodeStatusCompleted || to == NodeStatusRejected
	case NodeStatusCompleted, NodeStatusRejected:
		return false
	}

	return false
}

// StepNode is a vertex of the workflow graph.
type StepNode struct {
	ID          string         `json:"id"                    yaml:"id"`
	Label       string         `json:"label"                 yaml:"label"`
	NodeType    NodeType       `json:"nodeType"              yaml:"nodeType"`
	Status      NodeStatus     `json:"status"                yaml:"status"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	AssignedTo  string         `json:"assignedTo,omitempty"  yaml:"assignedTo,omitempty"`
	CompletedAt *time.Time     `json:"completedAt,omitempty" yaml:"completedAt,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"    yaml:"metadata,omitempty"` // Opaque collaborator data, passed through
}

// NewStepNode creates a node with a fresh ID. An empty node type defaults to
// process and an omitted status defaults to pending.
func NewStepNode(nodeType NodeType, label string, initialStatus ...NodeStatus) (*StepNode, error) {
	status := NodeStatusPending
	if len(initialStatus) > 0 {
		status = initialStatus[0]
	}

	if nodeType == "" {
		nodeType = NodeTypeProcess
	}

	node := &StepNode{
		ID:       uuid.New().String(),
		Label:    label,
		NodeType: nodeType,
		Status:   status,
	}

	if status.IsTerminal() {
		now := time.Now().UTC()
		node.CompletedAt = &now
	}

	if err := node.validate("NewStepNode"); err != nil {
		return nil, err
	}

	return node, nil
}

// SetStatus applies the node state machine. completedAt is stamped when the
// node enters a terminal status.
func (n *StepNode) SetStatus(to NodeStatus) error {
	return n.setStatus(to, time.Now().UTC())
}

func (n *StepNode) setStatus(to NodeStatus, at time.Time) error {
	if n.Status.IsTerminal() {
		return newError(ErrInvalidTransition, "SetStatus", n.ID, "node is already %s", n.Status)
	}

	if !to.Valid() {
		return newError(ErrValidation, "SetStatus", n.ID, "unknown node status %q", to)
	}

	if !n.Status.CanTransitionTo(to) {
		return newError(ErrInvalidTransition, "SetStatus", n.ID, "cannot move node from %s to %s", n.Status, to)
	}

	n.Status = to

	if to.IsTerminal() {
		n.CompletedAt = &at
	} else {
		n.CompletedAt = nil
	}

	return nil
}

// applyDefaults fills in an omitted node type.
func (n *StepNode) applyDefaults() {
	if n.NodeType == "" {
		n.NodeType = NodeTypeProcess
	}
}

// IsStart reports whether the node opens the workflow.
func (n *StepNode) IsStart() bool {
	return n.NodeType == NodeTypeStart
}

// IsEnd reports whether the node closes the workflow.
func (n *StepNode) IsEnd() bool {
	return n.NodeType == NodeTypeEnd
}

// Clone returns a deep copy of the node.
func (n *StepNode) Clone() *StepNode {
	c := *n

	if n.CompletedAt != nil {
		at := *n.CompletedAt
		c.CompletedAt = &at
	}

	c.Metadata = cloneMetadata(n.Metadata)

	return &c
}

// validate checks the invariants that hold for a node on its own.
func (n *StepNode) validate(op string) *GraphError {
	if n.ID == "" {
		return newError(ErrValidation, op, "", "node id is required")
	}

	if strings.TrimSpace(n.Label) == "" {
		return newError(ErrValidation, op, n.ID, "node label is required")
	}

	if !n.NodeType.Valid() {
		return newError(ErrValidation, op, n.ID, "unknown node type %q", n.NodeType)
	}

	if !n.Status.Valid() {
		return newError(ErrValidation, op, n.ID, "unknown node status %q", n.Status)
	}

	if n.CompletedAt != nil && !n.Status.IsTerminal() {
		return newError(ErrValidation, op, n.ID, "completedAt must be absent while node is %s", n.Status)
	}

	return nil
}

// NodeUpdate carries the mutable descriptive fields of a node. Nil fields are
// left untouched.
type NodeUpdate struct {
	Label       *string
	NodeType    *NodeType
	Description *string
	AssignedTo  *string
	Metadata    map[string]any
}

func (u NodeUpdate) apply(n *StepNode) {
	if u.Label != nil {
		n.Label = *u.Label
	}

	if u.NodeType != nil {
		n.NodeType = *u.NodeType
	}

	if u.Description != nil {
		n.Description = *u.Description
	}

	if u.AssignedTo != nil {
		n.AssignedTo = *u.AssignedTo
	}

	if u.Metadata != nil {
		n.Metadata = cloneMetadata(u.Metadata)
	}
}

// cloneMetadata copies the opaque collaborator payload. Nested values are
// copied through a JSON-compatible walk so snapshots never alias live data.
func cloneMetadata(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = cloneValue(v)
	}

	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMetadata(t)
	case []any:
		s := make([]any, len(t))
		for i, item := range t {
			s[i] = cloneValue(item)
		}

		return s
	case map[string]string:
		return maps.Clone(t)
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}
