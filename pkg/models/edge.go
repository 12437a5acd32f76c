package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// EdgeStatus represents the state of an approval gate.
type EdgeStatus string

const (
	EdgeStatusPending  EdgeStatus = "pending"
	EdgeStatusApproved EdgeStatus = "approved" // Terminal
	EdgeStatusRejected EdgeStatus = "rejected" // Terminal
)

// Valid reports whether s is one of the known edge statuses.
func (s EdgeStatus) Valid() bool {
	switch s {
	case EdgeStatusPending, EdgeStatusApproved, EdgeStatusRejected:
		return true
	}

	return false
}

// IsTerminal reports whether the gate has been decided.
func (s EdgeStatus) IsTerminal() bool {
	switch s {
	case EdgeStatusApproved, EdgeStatusRejected:
		return true
	case EdgeStatusPending:
		return false
	}

	return false
}

// Decision is the outcome an approver records on a gate.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// Valid reports whether d is a known decision.
func (d Decision) Valid() bool {
	switch d {
	case DecisionApproved, DecisionRejected:
		return true
	}

	return false
}

// Status returns the edge status a decision leads to.
func (d Decision) Status() EdgeStatus {
	switch d {
	case DecisionApproved:
		return EdgeStatusApproved
	case DecisionRejected:
		return EdgeStatusRejected
	}

	return EdgeStatusPending
}

// ApprovalEdge is a directed, role-scoped connection between two steps.
type ApprovalEdge struct {
	ID               string     `json:"id"                   yaml:"id"`
	Source           string     `json:"source"               yaml:"source"`
	Target           string     `json:"target"               yaml:"target"`
	Role             string     `json:"role"                 yaml:"role"`
	RoleID           string     `json:"roleId,omitempty"     yaml:"roleId,omitempty"`
	ApprovalRequired bool       `json:"approvalRequired"     yaml:"approvalRequired"`
	Status           EdgeStatus `json:"status"               yaml:"status"`
	ApprovedAt       *time.Time `json:"approvedAt,omitempty" yaml:"approvedAt,omitempty"`
	ApprovedBy       string     `json:"approvedBy,omitempty" yaml:"approvedBy,omitempty"`
	Comments         string     `json:"comments,omitempty"   yaml:"comments,omitempty"`
}

// NewApprovalEdge creates a pending edge with a fresh ID.
func NewApprovalEdge(sourceID, targetID, role string, approvalRequired bool) (*ApprovalEdge, error) {
	edge := &ApprovalEdge{
		ID:               uuid.New().String(),
		Source:           sourceID,
		Target:           targetID,
		Role:             role,
		ApprovalRequired: approvalRequired,
		Status:           EdgeStatusPending,
	}

	if err := edge.validate("NewApprovalEdge"); err != nil {
		return nil, err
	}

	return edge, nil
}

// Decide records an approver's decision. Only gated, pending edges accept one.
func (e *ApprovalEdge) Decide(decision Decision, approverID, comments string) error {
	return e.decide(decision, approverID, comments, time.Now().UTC())
}

func (e *ApprovalEdge) decide(decision Decision, approverID, comments string, at time.Time) error {
	if !e.ApprovalRequired {
		return newError(ErrInvalidTransition, "Decide", e.ID, "edge has no approval gate")
	}

	if e.Status != EdgeStatusPending {
		return newError(ErrInvalidTransition, "Decide", e.ID, "edge already %s", e.Status)
	}

	if !decision.Valid() {
		return newError(ErrValidation, "Decide", e.ID, "unknown decision %q", decision)
	}

	if strings.TrimSpace(approverID) == "" {
		return newError(ErrValidation, "Decide", e.ID, "approver is required")
	}

	e.Status = decision.Status()
	e.ApprovedAt = &at
	e.ApprovedBy = approverID
	e.Comments = comments

	return nil
}

// Traversable reports whether the gate, if any, has been satisfied.
func (e *ApprovalEdge) Traversable() bool {
	return !e.ApprovalRequired || e.Status == EdgeStatusApproved
}

// Touches reports whether nodeID is one of the edge endpoints.
func (e *ApprovalEdge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// Clone returns a deep copy of the edge.
func (e *ApprovalEdge) Clone() *ApprovalEdge {
	c := *e

	if e.ApprovedAt != nil {
		at := *e.ApprovedAt
		c.ApprovedAt = &at
	}

	return &c
}

// validate checks the invariants that hold for an edge on its own.
func (e *ApprovalEdge) validate(op string) *GraphError {
	if e.ID == "" {
		return newError(ErrValidation, op, "", "edge id is required")
	}

	if e.Source == "" || e.Target == "" {
		return newError(ErrValidation, op, e.ID, "edge source and target are required")
	}

	if e.Source == e.Target {
		return newError(ErrValidation, op, e.ID, "edge cannot connect node %s to itself", e.Source)
	}

	if strings.TrimSpace(e.Role) == "" {
		return newError(ErrValidation, op, e.ID, "edge role is required")
	}

	if !e.Status.Valid() {
		return newError(ErrValidation, op, e.ID, "unknown edge status %q", e.Status)
	}

	if !e.ApprovalRequired && e.Status != EdgeStatusPending {
		return newError(ErrValidation, op, e.ID, "edge without approval gate must stay pending")
	}

	decided := e.Status.IsTerminal()
	stamped := e.ApprovedAt != nil || e.ApprovedBy != ""

	if decided && (e.ApprovedAt == nil || e.ApprovedBy == "") {
		return newError(ErrValidation, op, e.ID, "decided edge requires approvedAt and approvedBy")
	}

	if !decided && stamped {
		return newError(ErrValidation, op, e.ID, "approvedAt and approvedBy must be absent while edge is pending")
	}

	return nil
}

// EdgeUpdate carries the mutable fields of an edge. Nil fields are left untouched.
type EdgeUpdate struct {
	Role             *string
	RoleID           *string
	ApprovalRequired *bool
}
