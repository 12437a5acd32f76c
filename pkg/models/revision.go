package models

import (
	"reflect"
	"time"
)

// SameStructure reports whether two documents describe the same workflow once
// node statuses and edge decisions are set aside. Nodes and edges are matched
// by ID, so their order does not matter.
func SameStructure(a, b *Document) bool {
	if a.Name != b.Name || a.Description != b.Description || a.Version != b.Version || a.CreatedBy != b.CreatedBy {
		return false
	}

	if len(a.Nodes) != len(b.Nodes) || len(a.Edges) != len(b.Edges) {
		return false
	}

	nodes := make(map[string]StepNode, len(a.Nodes))
	for i := range a.Nodes {
		nodes[a.Nodes[i].ID] = a.Nodes[i].structure()
	}

	for i := range b.Nodes {
		node, ok := nodes[b.Nodes[i].ID]
		if !ok || !reflect.DeepEqual(node, b.Nodes[i].structure()) {
			return false
		}

		delete(nodes, b.Nodes[i].ID)
	}

	edges := make(map[string]ApprovalEdge, len(a.Edges))
	for i := range a.Edges {
		edges[a.Edges[i].ID] = a.Edges[i].structure()
	}

	for i := range b.Edges {
		edge, ok := edges[b.Edges[i].ID]
		if !ok || edge != b.Edges[i].structure() {
			return false
		}

		delete(edges, b.Edges[i].ID)
	}

	return true
}

// CheckProgress compares the node statuses and edge decisions of two documents
// and returns every change the state machines do not allow. Nodes and edges
// present on only one side are ignored.
func CheckProgress(before, after *Document) []*GraphError {
	const op = "CheckProgress"

	var violations []*GraphError

	nodes := make(map[string]*StepNode, len(before.Nodes))
	for i := range before.Nodes {
		nodes[before.Nodes[i].ID] = &before.Nodes[i]
	}

	for i := range after.Nodes {
		next := &after.Nodes[i]

		prev, ok := nodes[next.ID]
		if !ok {
			continue
		}

		switch {
		case !prev.Status.CanReach(next.Status):
			violations = append(violations, newError(ErrInvalidTransition, op, next.ID,
				"cannot move node from %s to %s", prev.Status, next.Status))
		case prev.Status.IsTerminal() && !sameTime(prev.CompletedAt, next.CompletedAt):
			violations = append(violations, newError(ErrInvalidTransition, op, next.ID,
				"node is already %s", prev.Status))
		}
	}

	edges := make(map[string]*ApprovalEdge, len(before.Edges))
	for i := range before.Edges {
		edges[before.Edges[i].ID] = &before.Edges[i]
	}

	for i := range after.Edges {
		next := &after.Edges[i]

		prev, ok := edges[next.ID]
		if !ok {
			continue
		}

		if prev.Status.IsTerminal() && !prev.sameDecision(next) {
			violations = append(violations, newError(ErrInvalidTransition, op, next.ID,
				"edge already %s", prev.Status))
		}
	}

	return violations
}

// CanReach reports whether to equals s or lies ahead of it in the state machine.
func (s NodeStatus) CanReach(to NodeStatus) bool {
	if s == to || s.CanTransitionTo(to) {
		return true
	}

	return s == NodeStatusPending && NodeStatusInProgress.CanTransitionTo(to)
}

// structure returns the node without its runtime state.
func (n *StepNode) structure() StepNode {
	c := *n
	c.applyDefaults()
	c.Status = ""
	c.CompletedAt = nil

	if len(c.Metadata) == 0 {
		c.Metadata = nil
	}

	return c
}

// structure returns the edge without its decision.
func (e *ApprovalEdge) structure() ApprovalEdge {
	c := *e
	c.Status = ""
	c.ApprovedAt = nil
	c.ApprovedBy = ""
	c.Comments = ""

	return c
}

func (e *ApprovalEdge) sameDecision(other *ApprovalEdge) bool {
	return e.Status == other.Status &&
		e.ApprovedBy == other.ApprovedBy &&
		e.Comments == other.Comments &&
		sameTime(e.ApprovedAt, other.ApprovedAt)
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}

	return a.Equal(*b)
}
