package models

import (
	"slices"
	"time"
)

type nodeEntry struct {
	node *StepNode
	seq  uint64
}

type edgeEntry struct {
	edge *ApprovalEdge
	seq  uint64
}

// Graph is the set of steps and approval edges of one workflow version.
//
// All mutations go through Graph methods and are atomic: a method that returns
// an error leaves the graph exactly as it was. Accessors return copies. A Graph
// is not safe for concurrent mutation.
type Graph struct {
	nodes map[string]*nodeEntry
	edges map[string]*edgeEntry

	// incident maps a node ID to the IDs of every edge touching it.
	incident map[string]map[string]struct{}

	seq uint64
	now func() time.Time
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]*nodeEntry),
		edges:    make(map[string]*edgeEntry),
		incident: make(map[string]map[string]struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewGraphFrom builds a graph from raw nodes and edges. Nothing is built when
// the input has violations; all of them are returned.
func NewGraphFrom(nodes []StepNode, edges []ApprovalEdge) (*Graph, []*GraphError) {
	g := NewGraph()

	if violations := g.Replace(nodes, edges); len(violations) > 0 {
		return nil, violations
	}

	return g, nil
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode inserts a copy of node.
func (g *Graph) AddNode(node StepNode) error {
	const op = "AddNode"

	node.applyDefaults()

	if err := node.validate(op); err != nil {
		return err
	}

	if _, exists := g.nodes[node.ID]; exists {
		return newError(ErrDuplicateID, op, node.ID, "node already exists")
	}

	if err := g.checkSingleStart(op, &node); err != nil {
		return err
	}

	g.seq++
	g.nodes[node.ID] = &nodeEntry{node: node.Clone(), seq: g.seq}

	return nil
}

// RemoveNode deletes a node and every edge whose source or target is that node.
func (g *Graph) RemoveNode(id string) error {
	if _, exists := g.nodes[id]; !exists {
		return newError(ErrNotFound, "RemoveNode", id, "node does not exist")
	}

	for edgeID := range g.incident[id] {
		g.unlinkEdge(edgeID)
	}

	delete(g.incident, id)
	delete(g.nodes, id)

	return nil
}

// AddEdge inserts a copy of edge. Both endpoints must already exist.
func (g *Graph) AddEdge(edge ApprovalEdge) error {
	const op = "AddEdge"

	if err := edge.validate(op); err != nil {
		return err
	}

	if _, exists := g.edges[edge.ID]; exists {
		return newError(ErrDuplicateID, op, edge.ID, "edge already exists")
	}

	if _, exists := g.nodes[edge.Source]; !exists {
		return newError(ErrDanglingReference, op, edge.ID, "source node %s does not exist", edge.Source)
	}

	if _, exists := g.nodes[edge.Target]; !exists {
		return newError(ErrDanglingReference, op, edge.ID, "target node %s does not exist", edge.Target)
	}

	g.seq++
	g.edges[edge.ID] = &edgeEntry{edge: edge.Clone(), seq: g.seq}
	g.link(edge.Source, edge.ID)
	g.link(edge.Target, edge.ID)

	return nil
}

// RemoveEdge deletes an edge.
func (g *Graph) RemoveEdge(id string) error {
	if _, exists := g.edges[id]; !exists {
		return newError(ErrNotFound, "RemoveEdge", id, "edge does not exist")
	}

	g.unlinkEdge(id)

	return nil
}

// UpdateNodeStatus moves a node through its state machine and returns the updated node.
func (g *Graph) UpdateNodeStatus(id string, status NodeStatus) (*StepNode, error) {
	entry, exists := g.nodes[id]
	if !exists {
		return nil, newError(ErrNotFound, "UpdateNodeStatus", id, "node does not exist")
	}

	if err := entry.node.setStatus(status, g.now()); err != nil {
		return nil, err
	}

	return entry.node.Clone(), nil
}

// DecideEdge records an approval decision and returns the updated edge.
func (g *Graph) DecideEdge(id string, decision Decision, approverID, comments string) (*ApprovalEdge, error) {
	entry, exists := g.edges[id]
	if !exists {
		return nil, newError(ErrNotFound, "DecideEdge", id, "edge does not exist")
	}

	if err := entry.edge.decide(decision, approverID, comments, g.now()); err != nil {
		return nil, err
	}

	return entry.edge.Clone(), nil
}

// UpdateNode edits the descriptive fields of a node. Identity and status are
// not changed here.
func (g *Graph) UpdateNode(id string, update NodeUpdate) (*StepNode, error) {
	const op = "UpdateNode"

	entry, exists := g.nodes[id]
	if !exists {
		return nil, newError(ErrNotFound, op, id, "node does not exist")
	}

	candidate := entry.node.Clone()
	update.apply(candidate)
	candidate.applyDefaults()

	if err := candidate.validate(op); err != nil {
		return nil, err
	}

	if err := g.checkSingleStart(op, candidate); err != nil {
		return nil, err
	}

	entry.node = candidate

	return candidate.Clone(), nil
}

// UpdateEdge edits the role of an edge or toggles its gate. The gate can only
// be toggled while the edge is undecided.
func (g *Graph) UpdateEdge(id string, update EdgeUpdate) (*ApprovalEdge, error) {
	const op = "UpdateEdge"

	entry, exists := g.edges[id]
	if !exists {
		return nil, newError(ErrNotFound, op, id, "edge does not exist")
	}

	candidate := entry.edge.Clone()

	if update.Role != nil {
		candidate.Role = *update.Role
	}

	if update.RoleID != nil {
		candidate.RoleID = *update.RoleID
	}

	if update.ApprovalRequired != nil && *update.ApprovalRequired != candidate.ApprovalRequired {
		if candidate.Status != EdgeStatusPending {
			return nil, newError(ErrInvalidTransition, op, id, "cannot change approval gate of %s edge", candidate.Status)
		}

		candidate.ApprovalRequired = *update.ApprovalRequired
	}

	if err := candidate.validate(op); err != nil {
		return nil, err
	}

	entry.edge = candidate

	return candidate.Clone(), nil
}

// IsTraversable reports whether the edge permits progression from source to target.
// It never changes any node status.
func (g *Graph) IsTraversable(edgeID string) (bool, error) {
	entry, exists := g.edges[edgeID]
	if !exists {
		return false, newError(ErrNotFound, "IsTraversable", edgeID, "edge does not exist")
	}

	return entry.edge.Traversable(), nil
}

// IsUnblocked reports whether every edge entering the node is traversable.
// A node without incoming edges is unblocked.
func (g *Graph) IsUnblocked(nodeID string) (bool, error) {
	if _, exists := g.nodes[nodeID]; !exists {
		return false, newError(ErrNotFound, "IsUnblocked", nodeID, "node does not exist")
	}

	for edgeID := range g.incident[nodeID] {
		edge := g.edges[edgeID].edge
		if edge.Target == nodeID && !edge.Traversable() {
			return false, nil
		}
	}

	return true, nil
}

// Node returns a copy of the node with the given ID.
func (g *Graph) Node(id string) (*StepNode, bool) {
	entry, exists := g.nodes[id]
	if !exists {
		return nil, false
	}

	return entry.node.Clone(), true
}

// Edge returns a copy of the edge with the given ID.
func (g *Graph) Edge(id string) (*ApprovalEdge, bool) {
	entry, exists := g.edges[id]
	if !exists {
		return nil, false
	}

	return entry.edge.Clone(), true
}

// Nodes returns copies of all nodes in insertion order.
func (g *Graph) Nodes() []StepNode {
	entries := make([]*nodeEntry, 0, len(g.nodes))
	for _, entry := range g.nodes {
		entries = append(entries, entry)
	}

	slices.SortFunc(entries, func(a, b *nodeEntry) int {
		return compareSeq(a.seq, b.seq)
	})

	nodes := make([]StepNode, len(entries))
	for i, entry := range entries {
		nodes[i] = *entry.node.Clone()
	}

	return nodes
}

// Edges returns copies of all edges in insertion order.
func (g *Graph) Edges() []ApprovalEdge {
	return g.collectEdges(func(*ApprovalEdge) bool { return true })
}

// Outgoing returns copies of the edges leaving nodeID, in insertion order.
func (g *Graph) Outgoing(nodeID string) []ApprovalEdge {
	return g.incidentEdges(nodeID, func(e *ApprovalEdge) bool { return e.Source == nodeID })
}

// Incoming returns copies of the edges entering nodeID, in insertion order.
func (g *Graph) Incoming(nodeID string) []ApprovalEdge {
	return g.incidentEdges(nodeID, func(e *ApprovalEdge) bool { return e.Target == nodeID })
}

// Clone returns an independent deep copy of the graph.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	c.seq = g.seq
	c.now = g.now

	for id, entry := range g.nodes {
		c.nodes[id] = &nodeEntry{node: entry.node.Clone(), seq: entry.seq}
	}

	for id, entry := range g.edges {
		c.edges[id] = &edgeEntry{edge: entry.edge.Clone(), seq: entry.seq}
		c.link(entry.edge.Source, id)
		c.link(entry.edge.Target, id)
	}

	return c
}

// Replace swaps the whole content of the graph. The input is validated first
// and the graph is left untouched when any violation is found.
func (g *Graph) Replace(nodes []StepNode, edges []ApprovalEdge) []*GraphError {
	if violations := Validate(nodes, edges); len(violations) > 0 {
		return violations
	}

	g.nodes = make(map[string]*nodeEntry, len(nodes))
	g.edges = make(map[string]*edgeEntry, len(edges))
	g.incident = make(map[string]map[string]struct{}, len(nodes))

	for i := range nodes {
		node := nodes[i].Clone()
		node.applyDefaults()

		g.seq++
		g.nodes[node.ID] = &nodeEntry{node: node, seq: g.seq}
	}

	for i := range edges {
		g.seq++
		g.edges[edges[i].ID] = &edgeEntry{edge: edges[i].Clone(), seq: g.seq}
		g.link(edges[i].Source, edges[i].ID)
		g.link(edges[i].Target, edges[i].ID)
	}

	return nil
}

// Validate re-checks every structural invariant and returns all violations.
func (g *Graph) Validate() []*GraphError {
	return Validate(g.Nodes(), g.Edges())
}

// checkSingleStart rejects a second start node.
func (g *Graph) checkSingleStart(op string, node *StepNode) *GraphError {
	if !node.IsStart() {
		return nil
	}

	for id, entry := range g.nodes {
		if id != node.ID && entry.node.IsStart() {
			return newError(ErrValidation, op, node.ID, "workflow already has start node %s", id)
		}
	}

	return nil
}

func (g *Graph) link(nodeID, edgeID string) {
	set, ok := g.incident[nodeID]
	if !ok {
		set = make(map[string]struct{})
		g.incident[nodeID] = set
	}

	set[edgeID] = struct{}{}
}

func (g *Graph) unlinkEdge(edgeID string) {
	entry := g.edges[edgeID]

	delete(g.incident[entry.edge.Source], edgeID)
	delete(g.incident[entry.edge.Target], edgeID)
	delete(g.edges, edgeID)
}

func (g *Graph) incidentEdges(nodeID string, keep func(*ApprovalEdge) bool) []ApprovalEdge {
	entries := make([]*edgeEntry, 0, len(g.incident[nodeID]))

	for edgeID := range g.incident[nodeID] {
		entry := g.edges[edgeID]
		if keep(entry.edge) {
			entries = append(entries, entry)
		}
	}

	return sortEdges(entries)
}

func (g *Graph) collectEdges(keep func(*ApprovalEdge) bool) []ApprovalEdge {
	entries := make([]*edgeEntry, 0, len(g.edges))

	for _, entry := range g.edges {
		if keep(entry.edge) {
			entries = append(entries, entry)
		}
	}

	return sortEdges(entries)
}

func sortEdges(entries []*edgeEntry) []ApprovalEdge {
	slices.SortFunc(entries, func(a, b *edgeEntry) int {
		return compareSeq(a.seq, b.seq)
	})

	edges := make([]ApprovalEdge, len(entries))
	for i, entry := range entries {
		edges[i] = *entry.edge.Clone()
	}

	return edges
}

func compareSeq(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}

	return 0
}
