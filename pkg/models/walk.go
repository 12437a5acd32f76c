package models

// Walk visits nodes breadth-first from fromID, following outgoing edges in
// insertion order. Each node is visited at most once, so cycles are safe.
// Returning false from fn stops the walk.
func (g *Graph) Walk(fromID string, fn func(node StepNode) bool) error {
	if _, exists := g.nodes[fromID]; !exists {
		return newError(ErrNotFound, "Walk", fromID, "node does not exist")
	}

	visited := map[string]struct{}{fromID: {}}
	queue := []string{fromID}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		if !fn(*g.nodes[id].node.Clone()) {
			return nil
		}

		for _, edge := range g.Outgoing(id) {
			if _, seen := visited[edge.Target]; seen {
				continue
			}

			visited[edge.Target] = struct{}{}
			queue = append(queue, edge.Target)
		}
	}

	return nil
}

// Reachable returns the IDs of every node reachable from fromID, fromID included,
// in breadth-first order.
func (g *Graph) Reachable(fromID string) ([]string, error) {
	var ids []string

	err := g.Walk(fromID, func(node StepNode) bool {
		ids = append(ids, node.ID)

		return true
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// Step is one entry of the ordered work list of a workflow.
type Step struct {
	NodeID      string         `json:"nodeId"                yaml:"nodeId"`
	Label       string         `json:"label"                 yaml:"label"`
	NodeType    NodeType       `json:"nodeType"              yaml:"nodeType"`
	Status      NodeStatus     `json:"status"                yaml:"status"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	AssignedTo  string         `json:"assignedTo,omitempty"  yaml:"assignedTo,omitempty"`
	Unblocked   bool           `json:"unblocked"             yaml:"unblocked"`
	Gates       []ApprovalEdge `json:"gates,omitempty"       yaml:"gates,omitempty"` // Incoming edges with an approval gate
}

// Steps lists the work steps of the graph. Start and end nodes are markers and
// are not listed. Nodes reachable from the start node come first in breadth-first
// order, followed by the remaining nodes in insertion order. Each node appears once.
func (g *Graph) Steps() []Step {
	ordered := make([]string, 0, len(g.nodes))
	listed := make(map[string]struct{}, len(g.nodes))

	nodes := g.Nodes()

	for i := range nodes {
		if !nodes[i].IsStart() {
			continue
		}

		_ = g.Walk(nodes[i].ID, func(node StepNode) bool {
			ordered = append(ordered, node.ID)
			listed[node.ID] = struct{}{}

			return true
		})

		break
	}

	for i := range nodes {
		if _, ok := listed[nodes[i].ID]; !ok {
			ordered = append(ordered, nodes[i].ID)
		}
	}

	steps := make([]Step, 0, len(ordered))

	for _, id := range ordered {
		node := g.nodes[id].node
		if node.IsStart() || node.IsEnd() {
			continue
		}

		step := Step{
			NodeID:      node.ID,
			Label:       node.Label,
			NodeType:    node.NodeType,
			Status:      node.Status,
			Description: node.Description,
			AssignedTo:  node.AssignedTo,
			Unblocked:   true,
		}

		for _, edge := range g.Incoming(id) {
			if !edge.Traversable() {
				step.Unblocked = false
			}

			if edge.ApprovalRequired {
				step.Gates = append(step.Gates, edge)
			}
		}

		steps = append(steps, step)
	}

	return steps
}
