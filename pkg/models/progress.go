package models

// Progress maps a node status to the completion fraction shown to consumers.
func Progress(status NodeStatus) float64 {
	switch status {
	case NodeStatusCompleted:
		return 1.0
	case NodeStatusInProgress:
		return 0.5
	case NodeStatusPending:
		return 0.25
	case NodeStatusRejected:
		return 0.0
	}

	return 0.0
}

// NodeProgress is the projection of a single node.
type NodeProgress struct {
	ID       string     `json:"id"       yaml:"id"`
	Label    string     `json:"label"    yaml:"label"`
	Status   NodeStatus `json:"status"   yaml:"status"`
	Progress float64    `json:"progress" yaml:"progress"`
	Terminal bool       `json:"terminal" yaml:"terminal"`
}

// GraphProgress is the projection of every node plus their average progress.
type GraphProgress struct {
	Nodes    []NodeProgress `json:"nodes"    yaml:"nodes"`
	Overall  float64        `json:"overall"  yaml:"overall"`
	Complete int            `json:"complete" yaml:"complete"` // Nodes in a terminal status
	Total    int            `json:"total"    yaml:"total"`
}

// ProjectNode derives the progress view of a node from its status alone.
func ProjectNode(node StepNode) NodeProgress {
	return NodeProgress{
		ID:       node.ID,
		Label:    node.Label,
		Status:   node.Status,
		Progress: Progress(node.Status),
		Terminal: node.Status.IsTerminal(),
	}
}

// ProjectNodes projects a node list in order.
func ProjectNodes(nodes []StepNode) GraphProgress {
	result := GraphProgress{
		Nodes: make([]NodeProgress, 0, len(nodes)),
		Total: len(nodes),
	}

	var sum float64

	for i := range nodes {
		p := ProjectNode(nodes[i])
		sum += p.Progress

		if p.Terminal {
			result.Complete++
		}

		result.Nodes = append(result.Nodes, p)
	}

	if len(nodes) > 0 {
		result.Overall = sum / float64(len(nodes))
	}

	return result
}

// ProjectGraph projects every node of g in insertion order.
func ProjectGraph(g *Graph) GraphProgress {
	return ProjectNodes(g.Nodes())
}
