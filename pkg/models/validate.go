package models

// Validate checks raw node and edge slices against every structural invariant
// of a workflow graph and returns all violations found, in input order.
// An empty result means the slices can be loaded into a Graph as is.
func Validate(nodes []StepNode, edges []ApprovalEdge) []*GraphError {
	const op = "Validate"

	var violations []*GraphError

	nodeIDs := make(map[string]struct{}, len(nodes))
	startID := ""

	for i := range nodes {
		node := nodes[i]
		node.applyDefaults()

		if err := node.validate(op); err != nil {
			violations = append(violations, err)
		}

		if node.ID == "" {
			continue
		}

		if _, seen := nodeIDs[node.ID]; seen {
			violations = append(violations, newError(ErrDuplicateID, op, node.ID, "node id appears more than once"))

			continue
		}

		nodeIDs[node.ID] = struct{}{}

		if node.IsStart() {
			if startID != "" {
				violations = append(violations, newError(ErrValidation, op, node.ID,
					"workflow already has start node %s", startID))
			} else {
				startID = node.ID
			}
		}
	}

	edgeIDs := make(map[string]struct{}, len(edges))

	for i := range edges {
		edge := &edges[i]

		if err := edge.validate(op); err != nil {
			violations = append(violations, err)
		}

		if edge.ID != "" {
			if _, seen := edgeIDs[edge.ID]; seen {
				violations = append(violations, newError(ErrDuplicateID, op, edge.ID, "edge id appears more than once"))
			}

			edgeIDs[edge.ID] = struct{}{}
		}

		if edge.Source != "" {
			if _, exists := nodeIDs[edge.Source]; !exists {
				violations = append(violations, newError(ErrDanglingReference, op, edge.ID,
					"source node %s does not exist", edge.Source))
			}
		}

		if edge.Target != "" {
			if _, exists := nodeIDs[edge.Target]; !exists {
				violations = append(violations, newError(ErrDanglingReference, op, edge.ID,
					"target node %s does not exist", edge.Target))
			}
		}
	}

	return violations
}
