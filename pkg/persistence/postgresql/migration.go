package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				version VARCHAR(64) NOT NULL DEFAULT '',
				status VARCHAR(32) NOT NULL CHECK (status IN ('draft', 'published', 'unpublished')),
				created_by VARCHAR(255) NOT NULL DEFAULT '',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				published_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_status ON workflows(status);
			CREATE INDEX idx_workflows_name ON workflows(name);
			CREATE INDEX idx_workflows_created_by ON workflows(created_by);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
		`,
		2: `
			-- position keeps the insertion order of the graph
			CREATE TABLE workflow_nodes (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				label TEXT NOT NULL,
				node_type VARCHAR(32) NOT NULL,
				status VARCHAR(32) NOT NULL,
				description TEXT,
				assigned_to VARCHAR(255),
				completed_at TIMESTAMP WITH TIME ZONE,
				metadata JSONB,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE TABLE workflow_edges (
				workflow_id VARCHAR(255) NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				position INT NOT NULL,
				source_id VARCHAR(255) NOT NULL,
				target_id VARCHAR(255) NOT NULL,
				role VARCHAR(255) NOT NULL,
				role_id VARCHAR(255),
				approval_required BOOLEAN NOT NULL DEFAULT false,
				status VARCHAR(32) NOT NULL,
				approved_at TIMESTAMP WITH TIME ZONE,
				approved_by VARCHAR(255),
				comments TEXT,
				PRIMARY KEY (workflow_id, id)
			);

			CREATE INDEX idx_workflow_nodes_workflow_id ON workflow_nodes(workflow_id, position);
			CREATE INDEX idx_workflow_edges_workflow_id ON workflow_edges(workflow_id, position);
			CREATE INDEX idx_workflow_edges_pending ON workflow_edges(status) WHERE approval_required;
		`,
	}
}
