package schema

import (
	"errors"
	"testing"

	"github.com/dukex/stepflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validDocument = `{
  "name": "Expense approval",
  "version": "1.0",
  "createdBy": "requester@co",
  "nodes": [
    {"id": "start", "label": "Submit", "nodeType": "start", "status": "pending"},
    {"id": "review", "label": "Manager review", "nodeType": "process", "status": "pending", "metadata": {"templateIds": ["tpl-1"]}}
  ],
  "edges": [
    {"id": "e1", "source": "start", "target": "review", "role": "Manager", "approvalRequired": true, "status": "pending"}
  ]
}`

func TestDecode_Valid(t *testing.T) {
	doc, err := Decode([]byte(validDocument))
	require.NoError(t, err)

	assert.Equal(t, "Expense approval", doc.Name)
	require.Len(t, doc.Nodes, 2)
	assert.Equal(t, models.NodeTypeStart, doc.Nodes[0].NodeType)
	assert.True(t, doc.Edges[0].ApprovalRequired)
	assert.Empty(t, doc.Validate())
}

func TestDecode_UntypedNode(t *testing.T) {
	raw := `{
	  "name": "Onboarding",
	  "nodes": [
	    {"id": "start", "label": "Submit", "nodeType": "start", "status": "pending"},
	    {"id": "it", "label": "Provision laptop", "status": "pending"},
	    {"id": "hr", "label": "Sign contract", "nodeType": "", "status": "pending"}
	  ]
	}`

	doc, err := Decode([]byte(raw))
	require.NoError(t, err)
	assert.Empty(t, doc.Validate())

	w, err := models.Hydrate(*doc)
	require.NoError(t, err)

	for _, id := range []string{"it", "hr"} {
		node, ok := w.Graph().Node(id)
		require.True(t, ok)
		assert.Equal(t, models.NodeTypeProcess, node.NodeType)
	}
}

func TestValidate_CollectsEveryError(t *testing.T) {
	raw := `{
	  "nodes": [{"id": "a", "label": "A", "nodeType": "start", "status": "done"}],
	  "edges": [{"id": "e1", "source": "a", "target": "b", "status": "pending", "colour": "red"}]
	}`

	err := Validate([]byte(raw))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidDocument)

	var validationErr *ValidationError
	require.True(t, errors.As(err, &validationErr))

	// name missing, bad node status, edge role missing, unknown edge property
	assert.Len(t, validationErr.Errors, 4)
}

func TestValidate_NotJSON(t *testing.T) {
	err := Validate([]byte("not json"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestDecodeYAML(t *testing.T) {
	raw := `
name: Onboarding
nodes:
  - id: start
    label: Kickoff
    nodeType: start
    status: pending
edges: []
`

	doc, err := DecodeYAML([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "Onboarding", doc.Name)
	assert.Len(t, doc.Nodes, 1)

	_, err = DecodeYAML([]byte("name: [unclosed"))
	assert.ErrorIs(t, err, ErrInvalidDocument)
}

func TestRaw(t *testing.T) {
	assert.Contains(t, string(Raw()), `"$schema"`)
}
