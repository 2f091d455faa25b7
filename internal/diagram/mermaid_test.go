package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaid(t *testing.T) {
	model := fixtureModel(t)
	out := RenderMermaid(model)

	assert.True(t, strings.HasPrefix(out, "graph TD\n"))
	assert.Contains(t, out, "%% OrderWorkflow")

	// Node shapes per kind.
	assert.Contains(t, out, `(("Start"))`)
	assert.Contains(t, out, `(("End"))`)
	assert.Contains(t, out, `["validate"]`)
	assert.Contains(t, out, `[["standard_shipping"]]`)
	assert.Contains(t, out, `{"`)

	// Branch edges carry their arm labels.
	assert.Contains(t, out, "-->|True|")
	assert.Contains(t, out, "-->|False|")

	// Styling classes declared and applied.
	assert.Contains(t, out, "classDef decision")
	assert.Contains(t, out, " activity\n")
	assert.Contains(t, out, " child\n")
}

func TestRenderMermaidEveryNodeAndEdge(t *testing.T) {
	model := fixtureModel(t)
	out := RenderMermaid(model)

	for _, node := range model.Nodes {
		assert.Contains(t, out, mermaidSafeID(node.ID), "node %s missing", node.ID)
	}
	edgeCount := strings.Count(out, "-->")
	require.Equal(t, len(model.Edges), edgeCount)
}

func TestRenderDOT(t *testing.T) {
	model := fixtureModel(t)
	out := RenderDOT(model)

	assert.True(t, strings.HasPrefix(out, "digraph flow {\n"))
	assert.Contains(t, out, `label="OrderWorkflow";`)
	assert.Contains(t, out, "shape=diamond")
	assert.Contains(t, out, "shape=circle")
	assert.Contains(t, out, `[label="True"]`)
	assert.True(t, strings.HasSuffix(out, "}\n"))
}
