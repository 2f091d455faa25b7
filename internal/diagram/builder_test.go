package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/pkg/schema"
)

const fixtureSrc = `package orders

//workflow:definition
type OrderWorkflow struct{}

//workflow:run
func (w *OrderWorkflow) Run(ctx workflow.Context, in Input) error {
	workflow.ExecuteActivity(ctx, "validate", in)
	if in.Express {
		workflow.ExecuteActivity(ctx, "expedite", in)
	} else {
		workflow.ExecuteChildWorkflow(ctx, "standard_shipping", in)
	}
	workflow.ExecuteActivity(ctx, "notify", in)
	return nil
}
`

func fixtureModel(t *testing.T) *DiagramModel {
	t.Helper()
	g, err := analyzer.Analyze("orders.go", []byte(fixtureSrc), schema.Options{})
	require.NoError(t, err)
	model, err := Build(g)
	require.NoError(t, err)
	return model
}

func TestBuildModel(t *testing.T) {
	model := fixtureModel(t)

	assert.Equal(t, "OrderWorkflow", model.Title)
	// Start, validate, decision, expedite, standard_shipping, notify, End.
	assert.Len(t, model.Nodes, 7)
	assert.Len(t, model.Paths, 2)

	kinds := map[NodeKind]int{}
	for _, n := range model.Nodes {
		kinds[n.Kind]++
	}
	assert.Equal(t, 1, kinds[NodeKindStart])
	assert.Equal(t, 1, kinds[NodeKindEnd])
	assert.Equal(t, 1, kinds[NodeKindDecision])
	assert.Equal(t, 1, kinds[NodeKindChild])
	assert.Equal(t, 3, kinds[NodeKindActivity])
}

func TestBuildModelLevels(t *testing.T) {
	model := fixtureModel(t)

	require.NotEmpty(t, model.Levels)
	// Start alone on the first level, End alone on the last.
	assert.Equal(t, []string{"n0"}, model.Levels[0])
	last := model.Levels[len(model.Levels)-1]
	require.Len(t, last, 1)
	assert.Equal(t, NodeKindEnd, findNode(model.Nodes, last[0]).Kind)
	// The two branch arms share a level.
	foundPair := false
	for _, level := range model.Levels {
		if len(level) == 2 {
			foundPair = true
		}
	}
	assert.True(t, foundPair, "branch arms should share a topological level")
}

func TestBuildModelEmptyGraph(t *testing.T) {
	_, err := Build(schema.NewGraph("W", ""))
	require.Error(t, err)
	_, err = Build(nil)
	require.Error(t, err)
}
