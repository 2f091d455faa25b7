package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/pkg/schema"
)

const refundSrc = `package refunds

//workflow:definition
type RefundWorkflow struct{}

//workflow:run
func (w *RefundWorkflow) Run(ctx workflow.Context, in Input) error {
	workflow.ExecuteActivity(ctx, "lookup_order", in)
	if in.Amount > 100 {
		workflow.ExecuteActivity(ctx, "manual_review", in)
	} else {
		workflow.ExecuteActivity(ctx, "auto_refund", in)
	}
	workflow.ExecuteActivity(ctx, "notify_customer", in)
	return nil
}
`

func refundGraph(t *testing.T) *schema.Graph {
	t.Helper()
	g, err := analyzer.Analyze("refund.go", []byte(refundSrc), schema.Options{})
	require.NoError(t, err)
	require.Len(t, g.Paths, 2)
	return g
}

func TestPathEnv(t *testing.T) {
	g := refundGraph(t)
	env := PathEnv(g, g.Paths[0])

	assert.Equal(t, "RefundWorkflow", env["workflow"])
	assert.Equal(t, "refund.go", env["file"])
	assert.Equal(t, len(g.Paths[0].Nodes), env["length"])
	assert.Contains(t, env["nodes"], "lookup_order")
	assert.Contains(t, env["activities"], "lookup_order")
	assert.Len(t, env["decisions"], 1)
}

func TestFilterPaths(t *testing.T) {
	g := refundGraph(t)
	engine := NewExprEngine()
	ctx := context.Background()

	kept, err := FilterPaths(ctx, engine, g, `"manual_review" in activities`)
	require.NoError(t, err)
	require.Len(t, kept, 1)

	kept, err = FilterPaths(ctx, engine, g, `length > 0`)
	require.NoError(t, err)
	assert.Len(t, kept, 2)

	kept, err = FilterPaths(ctx, engine, g, `workflow == "SomethingElse"`)
	require.NoError(t, err)
	assert.Empty(t, kept)
}

func TestFilterPathsNonBoolean(t *testing.T) {
	g := refundGraph(t)
	engine := NewExprEngine()

	_, err := FilterPaths(context.Background(), engine, g, `length + 1`)
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
}

func TestFilterPathsNilGraph(t *testing.T) {
	_, err := FilterPaths(context.Background(), NewExprEngine(), nil, "true")
	require.Error(t, err)
}

func TestQueryGraph(t *testing.T) {
	g := refundGraph(t)
	engine := NewGoJQEngine()
	ctx := context.Background()

	out, err := QueryGraph(ctx, engine, g, `.workflow`)
	require.NoError(t, err)
	assert.Equal(t, []any{"RefundWorkflow"}, out)

	out, err = QueryGraph(ctx, engine, g, `[.nodes[] | select(.kind == "decision")] | length`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 1, out[0])

	out, err = QueryGraph(ctx, engine, g, `.paths | length`)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 2, out[0])
}
