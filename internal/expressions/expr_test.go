package expressions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExprEngineName(t *testing.T) {
	e := NewExprEngine()
	assert.NotNil(t, e)
	assert.Equal(t, "expr", e.Name())
}

func TestExprEngineEvaluate(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	out, err := e.Evaluate(ctx, "a + b", map[string]any{"a": 40, "b": 2})
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestExprEngineBooleanFilter(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	data := map[string]any{
		"length": 5,
		"labels": []string{"True", ""},
	}

	out, err := e.Evaluate(ctx, `length > 4 && "True" in labels`, data)
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = e.Evaluate(ctx, `length > 10`, data)
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestExprEngineEmptyExpression(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "", nil)
	require.Error(t, err)
}

func TestExprEngineCompileError(t *testing.T) {
	e := NewExprEngine()
	_, err := e.Evaluate(context.Background(), "a +", map[string]any{"a": 1})
	require.Error(t, err)
}

func TestExprEngineCacheReuse(t *testing.T) {
	e := NewExprEngine()
	ctx := context.Background()

	_, err := e.Evaluate(ctx, "x * 2", map[string]any{"x": 3})
	require.NoError(t, err)
	assert.Len(t, e.cache, 1)

	out, err := e.Evaluate(ctx, "x * 2", map[string]any{"x": 5})
	require.NoError(t, err)
	assert.Equal(t, 10, out)
	assert.Len(t, e.cache, 1)
}

func TestExprEngineUndefinedVariable(t *testing.T) {
	e := NewExprEngine()

	out, err := e.Evaluate(context.Background(), "missing ?? 7", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}
