package expressions

import (
	"context"
	"encoding/json"

	"github.com/rendis/flowlens/pkg/schema"
)

// PathEnv builds the expression environment for a single execution path.
// Variables exposed to filter expressions:
//
//	workflow  - workflow name
//	file      - analyzed file path
//	length    - number of nodes on the path
//	nodes     - node labels in traversal order
//	labels    - edge labels in traversal order ("" for unlabeled hops)
//	decisions - labels of decision nodes crossed by the path
//	activities - labels of activity and child-workflow nodes on the path
func PathEnv(g *schema.Graph, path schema.ExecutionPath) map[string]any {
	nodes := make([]string, 0, len(path.Nodes))
	var decisions, activities []string
	for _, id := range path.Nodes {
		n := g.Node(id)
		if n == nil {
			continue
		}
		nodes = append(nodes, n.Label)
		switch n.Kind {
		case schema.NodeKindDecision:
			decisions = append(decisions, n.Label)
		case schema.NodeKindActivity, schema.NodeKindChildWorkflow:
			activities = append(activities, n.Label)
		}
	}

	labels := make([]string, len(path.Labels))
	copy(labels, path.Labels)

	return map[string]any{
		"workflow":   g.Workflow,
		"file":       g.File,
		"length":     len(path.Nodes),
		"nodes":      nodes,
		"labels":     labels,
		"decisions":  decisions,
		"activities": activities,
	}
}

// FilterPaths evaluates a boolean filter expression against every enumerated
// path of the graph and returns the paths for which it holds. A non-boolean
// result is a validation error, reported on the first offending path.
func FilterPaths(ctx context.Context, engine *ExprEngine, g *schema.Graph, expression string) ([]schema.ExecutionPath, error) {
	if g == nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "filter: graph is nil")
	}

	var kept []schema.ExecutionPath
	for i, path := range g.Paths {
		out, err := engine.Evaluate(ctx, expression, PathEnv(g, path))
		if err != nil {
			return nil, err
		}
		keep, ok := out.(bool)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"filter %q returned %T for path %d, want bool", expression, out, i).
				WithDetails(map[string]any{"expression": expression, "path": i})
		}
		if keep {
			kept = append(kept, path)
		}
	}
	return kept, nil
}

// GraphDocument converts a graph into the generic JSON document form that
// jq queries operate on.
func GraphDocument(g *schema.Graph) (map[string]any, error) {
	raw, err := json.Marshal(g)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "encode graph: %v", err).WithCause(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "decode graph: %v", err).WithCause(err)
	}
	return doc, nil
}

// QueryGraph runs a jq expression over the JSON form of the graph and
// returns all outputs.
func QueryGraph(ctx context.Context, engine *GoJQEngine, g *schema.Graph, expression string) ([]any, error) {
	doc, err := GraphDocument(g)
	if err != nil {
		return nil, err
	}
	return engine.EvaluateAll(ctx, expression, doc)
}
