package expressions

import "context"

// Engine evaluates expressions against analysis results.
// Two implementations: Expr (path filters), GoJQ (graph queries).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}
