package analyzer

import (
	"fmt"
	"go/ast"
	"go/token"
	"strconv"

	"github.com/rendis/flowlens/pkg/schema"
)

// CallKind classifies a call expression found in the run routine.
type CallKind int

const (
	KindIgnored CallKind = iota
	KindActivity
	KindChildWorkflow
	KindDecision
)

// ClassifiedCall is the classifier's verdict on one call expression.
type ClassifiedCall struct {
	Kind  CallKind
	Label string
	Call  *ast.CallExpr

	// Decision calls only.
	Cond     ast.Expr
	Ternary  bool     // 4-arg form with inline value arms
	TrueArm  ast.Expr // ternary only
	FalseArm ast.Expr // ternary only
}

// Classifier inspects call expressions one at a time. It holds the
// per-analysis name table and a counter for generated decision labels; a
// fresh instance is created for every analyzed file.
type Classifier struct {
	opts      schema.Options
	names     *NameTable
	fset      *token.FileSet
	decisions int
}

// NewClassifier creates a classifier bound to one analysis invocation.
func NewClassifier(fset *token.FileSet, names *NameTable, opts schema.Options) *Classifier {
	return &Classifier{opts: opts, names: names, fset: fset}
}

// Classify determines the category of a single call expression. Calls that
// match no recognized primitive are Ignored; their surrounding structure is
// still traversed by the builder.
func (c *Classifier) Classify(call *ast.CallExpr) (ClassifiedCall, error) {
	name := calleeName(call)

	switch {
	case name == c.opts.DecisionFunc:
		return c.classifyDecision(call)
	case contains(c.opts.ActivityCalls, name):
		if label, ok := c.argName(call, 1); ok {
			return ClassifiedCall{Kind: KindActivity, Label: label, Call: call}, nil
		}
	case contains(c.opts.ChildCalls, name):
		if label, ok := c.argName(call, 1); ok {
			return ClassifiedCall{Kind: KindChildWorkflow, Label: label, Call: call}, nil
		}
	}
	return ClassifiedCall{Kind: KindIgnored, Call: call}, nil
}

// classifyDecision validates the shape of a decision-marking call.
// Recognized arities: 1 (condition only, generated label), 2 (condition +
// name), 4 (condition + name + two value arms). Anything else is an
// InvalidDecisionError surfaced at the call site.
func (c *Classifier) classifyDecision(call *ast.CallExpr) (ClassifiedCall, error) {
	cc := ClassifiedCall{Kind: KindDecision, Call: call}

	switch len(call.Args) {
	case 1:
		cc.Cond = call.Args[0]
		c.decisions++
		cc.Label = fmt.Sprintf("decision_%d", c.decisions)
		return cc, nil
	case 2, 4:
		label, ok := stringLit(call.Args[1])
		if !ok {
			return cc, schema.NewErrorf(schema.ErrCodeInvalidDecision,
				"%s name must be a string literal", c.opts.DecisionFunc).
				WithPos(c.pos(call.Args[1].Pos()))
		}
		cc.Cond = call.Args[0]
		cc.Label = label
		if len(call.Args) == 4 {
			cc.Ternary = true
			cc.TrueArm = call.Args[2]
			cc.FalseArm = call.Args[3]
		}
		return cc, nil
	default:
		return cc, schema.NewErrorf(schema.ErrCodeInvalidDecision,
			"%s takes 1, 2 or 4 arguments, got %d", c.opts.DecisionFunc, len(call.Args)).
			WithPos(c.pos(call.Pos()))
	}
}

// argName resolves the naming argument of an activity or child-workflow
// call. Calls too short to carry a name are ignored rather than failed:
// the primitive name alone is not enough to build a node.
func (c *Classifier) argName(call *ast.CallExpr, idx int) (string, bool) {
	if len(call.Args) <= idx {
		return "", false
	}
	return c.resolveName(call.Args[idx])
}

// resolveName is the single name-resolution operation for callable
// references. String literals yield their text, direct references resolve
// through the name table, so downstream code never special-cases the
// representation.
func (c *Classifier) resolveName(e ast.Expr) (string, bool) {
	switch x := e.(type) {
	case *ast.BasicLit:
		if x.Kind == token.STRING {
			if s, err := strconv.Unquote(x.Value); err == nil {
				return s, true
			}
		}
	case *ast.Ident:
		return c.names.Resolve(x.Name), true
	case *ast.SelectorExpr:
		return c.names.Resolve(x.Sel.Name), true
	case *ast.CompositeLit:
		return c.resolveName(x.Type)
	case *ast.UnaryExpr:
		return c.resolveName(x.X)
	case *ast.StarExpr:
		return c.resolveName(x.X)
	case *ast.IndexExpr: // generic instantiation
		return c.resolveName(x.X)
	}
	return "", false
}

// Pos formats a token position for error reporting and node positions.
func (c *Classifier) pos(p token.Pos) string {
	if c.fset == nil || !p.IsValid() {
		return ""
	}
	return c.fset.Position(p).String()
}

// calleeName returns the invoked name of a call: the selector method name
// for pkg.Fn or recv.Fn calls, the identifier for bare calls.
func calleeName(call *ast.CallExpr) string {
	switch fn := call.Fun.(type) {
	case *ast.SelectorExpr:
		return fn.Sel.Name
	case *ast.Ident:
		return fn.Name
	}
	return ""
}

// stringLit extracts the value of a string literal expression.
func stringLit(e ast.Expr) (string, bool) {
	lit, ok := e.(*ast.BasicLit)
	if !ok || lit.Kind != token.STRING {
		return "", false
	}
	s, err := strconv.Unquote(lit.Value)
	if err != nil {
		return "", false
	}
	return s, true
}

func contains(set []string, name string) bool {
	for _, s := range set {
		if s == name {
			return true
		}
	}
	return false
}
