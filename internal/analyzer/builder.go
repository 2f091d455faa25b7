package analyzer

import (
	"bytes"
	"go/ast"
	"go/printer"
	"go/token"
	"strings"

	"github.com/rendis/flowlens/internal/validation"
	"github.com/rendis/flowlens/pkg/schema"
)

// pendingEdge is a node whose outgoing edge is not yet fixed, together
// with the branch label that edge must carry once its target is known.
type pendingEdge struct {
	from  int
	label string
}

// BranchFrame records one active branch region during construction. The
// frames form an explicit stack so traversal depth and join points are
// inspectable without relying on call-stack state.
type BranchFrame struct {
	Decision int    // decision node owning the branch
	Label    string // branch label being traversed
}

// Builder walks a run routine's statement sequence and incrementally
// constructs the execution graph. One Builder serves one analysis
// invocation; nothing is shared across invocations.
type Builder struct {
	graph  *schema.Graph
	cls    *Classifier
	opts   schema.Options
	def    *WorkflowDefinition
	tails  []pendingEdge // nodes whose outgoing edges are still open
	ended  []pendingEdge // tails flushed by return statements
	frames []BranchFrame
}

// NewBuilder creates a builder for the located workflow definition.
func NewBuilder(def *WorkflowDefinition, opts schema.Options) *Builder {
	return &Builder{
		graph: schema.NewGraph(def.Name, def.File),
		cls:   NewClassifier(def.Fset, def.Names, opts),
		opts:  opts,
		def:   def,
	}
}

// Depth returns the number of open branch frames. Zero outside a build.
func (b *Builder) Depth() int {
	return len(b.frames)
}

// Build converts the run routine into a single connected graph and checks
// its structural invariants. Errors carry the workflow, method and file.
func (b *Builder) Build() (*schema.Graph, error) {
	start := b.graph.AddNode(schema.NodeKindStart, "Start")
	b.tails = []pendingEdge{{from: start.ID}}

	if err := b.stmts(b.def.Body.List); err != nil {
		if fe, ok := err.(*schema.FlowError); ok {
			fe.WithFile(b.def.File).WithWorkflow(b.def.Name).WithMethod(b.def.RunName)
		}
		return nil, err
	}

	end := b.graph.AddNode(schema.NodeKindEnd, "End")
	for _, t := range b.ended {
		b.graph.AddEdge(t.from, end.ID, t.label)
	}
	for _, t := range b.tails {
		b.graph.AddEdge(t.from, end.ID, t.label)
	}

	if len(b.frames) != 0 {
		return nil, schema.NewErrorf(schema.ErrCodeGraphIntegrity,
			"%d branch frames left open after traversal", len(b.frames)).
			WithWorkflow(b.def.Name).WithFile(b.def.File)
	}
	if err := validation.CheckGraph(b.graph); err != nil {
		return nil, err
	}
	return b.graph, nil
}

// stmts processes a statement sequence in source order. Statements after
// the tail set has drained (all paths returned) are unreachable and are
// not traversed.
func (b *Builder) stmts(list []ast.Stmt) error {
	for _, s := range list {
		if len(b.tails) == 0 {
			break
		}
		if err := b.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) stmt(s ast.Stmt) error {
	switch x := s.(type) {
	case *ast.ExprStmt:
		return b.exprCalls(x.X)
	case *ast.AssignStmt:
		for _, rhs := range x.Rhs {
			if err := b.exprCalls(rhs); err != nil {
				return err
			}
		}
		return nil
	case *ast.DeclStmt:
		if gen, ok := x.Decl.(*ast.GenDecl); ok {
			for _, spec := range gen.Specs {
				if vs, ok := spec.(*ast.ValueSpec); ok {
					for _, v := range vs.Values {
						if err := b.exprCalls(v); err != nil {
							return err
						}
					}
				}
			}
		}
		return nil
	case *ast.ReturnStmt:
		for _, r := range x.Results {
			if err := b.exprCalls(r); err != nil {
				return err
			}
		}
		b.ended = append(b.ended, b.tails...)
		b.tails = nil
		return nil
	case *ast.IfStmt:
		return b.ifStmt(x)
	case *ast.SwitchStmt:
		return b.switchStmt(x)
	case *ast.ForStmt:
		return b.forStmt(x)
	case *ast.RangeStmt:
		return b.rangeStmt(x)
	case *ast.BlockStmt:
		return b.stmts(x.List)
	case *ast.LabeledStmt:
		return b.stmt(x.Stmt)
	case *ast.GoStmt:
		return b.exprCalls(x.Call)
	case *ast.DeferStmt:
		return b.exprCalls(x.Call)
	}
	// Remaining statement kinds carry no recognized calls.
	return nil
}

// exprCalls locates classified calls inside an expression in evaluation
// order: nested arguments produce their nodes before the enclosing call.
func (b *Builder) exprCalls(e ast.Expr) error {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *ast.CallExpr:
		cc, err := b.cls.Classify(x)
		if err != nil {
			return err
		}
		switch cc.Kind {
		case KindDecision:
			if cc.Ternary {
				return b.ternary(cc)
			}
			if err := b.exprCalls(cc.Cond); err != nil {
				return err
			}
			d := b.appendDecision(cc)
			b.tails = []pendingEdge{{d, "True"}, {d, "False"}}
			return nil
		case KindActivity, KindChildWorkflow:
			for _, a := range x.Args {
				if err := b.exprCalls(a); err != nil {
					return err
				}
			}
			b.appendCall(cc)
			return nil
		default:
			if err := b.exprCalls(x.Fun); err != nil {
				return err
			}
			for _, a := range x.Args {
				if err := b.exprCalls(a); err != nil {
					return err
				}
			}
			return nil
		}
	case *ast.ParenExpr:
		return b.exprCalls(x.X)
	case *ast.UnaryExpr:
		return b.exprCalls(x.X)
	case *ast.StarExpr:
		return b.exprCalls(x.X)
	case *ast.BinaryExpr:
		if err := b.exprCalls(x.X); err != nil {
			return err
		}
		return b.exprCalls(x.Y)
	case *ast.KeyValueExpr:
		return b.exprCalls(x.Value)
	case *ast.CompositeLit:
		for _, el := range x.Elts {
			if err := b.exprCalls(el); err != nil {
				return err
			}
		}
		return nil
	case *ast.IndexExpr:
		if err := b.exprCalls(x.X); err != nil {
			return err
		}
		return b.exprCalls(x.Index)
	case *ast.SelectorExpr:
		return b.exprCalls(x.X)
	case *ast.TypeAssertExpr:
		return b.exprCalls(x.X)
	case *ast.SliceExpr:
		return b.exprCalls(x.X)
	}
	// Function literals are deliberately not entered: their bodies do not
	// run at the point of definition.
	return nil
}

// appendCall creates an activity or child-workflow node and connects the
// current tail set to it. Every call site gets its own node, even when the
// same activity is invoked more than once.
func (b *Builder) appendCall(cc ClassifiedCall) {
	kind := schema.NodeKindActivity
	if cc.Kind == KindChildWorkflow {
		kind = schema.NodeKindChildWorkflow
	}
	n := b.graph.AddNode(kind, cc.Label)
	n.Pos = b.cls.pos(cc.Call.Pos())
	for _, t := range b.tails {
		b.graph.AddEdge(t.from, n.ID, t.label)
	}
	b.tails = []pendingEdge{{from: n.ID}}
}

// appendDecision creates a decision node with True/False branches and
// connects the current tail set to it. Returns the node ID; the caller
// decides how the branch tails continue.
func (b *Builder) appendDecision(cc ClassifiedCall) int {
	n := b.graph.AddNode(schema.NodeKindDecision, cc.Label)
	n.Branches = []string{"True", "False"}
	if cc.Call != nil {
		n.Pos = b.cls.pos(cc.Call.Pos())
	}
	for _, t := range b.tails {
		b.graph.AddEdge(t.from, n.ID, t.label)
	}
	return n.ID
}

// ternary handles the 4-arg decision form: the condition is evaluated
// first, then each value arm becomes a labeled branch even though there is
// no nested statement block. The computed value flows into whichever node
// consumes the joined tails next.
func (b *Builder) ternary(cc ClassifiedCall) error {
	if err := b.exprCalls(cc.Cond); err != nil {
		return err
	}
	d := b.appendDecision(cc)

	b.frames = append(b.frames, BranchFrame{Decision: d, Label: "True"})
	b.tails = []pendingEdge{{d, "True"}}
	if err := b.exprCalls(cc.TrueArm); err != nil {
		return err
	}
	trueTails := b.tails
	b.frames = b.frames[:len(b.frames)-1]

	b.frames = append(b.frames, BranchFrame{Decision: d, Label: "False"})
	b.tails = []pendingEdge{{d, "False"}}
	if err := b.exprCalls(cc.FalseArm); err != nil {
		return err
	}
	falseTails := b.tails
	b.frames = b.frames[:len(b.frames)-1]

	b.tails = append(trueTails, falseTails...)
	return nil
}

// ifStmt opens a branch region: the "if" body runs under label True, the
// else body (or an implicit empty arm) under False, and the tail set after
// the construct is the union of both arms' ending tails. A decision call
// in the condition names the decision; otherwise the condition text is the
// label.
func (b *Builder) ifStmt(s *ast.IfStmt) error {
	if s.Init != nil {
		if err := b.stmt(s.Init); err != nil {
			return err
		}
	}

	label, err := b.condLabel(s.Cond)
	if err != nil {
		return err
	}
	d := b.graph.AddNode(schema.NodeKindDecision, label)
	d.Branches = []string{"True", "False"}
	d.Pos = b.cls.pos(s.Cond.Pos())
	for _, t := range b.tails {
		b.graph.AddEdge(t.from, d.ID, t.label)
	}

	b.frames = append(b.frames, BranchFrame{Decision: d.ID, Label: "True"})
	b.tails = []pendingEdge{{d.ID, "True"}}
	if err := b.stmts(s.Body.List); err != nil {
		return err
	}
	trueTails := b.tails
	b.frames = b.frames[:len(b.frames)-1]

	var falseTails []pendingEdge
	switch els := s.Else.(type) {
	case nil:
		// Absent else: an implicit empty False arm flows straight through.
		falseTails = []pendingEdge{{d.ID, "False"}}
	case *ast.BlockStmt:
		b.frames = append(b.frames, BranchFrame{Decision: d.ID, Label: "False"})
		b.tails = []pendingEdge{{d.ID, "False"}}
		if err := b.stmts(els.List); err != nil {
			return err
		}
		falseTails = b.tails
		b.frames = b.frames[:len(b.frames)-1]
	case *ast.IfStmt:
		b.frames = append(b.frames, BranchFrame{Decision: d.ID, Label: "False"})
		b.tails = []pendingEdge{{d.ID, "False"}}
		if err := b.ifStmt(els); err != nil {
			return err
		}
		falseTails = b.tails
		b.frames = b.frames[:len(b.frames)-1]
	}

	b.tails = append(trueTails, falseTails...)
	return nil
}

// condLabel scans an if condition: activity calls inside the condition
// produce their nodes (the condition is evaluated before the branch), and
// a decision-marking call contributes the decision's name. Without one the
// condition's source text becomes the label.
func (b *Builder) condLabel(cond ast.Expr) (string, error) {
	label := ""
	if err := b.scanCond(cond, &label); err != nil {
		return "", err
	}
	if label == "" {
		label = b.exprString(cond)
	}
	return label, nil
}

func (b *Builder) scanCond(e ast.Expr, label *string) error {
	if e == nil {
		return nil
	}
	switch x := e.(type) {
	case *ast.CallExpr:
		cc, err := b.cls.Classify(x)
		if err != nil {
			return err
		}
		switch cc.Kind {
		case KindDecision:
			if *label == "" {
				*label = cc.Label
			}
			return b.scanCond(cc.Cond, label)
		case KindActivity, KindChildWorkflow:
			for _, a := range x.Args {
				if err := b.scanCond(a, label); err != nil {
					return err
				}
			}
			b.appendCall(cc)
			return nil
		default:
			for _, a := range x.Args {
				if err := b.scanCond(a, label); err != nil {
					return err
				}
			}
			return nil
		}
	case *ast.ParenExpr:
		return b.scanCond(x.X, label)
	case *ast.UnaryExpr:
		return b.scanCond(x.X, label)
	case *ast.BinaryExpr:
		if err := b.scanCond(x.X, label); err != nil {
			return err
		}
		return b.scanCond(x.Y, label)
	case *ast.SelectorExpr:
		return b.scanCond(x.X, label)
	}
	return nil
}

// switchStmt treats a switch as a decision point with one labeled branch
// per case clause. A missing default clause becomes an implicit empty arm,
// mirroring the absent-else rule. A fallthrough hands the case's open
// tails to the next case body instead of the join point.
func (b *Builder) switchStmt(s *ast.SwitchStmt) error {
	if s.Init != nil {
		if err := b.stmt(s.Init); err != nil {
			return err
		}
	}
	label := "switch"
	if s.Tag != nil {
		if err := b.exprCalls(s.Tag); err != nil {
			return err
		}
		label = b.exprString(s.Tag)
	}

	d := b.graph.AddNode(schema.NodeKindDecision, label)
	d.Pos = b.cls.pos(s.Pos())
	for _, t := range b.tails {
		b.graph.AddEdge(t.from, d.ID, t.label)
	}

	var joined, carried []pendingEdge
	hasDefault := false
	for _, raw := range s.Body.List {
		clause, ok := raw.(*ast.CaseClause)
		if !ok {
			continue
		}
		branch := "default"
		if clause.List != nil {
			branch = b.caseLabel(clause.List)
		} else {
			hasDefault = true
		}
		d.Branches = append(d.Branches, branch)

		b.frames = append(b.frames, BranchFrame{Decision: d.ID, Label: branch})
		// Tails carried over a fallthrough flow into this case's body
		// alongside the branch edge from the decision.
		b.tails = append([]pendingEdge{{d.ID, branch}}, carried...)
		carried = nil
		body := clause.Body
		if fallsThrough(body) {
			body = body[:len(body)-1]
		}
		if err := b.stmts(body); err != nil {
			return err
		}
		if fallsThrough(clause.Body) {
			carried = b.tails
		} else {
			joined = append(joined, b.tails...)
		}
		b.frames = b.frames[:len(b.frames)-1]
	}
	joined = append(joined, carried...)
	if !hasDefault {
		d.Branches = append(d.Branches, "default")
		joined = append(joined, pendingEdge{d.ID, "default"})
	}
	b.tails = joined
	return nil
}

// fallsThrough reports whether a case body ends in a fallthrough statement.
// The language only permits it as the final statement of a case.
func fallsThrough(body []ast.Stmt) bool {
	if len(body) == 0 {
		return false
	}
	br, ok := body[len(body)-1].(*ast.BranchStmt)
	return ok && br.Tok == token.FALLTHROUGH
}

// forStmt unrolls a bounded loop: the body is traversed Unroll times as a
// straight-line sequence. No back-edges are ever created, which keeps the
// graph acyclic by construction.
func (b *Builder) forStmt(s *ast.ForStmt) error {
	if s.Init != nil {
		if err := b.stmt(s.Init); err != nil {
			return err
		}
	}
	for i := 0; i < b.opts.Unroll(); i++ {
		if err := b.stmts(s.Body.List); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) rangeStmt(s *ast.RangeStmt) error {
	if err := b.exprCalls(s.X); err != nil {
		return err
	}
	for i := 0; i < b.opts.Unroll(); i++ {
		if err := b.stmts(s.Body.List); err != nil {
			return err
		}
	}
	return nil
}

// exprString renders an expression back to source text for labels.
func (b *Builder) exprString(e ast.Expr) string {
	var buf bytes.Buffer
	if err := printer.Fprint(&buf, b.def.Fset, e); err != nil {
		return "cond"
	}
	return buf.String()
}

// caseLabel joins a case clause's expressions into one branch label.
func (b *Builder) caseLabel(list []ast.Expr) string {
	parts := make([]string, 0, len(list))
	for _, e := range list {
		parts = append(parts, b.exprString(e))
	}
	return strings.Join(parts, ", ")
}
