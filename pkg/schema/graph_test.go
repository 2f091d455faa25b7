package schema

import "testing"

func TestGraph_MonotonicIDs(t *testing.T) {
	g := NewGraph("W", "w.go")
	a := g.AddNode(NodeKindStart, "Start")
	b := g.AddNode(NodeKindActivity, "validate")
	c := g.AddNode(NodeKindActivity, "validate")
	if a.ID != 0 || b.ID != 1 || c.ID != 2 {
		t.Errorf("expected 0,1,2, got %d,%d,%d", a.ID, b.ID, c.ID)
	}
	if g.Node(1) != b || g.Node(99) != nil || g.Node(-1) != nil {
		t.Error("node lookup broken")
	}
}

func TestGraph_EdgeOrder(t *testing.T) {
	g := NewGraph("W", "")
	d := g.AddNode(NodeKindDecision, "branch")
	x := g.AddNode(NodeKindActivity, "x")
	y := g.AddNode(NodeKindActivity, "y")
	g.AddEdge(d.ID, x.ID, "True")
	g.AddEdge(d.ID, y.ID, "False")

	out := g.Outgoing(d.ID)
	if len(out) != 2 || out[0].Label != "True" || out[1].Label != "False" {
		t.Errorf("outgoing edges must keep creation order, got %v", out)
	}
	if in := g.Incoming(x.ID); len(in) != 1 || in[0].From != d.ID {
		t.Errorf("incoming lookup broken: %v", in)
	}
}

func TestOptions_Normalize(t *testing.T) {
	o := Options{}.Normalize()
	def := DefaultOptions()
	if o.WorkflowMarker != def.WorkflowMarker || o.DecisionFunc != def.DecisionFunc {
		t.Errorf("zero options must normalize to defaults: %+v", o)
	}
	if o.LoopUnroll != 1 || o.Unroll() != 1 {
		t.Errorf("default unroll must be 1, got %d", o.LoopUnroll)
	}

	skip := Options{LoopUnroll: -1}.Normalize()
	if skip.Unroll() != 0 {
		t.Errorf("negative unroll must skip bodies, got %d", skip.Unroll())
	}

	custom := Options{DecisionFunc: "Branch"}.Normalize()
	if custom.DecisionFunc != "Branch" {
		t.Error("explicit values must survive normalization")
	}
}

func TestFlowError_Format(t *testing.T) {
	err := NewErrorf(ErrCodeInvalidDecision, "bad arity").WithPos("w.go:12:4")
	want := "[INVALID_DECISION] w.go:12:4: bad arity"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
	if CodeOf(err) != ErrCodeInvalidDecision {
		t.Error("CodeOf broken")
	}

	wrapped := NewError(ErrCodeStore, "open").WithCause(err)
	if wrapped.Unwrap() != err {
		t.Error("Unwrap broken")
	}
}
