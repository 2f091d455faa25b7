package validation

import (
	"testing"

	"github.com/rendis/flowlens/pkg/schema"
)

func wellFormed() *schema.Graph {
	g := schema.NewGraph("W", "w.go")
	start := g.AddNode(schema.NodeKindStart, "Start")
	a := g.AddNode(schema.NodeKindActivity, "validate")
	end := g.AddNode(schema.NodeKindEnd, "End")
	g.AddEdge(start.ID, a.ID, "")
	g.AddEdge(a.ID, end.ID, "")
	return g
}

func assertIntegrity(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	fe, ok := err.(*schema.FlowError)
	if !ok {
		t.Fatalf("expected FlowError, got %T", err)
	}
	if fe.Code != schema.ErrCodeGraphIntegrity {
		t.Errorf("expected GRAPH_INTEGRITY, got %s", fe.Code)
	}
}

func TestCheckGraph_WellFormed(t *testing.T) {
	if err := CheckGraph(wellFormed()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckGraph_Empty(t *testing.T) {
	assertIntegrity(t, CheckGraph(schema.NewGraph("W", "")))
	assertIntegrity(t, CheckGraph(nil))
}

func TestCheckGraph_DanglingNode(t *testing.T) {
	g := wellFormed()
	orphanSource := g.AddNode(schema.NodeKindActivity, "dangling")
	g.AddEdge(0, orphanSource.ID, "")
	assertIntegrity(t, CheckGraph(g))
}

func TestCheckGraph_UnreachableNode(t *testing.T) {
	g := wellFormed()
	island := g.AddNode(schema.NodeKindActivity, "island")
	g.AddEdge(island.ID, 2, "")
	assertIntegrity(t, CheckGraph(g))
}

func TestCheckGraph_TwoStarts(t *testing.T) {
	g := wellFormed()
	s2 := g.AddNode(schema.NodeKindStart, "Start")
	g.AddEdge(s2.ID, 1, "")
	assertIntegrity(t, CheckGraph(g))
}

func TestCheckGraph_StartWithIncoming(t *testing.T) {
	g := wellFormed()
	g.AddEdge(1, 0, "")
	assertIntegrity(t, CheckGraph(g))
}
