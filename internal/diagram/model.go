package diagram

// NodeKind classifies a diagram node by its graph node kind.
type NodeKind string

const (
	NodeKindStart    NodeKind = "start"
	NodeKindActivity NodeKind = "activity"
	NodeKindChild    NodeKind = "child_workflow"
	NodeKindDecision NodeKind = "decision"
	NodeKindEnd      NodeKind = "end"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string // node IDs grouped by topological depth
	Paths  [][]string // enumerated execution paths as node ID sequences
}

// Node represents a single step in the diagram.
type Node struct {
	ID    string
	Label string
	Kind  NodeKind
}

// Edge represents a transition between two nodes.
type Edge struct {
	From  string
	To    string
	Label string // branch label, empty for unconditional sequencing
}
