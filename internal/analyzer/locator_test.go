package analyzer

import (
	"go/parser"
	"go/token"
	"testing"

	"github.com/rendis/flowlens/pkg/schema"
)

func locate(t *testing.T, src string) (*WorkflowDefinition, error) {
	t.Helper()
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "workflow_test.go", src, parser.ParseComments)
	if err != nil {
		t.Fatalf("fixture does not parse: %v", err)
	}
	return Locate(fset, file, "workflow_test.go", schema.DefaultOptions())
}

func TestLocate_WorkflowAndRunMethod(t *testing.T) {
	def, err := locate(t, sequentialSrc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "OrderWorkflow" {
		t.Errorf("expected OrderWorkflow, got %s", def.Name)
	}
	if def.RunName != "Run" {
		t.Errorf("expected Run, got %s", def.RunName)
	}
	if def.Body == nil {
		t.Fatal("run body not captured")
	}
}

func TestLocate_NoWorkflowMarker(t *testing.T) {
	src := `package p

type Plain struct{}

func (p *Plain) Run() error { return nil }
`
	_, err := locate(t, src)
	assertCode(t, err, schema.ErrCodeNotAWorkflow)
}

func TestLocate_RunMethodOnUnmarkedStruct(t *testing.T) {
	// The marker on the struct is authoritative: a run-marked method on an
	// unmarked struct is still not a workflow.
	src := `package p

type Plain struct{}

//workflow:run
func (p *Plain) Run() error { return nil }
`
	_, err := locate(t, src)
	fe := assertCode(t, err, schema.ErrCodeNotAWorkflow)
	if fe.Workflow != "Plain" || fe.Method != "Run" {
		t.Errorf("expected error to name Plain.Run, got %s.%s", fe.Workflow, fe.Method)
	}
}

func TestLocate_MissingRunMethod(t *testing.T) {
	src := `package p

//workflow:definition
type W struct{}

func (w *W) Helper() error { return nil }
`
	_, err := locate(t, src)
	fe := assertCode(t, err, schema.ErrCodeMissingRunMethod)
	if fe.Workflow != "W" {
		t.Errorf("expected error to name workflow W, got %s", fe.Workflow)
	}
}

func TestLocate_MultipleWorkflows(t *testing.T) {
	src := `package p

//workflow:definition
type A struct{}

//workflow:definition
type B struct{}
`
	_, err := locate(t, src)
	assertCode(t, err, schema.ErrCodeValidation)
}

func TestLocate_HelperMethodsNotInspected(t *testing.T) {
	// Activity calls in non-run methods never reach the graph.
	src := `package p

//workflow:definition
type W struct{}

//workflow:run
func (w *W) Run(ctx workflow.Context) error {
	workflow.ExecuteActivity(ctx, "only_this", nil)
	return nil
}

func (w *W) helper(ctx workflow.Context) {
	workflow.ExecuteActivity(ctx, "never_this", nil)
}
`
	g := mustAnalyze(t, src)
	acts := nodesOfKind(g, schema.NodeKindActivity)
	if len(acts) != 1 || acts[0].Label != "only_this" {
		t.Errorf("expected only the run method's call, got %v", labels(acts))
	}
}

func TestLocate_ActivityMarkerAlias(t *testing.T) {
	src := `package p

//workflow:definition
type W struct{}

//workflow:run
func (w *W) Run(ctx workflow.Context) error {
	workflow.ExecuteActivity(ctx, ChargePayment, nil)
	return nil
}

//workflow:activity charge_payment
func ChargePayment() error { return nil }
`
	g := mustAnalyze(t, src)
	acts := nodesOfKind(g, schema.NodeKindActivity)
	if len(acts) != 1 || acts[0].Label != "charge_payment" {
		t.Errorf("expected direct reference to resolve to registered name, got %v", labels(acts))
	}
}

func TestLocate_ValueReceiver(t *testing.T) {
	src := `package p

//workflow:definition
type W struct{}

//workflow:run
func (w W) Run(ctx workflow.Context) error { return nil }
`
	def, err := locate(t, src)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "W" {
		t.Errorf("expected W, got %s", def.Name)
	}
}
