package schema

// Options controls how the analyzer recognizes workflow constructs.
// The zero value is not usable directly; call DefaultOptions or Normalize.
//
// Duplicate call sites of the same activity are always kept as distinct
// nodes. That policy is a documented invariant, not an option.
type Options struct {
	// WorkflowMarker is the doc directive that tags a struct as a workflow
	// definition (written as //workflow:definition).
	WorkflowMarker string `json:"workflow_marker,omitempty"`

	// RunMarker is the doc directive that tags the single run method.
	RunMarker string `json:"run_marker,omitempty"`

	// ActivityMarker is the doc directive that tags a function as an
	// activity. An optional argument overrides the activity's name:
	// //workflow:activity charge_payment registers the function under
	// that name for direct-reference resolution.
	ActivityMarker string `json:"activity_marker,omitempty"`

	// ActivityCalls are the method names recognized as the
	// activity-execution primitive.
	ActivityCalls []string `json:"activity_calls,omitempty"`

	// ChildCalls are the method names recognized as the
	// child-workflow-execution primitive.
	ChildCalls []string `json:"child_calls,omitempty"`

	// DecisionFunc is the name of the decision-marking function.
	DecisionFunc string `json:"decision_func,omitempty"`

	// LoopUnroll is the number of times loop bodies are traversed.
	// 0 means the default of 1. Negative means loop bodies are skipped
	// entirely. Loops are never followed beyond this bounded unrolling.
	LoopUnroll int `json:"loop_unroll,omitempty"`
}

// DefaultOptions returns the options the analyzer ships with.
func DefaultOptions() Options {
	return Options{
		WorkflowMarker: "workflow:definition",
		RunMarker:      "workflow:run",
		ActivityMarker: "workflow:activity",
		ActivityCalls:  []string{"ExecuteActivity"},
		ChildCalls:     []string{"ExecuteChildWorkflow"},
		DecisionFunc:   "Decide",
		LoopUnroll:     1,
	}
}

// Normalize fills unset fields with defaults and returns the result.
func (o Options) Normalize() Options {
	def := DefaultOptions()
	if o.WorkflowMarker == "" {
		o.WorkflowMarker = def.WorkflowMarker
	}
	if o.RunMarker == "" {
		o.RunMarker = def.RunMarker
	}
	if o.ActivityMarker == "" {
		o.ActivityMarker = def.ActivityMarker
	}
	if len(o.ActivityCalls) == 0 {
		o.ActivityCalls = def.ActivityCalls
	}
	if len(o.ChildCalls) == 0 {
		o.ChildCalls = def.ChildCalls
	}
	if o.DecisionFunc == "" {
		o.DecisionFunc = def.DecisionFunc
	}
	if o.LoopUnroll == 0 {
		o.LoopUnroll = def.LoopUnroll
	}
	return o
}

// Unroll returns the effective loop unroll count (never negative).
func (o Options) Unroll() int {
	if o.LoopUnroll < 0 {
		return 0
	}
	if o.LoopUnroll == 0 {
		return 1
	}
	return o.LoopUnroll
}
