package schema

import "fmt"

// Error codes for structured error reporting.
const (
	ErrCodeNotAWorkflow     = "NOT_A_WORKFLOW"
	ErrCodeMissingRunMethod = "MISSING_RUN_METHOD"
	ErrCodeInvalidDecision  = "INVALID_DECISION"
	ErrCodeGraphIntegrity   = "GRAPH_INTEGRITY"
	ErrCodeUnreachableEnd   = "UNREACHABLE_END"
	ErrCodeParse            = "PARSE_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeStore            = "STORE_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeExecution        = "EXECUTION_ERROR"
)

// FlowError is the structured error type for all flowlens operations.
// It carries the offending file, workflow and method plus the exact call
// site so failures are actionable without re-reading the traversal.
type FlowError struct {
	Code     string         `json:"code"`
	Message  string         `json:"message"`
	File     string         `json:"file,omitempty"`
	Workflow string         `json:"workflow,omitempty"`
	Method   string         `json:"method,omitempty"`
	Pos      string         `json:"pos,omitempty"` // file:line:col of the call site
	Details  map[string]any `json:"details,omitempty"`
	Cause    error          `json:"-"`
}

func (e *FlowError) Error() string {
	switch {
	case e.Pos != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Pos, e.Message)
	case e.File != "":
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.File, e.Message)
	default:
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
}

func (e *FlowError) Unwrap() error {
	return e.Cause
}

// NewError creates a new FlowError.
func NewError(code, message string) *FlowError {
	return &FlowError{Code: code, Message: message}
}

// NewErrorf creates a new FlowError with a formatted message.
func NewErrorf(code, format string, args ...any) *FlowError {
	return &FlowError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithFile attaches the analyzed file name.
func (e *FlowError) WithFile(file string) *FlowError {
	e.File = file
	return e
}

// WithWorkflow attaches the workflow name.
func (e *FlowError) WithWorkflow(name string) *FlowError {
	e.Workflow = name
	return e
}

// WithMethod attaches the run method name.
func (e *FlowError) WithMethod(name string) *FlowError {
	e.Method = name
	return e
}

// WithPos attaches the exact call site position (file:line:col).
func (e *FlowError) WithPos(pos string) *FlowError {
	e.Pos = pos
	return e
}

// WithCause attaches an underlying cause.
func (e *FlowError) WithCause(err error) *FlowError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *FlowError) WithDetails(details map[string]any) *FlowError {
	e.Details = details
	return e
}

// CodeOf returns the FlowError code of err, or "" if err is not a FlowError.
func CodeOf(err error) string {
	if fe, ok := err.(*FlowError); ok {
		return fe.Code
	}
	return ""
}
