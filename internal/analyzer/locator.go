package analyzer

import (
	"go/ast"
	"go/token"
	"strings"

	"github.com/rendis/flowlens/pkg/schema"
)

// WorkflowDefinition is the located run routine of one workflow class.
// It is built once per analyzed file and never mutated afterwards.
type WorkflowDefinition struct {
	Name    string // workflow struct name
	RunName string // run method name
	File    string
	Body    *ast.BlockStmt
	Fset    *token.FileSet
	Names   *NameTable
}

// NameTable maps identifiers declared at file level to their names. It is
// the explicit name-resolution table handed to the classifier; there is no
// process-wide registry of known activities or workflows.
type NameTable struct {
	names map[string]string
}

// Resolve returns the declared name for an identifier, or the identifier
// text itself when the declaration is not in the analyzed file. Activities
// are not resolved to implementations, only to names.
func (t *NameTable) Resolve(ident string) string {
	if t != nil {
		if n, ok := t.names[ident]; ok {
			return n
		}
	}
	return ident
}

// Locate finds the workflow-marked struct and its run-marked method in a
// parsed file. The marker on the struct, not the method, is authoritative:
// a run-marked method on an unmarked struct still yields NOT_A_WORKFLOW.
func Locate(fset *token.FileSet, file *ast.File, filename string, opts schema.Options) (*WorkflowDefinition, error) {
	marked := workflowStructs(file, opts.WorkflowMarker)

	if len(marked) == 0 {
		err := schema.NewError(schema.ErrCodeNotAWorkflow,
			"no struct carries the "+opts.WorkflowMarker+" marker").WithFile(filename)
		if recv, method := orphanRunMethod(file, opts.RunMarker); method != "" {
			err.Message = "struct " + recv + " has a " + opts.RunMarker +
				" method but lacks the " + opts.WorkflowMarker + " marker"
			err.Workflow = recv
			err.Method = method
		}
		return nil, err
	}
	if len(marked) > 1 {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"file defines %d workflow structs, expected exactly one", len(marked)).
			WithFile(filename)
	}
	workflow := marked[0]

	var run *ast.FuncDecl
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv == nil || !hasDirective(fn.Doc, opts.RunMarker) {
			continue
		}
		if receiverName(fn) != workflow {
			continue
		}
		if run != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"workflow %s has more than one %s method", workflow, opts.RunMarker).
				WithFile(filename).WithWorkflow(workflow)
		}
		run = fn
	}
	if run == nil {
		return nil, schema.NewErrorf(schema.ErrCodeMissingRunMethod,
			"workflow %s has no %s method", workflow, opts.RunMarker).
			WithFile(filename).WithWorkflow(workflow)
	}

	return &WorkflowDefinition{
		Name:    workflow,
		RunName: run.Name.Name,
		File:    filename,
		Body:    run.Body,
		Fset:    fset,
		Names:   buildNameTable(file, opts.ActivityMarker),
	}, nil
}

// workflowStructs returns the names of struct types carrying the workflow
// marker, in source order.
func workflowStructs(file *ast.File, marker string) []string {
	var out []string
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			if _, isStruct := ts.Type.(*ast.StructType); !isStruct {
				continue
			}
			if hasDirective(gen.Doc, marker) || hasDirective(ts.Doc, marker) {
				out = append(out, ts.Name.Name)
			}
		}
	}
	return out
}

// orphanRunMethod finds a run-marked method in a file with no marked
// workflow, for error reporting.
func orphanRunMethod(file *ast.File, marker string) (recv, method string) {
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Recv != nil && hasDirective(fn.Doc, marker) {
			return receiverName(fn), fn.Name.Name
		}
	}
	return "", ""
}

// receiverName returns the receiver type name of a method, unwrapping a
// pointer receiver.
func receiverName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return ""
	}
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	if ident, ok := t.(*ast.Ident); ok {
		return ident.Name
	}
	return ""
}

// hasDirective reports whether a doc comment group contains the given
// directive (a //marker line with no space after the slashes).
func hasDirective(doc *ast.CommentGroup, directive string) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		text := strings.TrimPrefix(c.Text, "//")
		if strings.TrimSpace(text) == directive {
			return true
		}
	}
	return false
}

// buildNameTable collects file-level function and type declarations. The
// entity kinds are resolved once here, at locate time, rather than being
// re-derived at every traversal step. A function tagged with the activity
// marker and an explicit name resolves to that name instead of its
// identifier.
func buildNameTable(file *ast.File, activityMarker string) *NameTable {
	t := &NameTable{names: make(map[string]string)}
	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			if d.Recv != nil {
				continue
			}
			name := d.Name.Name
			if alias := directiveArg(d.Doc, activityMarker); alias != "" {
				name = alias
			}
			t.names[d.Name.Name] = name
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				if ts, ok := spec.(*ast.TypeSpec); ok {
					t.names[ts.Name.Name] = ts.Name.Name
				}
			}
		}
	}
	return t
}

// directiveArg returns the argument of a //marker arg directive, or ""
// when the directive is absent or has no argument.
func directiveArg(doc *ast.CommentGroup, directive string) string {
	if doc == nil {
		return ""
	}
	for _, c := range doc.List {
		text := strings.TrimSpace(strings.TrimPrefix(c.Text, "//"))
		if text == directive {
			return ""
		}
		if strings.HasPrefix(text, directive+" ") {
			return strings.TrimSpace(strings.TrimPrefix(text, directive+" "))
		}
	}
	return ""
}
