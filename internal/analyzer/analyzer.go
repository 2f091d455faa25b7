// Package analyzer derives execution-path graphs from workflow source
// files. The pipeline is Locate → Classify → Build → Enumerate; each
// invocation owns its own state, so files may be analyzed concurrently
// without locking.
package analyzer

import (
	"go/parser"
	"go/token"
	"os"

	"github.com/rendis/flowlens/pkg/schema"
)

// Analyze parses src and derives the execution graph of the single
// workflow it defines, including the enumerated path set. Analysis is
// deterministic: the same input always yields the same node, edge and
// path structure.
func Analyze(filename string, src []byte, opts schema.Options) (*schema.Graph, error) {
	opts = opts.Normalize()

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, filename, src, parser.ParseComments)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "parse failed: %v", err).
			WithFile(filename).WithCause(err)
	}

	def, err := Locate(fset, file, filename, opts)
	if err != nil {
		return nil, err
	}

	graph, err := NewBuilder(def, opts).Build()
	if err != nil {
		return nil, err
	}

	paths, err := Enumerate(graph)
	if err != nil {
		return nil, err
	}
	graph.Paths = paths
	return graph, nil
}

// AnalyzeFile reads and analyzes a workflow source file from disk.
func AnalyzeFile(path string, opts schema.Options) (*schema.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeParse, "read source: %v", err).
			WithFile(path).WithCause(err)
	}
	return Analyze(path, src, opts)
}
