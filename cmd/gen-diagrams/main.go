// gen-diagrams generates sample diagram outputs for README documentation.
// Run: go run ./cmd/gen-diagrams
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/diagram"
	"github.com/rendis/flowlens/pkg/schema"
)

// Branching workflow: validate → check stock → two arms → approval → ship.
const sampleSrc = `package orders

//workflow:definition
type OrderWorkflow struct{}

//workflow:run
func (w *OrderWorkflow) Run(ctx workflow.Context, in OrderInput) error {
	workflow.ExecuteActivity(ctx, "fetch_data", in)
	workflow.ExecuteActivity(ctx, "validate", in)
	if Decide(in.Quantity > 0, "InStock") {
		workflow.ExecuteActivity(ctx, "process_payment", in)
	} else {
		workflow.ExecuteActivity(ctx, "notify_restock", in)
	}
	workflow.ExecuteChildWorkflow(ctx, "ApprovalWorkflow", in)
	workflow.ExecuteActivity(ctx, "ship", in)
	return nil
}
`

func main() {
	g, err := analyzer.Analyze("sample.go", []byte(sampleSrc), schema.Options{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "analyze error: %v\n", err)
		os.Exit(1)
	}

	model, err := diagram.Build(g)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build error: %v\n", err)
		os.Exit(1)
	}

	outDir := filepath.Join("docs", "assets")
	os.MkdirAll(outDir, 0o755)

	// ASCII
	ascii := diagram.RenderASCII(model)
	os.WriteFile(filepath.Join(outDir, "diagram-ascii.txt"), []byte(ascii), 0o644)
	fmt.Println("=== ASCII ===")
	fmt.Println(ascii)

	// Mermaid
	mermaid := diagram.RenderMermaid(model)
	os.WriteFile(filepath.Join(outDir, "diagram-mermaid.md"), []byte("```mermaid\n"+mermaid+"\n```\n"), 0o644)
	fmt.Println("=== Mermaid ===")
	fmt.Println(mermaid)

	// DOT
	dot := diagram.RenderDOT(model)
	os.WriteFile(filepath.Join(outDir, "diagram.dot"), []byte(dot), 0o644)
	fmt.Println("=== DOT ===")
	fmt.Println(dot)

	// Image (PNG)
	png, imgErr := diagram.RenderImage(model)
	if imgErr != nil {
		fmt.Fprintf(os.Stderr, "image error: %v\n", imgErr)
	} else {
		pngPath := filepath.Join(outDir, "diagram-sample.png")
		os.WriteFile(pngPath, png, 0o644)
		fmt.Printf("=== Image (PNG) ===\nWritten: %s (%d bytes)\n", pngPath, len(png))
	}
}
