package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/flowlens/internal/batch"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// FlowlensServerDeps holds the dependencies for creating a FlowlensServer.
type FlowlensServerDeps struct {
	Options schema.Options
	Store   store.Store
	Logger  *slog.Logger
}

// FlowlensServer wraps an MCP server with flowlens-specific tool handlers.
type FlowlensServer struct {
	opts      schema.Options
	store     store.Store
	driver    *batch.Driver
	exprEng   *expressions.ExprEngine
	jqEng     *expressions.GoJQEngine
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewFlowlensServer creates a new FlowlensServer with all 5 tools registered.
func NewFlowlensServer(deps FlowlensServerDeps) *FlowlensServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &FlowlensServer{
		opts:    deps.Options,
		store:   deps.Store,
		driver:  batch.NewDriver(deps.Options, 1, deps.Store, logger),
		exprEng: expressions.NewExprEngine(),
		jqEng:   expressions.NewGoJQEngine(),
		logger:  logger,
	}

	mcpSrv := server.NewMCPServer(
		"flowlens",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Flowlens statically analyzes workflow source files into execution graphs. Use flowlens.analyze to build a graph, flowlens.paths to enumerate and filter start-to-end paths, flowlens.diagram to render a visual diagram, flowlens.query to run jq queries over a graph, and flowlens.history to inspect past analysis runs."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *FlowlensServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *FlowlensServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// tools returns the 5 registered MCP tools as ServerTool entries.
func (s *FlowlensServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: analyzeTool(), Handler: s.handleAnalyze},
		{Tool: pathsTool(), Handler: s.handlePaths},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: historyTool(), Handler: s.handleHistory},
	}
}

// --- Tool definitions ---

func analyzeTool() mcp.Tool {
	return mcp.NewTool("flowlens.analyze",
		mcp.WithDescription("Analyze a workflow source file into an execution graph"),
		mcp.WithString("file", mcp.Description("Path to the workflow source file")),
		mcp.WithString("source", mcp.Description("Inline source code (alternative to file)")),
	)
}

func pathsTool() mcp.Tool {
	return mcp.NewTool("flowlens.paths",
		mcp.WithDescription("Enumerate all start-to-end execution paths of a workflow, optionally filtered"),
		mcp.WithString("file", mcp.Description("Path to the workflow source file")),
		mcp.WithString("source", mcp.Description("Inline source code (alternative to file)")),
		mcp.WithString("filter", mcp.Description("Boolean filter over path variables: workflow, length, nodes, labels, decisions, activities")),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("flowlens.diagram",
		mcp.WithDescription("Generate a visual diagram of a workflow. Returns ASCII art, Mermaid flowchart syntax, Graphviz DOT, or base64-encoded PNG image"),
		mcp.WithString("file", mcp.Description("Path to the workflow source file")),
		mcp.WithString("source", mcp.Description("Inline source code (alternative to file)")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("ascii", "mermaid", "dot", "image"),
			mcp.Description("Output format: ascii (text), mermaid (flowchart syntax), dot (Graphviz source), or image (base64 PNG)"),
		),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("flowlens.query",
		mcp.WithDescription("Run a jq expression over the JSON form of a workflow's execution graph"),
		mcp.WithString("file", mcp.Description("Path to the workflow source file")),
		mcp.WithString("source", mcp.Description("Inline source code (alternative to file)")),
		mcp.WithString("expression", mcp.Required(), mcp.Description("jq expression, e.g. '[.nodes[] | select(.kind == \"decision\")]'")),
	)
}

func historyTool() mcp.Tool {
	return mcp.NewTool("flowlens.history",
		mcp.WithDescription("List past analysis runs from the history store"),
		mcp.WithString("run_id", mcp.Description("Fetch one run by ID")),
		mcp.WithObject("filter", mcp.Description("Filter criteria (file, workflow, status, limit)")),
	)
}
