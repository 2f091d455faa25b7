package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/flowlens/internal/analyzer"
	"github.com/rendis/flowlens/internal/diagram"
	"github.com/rendis/flowlens/internal/expressions"
	"github.com/rendis/flowlens/internal/store"
	"github.com/rendis/flowlens/pkg/schema"
)

// handleAnalyze builds the execution graph for a workflow source file.
func (s *FlowlensServer) handleAnalyze(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, runID, cached, resErr := s.graphFor(ctx, req)
	if resErr != nil {
		return mcp.NewToolResultError(resErr.Error()), nil
	}

	return marshalResult(map[string]any{
		"run_id": runID,
		"cached": cached,
		"graph":  g,
	})
}

// handlePaths enumerates execution paths, optionally keeping only those
// matching a filter expression.
func (s *FlowlensServer) handlePaths(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	g, _, _, resErr := s.graphFor(ctx, req)
	if resErr != nil {
		return mcp.NewToolResultError(resErr.Error()), nil
	}

	paths := g.Paths
	if filter := req.GetString("filter", ""); filter != "" {
		kept, err := expressions.FilterPaths(ctx, s.exprEng, g, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("path filter failed: %v", err)), nil
		}
		paths = kept
	}

	// Expand node IDs to labels so the result is readable without the graph.
	expanded := make([]map[string]any, 0, len(paths))
	for _, p := range paths {
		labels := make([]string, 0, len(p.Nodes))
		for _, id := range p.Nodes {
			if n := g.Node(id); n != nil {
				labels = append(labels, n.Label)
			}
		}
		expanded = append(expanded, map[string]any{
			"nodes":       p.Nodes,
			"node_labels": labels,
			"edge_labels": p.Labels,
		})
	}

	return marshalResult(map[string]any{
		"workflow": g.Workflow,
		"total":    len(g.Paths),
		"matched":  len(paths),
		"paths":    expanded,
	})
}

// handleDiagram renders the workflow graph in the requested format.
func (s *FlowlensServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}

	g, _, _, resErr := s.graphFor(ctx, req)
	if resErr != nil {
		return mcp.NewToolResultError(resErr.Error()), nil
	}

	model, buildErr := diagram.Build(g)
	if buildErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", buildErr)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCII(model)), nil
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	case "dot":
		return mcp.NewToolResultText(diagram.RenderDOT(model)), nil
	case "image":
		png, imgErr := diagram.RenderImage(model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError("format must be ascii, mermaid, dot, or image"), nil
	}
}

// handleQuery runs a jq expression over the graph's JSON form.
func (s *FlowlensServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}

	g, _, _, resErr := s.graphFor(ctx, req)
	if resErr != nil {
		return mcp.NewToolResultError(resErr.Error()), nil
	}

	results, queryErr := expressions.QueryGraph(ctx, s.jqEng, g, expression)
	if queryErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", queryErr)), nil
	}

	return marshalResult(map[string]any{"results": results})
}

// handleHistory lists or fetches stored analysis runs.
func (s *FlowlensServer) handleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.store == nil {
		return mcp.NewToolResultError("history store is not configured"), nil
	}

	if runID := req.GetString("run_id", ""); runID != "" {
		run, err := s.store.GetRun(ctx, runID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("run lookup failed: %v", err)), nil
		}
		return marshalResult(map[string]any{"run": run})
	}

	filter := mcp.ParseStringMap(req, "filter", nil)
	rf := store.RunFilter{
		Limit: extractInt(filter, "limit", 50),
	}
	if file, ok := filter["file"].(string); ok {
		rf.File = file
	}
	if workflow, ok := filter["workflow"].(string); ok {
		rf.Workflow = workflow
	}
	if status, ok := filter["status"].(string); ok {
		rf.Status = status
	}

	runs, err := s.store.ListRuns(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("history query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"runs": runs})
}

// --- Internal helpers ---

// graphFor resolves the graph from either an inline source or a file path.
// File-based analysis goes through the batch driver so cached hashes are
// reused and runs are recorded.
func (s *FlowlensServer) graphFor(ctx context.Context, req mcp.CallToolRequest) (*schema.Graph, string, bool, error) {
	source := req.GetString("source", "")
	file := req.GetString("file", "")

	switch {
	case source != "":
		g, err := analyzer.Analyze("inline.go", []byte(source), s.opts)
		if err != nil {
			return nil, "", false, fmt.Errorf("analysis failed: %w", err)
		}
		return g, "", false, nil
	case file != "":
		report, err := s.driver.Run(ctx, []string{file})
		if err != nil {
			return nil, "", false, fmt.Errorf("analysis failed: %w", err)
		}
		res := report.Results[0]
		if res.Err != nil {
			return nil, "", false, fmt.Errorf("analysis failed: %w", res.Err)
		}
		return res.Graph, res.RunID, res.Cached, nil
	default:
		return nil, "", false, fmt.Errorf("either file or source is required")
	}
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
