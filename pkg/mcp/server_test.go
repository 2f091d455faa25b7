package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFlowlensServer(t *testing.T) {
	s := NewFlowlensServer(FlowlensServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.logger)
	assert.NotNil(t, s.exprEng)
	assert.NotNil(t, s.jqEng)
}

func TestToolRegistration(t *testing.T) {
	s := NewFlowlensServer(FlowlensServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 5)

	expectedTools := []string{
		"flowlens.analyze",
		"flowlens.paths",
		"flowlens.diagram",
		"flowlens.query",
		"flowlens.history",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}

func TestToolDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		toolName    string
		description string
	}{
		{"analyze", "flowlens.analyze", "Analyze a workflow source file into an execution graph"},
		{"paths", "flowlens.paths", "Enumerate all start-to-end execution paths of a workflow, optionally filtered"},
		{"query", "flowlens.query", "Run a jq expression over the JSON form of a workflow's execution graph"},
		{"history", "flowlens.history", "List past analysis runs from the history store"},
	}

	s := NewFlowlensServer(FlowlensServerDeps{})

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tool := s.mcpServer.GetTool(tc.toolName)
			require.NotNil(t, tool)
			assert.Equal(t, tc.description, tool.Tool.Description)
		})
	}
}
