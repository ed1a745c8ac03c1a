package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVizServer(t *testing.T) {
	s := NewVizServer(VizServerDeps{})
	require.NotNil(t, s)
	assert.NotNil(t, s.mcpServer)
	assert.NotNil(t, s.watches)
}

func TestToolRegistration(t *testing.T) {
	s := NewVizServer(VizServerDeps{})

	tools := s.mcpServer.ListTools()
	require.Len(t, tools, 9)

	expectedTools := []string{
		"hassviz.graph",
		"hassviz.export",
		"hassviz.search",
		"hassviz.validate",
		"hassviz.compare",
		"hassviz.deps",
		"hassviz.preview",
		"hassviz.query",
		"hassviz.watch",
	}
	for _, name := range expectedTools {
		tool := s.mcpServer.GetTool(name)
		assert.NotNil(t, tool, "tool %s should be registered", name)
	}
}
