package mcp

import (
	"context"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hassviz/hassviz/internal/analytics"
	"github.com/hassviz/hassviz/internal/compare"
	"github.com/hassviz/hassviz/internal/graph"
	"github.com/hassviz/hassviz/internal/preview"
	"github.com/hassviz/hassviz/internal/registry"
	"github.com/hassviz/hassviz/internal/relationship"
	"github.com/hassviz/hassviz/internal/scheduler"
	"github.com/hassviz/hassviz/internal/search"
	"github.com/hassviz/hassviz/internal/store"
	"github.com/hassviz/hassviz/internal/streaming"
	"github.com/hassviz/hassviz/internal/validation"
)

// VizServerDeps holds the dependencies for creating a VizServer.
type VizServerDeps struct {
	Registry  *registry.Registry
	Validator *validation.AutomationValidator
	Index     *search.Index
	Compare   *compare.Comparator
	Analyzer  *relationship.Analyzer
	Preview   *preview.Service
	Analytics *analytics.Service
	Scheduler *scheduler.Scheduler
	Store     store.Store
	Hub       streaming.EventHub
	Logger    *slog.Logger
}

// VizServer wraps an MCP server with automation-graph tool handlers.
type VizServer struct {
	deps      VizServerDeps
	parser    *graph.Parser
	watches   *WatchRegistry
	mcpServer *server.MCPServer
}

// NewVizServer creates a new VizServer with all nine tools registered.
func NewVizServer(deps VizServerDeps) *VizServer {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	s := &VizServer{
		deps:    deps,
		parser:  graph.NewParser(),
		watches: NewWatchRegistry(),
	}

	mcpSrv := server.NewMCPServer(
		"hassviz",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Hassviz turns Home Assistant automations into inspectable graphs. Use hassviz.graph to render an automation, hassviz.export for shareable formats, hassviz.search to find automations, hassviz.validate to check configurations, hassviz.compare to score similarity, hassviz.deps for cross-automation dependencies, hassviz.preview to evaluate expressions against simulated states, hassviz.query to list resources, and hassviz.watch to receive change notifications."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *VizServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *VizServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// Notifier returns a hub notifier bound to this server's watch registry.
func (s *VizServer) Notifier() *HubNotifier {
	return NewHubNotifier(s.mcpServer, s.watches, s.deps.Hub)
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *VizServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: graphTool(), Handler: s.handleGraph},
		{Tool: exportTool(), Handler: s.handleExport},
		{Tool: searchTool(), Handler: s.handleSearch},
		{Tool: validateTool(), Handler: s.handleValidate},
		{Tool: compareTool(), Handler: s.handleCompare},
		{Tool: depsTool(), Handler: s.handleDeps},
		{Tool: previewTool(), Handler: s.handlePreview},
		{Tool: queryTool(), Handler: s.handleQuery},
		{Tool: watchTool(), Handler: s.handleWatch},
	}
}

// --- Tool definitions ---

func graphTool() mcp.Tool {
	return mcp.NewTool("hassviz.graph",
		mcp.WithDescription("Render an automation's node/edge graph. Returns JSON, Mermaid flowchart syntax, Graphviz DOT, a text outline, or a base64-encoded PNG image"),
		mcp.WithString("automation_id", mcp.Required(), mcp.Description("ID of the automation to render")),
		mcp.WithString("format",
			mcp.Enum("json", "mermaid", "dot", "text", "image"),
			mcp.Description("Output format (default: json)"),
		),
	)
}

func exportTool() mcp.Tool {
	return mcp.NewTool("hassviz.export",
		mcp.WithDescription("Export an automation graph as Mermaid, Graphviz DOT, a text outline, or a base64-encoded PNG image"),
		mcp.WithString("automation_id", mcp.Required(), mcp.Description("ID of the automation to export")),
		mcp.WithString("format", mcp.Required(),
			mcp.Enum("mermaid", "dot", "text", "image"),
			mcp.Description("Export format"),
		),
	)
}

func searchTool() mcp.Tool {
	return mcp.NewTool("hassviz.search",
		mcp.WithDescription("Search automations by name, entity, service or platform"),
		mcp.WithString("query", mcp.Required(), mcp.Description("Search terms; all must match")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of hits (default: 20)")),
	)
}

func validateTool() mcp.Tool {
	return mcp.NewTool("hassviz.validate",
		mcp.WithDescription("Validate an automation configuration. Checks structure against the automation schema plus semantic rules like nesting depth and empty branches"),
		mcp.WithString("automation_id", mcp.Description("ID of a loaded automation to validate")),
		mcp.WithObject("config", mcp.Description("Raw automation configuration to validate instead of a loaded one")),
	)
}

func compareTool() mcp.Tool {
	return mcp.NewTool("hassviz.compare",
		mcp.WithDescription("Score automation similarity. With two IDs returns their comparison; with one ID returns all similar automations above min_score"),
		mcp.WithString("a", mcp.Required(), mcp.Description("First automation ID")),
		mcp.WithString("b", mcp.Description("Second automation ID (omit to find similar automations)")),
		mcp.WithNumber("min_score", mcp.Description("Similarity threshold for find-similar mode (default: 0.5)")),
	)
}

func depsTool() mcp.Tool {
	return mcp.NewTool("hassviz.deps",
		mcp.WithDescription("Analyze cross-automation relationships derived from shared entities"),
		mcp.WithString("aspect", mcp.Required(),
			mcp.Enum("usage", "dependencies", "chains", "cycles", "impact", "upstream"),
			mcp.Description("Which analysis to return; impact and upstream require automation_id"),
		),
		mcp.WithString("automation_id", mcp.Description("Automation ID for impact or upstream analysis")),
	)
}

func previewTool() mcp.Tool {
	return mcp.NewTool("hassviz.preview",
		mcp.WithDescription("Evaluate an expression against simulated entity states using the cel, expr or jq engine"),
		mcp.WithString("engine", mcp.Required(),
			mcp.Enum("cel", "expr", "jq"),
			mcp.Description("Expression engine"),
		),
		mcp.WithString("expression", mcp.Required(), mcp.Description("Expression to evaluate")),
		mcp.WithObject("states", mcp.Description("Simulated entity states keyed by entity ID, each {state, attributes}")),
		mcp.WithObject("variables", mcp.Description("Variables available to the expression")),
		mcp.WithObject("trigger", mcp.Description("Simulated trigger context")),
		mcp.WithString("automation_id", mcp.Description("Automation whose metadata and variables join the scope")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("hassviz.query",
		mcp.WithDescription("Query automations, themes, annotations, renders, jobs, or analytics"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("automations", "themes", "annotations", "renders", "jobs", "overview"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (automation_id, format, since, limit)")),
	)
}

func watchTool() mcp.Tool {
	return mcp.NewTool("hassviz.watch",
		mcp.WithDescription("Subscribe this session to change notifications, optionally scoped to one automation"),
		mcp.WithString("automation_id", mcp.Description("Automation to watch (omit for all events)")),
	)
}
