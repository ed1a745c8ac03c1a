package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hassviz/hassviz/internal/diagram"
	"github.com/hassviz/hassviz/internal/preview"
	"github.com/hassviz/hassviz/internal/store"
)

// handleGraph renders one automation's graph in the requested format.
func (s *VizServer) handleGraph(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	automationID, err := req.RequireString("automation_id")
	if err != nil {
		return mcp.NewToolResultError("automation_id is required"), nil
	}
	format := req.GetString("format", "json")

	a, getErr := s.deps.Registry.Get(automationID)
	if getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("automation lookup failed: %v", getErr)), nil
	}
	g, parseErr := s.parser.Parse(a.Config)
	if parseErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("graph build failed: %v", parseErr)), nil
	}

	switch format {
	case "json":
		return marshalResult(g)
	case "mermaid":
		return mcp.NewToolResultText(diagram.RenderMermaid(g)), nil
	case "text":
		return mcp.NewToolResultText(diagram.RenderText(g)), nil
	case "dot":
		dot, renderErr := diagram.RenderDOT(ctx, g)
		if renderErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("dot render failed: %v", renderErr)), nil
		}
		return mcp.NewToolResultText(dot), nil
	case "image":
		png, renderErr := diagram.RenderImage(ctx, g, diagram.FormatPNG)
		if renderErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", renderErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unsupported format: %s", format)), nil
	}
}

// handleExport renders an automation for export. Same formats as
// hassviz.graph minus json, with format required.
func (s *VizServer) handleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if _, err := req.RequireString("automation_id"); err != nil {
		return mcp.NewToolResultError("automation_id is required"), nil
	}
	format, err := req.RequireString("format")
	if err != nil {
		return mcp.NewToolResultError("format is required"), nil
	}
	if format == "json" {
		return mcp.NewToolResultError("use hassviz.graph for json output"), nil
	}
	return s.handleGraph(ctx, req)
}

// handleSearch runs a query against the search index.
func (s *VizServer) handleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query is required"), nil
	}
	limit := req.GetInt("limit", 0)

	hits := s.deps.Index.Search(query, limit)
	return marshalResult(map[string]any{"hits": hits})
}

// handleValidate validates either a loaded automation or a raw config.
func (s *VizServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	automationID := req.GetString("automation_id", "")
	config := mcp.ParseStringMap(req, "config", nil)

	var target any
	switch {
	case automationID != "":
		a, getErr := s.deps.Registry.Get(automationID)
		if getErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("automation lookup failed: %v", getErr)), nil
		}
		target = a.Config
	case config != nil:
		target = config
	default:
		return mcp.NewToolResultError("one of automation_id or config is required"), nil
	}

	result := s.deps.Validator.Validate(target)
	return marshalResult(map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

// handleCompare compares two automations, or finds similar ones when only
// one ID is given.
func (s *VizServer) handleCompare(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	aID, err := req.RequireString("a")
	if err != nil {
		return mcp.NewToolResultError("a is required"), nil
	}

	a, getErr := s.deps.Registry.Get(aID)
	if getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("automation lookup failed: %v", getErr)), nil
	}

	if bID := req.GetString("b", ""); bID != "" {
		b, getBErr := s.deps.Registry.Get(bID)
		if getBErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("automation lookup failed: %v", getBErr)), nil
		}
		cmp, cmpErr := s.deps.Compare.Compare(*a, *b)
		if cmpErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("compare failed: %v", cmpErr)), nil
		}
		return marshalResult(cmp)
	}

	minScore := req.GetFloat("min_score", 0.5)
	similar, simErr := s.deps.Compare.FindSimilar(*a, s.deps.Registry.List(), minScore)
	if simErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("find similar failed: %v", simErr)), nil
	}
	return marshalResult(map[string]any{"similar": similar})
}

// handleDeps answers relationship questions over the loaded set.
func (s *VizServer) handleDeps(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	aspect, err := req.RequireString("aspect")
	if err != nil {
		return mcp.NewToolResultError("aspect is required"), nil
	}
	automationID := req.GetString("automation_id", "")

	g := s.deps.Analyzer.Build(s.deps.Registry.List())

	switch aspect {
	case "usage":
		return marshalResult(map[string]any{"entity_usage": g.EntityUsage})
	case "dependencies":
		return marshalResult(map[string]any{"dependencies": g.Dependencies})
	case "chains":
		return marshalResult(map[string]any{"chains": g.Chains()})
	case "cycles":
		return marshalResult(map[string]any{"cycles": g.Cycles()})
	case "impact":
		if automationID == "" {
			return mcp.NewToolResultError("impact requires automation_id"), nil
		}
		return marshalResult(map[string]any{"automation_id": automationID, "impact": g.Impact(automationID)})
	case "upstream":
		if automationID == "" {
			return mcp.NewToolResultError("upstream requires automation_id"), nil
		}
		return marshalResult(map[string]any{"automation_id": automationID, "upstream": g.Upstream(automationID)})
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown aspect: %s", aspect)), nil
	}
}

// handlePreview evaluates an expression against a simulated scope.
func (s *VizServer) handlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	engine, err := req.RequireString("engine")
	if err != nil {
		return mcp.NewToolResultError("engine is required"), nil
	}
	expression, err := req.RequireString("expression")
	if err != nil {
		return mcp.NewToolResultError("expression is required"), nil
	}

	previewReq := preview.Request{
		Engine:     engine,
		Expression: expression,
		Variables:  mcp.ParseStringMap(req, "variables", nil),
		Trigger:    mcp.ParseStringMap(req, "trigger", nil),
	}

	// States arrive as a generic map; round-trip through JSON to get the
	// typed shape.
	if states := mcp.ParseStringMap(req, "states", nil); states != nil {
		raw, marshalErr := json.Marshal(states)
		if marshalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid states: %v", marshalErr)), nil
		}
		if unmarshalErr := json.Unmarshal(raw, &previewReq.States); unmarshalErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid states: %v", unmarshalErr)), nil
		}
	}

	if automationID := req.GetString("automation_id", ""); automationID != "" {
		a, getErr := s.deps.Registry.Get(automationID)
		if getErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("automation lookup failed: %v", getErr)), nil
		}
		previewReq.Automation = a
	}

	result, evalErr := s.deps.Preview.Evaluate(ctx, previewReq)
	if evalErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("evaluation failed: %v", evalErr)), nil
	}
	return marshalResult(result)
}

// handleQuery lists automations, themes, annotations, renders or jobs.
func (s *VizServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}
	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "automations":
		return s.queryAutomations()
	case "themes":
		return s.queryThemes(ctx)
	case "annotations":
		return s.queryAnnotations(ctx, filter)
	case "renders":
		return s.queryRenders(ctx, filter)
	case "jobs":
		return marshalResult(map[string]any{"jobs": s.deps.Scheduler.Jobs()})
	case "overview":
		return marshalResult(s.deps.Analytics.Overview(ctx, s.deps.Registry.List()))
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// handleWatch registers the calling session for change notifications.
func (s *VizServer) handleWatch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	session := server.ClientSessionFromContext(ctx)
	if session == nil {
		return mcp.NewToolResultError("watch requires a client session"), nil
	}

	automationID := req.GetString("automation_id", "")
	s.watches.Register(session.SessionID(), automationID)

	return marshalResult(map[string]any{
		"ok":            true,
		"automation_id": automationID,
	})
}

// --- Query helpers ---

func (s *VizServer) queryAutomations() (*mcp.CallToolResult, error) {
	type summary struct {
		ID          string `json:"id"`
		Alias       string `json:"alias,omitempty"`
		Description string `json:"description,omitempty"`
	}

	automations := s.deps.Registry.List()
	out := make([]summary, 0, len(automations))
	for _, a := range automations {
		out = append(out, summary{ID: a.ID, Alias: a.Alias, Description: a.Description})
	}
	return marshalResult(map[string]any{"automations": out})
}

func (s *VizServer) queryThemes(ctx context.Context) (*mcp.CallToolResult, error) {
	if s.deps.Store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	themes, err := s.deps.Store.ListThemes(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"themes": themes})
}

func (s *VizServer) queryAnnotations(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	if s.deps.Store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}
	automationID, _ := filter["automation_id"].(string)
	if automationID == "" {
		return mcp.NewToolResultError("annotation query requires 'automation_id' in filter"), nil
	}
	annotations, err := s.deps.Store.ListAnnotations(ctx, automationID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"annotations": annotations})
}

func (s *VizServer) queryRenders(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	if s.deps.Store == nil {
		return mcp.NewToolResultError("no store configured"), nil
	}

	rf := store.RenderFilter{Limit: extractInt(filter, "limit", 50)}
	if automationID, ok := filter["automation_id"].(string); ok {
		rf.AutomationID = automationID
	}
	if format, ok := filter["format"].(string); ok {
		rf.Format = format
	}
	if since, ok := filter["since"].(string); ok && since != "" {
		if t, parseErr := time.Parse(time.RFC3339, since); parseErr == nil {
			rf.Since = t
		}
	}

	renders, err := s.deps.Store.ListRenders(ctx, rf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	return marshalResult(map[string]any{"renders": renders})
}

// --- Internal helpers ---

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
