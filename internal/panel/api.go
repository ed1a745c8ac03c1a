package panel

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/hassviz/hassviz/internal/diagram"
	"github.com/hassviz/hassviz/internal/preview"
	"github.com/hassviz/hassviz/internal/store"
	"github.com/hassviz/hassviz/internal/streaming"
	"github.com/hassviz/hassviz/pkg/schema"
)

// automationSummary is the list-view shape of one automation.
type automationSummary struct {
	ID          string `json:"id"`
	Alias       string `json:"alias,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"automations":    s.deps.Registry.Count(),
		"loaded_at":      s.deps.Registry.LoadedAt(),
		"index_built_at": s.deps.Index.BuiltAt(),
	})
}

// handleReload re-reads the automation file and rebuilds the search index.
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := s.deps.Registry.Reload(ctx); err != nil {
		writeError(w, err)
		return
	}
	if err := s.deps.Index.Build(ctx, s.deps.Registry.List()); err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Hub != nil {
		_ = s.deps.Hub.Publish(ctx, streaming.StreamEvent{
			EventType: streaming.EventIndexRefreshed,
			Payload:   map[string]any{"count": s.deps.Registry.Count()},
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "automations": s.deps.Registry.Count()})
}

func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	automations := s.deps.Registry.List()
	out := make([]automationSummary, 0, len(automations))
	for _, a := range automations {
		out = append(out, automationSummary{ID: a.ID, Alias: a.Alias, Description: a.Description})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := s.parser.Parse(a.Config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// handleRender renders one automation's graph in the requested format and
// appends the outcome to the render log.
func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "mermaid"
	}

	a, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	g, err := s.parser.Parse(a.Config)
	if err != nil {
		writeError(w, err)
		return
	}

	start := time.Now()
	var (
		body        []byte
		contentType string
	)
	switch format {
	case "mermaid":
		body, contentType = []byte(diagram.RenderMermaid(g)), "text/plain; charset=utf-8"
	case "text":
		body, contentType = []byte(diagram.RenderText(g)), "text/plain; charset=utf-8"
	case "dot":
		out, renderErr := diagram.RenderDOT(ctx, g)
		err = renderErr
		body, contentType = []byte(out), "text/vnd.graphviz"
	case "png":
		body, err = diagram.RenderImage(ctx, g, diagram.FormatPNG)
		contentType = "image/png"
	case "svg":
		body, err = diagram.RenderImage(ctx, g, diagram.FormatSVG)
		contentType = "image/svg+xml"
	default:
		writeBadRequest(w, "unsupported format: "+format)
		return
	}

	s.logRender(ctx, a.ID, format, g, time.Since(start), err)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// logRender appends one render-log entry. Failures to log are not surfaced
// to the client; the render result takes precedence.
func (s *Server) logRender(ctx context.Context, automationID, format string, g *schema.Graph, took time.Duration, renderErr error) {
	if s.deps.Store == nil {
		return
	}
	rec := &store.RenderRecord{
		AutomationID: automationID,
		Format:       format,
		NodeCount:    len(g.Nodes),
		EdgeCount:    len(g.Edges),
		DurationMs:   took.Milliseconds(),
	}
	if renderErr != nil {
		rec.Error = renderErr.Error()
	}
	if err := s.deps.Store.AppendRender(ctx, rec); err != nil {
		s.deps.Logger.WarnContext(ctx, "append render log failed", "error", err)
	}
}

func (s *Server) handleValidateAutomation(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeValidation(w, s.deps.Validator.Validate(a.Config))
}

func (s *Server) handleValidateConfig(w http.ResponseWriter, r *http.Request) {
	var config any
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	writeValidation(w, s.deps.Validator.Validate(config))
}

// handleParseConfig builds a graph from an inline configuration without
// loading it into the registry.
func (s *Server) handleParseConfig(w http.ResponseWriter, r *http.Request) {
	var config map[string]any
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, schema.NewError(schema.ErrCodeMalformed, "invalid JSON: "+err.Error()))
		return
	}
	g, err := s.parser.Parse(config)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func writeValidation(w http.ResponseWriter, result *schema.ValidationResult) {
	writeJSON(w, http.StatusOK, map[string]any{
		"valid":    result.Valid(),
		"errors":   result.Errors,
		"warnings": result.Warnings,
	})
}

func (s *Server) handleAutomationStats(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.deps.Analytics.AutomationStats(*a)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	minScore := queryFloat(r, "min_score", 0.5)
	similar, err := s.deps.Compare.FindSimilar(*a, s.deps.Registry.List(), minScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, similar)
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Registry.Get(id); err != nil {
		writeError(w, err)
		return
	}
	g := s.deps.Analyzer.Build(s.deps.Registry.List())
	writeJSON(w, http.StatusOK, map[string]any{"automation_id": id, "impact": g.Impact(id)})
}

func (s *Server) handleUpstream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := s.deps.Registry.Get(id); err != nil {
		writeError(w, err)
		return
	}
	g := s.deps.Analyzer.Build(s.deps.Registry.List())
	writeJSON(w, http.StatusOK, map[string]any{"automation_id": id, "upstream": g.Upstream(id)})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeBadRequest(w, "q is required")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Index.Search(q, queryInt(r, "limit", 0)))
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		writeBadRequest(w, "prefix is required")
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Index.Suggest(prefix, queryInt(r, "limit", 0)))
}

func (s *Server) handleSearchOptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Index.Options())
}

func (s *Server) handleByEntity(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id":   entity,
		"automations": s.deps.Index.ByEntity(entity),
	})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	aID, bID := r.URL.Query().Get("a"), r.URL.Query().Get("b")
	if aID == "" || bID == "" {
		writeBadRequest(w, "a and b are required")
		return
	}
	a, err := s.deps.Registry.Get(aID)
	if err != nil {
		writeError(w, err)
		return
	}
	b, err := s.deps.Registry.Get(bID)
	if err != nil {
		writeError(w, err)
		return
	}
	cmp, err := s.deps.Compare.Compare(*a, *b)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (s *Server) handleConsolidation(w http.ResponseWriter, r *http.Request) {
	minScore := queryFloat(r, "min_score", 0.7)
	suggestions, err := s.deps.Compare.Consolidation(s.deps.Registry.List(), minScore)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, suggestions)
}

func (s *Server) handleRelationships(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Analyzer.Build(s.deps.Registry.List()))
}

func (s *Server) handleChains(w http.ResponseWriter, r *http.Request) {
	g := s.deps.Analyzer.Build(s.deps.Registry.List())
	writeJSON(w, http.StatusOK, map[string]any{"chains": g.Chains()})
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	g := s.deps.Analyzer.Build(s.deps.Registry.List())
	writeJSON(w, http.StatusOK, map[string]any{"cycles": g.Cycles()})
}

func (s *Server) handlePreviewEngines(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"engines": s.deps.Preview.Engines()})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AutomationID string `json:"automation_id,omitempty"`
		preview.Request
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.AutomationID != "" {
		a, err := s.deps.Registry.Get(req.AutomationID)
		if err != nil {
			writeError(w, err)
			return
		}
		req.Request.Automation = a
	}

	result, err := s.deps.Preview.Evaluate(r.Context(), req.Request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
