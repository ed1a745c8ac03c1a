package panel

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/hassviz/hassviz/internal/store"
)

// requireStore answers 503 when no store is configured.
func (s *Server) requireStore(w http.ResponseWriter) bool {
	if s.deps.Store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no store configured"})
		return false
	}
	return true
}

func (s *Server) handleListThemes(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	themes, err := s.deps.Store.ListThemes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themes)
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	theme, err := s.deps.Store.GetTheme(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, theme)
}

func (s *Server) handleSaveTheme(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	var body struct {
		Colors map[string]string `json:"colors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if len(body.Colors) == 0 {
		writeBadRequest(w, "colors is required")
		return
	}

	theme := &store.Theme{Name: r.PathValue("name"), Colors: body.Colors}
	if err := s.deps.Store.SaveTheme(r.Context(), theme); err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Hub != nil {
		_ = s.deps.Hub.Publish(r.Context(), themeChangedEvent(theme.Name))
	}
	writeJSON(w, http.StatusOK, theme)
}

func (s *Server) handleDeleteTheme(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	if err := s.deps.Store.DeleteTheme(r.Context(), r.PathValue("name")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSetDefaultTheme(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	name := r.PathValue("name")
	if err := s.deps.Store.SetDefaultTheme(r.Context(), name); err != nil {
		writeError(w, err)
		return
	}
	if s.deps.Hub != nil {
		_ = s.deps.Hub.Publish(r.Context(), themeChangedEvent(name))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "default": name})
}

func (s *Server) handleListAnnotations(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	list, err := s.deps.Store.ListAnnotations(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// handleSaveAnnotation upserts a note on an automation or one of its
// nodes. An empty node_id means the automation itself.
func (s *Server) handleSaveAnnotation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	automationID := r.PathValue("id")
	if _, err := s.deps.Registry.Get(automationID); err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		NodeID string `json:"node_id,omitempty"`
		Body   string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if body.Body == "" {
		writeBadRequest(w, "body is required")
		return
	}

	ann := &store.Annotation{AutomationID: automationID, NodeID: body.NodeID, Body: body.Body}
	if err := s.deps.Store.SaveAnnotation(r.Context(), ann); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ann)
}

func (s *Server) handleDeleteAnnotation(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	nodeID := r.URL.Query().Get("node_id")
	if err := s.deps.Store.DeleteAnnotation(r.Context(), r.PathValue("id"), nodeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleGetDefaultTheme returns the active theme, if any is marked
// default.
func (s *Server) handleGetDefaultTheme(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	themes, err := s.deps.Store.ListThemes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	for _, theme := range themes {
		if theme.IsDefault {
			writeJSON(w, http.StatusOK, theme)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "no default theme set"})
}

func (s *Server) handleListAutomationRenders(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	renders, err := s.deps.Store.ListRenders(r.Context(), store.RenderFilter{
		AutomationID: r.PathValue("id"),
		Format:       r.URL.Query().Get("format"),
		Limit:        queryInt(r, "limit", 50),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renders)
}

// handleRecordRender appends a caller-supplied render record, for
// clients that render elsewhere but want history tracked here.
func (s *Server) handleRecordRender(w http.ResponseWriter, r *http.Request) {
	if !s.requireStore(w) {
		return
	}
	automationID := r.PathValue("id")
	if _, err := s.deps.Registry.Get(automationID); err != nil {
		writeError(w, err)
		return
	}

	var body struct {
		Format     string `json:"format"`
		NodeCount  int    `json:"node_count"`
		EdgeCount  int    `json:"edge_count"`
		DurationMs int64  `json:"duration_ms"`
		Error      string `json:"error,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if body.Format == "" {
		writeBadRequest(w, "format is required")
		return
	}

	rec := &store.RenderRecord{
		AutomationID: automationID,
		Format:       body.Format,
		NodeCount:    body.NodeCount,
		EdgeCount:    body.EdgeCount,
		DurationMs:   body.DurationMs,
		Error:        body.Error,
	}
	if err := s.deps.Store.AppendRender(r.Context(), rec); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleAutomationMetrics(w http.ResponseWriter, r *http.Request) {
	automationID := r.PathValue("id")
	if _, err := s.deps.Registry.Get(automationID); err != nil {
		writeError(w, err)
		return
	}
	stats, err := s.deps.Analytics.AutomationRenderStats(r.Context(), automationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Analytics.Overview(r.Context(), s.deps.Registry.List()))
}

func (s *Server) handleRenderStats(w http.ResponseWriter, r *http.Request) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeBadRequest(w, "since must be RFC 3339")
			return
		}
		since = parsed
	}

	stats, err := s.deps.Analytics.RenderStats(r.Context(), since)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Scheduler.Jobs())
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.deps.Scheduler.RunNow(r.Context(), name); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "job": name})
}
