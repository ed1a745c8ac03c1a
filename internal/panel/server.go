package panel

import (
	"log/slog"
	"net/http"
	"os"

	"github.com/google/uuid"

	"github.com/hassviz/hassviz/internal/analytics"
	"github.com/hassviz/hassviz/internal/compare"
	"github.com/hassviz/hassviz/internal/graph"
	"github.com/hassviz/hassviz/internal/logging"
	"github.com/hassviz/hassviz/internal/preview"
	"github.com/hassviz/hassviz/internal/registry"
	"github.com/hassviz/hassviz/internal/relationship"
	"github.com/hassviz/hassviz/internal/scheduler"
	"github.com/hassviz/hassviz/internal/search"
	"github.com/hassviz/hassviz/internal/store"
	"github.com/hassviz/hassviz/internal/streaming"
	"github.com/hassviz/hassviz/internal/validation"
)

// Deps holds the services the panel server exposes. Store may be nil;
// theme, annotation and render-log routes then answer 503.
type Deps struct {
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

// Server is the JSON API over a loaded automation set.
type Server struct {
	deps   Deps
	parser *graph.Parser
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return &Server{
		deps:   deps,
		parser: graph.NewParser(),
	}
}

// Handler returns the HTTP handler for all API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/reload", s.handleReload)

	// Automations.
	mux.HandleFunc("GET /api/automations", s.handleListAutomations)
	mux.HandleFunc("GET /api/automations/{id}", s.handleGetAutomation)
	mux.HandleFunc("GET /api/automations/{id}/graph", s.handleGraph)
	mux.HandleFunc("GET /api/automations/{id}/render", s.handleRender)
	mux.HandleFunc("GET /api/automations/{id}/validate", s.handleValidateAutomation)
	mux.HandleFunc("GET /api/automations/{id}/stats", s.handleAutomationStats)
	mux.HandleFunc("GET /api/automations/{id}/similar", s.handleSimilar)
	mux.HandleFunc("GET /api/automations/{id}/impact", s.handleImpact)
	mux.HandleFunc("GET /api/automations/{id}/upstream", s.handleUpstream)
	mux.HandleFunc("GET /api/automations/{id}/metrics", s.handleAutomationMetrics)
	mux.HandleFunc("GET /api/automations/{id}/renders", s.handleListAutomationRenders)
	mux.HandleFunc("POST /api/automations/{id}/renders", s.handleRecordRender)
	mux.HandleFunc("POST /api/validate", s.handleValidateConfig)
	mux.HandleFunc("POST /api/graph", s.handleParseConfig)

	// Search.
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/search/suggest", s.handleSuggest)
	mux.HandleFunc("GET /api/search/options", s.handleSearchOptions)
	mux.HandleFunc("GET /api/entities/{entity}/automations", s.handleByEntity)

	// Comparison.
	mux.HandleFunc("GET /api/compare", s.handleCompare)
	mux.HandleFunc("GET /api/consolidation", s.handleConsolidation)

	// Relationships.
	mux.HandleFunc("GET /api/relationships", s.handleRelationships)
	mux.HandleFunc("GET /api/relationships/chains", s.handleChains)
	mux.HandleFunc("GET /api/relationships/cycles", s.handleCycles)

	// Expression preview.
	mux.HandleFunc("GET /api/preview/engines", s.handlePreviewEngines)
	mux.HandleFunc("POST /api/preview", s.handlePreview)

	// Themes and annotations (store-backed).
	mux.HandleFunc("GET /api/themes", s.handleListThemes)
	mux.HandleFunc("GET /api/themes/default", s.handleGetDefaultTheme)
	mux.HandleFunc("GET /api/themes/{name}", s.handleGetTheme)
	mux.HandleFunc("PUT /api/themes/{name}", s.handleSaveTheme)
	mux.HandleFunc("DELETE /api/themes/{name}", s.handleDeleteTheme)
	mux.HandleFunc("POST /api/themes/{name}/default", s.handleSetDefaultTheme)
	mux.HandleFunc("GET /api/automations/{id}/annotations", s.handleListAnnotations)
	mux.HandleFunc("PUT /api/automations/{id}/annotations", s.handleSaveAnnotation)
	mux.HandleFunc("DELETE /api/automations/{id}/annotations", s.handleDeleteAnnotation)

	// Analytics.
	mux.HandleFunc("GET /api/analytics/overview", s.handleOverview)
	mux.HandleFunc("GET /api/analytics/renders", s.handleRenderStats)

	// Scheduler.
	mux.HandleFunc("GET /api/scheduler/jobs", s.handleJobs)
	mux.HandleFunc("POST /api/scheduler/jobs/{name}/run", s.handleRunJob)

	// SSE streams.
	mux.HandleFunc("GET /sse/events", s.handleSSEGlobal)
	mux.HandleFunc("GET /sse/automations/{id}", s.handleSSEAutomation)

	return s.withRequestID(mux)
}

// withRequestID tags every request with a correlation id and logs it.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := logging.WithRequestID(r.Context(), reqID)
		w.Header().Set("X-Request-Id", reqID)

		s.deps.Logger.DebugContext(ctx, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
