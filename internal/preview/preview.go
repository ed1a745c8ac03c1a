package preview

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hassviz/hassviz/internal/expressions"
	"github.com/hassviz/hassviz/internal/logging"
	"github.com/hassviz/hassviz/pkg/schema"
)

// Service evaluates expressions against a simulated entity-state scope so
// a user can preview what a condition or transform would yield without
// touching the live system.
type Service struct {
	engines map[string]expressions.Engine
	logger  *slog.Logger
}

// EntityState is one simulated entity in a preview request.
type EntityState struct {
	State      string         `json:"state"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Request describes one preview evaluation.
type Request struct {
	Engine     string                 `json:"engine"`
	Expression string                 `json:"expression"`
	States     map[string]EntityState `json:"states,omitempty"`
	Variables  map[string]any         `json:"variables,omitempty"`
	Trigger    map[string]any         `json:"trigger,omitempty"`

	// Automation, when set, contributes its metadata and declared
	// variables to the scope.
	Automation *schema.Automation `json:"-"`
}

// Result is the outcome of one preview evaluation.
type Result struct {
	Engine     string `json:"engine"`
	Expression string `json:"expression"`
	Value      any    `json:"value"`
	DurationMs int64  `json:"duration_ms"`
}

// NewService builds a Service with all three engines registered.
func NewService(logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}

	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}

	engines := map[string]expressions.Engine{}
	for _, e := range []expressions.Engine{celEngine, expressions.NewExprEngine(), expressions.NewGoJQEngine()} {
		engines[e.Name()] = e
	}

	return &Service{
		engines: engines,
		logger:  logger.With(slog.String("component", "preview")),
	}, nil
}

// Engines returns the registered engine names, sorted.
func (s *Service) Engines() []string {
	out := make([]string, 0, len(s.engines))
	for name := range s.engines {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Evaluate runs one preview request.
func (s *Service) Evaluate(ctx context.Context, req Request) (*Result, error) {
	engine, ok := s.engines[req.Engine]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"unknown expression engine %q", req.Engine).
			WithDetails(map[string]any{"available": s.Engines()})
	}
	if req.Expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "expression is required")
	}

	scope := expressions.NewScope()
	for entityID, st := range req.States {
		scope.SetState(entityID, st.State, st.Attributes)
	}
	for name, value := range req.Variables {
		scope.SetVariable(name, value)
	}
	if req.Trigger != nil {
		scope.SetTrigger(req.Trigger)
	}
	if req.Automation != nil {
		scope.ForAutomation(req.Automation)
		ctx = logging.WithAutomationID(ctx, req.Automation.ID)
	}

	start := time.Now()
	value, err := engine.Evaluate(ctx, req.Expression, scope.Data())
	if err != nil {
		logging.LogWith(ctx, s.logger).DebugContext(ctx, "preview evaluation failed",
			slog.String("engine", req.Engine), slog.String("error", err.Error()))
		return nil, err
	}

	return &Result{
		Engine:     req.Engine,
		Expression: req.Expression,
		Value:      value,
		DurationMs: time.Since(start).Milliseconds(),
	}, nil
}
