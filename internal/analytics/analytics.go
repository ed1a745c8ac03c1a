package analytics

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/hassviz/hassviz/internal/graph"
	"github.com/hassviz/hassviz/internal/store"
	"github.com/hassviz/hassviz/pkg/schema"
)

// Service computes aggregate metrics over the automation set and the
// render log. All figures are derived on demand; nothing here caches.
type Service struct {
	store  store.Store
	parser *graph.Parser
	logger *slog.Logger
}

// AutomationStats describes one automation's graph shape.
type AutomationStats struct {
	AutomationID string  `json:"automation_id"`
	Alias        string  `json:"alias,omitempty"`
	Nodes        int     `json:"nodes"`
	Edges        int     `json:"edges"`
	Triggers     int     `json:"triggers"`
	Conditions   int     `json:"conditions"`
	Actions      int     `json:"actions"`
	Branches     int     `json:"branches"`
	Complexity   float64 `json:"complexity"`
}

// Overview aggregates the whole automation set.
type Overview struct {
	Automations int            `json:"automations"`
	TotalNodes  int            `json:"total_nodes"`
	TotalEdges  int            `json:"total_edges"`
	ByPlatform  map[string]int `json:"by_platform"`

	// MostComplex holds the top automations by complexity, highest first.
	MostComplex []AutomationStats `json:"most_complex"`
}

// RenderStats summarizes the render log.
type RenderStats struct {
	Total         int            `json:"total"`
	Failures      int            `json:"failures"`
	AvgDurationMs float64        `json:"avg_duration_ms"`
	ByFormat      map[string]int `json:"by_format"`
}

// AutomationRenderStats summarizes the render log for one automation.
type AutomationRenderStats struct {
	AutomationID  string     `json:"automation_id"`
	Total         int        `json:"total"`
	Failures      int        `json:"failures"`
	AvgDurationMs float64    `json:"avg_duration_ms"`
	MinDurationMs int64      `json:"min_duration_ms"`
	MaxDurationMs int64      `json:"max_duration_ms"`
	LastRenderAt  *time.Time `json:"last_render_at,omitempty"`
}

const mostComplexLimit = 5

// NewService creates a Service. The store may be nil; RenderStats then
// returns empty figures.
func NewService(st store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  st,
		parser: graph.NewParser(),
		logger: logger.With(slog.String("component", "analytics")),
	}
}

// AutomationStats computes graph shape figures for one automation.
func (s *Service) AutomationStats(a schema.Automation) (*AutomationStats, error) {
	g, err := s.parser.Parse(a.Config)
	if err != nil {
		return nil, err
	}

	stats := &AutomationStats{
		AutomationID: a.ID,
		Alias:        a.Alias,
		Nodes:        len(g.Nodes),
		Edges:        len(g.Edges),
		Triggers:     len(g.NodesOfKind(schema.NodeKindTrigger)),
		Conditions:   len(g.NodesOfKind(schema.NodeKindCondition)),
		Actions:      len(g.NodesOfKind(schema.NodeKindAction)),
	}

	// A node with more than one outgoing edge is a branch point. Branching
	// is what makes an automation hard to read, so it weighs double.
	outDegree := make(map[string]int, len(g.Nodes))
	for _, e := range g.Edges {
		outDegree[e.From]++
	}
	for _, n := range outDegree {
		if n > 1 {
			stats.Branches++
		}
	}
	stats.Complexity = float64(stats.Nodes) + 2*float64(stats.Branches)

	return stats, nil
}

// Overview aggregates stats across all automations. Automations that fail
// to parse are counted but contribute no graph figures.
func (s *Service) Overview(ctx context.Context, automations []schema.Automation) *Overview {
	o := &Overview{
		Automations: len(automations),
		ByPlatform:  make(map[string]int),
	}

	var all []AutomationStats
	for _, a := range automations {
		stats, err := s.AutomationStats(a)
		if err != nil {
			s.logger.DebugContext(ctx, "skipping automation in overview",
				slog.String("automation_id", a.ID), slog.String("error", err.Error()))
			continue
		}
		o.TotalNodes += stats.Nodes
		o.TotalEdges += stats.Edges
		all = append(all, *stats)

		for _, platform := range triggerPlatforms(a.Config) {
			o.ByPlatform[platform]++
		}
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].Complexity > all[j].Complexity })
	if len(all) > mostComplexLimit {
		all = all[:mostComplexLimit]
	}
	o.MostComplex = all

	return o
}

// RenderStats summarizes render log entries since the given time. A zero
// time means the whole log.
func (s *Service) RenderStats(ctx context.Context, since time.Time) (*RenderStats, error) {
	stats := &RenderStats{ByFormat: make(map[string]int)}
	if s.store == nil {
		return stats, nil
	}

	records, err := s.store.ListRenders(ctx, store.RenderFilter{Since: since})
	if err != nil {
		return nil, err
	}

	var totalDuration int64
	for _, r := range records {
		stats.Total++
		stats.ByFormat[r.Format]++
		if r.Error != "" {
			stats.Failures++
		}
		totalDuration += r.DurationMs
	}
	if stats.Total > 0 {
		stats.AvgDurationMs = float64(totalDuration) / float64(stats.Total)
	}
	return stats, nil
}

// AutomationRenderStats summarizes one automation's render history:
// count, failure count, duration spread and most recent render.
func (s *Service) AutomationRenderStats(ctx context.Context, automationID string) (*AutomationRenderStats, error) {
	stats := &AutomationRenderStats{AutomationID: automationID}
	if s.store == nil {
		return stats, nil
	}

	records, err := s.store.ListRenders(ctx, store.RenderFilter{AutomationID: automationID})
	if err != nil {
		return nil, err
	}

	var totalDuration int64
	for _, r := range records {
		stats.Total++
		if r.Error != "" {
			stats.Failures++
		}
		totalDuration += r.DurationMs
		if stats.Total == 1 || r.DurationMs < stats.MinDurationMs {
			stats.MinDurationMs = r.DurationMs
		}
		if r.DurationMs > stats.MaxDurationMs {
			stats.MaxDurationMs = r.DurationMs
		}
		if stats.LastRenderAt == nil || r.CreatedAt.After(*stats.LastRenderAt) {
			ts := r.CreatedAt
			stats.LastRenderAt = &ts
		}
	}
	if stats.Total > 0 {
		stats.AvgDurationMs = float64(totalDuration) / float64(stats.Total)
	}
	return stats, nil
}

// triggerPlatforms lists the trigger platforms of one configuration,
// duplicates included: two state triggers count twice.
func triggerPlatforms(config map[string]any) []string {
	raw := config["triggers"]
	if raw == nil {
		raw = config["trigger"]
	}

	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case map[string]any:
		list = []any{v}
	default:
		return nil
	}

	var out []string
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if p, ok := m["platform"].(string); ok && p != "" {
			out = append(out, p)
		} else if p, ok := m["trigger"].(string); ok && p != "" {
			out = append(out, p)
		}
	}
	return out
}
