package relationship

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/hassviz/hassviz/internal/search"
	"github.com/hassviz/hassviz/pkg/schema"
)

// Analyzer derives entity and automation relationships from raw
// configurations. It never needs the live system: everything comes from
// which entities each automation watches and which it acts on.
type Analyzer struct {
	logger *slog.Logger
}

// Usage records how one entity is used across all automations.
type Usage struct {
	Domain      string   `json:"domain,omitempty"`
	TriggeredBy []string `json:"triggered_by,omitempty"`
	CheckedBy   []string `json:"checked_by,omitempty"`
	ActedOnBy   []string `json:"acted_on_by,omitempty"`
}

// Dependency is one cross-automation edge: From acts on Entity, and Entity
// triggers To. Running From can therefore start To.
type Dependency struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Entity string `json:"entity"`
}

// Graph is the full relationship analysis for one automation set.
type Graph struct {
	EntityUsage  map[string]Usage `json:"entity_usage"`
	Dependencies []Dependency     `json:"dependencies"`

	downstream map[string][]string
	upstream   map[string][]string
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger.With(slog.String("component", "relationship"))}
}

// Build analyzes the given automations.
func (a *Analyzer) Build(automations []schema.Automation) *Graph {
	g := &Graph{
		EntityUsage: make(map[string]Usage),
		downstream:  make(map[string][]string),
		upstream:    make(map[string][]string),
	}

	triggersOn := make(map[string][]string)
	actsOn := make(map[string][]string)

	for _, auto := range automations {
		triggerRefs := sectionRefs(auto.Config, "trigger", "triggers")
		conditionRefs := sectionRefs(auto.Config, "condition", "conditions")
		actionRefs := sectionRefs(auto.Config, "action", "actions")

		for _, e := range triggerRefs.Entities {
			u := g.EntityUsage[e]
			u.Domain = entityDomain(e)
			u.TriggeredBy = appendUnique(u.TriggeredBy, auto.ID)
			g.EntityUsage[e] = u
			triggersOn[e] = appendUnique(triggersOn[e], auto.ID)
		}
		for _, e := range conditionRefs.Entities {
			u := g.EntityUsage[e]
			u.Domain = entityDomain(e)
			u.CheckedBy = appendUnique(u.CheckedBy, auto.ID)
			g.EntityUsage[e] = u
		}
		for _, e := range actionRefs.Entities {
			u := g.EntityUsage[e]
			u.Domain = entityDomain(e)
			u.ActedOnBy = appendUnique(u.ActedOnBy, auto.ID)
			g.EntityUsage[e] = u
			actsOn[e] = appendUnique(actsOn[e], auto.ID)
		}
	}

	seen := make(map[Dependency]struct{})
	for entity, writers := range actsOn {
		for _, from := range writers {
			for _, to := range triggersOn[entity] {
				if from == to {
					continue
				}
				dep := Dependency{From: from, To: to, Entity: entity}
				if _, dup := seen[dep]; dup {
					continue
				}
				seen[dep] = struct{}{}
				g.Dependencies = append(g.Dependencies, dep)
				g.downstream[from] = appendUnique(g.downstream[from], to)
				g.upstream[to] = appendUnique(g.upstream[to], from)
			}
		}
	}

	sort.Slice(g.Dependencies, func(i, j int) bool {
		di, dj := g.Dependencies[i], g.Dependencies[j]
		if di.From != dj.From {
			return di.From < dj.From
		}
		if di.To != dj.To {
			return di.To < dj.To
		}
		return di.Entity < dj.Entity
	})

	a.logger.Debug("relationship graph built",
		slog.Int("entities", len(g.EntityUsage)),
		slog.Int("dependencies", len(g.Dependencies)))
	return g
}

// Impact returns every automation transitively reachable downstream of the
// given one: the set that could be set off by running it.
func (g *Graph) Impact(automationID string) []string {
	return g.reach(automationID, g.downstream)
}

// Upstream returns every automation that can transitively set off the
// given one.
func (g *Graph) Upstream(automationID string) []string {
	return g.reach(automationID, g.upstream)
}

// Chains returns maximal dependency paths starting from automations with
// no upstream edge. Paths stop rather than revisit a node, so a cyclic
// cluster contributes truncated chains, not infinite ones.
func (g *Graph) Chains() [][]string {
	var roots []string
	for from := range g.downstream {
		if len(g.upstream[from]) == 0 {
			roots = append(roots, from)
		}
	}
	sort.Strings(roots)

	var chains [][]string
	for _, root := range roots {
		chains = append(chains, g.extend([]string{root})...)
	}
	return chains
}

// Cycles returns the automation cycles in the dependency graph: an
// automation that can transitively retrigger itself. Each cycle is
// reported once, starting from its smallest id.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	reported := make(map[string]struct{})

	var nodes []string
	for from := range g.downstream {
		nodes = append(nodes, from)
	}
	sort.Strings(nodes)

	for _, start := range nodes {
		if _, done := reported[start]; done {
			continue
		}
		path := g.findCycle(start, start, []string{start}, map[string]struct{}{start: {}})
		if path == nil {
			continue
		}
		path = rotateToSmallest(path)
		key := joinKey(path)
		if _, dup := reported[key]; dup {
			continue
		}
		reported[key] = struct{}{}
		for _, n := range path {
			reported[n] = struct{}{}
		}
		cycles = append(cycles, path)
	}
	return cycles
}

func (g *Graph) reach(start string, edges map[string][]string) []string {
	visited := map[string]struct{}{start: {}}
	queue := []string{start}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range edges[cur] {
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			out = append(out, next)
			queue = append(queue, next)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) extend(path []string) [][]string {
	last := path[len(path)-1]
	var nexts []string
	for _, n := range g.downstream[last] {
		if !contains(path, n) {
			nexts = append(nexts, n)
		}
	}
	if len(nexts) == 0 {
		if len(path) < 2 {
			return nil
		}
		return [][]string{append([]string(nil), path...)}
	}
	sort.Strings(nexts)

	var out [][]string
	for _, n := range nexts {
		out = append(out, g.extend(append(path, n))...)
	}
	return out
}

func (g *Graph) findCycle(start, cur string, path []string, onPath map[string]struct{}) []string {
	for _, next := range g.downstream[cur] {
		if next == start {
			return append([]string(nil), path...)
		}
		if _, ok := onPath[next]; ok {
			continue
		}
		onPath[next] = struct{}{}
		if found := g.findCycle(start, next, append(path, next), onPath); found != nil {
			return found
		}
		delete(onPath, next)
	}
	return nil
}

// sectionRefs extracts references from just the named config sections.
func sectionRefs(config map[string]any, keys ...string) search.References {
	sub := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := config[k]; ok {
			sub[k] = v
		}
	}
	return search.ExtractReferences(sub)
}

// entityDomain returns the part of an entity id before the first dot.
func entityDomain(entityID string) string {
	domain, _, ok := strings.Cut(entityID, ".")
	if !ok {
		return ""
	}
	return domain
}

func appendUnique(list []string, v string) []string {
	if contains(list, v) {
		return list
	}
	return append(list, v)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func rotateToSmallest(path []string) []string {
	min := 0
	for i, v := range path {
		if v < path[min] {
			min = i
		}
	}
	return append(append([]string(nil), path[min:]...), path[:min]...)
}

func joinKey(path []string) string {
	key := ""
	for _, v := range path {
		key += v + "\x00"
	}
	return key
}
