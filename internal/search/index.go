package search

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hassviz/hassviz/internal/graph"
	"github.com/hassviz/hassviz/pkg/schema"
)

// Index is an in-memory inverted index over loaded automations. Build
// replaces the whole index atomically; queries run against the last
// completed build.
type Index struct {
	parser *graph.Parser
	logger *slog.Logger

	mu      sync.RWMutex
	docs    []document
	builtAt time.Time
}

// document is one indexed automation with its extracted references.
type document struct {
	id        string
	alias     string
	tokens    map[string]struct{}
	entities  []string
	services  []string
	platforms []string
}

// Result is one search hit.
type Result struct {
	AutomationID string   `json:"automation_id"`
	Alias        string   `json:"alias,omitempty"`
	Score        float64  `json:"score"`
	Matches      []string `json:"matches,omitempty"`
}

// FilterOptions lists the distinct values seen across all automations,
// suitable for populating filter dropdowns.
type FilterOptions struct {
	Entities  []string `json:"entities"`
	Services  []string `json:"services"`
	Platforms []string `json:"platforms"`
}

// NewIndex creates an empty index.
func NewIndex(logger *slog.Logger) *Index {
	if logger == nil {
		logger = slog.Default()
	}
	return &Index{
		parser: graph.NewParser(),
		logger: logger.With(slog.String("component", "search")),
	}
}

const buildConcurrency = 4

// Build indexes the given automations, replacing any previous contents.
// Documents are extracted concurrently; automations that fail to parse
// are indexed from their raw config alone.
func (ix *Index) Build(ctx context.Context, automations []schema.Automation) error {
	docs := make([]document, len(automations))
	pool := newIndexPool(buildConcurrency)
	defer pool.Shutdown()

	for i, a := range automations {
		i, a := i, a
		if err := pool.Submit(ctx, func(ctx context.Context) error {
			docs[i] = ix.indexOne(ctx, a)
			return nil
		}); err != nil {
			return err
		}
	}
	pool.Wait()

	ix.mu.Lock()
	ix.docs = docs
	ix.builtAt = time.Now()
	ix.mu.Unlock()

	ix.logger.InfoContext(ctx, "search index built", slog.Int("documents", len(docs)))
	return nil
}

// BuiltAt returns when the index was last built, zero before first Build.
func (ix *Index) BuiltAt() time.Time {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.builtAt
}

func (ix *Index) indexOne(ctx context.Context, a schema.Automation) document {
	doc := document{
		id:     a.ID,
		alias:  a.Alias,
		tokens: make(map[string]struct{}),
	}

	for _, t := range tokenize(a.ID + " " + a.Alias + " " + a.Description) {
		doc.tokens[t] = struct{}{}
	}

	refs := ExtractReferences(a.Config)
	doc.entities = refs.Entities
	doc.services = refs.Services
	doc.platforms = refs.Platforms
	for _, list := range [][]string{refs.Entities, refs.Services, refs.Platforms} {
		for _, v := range list {
			doc.tokens[strings.ToLower(v)] = struct{}{}
			for _, t := range tokenize(v) {
				doc.tokens[t] = struct{}{}
			}
		}
	}

	// Node labels make human phrasings searchable ("delay", "choose").
	if g, err := ix.parser.Parse(a.Config); err == nil {
		for _, n := range g.Nodes {
			for _, t := range tokenize(n.Label) {
				doc.tokens[t] = struct{}{}
			}
		}
	} else {
		ix.logger.DebugContext(ctx, "indexing without graph labels",
			slog.String("automation_id", a.ID), slog.String("error", err.Error()))
	}

	return doc
}

// Search scores every document against the query tokens. A document
// matches when every query token is present (or prefixes an indexed
// token); alias substring matches rank highest.
func (ix *Index) Search(query string, limit int) []Result {
	terms := tokenize(query)
	if len(terms) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 20
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var results []Result
	queryLower := strings.ToLower(strings.TrimSpace(query))
	for _, doc := range ix.docs {
		score, matches := scoreDocument(doc, terms)
		if score == 0 {
			continue
		}
		if doc.alias != "" && strings.Contains(strings.ToLower(doc.alias), queryLower) {
			score += 2
		}
		results = append(results, Result{
			AutomationID: doc.id,
			Alias:        doc.alias,
			Score:        score,
			Matches:      matches,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// Suggest returns indexed tokens starting with the given prefix.
func (ix *Index) Suggest(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, doc := range ix.docs {
		for t := range doc.tokens {
			if strings.HasPrefix(t, prefix) {
				seen[t] = struct{}{}
			}
		}
	}

	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Options returns the distinct entities, services and platforms across the
// index, each sorted.
func (ix *Index) Options() FilterOptions {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entities := make(map[string]struct{})
	services := make(map[string]struct{})
	platforms := make(map[string]struct{})
	for _, doc := range ix.docs {
		for _, v := range doc.entities {
			entities[v] = struct{}{}
		}
		for _, v := range doc.services {
			services[v] = struct{}{}
		}
		for _, v := range doc.platforms {
			platforms[v] = struct{}{}
		}
	}

	return FilterOptions{
		Entities:  sortedKeys(entities),
		Services:  sortedKeys(services),
		Platforms: sortedKeys(platforms),
	}
}

// ByEntity returns the ids of automations referencing the given entity.
func (ix *Index) ByEntity(entityID string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var out []string
	for _, doc := range ix.docs {
		for _, e := range doc.entities {
			if e == entityID {
				out = append(out, doc.id)
				break
			}
		}
	}
	return out
}

func scoreDocument(doc document, terms []string) (float64, []string) {
	var score float64
	var matches []string
	for _, term := range terms {
		if _, ok := doc.tokens[term]; ok {
			score++
			matches = append(matches, term)
			continue
		}
		found := false
		for t := range doc.tokens {
			if strings.HasPrefix(t, term) {
				found = true
				matches = append(matches, t)
				break
			}
		}
		if !found {
			return 0, nil
		}
		score += 0.5
	}
	return score, matches
}

// tokenize lowercases and splits on anything that is not a letter, digit
// or underscore.
func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return false
		default:
			return true
		}
	})
	var out []string
	for _, f := range fields {
		if len(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
