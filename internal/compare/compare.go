package compare

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/hassviz/hassviz/internal/graph"
	"github.com/hassviz/hassviz/internal/search"
	"github.com/hassviz/hassviz/pkg/schema"
)

// Score weights. Entities matter most: two automations touching the same
// devices are the ones a user wants to see side by side.
const (
	weightEntities  = 0.4
	weightServices  = 0.3
	weightPlatforms = 0.1
	weightLabels    = 0.2
)

// Comparator scores automations against each other.
type Comparator struct {
	parser *graph.Parser
	logger *slog.Logger
}

// Comparison is the result of comparing two automations.
type Comparison struct {
	AID             string   `json:"a"`
	BID             string   `json:"b"`
	Score           float64  `json:"score"`
	SharedEntities  []string `json:"shared_entities,omitempty"`
	SharedServices  []string `json:"shared_services,omitempty"`
	SharedPlatforms []string `json:"shared_platforms,omitempty"`
	Diff            Diff     `json:"diff"`
}

// Diff lists node labels present in only one of the two automation graphs.
// Metadata nodes are excluded; they differ by definition.
type Diff struct {
	OnlyInA []string `json:"only_in_a,omitempty"`
	OnlyInB []string `json:"only_in_b,omitempty"`
	Shared  []string `json:"shared,omitempty"`
}

// Suggestion proposes consolidating a group of similar automations.
type Suggestion struct {
	AutomationIDs []string `json:"automation_ids"`
	Score         float64  `json:"score"`
	Reason        string   `json:"reason"`
}

// NewComparator creates a Comparator.
func NewComparator(logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{
		parser: graph.NewParser(),
		logger: logger.With(slog.String("component", "compare")),
	}
}

// Compare scores two automations. The score is a weighted Jaccard overlap
// of their entity, service, platform and graph-label sets, in [0, 1].
func (c *Comparator) Compare(a, b schema.Automation) (*Comparison, error) {
	refsA := search.ExtractReferences(a.Config)
	refsB := search.ExtractReferences(b.Config)

	labelsA, err := c.labels(a)
	if err != nil {
		return nil, err
	}
	labelsB, err := c.labels(b)
	if err != nil {
		return nil, err
	}

	entScore, sharedEntities := jaccard(refsA.Entities, refsB.Entities)
	svcScore, sharedServices := jaccard(refsA.Services, refsB.Services)
	platScore, sharedPlatforms := jaccard(refsA.Platforms, refsB.Platforms)
	labelScore, sharedLabels := jaccard(labelsA, labelsB)

	return &Comparison{
		AID:             a.ID,
		BID:             b.ID,
		Score:           weightEntities*entScore + weightServices*svcScore + weightPlatforms*platScore + weightLabels*labelScore,
		SharedEntities:  sharedEntities,
		SharedServices:  sharedServices,
		SharedPlatforms: sharedPlatforms,
		Diff: Diff{
			OnlyInA: subtract(labelsA, labelsB),
			OnlyInB: subtract(labelsB, labelsA),
			Shared:  sharedLabels,
		},
	}, nil
}

// FindSimilar compares the target against every candidate and returns
// comparisons scoring at or above minScore, best first. The target itself
// is skipped by id.
func (c *Comparator) FindSimilar(target schema.Automation, candidates []schema.Automation, minScore float64) ([]Comparison, error) {
	var out []Comparison
	for _, cand := range candidates {
		if cand.ID == target.ID {
			continue
		}
		cmp, err := c.Compare(target, cand)
		if err != nil {
			c.logger.Debug("skipping candidate", slog.String("automation_id", cand.ID), slog.String("error", err.Error()))
			continue
		}
		if cmp.Score >= minScore {
			out = append(out, *cmp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Consolidation groups automations whose pairwise similarity reaches
// minScore and proposes merging each group. Grouping is transitive: if A
// resembles B and B resembles C, all three land in one suggestion.
func (c *Comparator) Consolidation(automations []schema.Automation, minScore float64) ([]Suggestion, error) {
	n := len(automations)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}

	groupScore := make(map[int]float64)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			cmp, err := c.Compare(automations[i], automations[j])
			if err != nil {
				continue
			}
			if cmp.Score >= minScore {
				ri, rj := find(i), find(j)
				if ri != rj {
					parent[rj] = ri
				}
				root := find(i)
				if cmp.Score > groupScore[root] {
					groupScore[root] = cmp.Score
				}
			}
		}
	}

	groups := make(map[int][]string)
	for i := range automations {
		root := find(i)
		groups[root] = append(groups[root], automations[i].ID)
	}

	var out []Suggestion
	for root, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		out = append(out, Suggestion{
			AutomationIDs: ids,
			Score:         groupScore[root],
			Reason: fmt.Sprintf("%d automations share most of their entities and actions; consider merging them with a choose block", len(ids)),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// labels returns the non-metadata node labels of an automation's graph.
func (c *Comparator) labels(a schema.Automation) ([]string, error) {
	g, err := c.parser.Parse(a.Config)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, n := range g.Nodes {
		if n.Kind != schema.NodeKindMetadata {
			out = append(out, n.Label)
		}
	}
	return out, nil
}

// jaccard returns intersection over union and the sorted intersection. Two empty
// sets score zero, not one: nothing shared is not the same as everything
// shared.
func jaccard(a, b []string) (float64, []string) {
	setA := toSet(a)
	setB := toSet(b)

	var shared []string
	for v := range setA {
		if _, ok := setB[v]; ok {
			shared = append(shared, v)
		}
	}
	sort.Strings(shared)

	union := len(setA) + len(setB) - len(shared)
	if union == 0 {
		return 0, nil
	}
	return float64(len(shared)) / float64(union), shared
}

func subtract(a, b []string) []string {
	setB := toSet(b)
	var out []string
	seen := make(map[string]struct{})
	for _, v := range a {
		if _, ok := setB[v]; ok {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, v := range items {
		set[v] = struct{}{}
	}
	return set
}
