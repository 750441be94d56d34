// Package graph builds the producer/consumer dependency graph over
// recipes and computes its structural metrics.
//
// An edge P -> R means recipe P yields a resource that recipe R consumes.
// Self-loops are never emitted.
package graph

import (
	"sort"

	"github.com/logflow/perfkit/internal/model"
)

// ProducerMap maps a resource identity to the sorted, distinct names of
// the recipes that yield it.
type ProducerMap map[model.Resource][]string

// Producers returns the recipes producing r, or nil.
func (m ProducerMap) Producers(r model.Resource) []string {
	return m[r]
}

// BuildProducerMap indexes every product of every recipe.
func BuildProducerMap(recipes []model.Recipe) ProducerMap {
	sets := make(map[model.Resource]map[string]struct{})
	for _, r := range recipes {
		for _, p := range r.Products {
			set, ok := sets[p]
			if !ok {
				set = make(map[string]struct{})
				sets[p] = set
			}
			set[r.Name] = struct{}{}
		}
	}

	m := make(ProducerMap, len(sets))
	for res, set := range sets {
		names := make([]string, 0, len(set))
		for n := range set {
			names = append(names, n)
		}
		sort.Strings(names)
		m[res] = names
	}
	return m
}

// Edge is a directed dependency From -> To through resource Via.
type Edge struct {
	From string         `json:"from"`
	To   string         `json:"to"`
	Via  model.Resource `json:"via"`
}

// Graph is the dependency graph of one recipe snapshot.
type Graph struct {
	recipes   []model.Recipe
	producers ProducerMap
	edges     []Edge
	fanIn     map[string]int
	fanOut    map[string]int
}

// Build constructs the graph. For every recipe R, every ingredient I of R
// and every producer P of I with P != R, one edge P -> R is emitted.
// Ingredient entries are walked as listed; a repeated entry yields
// repeated edges.
func Build(recipes []model.Recipe) *Graph {
	sorted := append([]model.Recipe(nil), recipes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	g := &Graph{
		recipes:   sorted,
		producers: BuildProducerMap(sorted),
		fanIn:     make(map[string]int, len(sorted)),
		fanOut:    make(map[string]int, len(sorted)),
	}

	for _, r := range sorted {
		for _, ing := range r.Ingredients {
			for _, p := range g.producers[ing] {
				if p == r.Name {
					continue
				}
				g.edges = append(g.edges, Edge{From: p, To: r.Name, Via: ing})
				g.fanOut[p]++
				g.fanIn[r.Name]++
			}
		}
	}
	return g
}

// Recipes returns the recipes sorted by name.
func (g *Graph) Recipes() []model.Recipe { return g.recipes }

// ProducerMap returns the producer index.
func (g *Graph) ProducerMap() ProducerMap { return g.producers }

// Edges returns all edges in construction order.
func (g *Graph) Edges() []Edge { return g.edges }

// FanOut returns the number of edges leaving recipe.
func (g *Graph) FanOut(recipe string) int { return g.fanOut[recipe] }

// FanIn returns the number of edges entering recipe.
func (g *Graph) FanIn(recipe string) int { return g.fanIn[recipe] }
