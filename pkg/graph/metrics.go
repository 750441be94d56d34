package graph

import (
	"sort"

	"github.com/logflow/perfkit/internal/model"
	perrors "github.com/logflow/perfkit/pkg/errors"
)

// Defaults for Options.
const (
	DefaultHotThreshold = 5
	DefaultHotTopK      = 10
	DefaultTopK         = 15
)

// Options tunes metric computation. A zero TopK or HotTopK reports every
// entry.
type Options struct {
	// HotThreshold is the producer count a resource must exceed to be hot.
	HotThreshold int

	HotTopK int
	TopK    int
}

// DefaultOptions returns the default report thresholds.
func DefaultOptions() Options {
	return Options{
		HotThreshold: DefaultHotThreshold,
		HotTopK:      DefaultHotTopK,
		TopK:         DefaultTopK,
	}
}

// HotResource is a resource with many distinct producers.
type HotResource struct {
	Resource  model.Resource `json:"resource"`
	Producers int            `json:"producers"`
}

// IngredientEdges is the number of edges an ingredient name contributes
// across all consuming recipes.
type IngredientEdges struct {
	Ingredient string `json:"ingredient"`
	Edges      int    `json:"edges"`
}

// Bottleneck is a recipe the mod flagged with a waiting percentage.
type Bottleneck struct {
	Recipe     string  `json:"recipe"`
	WaitingPct float64 `json:"waiting_pct"`
}

// Degree is a recipe's edge counts.
type Degree struct {
	Recipe string `json:"recipe"`
	FanIn  int    `json:"fan_in"`
	FanOut int    `json:"fan_out"`
}

// Metrics summarises the graph structure.
type Metrics struct {
	Recipes  int     `json:"recipes"`
	Edges    int     `json:"edges"`
	AvgEdges float64 `json:"avg_edges"`

	// HotCount is the number of hot resources before truncation to HotTopK.
	HotCount int           `json:"hot_count"`
	Hot      []HotResource `json:"hot"`

	Ingredients []IngredientEdges `json:"ingredients"`
	Bottlenecks []Bottleneck      `json:"bottlenecks"`
	TopFanOut   []Degree          `json:"top_fan_out"`
}

// AverageEdges returns edges per recipe.
func (g *Graph) AverageEdges() (float64, error) {
	if len(g.recipes) == 0 {
		return 0, perrors.EmptySeries("average edges per recipe")
	}
	return float64(len(g.edges)) / float64(len(g.recipes)), nil
}

// HotResources returns resources with more than threshold producers,
// most producers first.
func (g *Graph) HotResources(threshold int) []HotResource {
	var hot []HotResource
	for res, names := range g.producers {
		if len(names) > threshold {
			hot = append(hot, HotResource{Resource: res, Producers: len(names)})
		}
	}
	sort.Slice(hot, func(i, j int) bool {
		if hot[i].Producers != hot[j].Producers {
			return hot[i].Producers > hot[j].Producers
		}
		return hot[i].Resource.Key() < hot[j].Resource.Key()
	})
	return hot
}

// IngredientConcentration counts edges per ingredient name, most first.
// Ingredients that produce no edge are omitted.
func (g *Graph) IngredientConcentration() []IngredientEdges {
	counts := make(map[string]int)
	for _, e := range g.edges {
		counts[e.Via.Name]++
	}

	out := make([]IngredientEdges, 0, len(counts))
	for name, n := range counts {
		out = append(out, IngredientEdges{Ingredient: name, Edges: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Edges != out[j].Edges {
			return out[i].Edges > out[j].Edges
		}
		return out[i].Ingredient < out[j].Ingredient
	})
	return out
}

// Bottlenecks returns the recipes carrying a waiting_pct annotation,
// highest first. The value is passed through from the snapshot.
func (g *Graph) Bottlenecks() []Bottleneck {
	var out []Bottleneck
	for _, r := range g.recipes {
		if r.WaitingPct != nil {
			out = append(out, Bottleneck{Recipe: r.Name, WaitingPct: *r.WaitingPct})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WaitingPct > out[j].WaitingPct })
	return out
}

// Degrees returns every recipe's fan-in and fan-out, highest fan-out first.
func (g *Graph) Degrees() []Degree {
	out := make([]Degree, 0, len(g.recipes))
	for _, r := range g.recipes {
		out = append(out, Degree{Recipe: r.Name, FanIn: g.fanIn[r.Name], FanOut: g.fanOut[r.Name]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FanOut > out[j].FanOut })
	return out
}

// Metrics computes all graph metrics. It fails with an empty-series error
// when the graph has no recipes.
func (g *Graph) Metrics(opts Options) (*Metrics, error) {
	avg, err := g.AverageEdges()
	if err != nil {
		return nil, err
	}
	if opts.HotThreshold < 0 {
		return nil, perrors.InvalidArgument("hot producer threshold", opts.HotThreshold, "must not be negative")
	}

	hot := g.HotResources(opts.HotThreshold)
	return &Metrics{
		Recipes:     len(g.recipes),
		Edges:       len(g.edges),
		AvgEdges:    avg,
		HotCount:    len(hot),
		Hot:         head(hot, opts.HotTopK),
		Ingredients: head(g.IngredientConcentration(), opts.TopK),
		Bottlenecks: g.Bottlenecks(),
		TopFanOut:   head(g.Degrees(), opts.TopK),
	}, nil
}

func head[T any](xs []T, k int) []T {
	if k <= 0 || len(xs) <= k {
		return xs
	}
	return xs[:k]
}
