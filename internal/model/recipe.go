package model

// Resource is a global item or fluid identity. Type separates the
// namespaces, so "item:water" and "fluid:water" are distinct.
type Resource struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// Key renders the identity as "type:name".
func (r Resource) Key() string {
	return r.Type + ":" + r.Name
}

// Recipe is the dependency-graph view of a recipe.
type Recipe struct {
	Name        string
	Ingredients []Resource
	Products    []Resource

	// WaitingPct is the bottleneck annotation exported by the mod.
	// Nil when the recipe carries no annotation.
	WaitingPct *float64
}

// Sample is one ring-buffer entry of a recipe's sample store.
type Sample struct {
	Tick          int64 `json:"tick"`
	TotalMachines int64 `json:"total_machines"`

	// Waiting maps ingredient name to the number of machines blocked on it.
	// A nil map means the field was absent; a non-nil empty map means it
	// was present with no entries.
	Waiting map[string]int64 `json:"w,omitempty"`
}

// HasWaiting reports whether the sample carries at least one waiting entry.
func (s Sample) HasWaiting() bool {
	return len(s.Waiting) > 0
}

// SampleRecipe is the sample-store view of a recipe: its samples in
// the order they were recorded.
type SampleRecipe struct {
	Name    string
	Samples []Sample

	// Capacity is the ring-buffer size the samples were recorded under.
	// Zero when the snapshot did not declare one.
	Capacity int
}
