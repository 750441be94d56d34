package samplestore

import (
	"strings"
)

// suspectChars break the mod's string escaping when they appear in a
// recipe name.
const suspectChars = `'"<`

// Anomaly is a recipe name containing suspect characters.
type Anomaly struct {
	Recipe string   `json:"recipe"`
	Chars  []string `json:"chars"`
}

// Diagnostics is the soft-failure report of a snapshot check. Nothing in
// it prevents size estimation.
type Diagnostics struct {
	Recipes int `json:"recipes"`

	// Samples is the snapshot's sample count before eviction.
	Samples int64 `json:"samples"`

	// Retained is what the ring buffers still hold.
	Retained int `json:"retained"`

	// Anomalies lists names containing ', " or <.
	Anomalies []Anomaly `json:"anomalies,omitempty"`

	// Empty lists recipes present in the snapshot with zero samples.
	Empty []string `json:"empty,omitempty"`

	// Evicted counts samples dropped because a recipe exceeded capacity.
	Evicted int64 `json:"evicted"`
}

// OK reports whether no anomaly or empty recipe was found.
func (d Diagnostics) OK() bool {
	return len(d.Anomalies) == 0 && len(d.Empty) == 0
}

// Validate runs the structural checks over a loaded store.
func Validate(s *Store) Diagnostics {
	d := Diagnostics{
		Samples:  s.TotalAdded(),
		Retained: s.SampleCount(),
		Evicted:  s.Evicted(),
	}
	for _, name := range s.Names() {
		d.Recipes++
		if chars := nameAnomalies(name); len(chars) > 0 {
			d.Anomalies = append(d.Anomalies, Anomaly{Recipe: name, Chars: chars})
		}
		if rb := s.Buffer(name); rb == nil || rb.TotalAdded() == 0 {
			d.Empty = append(d.Empty, name)
		}
	}
	return d
}

func nameAnomalies(name string) []string {
	var found []string
	for _, c := range suspectChars {
		if strings.ContainsRune(name, c) {
			found = append(found, string(c))
		}
	}
	return found
}
