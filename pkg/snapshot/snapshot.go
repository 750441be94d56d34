// Package snapshot decodes the JSON dumps written by the in-game mod:
// the per-recipe sample store and the recipe dependency graph.
//
// Both documents are checked against an embedded JSON schema before
// typed decoding, so structural problems surface as coded errors that
// name the offending location.
package snapshot

import (
	"bytes"
	"embed"
	stderrors "errors"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/logflow/perfkit/internal/model"
	perrors "github.com/logflow/perfkit/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	samplesSchema = "schemas/samples.json"
	graphSchema   = "schemas/graph.json"
)

var (
	compileOnce sync.Once
	compiled    map[string]*jsonschema.Schema
	compileErr  error
)

func schemaFor(name string) (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[string]*jsonschema.Schema, 2)
		compiler := jsonschema.NewCompiler()
		for _, path := range []string{samplesSchema, graphSchema} {
			raw, err := schemaFS.ReadFile(path)
			if err != nil {
				compileErr = err
				return
			}
			if err := compiler.AddResource(path, bytes.NewReader(raw)); err != nil {
				compileErr = err
				return
			}
		}
		for _, path := range []string{samplesSchema, graphSchema} {
			s, err := compiler.Compile(path)
			if err != nil {
				compileErr = err
				return
			}
			compiled[path] = s
		}
	})
	if compileErr != nil {
		return nil, perrors.Wrap(compileErr, perrors.CodeUnknown, "compile snapshot schema")
	}
	return compiled[name], nil
}

// readValidated reads r fully, checks it with the named schema and
// returns the raw bytes for typed decoding.
func readValidated(r io.Reader, schemaName string) ([]byte, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, perrors.Wrap(err, perrors.CodeSourceUnavailable, "read snapshot")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "snapshot is not valid JSON")
	}

	schema, err := schemaFor(schemaName)
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}
	return raw, nil
}

// schemaError maps a validation failure onto the error codes. A missing
// property wins over any other violation found in the same document.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !stderrors.As(err, &ve) {
		return perrors.Wrap(err, perrors.CodeInvalidFormat, "snapshot failed validation")
	}

	leaves := leafErrors(ve, nil)
	for _, leaf := range leaves {
		if strings.HasSuffix(leaf.KeywordLocation, "/required") {
			return perrors.MissingRequiredField(missingField(leaf.Message), location(leaf.InstanceLocation)).
				WithContext("detail", leaf.Message)
		}
	}

	leaf := ve
	if len(leaves) > 0 {
		leaf = leaves[0]
	}
	return perrors.New(perrors.CodeInvalidFormat, "snapshot has an unexpected shape").
		WithContext("location", location(leaf.InstanceLocation)).
		WithContext("detail", leaf.Message)
}

func leafErrors(ve *jsonschema.ValidationError, acc []*jsonschema.ValidationError) []*jsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return append(acc, ve)
	}
	for _, c := range ve.Causes {
		acc = leafErrors(c, acc)
	}
	return acc
}

// missingField extracts the property list from messages of the form
// "missing properties: 'tick', 'total_machines'".
func missingField(msg string) string {
	if i := strings.Index(msg, ":"); i >= 0 {
		msg = msg[i+1:]
	}
	return strings.Trim(strings.TrimSpace(msg), `'"`)
}

func location(ptr string) string {
	if ptr == "" {
		return "/"
	}
	return ptr
}

// emptyTable reports whether raw is the mod's encoding of an empty Lua
// table, which serializes as {} rather than [].
func emptyTable(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("{}")) || bytes.Equal(t, []byte("[]")) || bytes.Equal(t, []byte("null"))
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	if emptyTable(raw) {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type document struct {
	Recipes map[string]json.RawMessage `json:"recipes"`
}

// Samples is a decoded sample-store dump.
type Samples struct {
	// Recipes are sorted by name. Recipes with no samples are kept.
	Recipes []model.SampleRecipe
}

type rawSample struct {
	Tick          int64           `json:"tick"`
	TotalMachines int64           `json:"total_machines"`
	W             json.RawMessage `json:"w"`
}

// DecodeSamples reads a sample-store dump of the form
// {"recipes": {name: [{"tick", "total_machines", "w"?}, ...]}}.
func DecodeSamples(r io.Reader) (*Samples, error) {
	raw, err := readValidated(r, samplesSchema)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode sample snapshot")
	}

	out := &Samples{Recipes: make([]model.SampleRecipe, 0, len(doc.Recipes))}
	for _, name := range sortedKeys(doc.Recipes) {
		list, err := decodeList[rawSample](doc.Recipes[name])
		if err != nil {
			return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode samples").
				WithContext("recipe", name)
		}

		rec := model.SampleRecipe{Name: name, Samples: make([]model.Sample, 0, len(list))}
		for i, rs := range list {
			s := model.Sample{Tick: rs.Tick, TotalMachines: rs.TotalMachines}
			if rs.W != nil && !bytes.Equal(bytes.TrimSpace(rs.W), []byte("null")) {
				s.Waiting = make(map[string]int64)
				if !emptyTable(rs.W) {
					if err := json.Unmarshal(rs.W, &s.Waiting); err != nil {
						return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode waiting table").
							WithContext("recipe", name).
							WithContext("sample", i)
					}
				}
			}
			rec.Samples = append(rec.Samples, s)
		}
		out.Recipes = append(out.Recipes, rec)
	}
	return out, nil
}

// Graph is a decoded recipe-graph dump.
type Graph struct {
	// Recipes are sorted by name.
	Recipes []model.Recipe
}

type rawRecipe struct {
	Ingredients json.RawMessage `json:"ingredients"`
	Products    json.RawMessage `json:"products"`
	WaitingPct  *float64        `json:"waiting_pct"`
}

// DecodeGraph reads a recipe-graph dump of the form
// {"recipes": {name: {"ingredients": [...], "products": [...], "waiting_pct"?}}}.
func DecodeGraph(r io.Reader) (*Graph, error) {
	raw, err := readValidated(r, graphSchema)
	if err != nil {
		return nil, err
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode graph snapshot")
	}

	out := &Graph{Recipes: make([]model.Recipe, 0, len(doc.Recipes))}
	for _, name := range sortedKeys(doc.Recipes) {
		var rr rawRecipe
		if err := json.Unmarshal(doc.Recipes[name], &rr); err != nil {
			return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode recipe").
				WithContext("recipe", name)
		}
		ingredients, err := decodeList[model.Resource](rr.Ingredients)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode ingredients").
				WithContext("recipe", name)
		}
		products, err := decodeList[model.Resource](rr.Products)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.CodeInvalidFormat, "decode products").
				WithContext("recipe", name)
		}
		out.Recipes = append(out.Recipes, model.Recipe{
			Name:        name,
			Ingredients: ingredients,
			Products:    products,
			WaitingPct:  rr.WaitingPct,
		})
	}
	return out, nil
}
