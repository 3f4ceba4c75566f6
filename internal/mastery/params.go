package mastery

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const DefaultSkillKey = "default"

// Params are the per-skill BKT probabilities.
type Params struct {
	T float64 `yaml:"T" json:"T"` // learn transition
	G float64 `yaml:"G" json:"G"` // guess
	S float64 `yaml:"S" json:"S"` // slip
}

func (p Params) validate() error {
	for name, v := range map[string]float64{"T": p.T, "G": p.G, "S": p.S} {
		if v < 0 || v >= 1 {
			return fmt.Errorf("%s=%v outside [0,1)", name, v)
		}
	}
	return nil
}

// Tables is the on-disk shape of the parameter file.
type Tables struct {
	Skills        map[string]Params   `yaml:"skills"`
	ErrorWeights  map[string]float64  `yaml:"error_type_weights"`
	Prerequisites map[string][]string `yaml:"skill_prerequisites"`
}

func DefaultTables() Tables {
	return Tables{
		Skills: map[string]Params{
			DefaultSkillKey:       {T: 0.10, G: 0.20, S: 0.10},
			"array_traversal":     {T: 0.15, G: 0.25, S: 0.10},
			"recursion":           {T: 0.08, G: 0.15, S: 0.12},
			"dynamic_programming": {T: 0.05, G: 0.10, S: 0.15},
			"graph_traversal":     {T: 0.07, G: 0.15, S: 0.12},
			"sorting":             {T: 0.12, G: 0.20, S: 0.10},
		},
		ErrorWeights: map[string]float64{
			"missing_base_case":   1.5,
			"null_reference":      1.5,
			"dp_state_transition": 2.0,
			"index_out_of_bounds": 1.3,
			"off_by_one":          1.2,
			"time_limit":          1.1,
			"syntax":              0.8,
		},
		Prerequisites: map[string][]string{
			"recursion":           {"array_traversal"},
			"tree_traversal":      {"recursion"},
			"dynamic_programming": {"recursion", "array_traversal"},
			"graph_traversal":     {"queue_ops", "stack_ops"},
			"two_pointer":         {"array_traversal"},
			"sliding_window":      {"two_pointer"},
			"backtracking":        {"recursion"},
			"heap_ops":            {"tree_traversal"},
		},
	}
}

// LoadTables reads a YAML parameter file. An empty path yields DefaultTables.
// Sections missing from the file fall back to their defaults.
func LoadTables(path string) (Tables, error) {
	def := DefaultTables()
	if strings.TrimSpace(path) == "" {
		return def, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read bkt params %s: %w", path, err)
	}
	var t Tables
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tables{}, fmt.Errorf("parse bkt params %s: %w", path, err)
	}
	if t.Skills == nil {
		t.Skills = def.Skills
	}
	if t.ErrorWeights == nil {
		t.ErrorWeights = def.ErrorWeights
	}
	if t.Prerequisites == nil {
		t.Prerequisites = def.Prerequisites
	}
	return t, nil
}

// frozen is the validated, read-only form of Tables held by an Engine.
type frozen struct {
	params     map[string]Params
	def        Params
	weights    map[string]float64
	weightKeys []string
	prereqs    map[string][]string
}

func freeze(t Tables) (*frozen, error) {
	f := &frozen{
		params:  make(map[string]Params, len(t.Skills)),
		weights: make(map[string]float64, len(t.ErrorWeights)),
		prereqs: make(map[string][]string, len(t.Prerequisites)),
	}
	def, ok := t.Skills[DefaultSkillKey]
	if !ok {
		def = DefaultTables().Skills[DefaultSkillKey]
	}
	if err := def.validate(); err != nil {
		return nil, fmt.Errorf("bkt params %q: %w", DefaultSkillKey, err)
	}
	f.def = def
	for skill, p := range t.Skills {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("bkt params %q: %w", skill, err)
		}
		f.params[skill] = p
	}
	for key, w := range t.ErrorWeights {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		if w <= 0 {
			return nil, fmt.Errorf("error weight %q must be positive, got %v", key, w)
		}
		f.weights[key] = w
		f.weightKeys = append(f.weightKeys, key)
	}
	sort.Strings(f.weightKeys)
	for skill, reqs := range t.Prerequisites {
		f.prereqs[skill] = append([]string(nil), reqs...)
	}
	return f, nil
}
