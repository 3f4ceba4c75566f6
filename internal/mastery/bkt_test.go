package mastery

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(DefaultTables())
	require.NoError(t, err)
	return e
}

func TestPosterior(t *testing.T) {
	e := newTestEngine(t)

	assert.InDelta(t, 0.18/0.34, e.Posterior(0.2, true, "unmapped_skill"), 1e-9)
	assert.InDelta(t, 0.02/0.66, e.Posterior(0.2, false, "unmapped_skill"), 1e-9)

	// Zero denominator returns the prior unchanged.
	z, err := NewEngine(Tables{Skills: map[string]Params{DefaultSkillKey: {T: 0.1, G: 0, S: 0}}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, z.Posterior(0, true, "x"))
}

func TestErrorWeight(t *testing.T) {
	e := newTestEngine(t)
	assert.Equal(t, 1.2, e.ErrorWeight("Off_By_One"))
	assert.Equal(t, 1.2, e.ErrorWeight("boundary_off_by_one_error"))
	assert.Equal(t, 1.5, e.ErrorWeight("base_case"))
	assert.Equal(t, 1.0, e.ErrorWeight("cosmic_ray"))
	assert.Equal(t, 1.0, e.ErrorWeight(""))
}

func TestUpdateCorrect(t *testing.T) {
	e := newTestEngine(t)
	u := e.Update(0.2, true, "unmapped_skill", "", 1, 60)

	posterior := 0.18 / 0.34
	learned := posterior + (1-posterior)*0.1
	conf := 1 / (1 + 0.3 + 0.05)
	assert.InDelta(t, posterior, u.Posterior, 1e-9)
	assert.InDelta(t, conf, u.Confidence, 1e-9)
	assert.InDelta(t, 0.2+conf*(learned-0.2), u.New, 1e-9)
	assert.Equal(t, 1.0, u.ErrorWeight)
	assert.Equal(t, Params{T: 0.1, G: 0.2, S: 0.1}, u.Params)
}

func TestUpdateIncorrectWeighted(t *testing.T) {
	e := newTestEngine(t)
	base := e.Posterior(0.2, false, "recursion")
	u := e.Update(0.2, false, "recursion", "missing_base_case", 1, 30)

	assert.Equal(t, 1.5, u.ErrorWeight)
	assert.InDelta(t, base/1.5, u.Posterior, 1e-9)
	assert.Less(t, u.New, 0.2)
	assert.GreaterOrEqual(t, u.New, Floor)

	// Weights at or below 1 leave the posterior alone.
	s := e.Update(0.2, false, "recursion", "syntax_error", 1, 30)
	assert.InDelta(t, base, s.Posterior, 1e-9)

	// Weights are ignored on correct submissions.
	c := e.Update(0.2, true, "recursion", "missing_base_case", 1, 30)
	assert.InDelta(t, e.Posterior(0.2, true, "recursion"), c.Posterior, 1e-9)
}

func TestUpdateStaysInBounds(t *testing.T) {
	e := newTestEngine(t)
	m := 0.5
	for i := 0; i < 200; i++ {
		m = e.Update(m, true, "sorting", "", 0, 0).New
	}
	assert.LessOrEqual(t, m, Ceiling)
	for i := 0; i < 200; i++ {
		m = e.Update(m, false, "sorting", "dp_state_transition", 0, 0).New
	}
	assert.GreaterOrEqual(t, m, Floor)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, 1.0, Confidence(0, 0))
	assert.InDelta(t, 1/(1+0.3*3+0.05*2), Confidence(3, 120), 1e-9)
	assert.Equal(t, 0.01, Confidence(1000, 1e7))
}

func TestPrerequisiteBoost(t *testing.T) {
	e := newTestEngine(t)

	assert.Equal(t, 0.05, e.PrerequisiteBoost("dynamic_programming", map[string]float64{
		"recursion":       0.8,
		"array_traversal": 0.9,
	}))
	assert.Equal(t, 0.0, e.PrerequisiteBoost("dynamic_programming", map[string]float64{
		"recursion": 0.75,
	}))
	assert.Equal(t, 0.0, e.PrerequisiteBoost("array_traversal", map[string]float64{}))

	assert.Equal(t, 0.9, ApplyBoost(0.88, 0.05))
	assert.InDelta(t, 0.35, ApplyBoost(0.30, 0.05), 1e-12)
}

func TestWithPrerequisites(t *testing.T) {
	e := newTestEngine(t)
	g := e.WithPrerequisites(map[string][]string{"greedy": {"sorting"}})

	assert.Empty(t, e.Prerequisites("greedy"))
	assert.Equal(t, []string{"sorting"}, g.Prerequisites("greedy"))
	assert.Equal(t, e.Prerequisites("recursion"), g.Prerequisites("recursion"))
}

func TestRecalibrate(t *testing.T) {
	assert.InDelta(t, 0.7*0.5+0.3*0.8, Recalibrate([]float64{0.6, 0.5, 0.4, 0.99}, 0.8), 1e-9)
	assert.Equal(t, 0.42, Recalibrate([]float64{0.6, 0.5}, 0.42))
	assert.Equal(t, Floor, Recalibrate([]float64{0, 0, 0}, 0))
}

func TestLoadTables(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bkt.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
skills:
  default: {T: 0.2, G: 0.3, S: 0.05}
  greedy: {T: 0.5, G: 0.1, S: 0.1}
error_type_weights:
  wrong_greedy_choice: 1.7
`), 0o600))

	tables, err := LoadTables(path)
	require.NoError(t, err)
	assert.Equal(t, Params{T: 0.5, G: 0.1, S: 0.1}, tables.Skills["greedy"])
	assert.Equal(t, 1.7, tables.ErrorWeights["wrong_greedy_choice"])
	assert.Equal(t, DefaultTables().Prerequisites, tables.Prerequisites)

	e, err := NewEngine(tables)
	require.NoError(t, err)
	assert.Equal(t, Params{T: 0.2, G: 0.3, S: 0.05}, e.Params("hash_table"))

	_, err = LoadTables(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	def, err := LoadTables("")
	require.NoError(t, err)
	assert.Equal(t, DefaultTables(), def)
}

func TestNewEngineRejectsBadParams(t *testing.T) {
	_, err := NewEngine(Tables{Skills: map[string]Params{"x": {T: 1.5}}})
	assert.Error(t, err)
	_, err = NewEngine(Tables{ErrorWeights: map[string]float64{"x": -1}})
	assert.Error(t, err)
}

func TestLegacyUpdate(t *testing.T) {
	cfg := DefaultLegacyConfig()
	assert.InDelta(t, 0.5+0.15*0.5, LegacyUpdate(cfg, 0.5, true), 1e-12)
	assert.InDelta(t, 0.5-0.10*0.5, LegacyUpdate(cfg, 0.5, false), 1e-12)
	assert.Equal(t, 0.3, LegacyUpdate(LegacyConfig{LearnGain: 5, Min: 0, Max: 0.3}, 0.2, true))
}
