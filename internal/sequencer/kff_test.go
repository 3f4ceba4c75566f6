package sequencer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySource struct {
	problems []Candidate
	skills   map[string][]string
	queries  []Query
	err      error
}

func (m *memorySource) Candidates(_ context.Context, q Query) ([]Candidate, error) {
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}
	want := toSet(q.SkillIDs)
	var out []Candidate
	for _, p := range m.problems {
		if p.ID == q.ExcludeID {
			continue
		}
		if q.MinDifficulty != nil && p.Difficulty < *q.MinDifficulty {
			continue
		}
		if q.MaxDifficulty != nil && p.Difficulty > *q.MaxDifficulty {
			continue
		}
		if len(want) > 0 {
			hit := false
			for _, s := range m.skills[p.ID] {
				if want[s] {
					hit = true
				}
			}
			if !hit {
				continue
			}
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memorySource) add(id, primary string, difficulty float64, skills ...string) {
	if m.skills == nil {
		m.skills = map[string][]string{}
	}
	if len(skills) == 0 {
		skills = []string{primary}
	}
	m.problems = append(m.problems, Candidate{ID: id, PrimarySkill: primary, Difficulty: difficulty})
	m.skills[id] = skills
}

func TestMomentumWorkedExample(t *testing.T) {
	m := Momentum([]bool{true, true, false}, 0.75)
	assert.InDelta(t, (1+0.75-0.5625)/3, m, 1e-12)
	assert.InDelta(t, 0.396, m, 1e-3)
	assert.InDelta(t, 0.599, TargetChallenge(0.5, m, 0.25), 1e-3)
}

func TestMomentumBounds(t *testing.T) {
	assert.Equal(t, 0.0, Momentum(nil, 0.75))
	assert.Equal(t, 1.0, Momentum([]bool{true}, 0.75))
	assert.Equal(t, -1.0, Momentum([]bool{false}, 0.75))

	for n := 1; n <= 8; n++ {
		for mask := 0; mask < 1<<n; mask++ {
			outcomes := make([]bool, n)
			for i := range outcomes {
				outcomes[i] = mask&(1<<i) != 0
			}
			m := Momentum(outcomes, 0.75)
			assert.GreaterOrEqual(t, m, -1.0)
			assert.LessOrEqual(t, m, 1.0)
		}
	}
	// A decay above 1 would overflow without the clamp.
	assert.Equal(t, 1.0, Momentum([]bool{true, true, true, true}, 3))
}

func TestTargetChallengeClamped(t *testing.T) {
	assert.Equal(t, 1.0, TargetChallenge(0.95, 1, 0.25))
	assert.Equal(t, 0.0, TargetChallenge(0.1, -1, 0.25))
}

func TestDifficultyWindow(t *testing.T) {
	lo, hi := DefaultConfig().DifficultyWindow(0.1)
	assert.Equal(t, 0.0, lo)
	assert.InDelta(t, 0.3, hi, 1e-12)

	lo, hi = Config{Margin: 5}.DifficultyWindow(0.5)
	assert.Equal(t, 0.0, lo)
	assert.Equal(t, 1.0, hi)
}

func TestEnergy(t *testing.T) {
	cfg := DefaultConfig()
	c := Candidate{ID: "p", PrimarySkill: "recursion", Difficulty: 0.7}

	assert.InDelta(t, 0.04, cfg.Energy(c, 0.5, nil, nil), 1e-12)
	assert.InDelta(t, 0.64, cfg.Energy(c, 0.5, map[string]bool{"recursion": true}, nil), 1e-12)
	assert.InDelta(t, -0.36, cfg.Energy(c, 0.5, nil, map[string]bool{"recursion": true}), 1e-12)
	// Recently seen skills get no redemption.
	assert.InDelta(t, 0.64, cfg.Energy(c, 0.5, map[string]bool{"recursion": true}, map[string]bool{"recursion": true}), 1e-12)
}

func TestSelectTierA(t *testing.T) {
	src := &memorySource{}
	src.add("p1", "recursion", 0.5)
	src.add("p2", "recursion", 0.55)
	src.add("p3", "sorting", 0.5)
	src.add("p4", "recursion", 0.95)

	s := New(DefaultConfig(), src)
	d, err := s.Select(context.Background(), Input{
		CurrentProblemID: "p1",
		Mastery:          0.5,
		WeakSkills:       []string{"recursion"},
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "p2", d.Problem.ID)
	assert.Equal(t, TierWeakWindow, d.Tier)
	assert.Equal(t, 0.0, d.Momentum)
	assert.Equal(t, 0.5, d.TargetChallenge)
	assert.Len(t, src.queries, 1)
}

func TestSelectFallsBackToWeakOnly(t *testing.T) {
	src := &memorySource{}
	src.add("p1", "dynamic_programming", 0.95)
	src.add("p2", "sorting", 0.2)

	d, err := New(DefaultConfig(), src).Select(context.Background(), Input{
		Mastery:    0.2,
		WeakSkills: []string{"dynamic_programming"},
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "p1", d.Problem.ID)
	assert.Equal(t, TierWeak, d.Tier)
}

func TestSelectTierCExcludesCurrent(t *testing.T) {
	src := &memorySource{}
	src.add("cur", "sorting", 0.5)
	src.add("other", "hash_table", 0.6)

	d, err := New(DefaultConfig(), src).Select(context.Background(), Input{
		CurrentProblemID: "cur",
		Mastery:          0.5,
		WeakSkills:       []string{"graph_algorithms"},
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "other", d.Problem.ID)
	assert.Equal(t, TierWindow, d.Tier)
	require.Len(t, src.queries, 3)
	for _, q := range src.queries {
		assert.Equal(t, "cur", q.ExcludeID)
	}
}

func TestSelectExcludesCurrentEvenIfSourceReturnsIt(t *testing.T) {
	src := &leakySource{cands: []Candidate{{ID: "cur", Difficulty: 0.5}, {ID: "z", Difficulty: 0.9}}}
	d, err := New(DefaultConfig(), src).Select(context.Background(), Input{CurrentProblemID: "cur", Mastery: 0.5})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "z", d.Problem.ID)
}

type leakySource struct{ cands []Candidate }

func (l *leakySource) Candidates(context.Context, Query) ([]Candidate, error) {
	return append([]Candidate(nil), l.cands...), nil
}

func TestSelectNoCandidates(t *testing.T) {
	src := &memorySource{}
	src.add("only", "sorting", 0.5)
	d, err := New(DefaultConfig(), src).Select(context.Background(), Input{CurrentProblemID: "only", Mastery: 0.5})
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestSelectTieBreaksOnLowestID(t *testing.T) {
	src := &leakySource{cands: []Candidate{
		{ID: "b", PrimarySkill: "x", Difficulty: 0.6},
		{ID: "a", PrimarySkill: "y", Difficulty: 0.4},
		{ID: "c", PrimarySkill: "z", Difficulty: 0.6},
	}}
	d, err := New(DefaultConfig(), src).Select(context.Background(), Input{Mastery: 0.5})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "a", d.Problem.ID)
}

func TestSelectStagnationAndRedemption(t *testing.T) {
	src := &memorySource{}
	src.add("p1", "recursion", 0.5)
	src.add("p2", "sorting", 0.6)
	src.add("p3", "greedy", 0.65)

	d, err := New(DefaultConfig(), src).Select(context.Background(), Input{
		Mastery:      0.5,
		RecentSkills: []string{"recursion"},
		FailedSkills: []string{"greedy"},
	})
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "p3", d.Problem.ID)
	assert.InDelta(t, 0.0225-0.4, d.Energy, 1e-12)
}

func TestSelectSourceError(t *testing.T) {
	src := &memorySource{err: errors.New("boom")}
	_, err := New(DefaultConfig(), src).Select(context.Background(), Input{Mastery: 0.5})
	assert.ErrorContains(t, err, "boom")
}
