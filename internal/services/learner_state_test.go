package services

import (
	"errors"
	"testing"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
)

func TestComputeLearnerState(t *testing.T) {
	rows := func(ms map[string]float64) []*types.SkillMastery {
		var out []*types.SkillMastery
		for id, m := range ms {
			out = append(out, &types.SkillMastery{SkillID: id, Mastery: m})
		}
		return out
	}

	tests := []struct {
		name  string
		rows  []*types.SkillMastery
		state string
		weak  []string
	}{
		{"empty", nil, types.StateStruggling, []string{}},
		{"struggling", rows(map[string]float64{"recursion": 0.2, "sorting": 0.3}), types.StateStruggling, []string{"recursion", "sorting"}},
		{"learning boundary", rows(map[string]float64{"recursion": 0.7, "sorting": 0.7}), types.StateLearning, []string{}},
		{"learning mixed", rows(map[string]float64{"recursion": 0.39, "sorting": 0.9}), types.StateLearning, []string{"recursion"}},
		{"mastered", rows(map[string]float64{"recursion": 0.8, "sorting": 0.95}), types.StateMastered, []string{}},
		{"weak threshold exclusive", rows(map[string]float64{"recursion": 0.4}), types.StateLearning, []string{}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ComputeLearnerState("s1", tc.rows)
			if got.LearningState != tc.state {
				t.Fatalf("state: got %s want %s", got.LearningState, tc.state)
			}
			if len(got.WeakSkills) != len(tc.weak) {
				t.Fatalf("weak skills: got %v want %v", got.WeakSkills, tc.weak)
			}
			for i := range tc.weak {
				if got.WeakSkills[i] != tc.weak[i] {
					t.Fatalf("weak skills: got %v want %v", got.WeakSkills, tc.weak)
				}
			}
			if got.SkillCount != len(tc.rows) {
				t.Fatalf("skill count: got %d", got.SkillCount)
			}
		})
	}
}

func TestLearnerStateRecomputeAndLatest(t *testing.T) {
	h := newHarness(t)
	h.onboard(t, "s1")

	if _, err := h.learner.Latest(h.dbc, "s1"); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("expected not found before the first recompute, got %v", err)
	}

	first, err := h.learner.Recompute(h.dbc, "s1", nil)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if first.LearningState != types.StateStruggling || len(first.WeakSkills) != len(testSkills) {
		t.Fatalf("unexpected initial state %+v", first)
	}

	row := h.masteryOf(t, "s1", "recursion")
	row.Mastery = 0.95
	if err := h.repos.SkillMastery.Save(h.dbc, row); err != nil {
		t.Fatalf("Save: %v", err)
	}
	second, err := h.learner.Recompute(h.dbc, "s1", nil)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	latest, err := h.learner.Latest(h.dbc, "s1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.ID != second.ID || len(latest.WeakSkills) != len(testSkills)-1 {
		t.Fatalf("latest is not the newest row: %+v", latest)
	}
}
