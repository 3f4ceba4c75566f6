// Package sequencer picks a student's next problem by minimizing a
// flow-divergence energy over a tiered candidate set.
package sequencer

import (
	"context"
	"fmt"
	"math"
	"sort"
)

type Config struct {
	// MomentumWindow is how many recent outcomes feed momentum.
	MomentumWindow int
	Decay          float64
	Gamma          float64
	// Margin is the half-width of the difficulty window around the target.
	Margin float64
	Alpha  float64
	Beta   float64
	// RedemptionBonus is added (it is negative) when a candidate revisits a
	// recently failed skill.
	RedemptionBonus float64
	// StagnationLookback is how many recent selections count as "seen".
	StagnationLookback int
	// FailureLookback bounds how many failed outcomes feed redemption.
	FailureLookback int
}

func DefaultConfig() Config {
	return Config{
		MomentumWindow:     5,
		Decay:              0.75,
		Gamma:              0.25,
		Margin:             0.2,
		Alpha:              1.0,
		Beta:               0.6,
		RedemptionBonus:    -0.4,
		StagnationLookback: 2,
		FailureLookback:    10,
	}
}

type Candidate struct {
	ID           string
	PrimarySkill string
	Difficulty   float64
}

// Query mirrors the problem bank filter. Empty SkillIDs means any skill and a
// nil bound means unbounded.
type Query struct {
	SkillIDs      []string
	MinDifficulty *float64
	MaxDifficulty *float64
	ExcludeID     string
}

// Source supplies candidates for a query.
type Source interface {
	Candidates(ctx context.Context, q Query) ([]Candidate, error)
}

type Input struct {
	CurrentProblemID string
	// Mastery is the mean over every tracked skill.
	Mastery    float64
	WeakSkills []string
	// RecentOutcomes is oldest first and at most MomentumWindow long.
	RecentOutcomes []bool
	// RecentSkills are the primary skills of the last StagnationLookback selections.
	RecentSkills []string
	// FailedSkills are the primary skills of recently failed problems.
	FailedSkills []string
}

type Tier string

const (
	TierWeakWindow Tier = "weak_window"
	TierWeak       Tier = "weak"
	TierWindow     Tier = "window"
)

type Decision struct {
	Problem         Candidate
	Tier            Tier
	Energy          float64
	Mastery         float64
	Momentum        float64
	TargetChallenge float64
}

type Sequencer struct {
	cfg Config
	src Source
}

func New(cfg Config, src Source) *Sequencer {
	cfg.Margin = clamp(cfg.Margin, 0, 1)
	return &Sequencer{cfg: cfg, src: src}
}

func (s *Sequencer) Config() Config { return s.cfg }

// Momentum weights outcomes (oldest first) by decay^i and averages over the
// window, clamped to [-1, 1].
func Momentum(outcomes []bool, decay float64) float64 {
	if len(outcomes) == 0 {
		return 0
	}
	sum := 0.0
	for i, ok := range outcomes {
		impact := -1.0
		if ok {
			impact = 1.0
		}
		sum += impact * math.Pow(decay, float64(i))
	}
	return clamp(sum/float64(len(outcomes)), -1, 1)
}

func TargetChallenge(mastery, momentum, gamma float64) float64 {
	return clamp(mastery+gamma*momentum, 0, 1)
}

// DifficultyWindow returns [target-margin, target+margin] clipped to [0, 1].
func (c Config) DifficultyWindow(target float64) (lo, hi float64) {
	m := clamp(c.Margin, 0, 1)
	return math.Max(0, target-m), math.Min(1, target+m)
}

// Energy scores a candidate; lower is better.
func (c Config) Energy(cand Candidate, target float64, recent, failed map[string]bool) float64 {
	d := cand.Difficulty - target
	e := c.Alpha * d * d
	if recent[cand.PrimarySkill] {
		e += c.Beta
	} else if failed[cand.PrimarySkill] {
		e += c.RedemptionBonus
	}
	return e
}

// Select runs the tiered filter and returns the lowest-energy candidate. It
// returns nil when no tier yields a candidate.
func (s *Sequencer) Select(ctx context.Context, in Input) (*Decision, error) {
	momentum := Momentum(in.RecentOutcomes, s.cfg.Decay)
	target := TargetChallenge(in.Mastery, momentum, s.cfg.Gamma)
	lo, hi := s.cfg.DifficultyWindow(target)

	type tier struct {
		name Tier
		q    Query
	}
	var tiers []tier
	if len(in.WeakSkills) > 0 {
		tiers = append(tiers,
			tier{TierWeakWindow, Query{SkillIDs: in.WeakSkills, MinDifficulty: &lo, MaxDifficulty: &hi, ExcludeID: in.CurrentProblemID}},
			tier{TierWeak, Query{SkillIDs: in.WeakSkills, ExcludeID: in.CurrentProblemID}},
		)
	}
	tiers = append(tiers, tier{TierWindow, Query{MinDifficulty: &lo, MaxDifficulty: &hi, ExcludeID: in.CurrentProblemID}})

	recent := toSet(in.RecentSkills)
	failed := toSet(in.FailedSkills)

	for _, t := range tiers {
		cands, err := s.src.Candidates(ctx, t.q)
		if err != nil {
			return nil, fmt.Errorf("sequencer: candidates (%s): %w", t.name, err)
		}
		cands = exclude(cands, in.CurrentProblemID)
		if len(cands) == 0 {
			continue
		}
		sort.SliceStable(cands, func(i, j int) bool { return cands[i].ID < cands[j].ID })

		best := -1
		lowest := math.Inf(1)
		for i, c := range cands {
			if e := s.cfg.Energy(c, target, recent, failed); e < lowest {
				lowest = e
				best = i
			}
		}
		return &Decision{
			Problem:         cands[best],
			Tier:            t.name,
			Energy:          lowest,
			Mastery:         in.Mastery,
			Momentum:        momentum,
			TargetChallenge: target,
		}, nil
	}
	return nil, nil
}

func exclude(cands []Candidate, id string) []Candidate {
	if id == "" {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}

func toSet(xs []string) map[string]bool {
	out := make(map[string]bool, len(xs))
	for _, x := range xs {
		out[x] = true
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
