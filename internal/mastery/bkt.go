package mastery

import (
	"math"
	"sort"
	"strings"
)

const (
	Floor   = 0.01
	Ceiling = 0.99

	posteriorEpsilon = 1e-10

	confidenceAttemptWeight = 0.3
	confidenceTimeWeight    = 0.05

	prereqMasteredAbove = 0.75
	prereqBoostStep     = 0.05
	prereqBoostCap      = 0.05
	prereqBoostCeiling  = 0.9

	// RecalibrationAttempt is the attempt count (before increment) at which
	// the one-time recalibration runs.
	RecalibrationAttempt = 2
	RecalibrationWindow  = 3
	recalPosteriorWeight = 0.7
)

// Engine evaluates BKT updates against an immutable set of parameter tables.
// It is safe for concurrent use.
type Engine struct {
	t *frozen
}

func NewEngine(t Tables) (*Engine, error) {
	f, err := freeze(t)
	if err != nil {
		return nil, err
	}
	return &Engine{t: f}, nil
}

// WithPrerequisites returns a new Engine whose prerequisite table is the
// current one overlaid with extra. The receiver is unchanged.
func (e *Engine) WithPrerequisites(extra map[string][]string) *Engine {
	if len(extra) == 0 {
		return e
	}
	next := *e.t
	next.prereqs = make(map[string][]string, len(e.t.prereqs)+len(extra))
	for k, v := range e.t.prereqs {
		next.prereqs[k] = v
	}
	for k, v := range extra {
		next.prereqs[k] = append([]string(nil), v...)
	}
	return &Engine{t: &next}
}

func (e *Engine) Params(skillID string) Params {
	if p, ok := e.t.params[skillID]; ok {
		return p
	}
	return e.t.def
}

// Prerequisites returns the sorted prerequisite skills of skillID.
func (e *Engine) Prerequisites(skillID string) []string {
	out := append([]string(nil), e.t.prereqs[skillID]...)
	sort.Strings(out)
	return out
}

// Posterior is P(mastered | observation) for one observation.
func (e *Engine) Posterior(prior float64, correct bool, skillID string) float64 {
	p := e.Params(skillID)
	var num, den float64
	if correct {
		num = prior * (1 - p.S)
		den = prior*(1-p.S) + (1-prior)*p.G
	} else {
		num = prior * p.S
		den = prior*p.S + (1-prior)*(1-p.G)
	}
	if den < posteriorEpsilon {
		return prior
	}
	return num / den
}

// ErrorWeight matches errorType case-insensitively against the weight table,
// accepting a substring match in either direction. Keys are tried in sorted
// order; no match yields 1.
func (e *Engine) ErrorWeight(errorType string) float64 {
	et := strings.ToLower(strings.TrimSpace(errorType))
	if et == "" {
		return 1.0
	}
	for _, key := range e.t.weightKeys {
		if strings.Contains(et, key) || strings.Contains(key, et) {
			return e.t.weights[key]
		}
	}
	return 1.0
}

func (e *Engine) ApplyLearning(posterior float64, skillID string) float64 {
	t := e.Params(skillID).T
	return posterior + (1-posterior)*t
}

// Confidence dampens updates from submissions that took many attempts or a
// long time.
func Confidence(attempts int, solveTimeSeconds float64) float64 {
	minutes := solveTimeSeconds / 60.0
	c := 1.0 / (1.0 + float64(attempts)*confidenceAttemptWeight + minutes*confidenceTimeWeight)
	return clampRange(c, 0.01, 1.0)
}

type Update struct {
	Old         float64
	New         float64
	Posterior   float64
	Confidence  float64
	ErrorWeight float64
	Params      Params
}

// Update runs one BKT step for a single skill.
func (e *Engine) Update(old float64, correct bool, skillID, errorType string, attempts int, solveTimeSeconds float64) Update {
	params := e.Params(skillID)
	posterior := e.Posterior(old, correct, skillID)

	weight := 1.0
	if !correct && errorType != "" {
		weight = e.ErrorWeight(errorType)
		if weight > 1.0 {
			posterior = math.Max(Floor, posterior/weight)
		}
	}

	learned := e.ApplyLearning(posterior, skillID)
	conf := Confidence(attempts, solveTimeSeconds)
	next := Clamp(old + conf*(learned-old))

	return Update{
		Old:         old,
		New:         next,
		Posterior:   posterior,
		Confidence:  conf,
		ErrorWeight: weight,
		Params:      params,
	}
}

// PrerequisiteBoost adds prereqBoostStep per prerequisite whose mastery is
// above prereqMasteredAbove, capped at prereqBoostCap.
func (e *Engine) PrerequisiteBoost(skillID string, masteries map[string]float64) float64 {
	boost := 0.0
	for _, req := range e.t.prereqs[skillID] {
		if masteries[req] > prereqMasteredAbove {
			boost += prereqBoostStep
		}
	}
	return math.Min(boost, prereqBoostCap)
}

// ApplyBoost adds boost to mastery without letting it exceed prereqBoostCeiling.
func ApplyBoost(mastery, boost float64) float64 {
	return math.Min(prereqBoostCeiling, mastery+boost)
}

// Recalibrate blends the mean of the most recent posteriors with the current
// mastery. posteriors must be newest first; only the first
// RecalibrationWindow entries are used. Fewer than that leaves current as is.
func Recalibrate(posteriors []float64, current float64) float64 {
	if len(posteriors) < RecalibrationWindow {
		return current
	}
	sum := 0.0
	for _, p := range posteriors[:RecalibrationWindow] {
		sum += p
	}
	mean := sum / float64(RecalibrationWindow)
	return Clamp(recalPosteriorWeight*mean + (1-recalPosteriorWeight)*current)
}

func Clamp(v float64) float64 { return clampRange(v, Floor, Ceiling) }

func clampRange(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
