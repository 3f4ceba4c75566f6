// Package diagnosis turns a failed submission into detected error patterns,
// ranked conceptual gaps and a per-skill correct/incorrect split.
package diagnosis

import (
	"github.com/yungbote/codeflow-backend/internal/judge"
)

const priorityCount = 3

type Result struct {
	Errors          []DetectedError  `json:"detectedErrors"`
	ByCategory      map[Category]int `json:"byCategory"`
	Severity        float64          `json:"severity"`
	Gaps            []Gap            `json:"conceptualGaps"`
	PrioritySkills  []string         `json:"prioritySkills"`
	SkillsCorrect   []string         `json:"skillsCorrect"`
	SkillsIncorrect []string         `json:"skillsIncorrect"`
	// ErrorType is the slug of the first detected error, empty when none.
	ErrorType string `json:"errorType,omitempty"`
}

type Diagnoser interface {
	Diagnose(code string, results judge.Result, problemSkills []string) Result
}

// PatternDiagnoser is the table-driven Diagnoser. It holds no state.
type PatternDiagnoser struct{}

func NewPatternDiagnoser() PatternDiagnoser { return PatternDiagnoser{} }

func (PatternDiagnoser) Diagnose(code string, results judge.Result, problemSkills []string) Result {
	errs := Extract(code, results)
	gaps := Gaps(errs)

	res := Result{
		Errors:     errs,
		ByCategory: map[Category]int{},
		Severity:   Severity(errs),
		Gaps:       gaps,
	}
	for _, e := range errs {
		res.ByCategory[e.Category]++
	}
	if len(errs) > 0 {
		res.ErrorType = errs[0].Slug
	}
	for i, g := range gaps {
		if i == priorityCount {
			break
		}
		res.PrioritySkills = append(res.PrioritySkills, g.Subskill)
	}
	res.SkillsCorrect, res.SkillsIncorrect = splitSkills(errs, results.Passed, problemSkills)
	return res
}

// splitSkills marks problem skills touched by a detected error as incorrect.
// A failed run with no mapped error marks every problem skill incorrect; a
// passing run marks every skill correct.
func splitSkills(errs []DetectedError, passed bool, problemSkills []string) (correct, incorrect []string) {
	correct, incorrect = []string{}, []string{}
	if passed {
		return append(correct, problemSkills...), incorrect
	}
	hit := map[string]bool{}
	for _, e := range errs {
		for _, sk := range e.Subskills {
			hit[sk] = true
		}
	}
	for _, sk := range problemSkills {
		if hit[sk] {
			incorrect = append(incorrect, sk)
		} else {
			correct = append(correct, sk)
		}
	}
	if len(incorrect) == 0 {
		return []string{}, append(incorrect, problemSkills...)
	}
	return correct, incorrect
}
