package diagnosis

import (
	"regexp"
	"strings"

	"github.com/yungbote/codeflow-backend/internal/judge"
)

const codeRuleConfidence = 0.7

type DetectedError struct {
	Pattern
	Confidence float64 `json:"confidence"`
	Context    string  `json:"context"`
	// Line is 1-based; zero when the error came from a test failure.
	Line int `json:"line,omitempty"`
}

// codeRule matches a single source line. A line that also matches reject is
// not a hit.
type codeRule struct {
	errorID string
	match   *regexp.Regexp
	reject  *regexp.Regexp
}

func rule(id, match string, reject ...string) codeRule {
	r := codeRule{errorID: id, match: regexp.MustCompile("(?i)" + match)}
	if len(reject) > 0 {
		r.reject = regexp.MustCompile("(?i)" + reject[0])
	}
	return r
}

// codeRules are evaluated independently, in order.
var codeRules = []codeRule{
	rule("E001", `for.*range\(.*\+\s*1\)`),
	rule("E001", `while.*<=.*len`),
	rule("E001", `\[i\+1\].*range\(len`),
	rule("E002", `def.*\(.*\):.*if.*==.*:.*return`, `return.*else`),
	rule("E002", `recursion.*without.*base`),
	rule("E003", `stack\.pop\(\).*stack\.push`),
	rule("E003", `push.*before.*empty.*check`),
	rule("E004", `sort.*lambda.*[><]`, `sort.*lambda.*[><].*=`),
	rule("E004", `compare.*swap.*wrong`),
	rule("E005", `\[.*len\(.*\)\]`),
	rule("E005", `index.*out.*of.*range`),
	rule("E005", `\[-\d+\]`),
	rule("E006", `\.next`, `\.next.*if.*None`),
	rule("E006", `\.left`, `\.left.*if.*None`),
	rule("E006", `node\..*without.*null`),
	rule("E007", `for.*for.*for`),
	rule("E007", `O\(n\^3\)`),
	rule("E007", `nested.*loop.*inefficient`),
	rule("E008", `queue.*depth`),
	rule("E008", `stack.*level.*order`),
	rule("E008", `BFS.*DFS.*mismatch`),
	rule("E009", `dict\[.*\]`, `dict\[.*\].*(try|get)`),
	rule("E009", `hash.*collision.*unhandled`),
	rule("E010", `left\+\+.*right\+\+`),
	rule("E010", `two.*pointer.*same.*direction`),
	rule("E011", `window.*size.*\+\s*1`),
	rule("E011", `sliding.*window.*off`),
	rule("E012", `greedy.*local.*not.*global`),
	rule("E012", `max.*immediate.*not.*optimal`),
	rule("E013", `dp\[i\].*dp\[i\]`),
	rule("E013", `state.*transition.*self.*reference`),
	rule("E014", `heap.*parent.*child.*wrong`),
	rule("E014", `heapify.*property.*violated`),
	rule("E015", `backtrack.*no.*pruning`),
	rule("E015", `explore.*all.*paths.*inefficient`),
	rule("E016", `new.*Node.*no.*delete`),
	rule("E016", `linked.*list.*memory.*leak`),
	rule("E017", `<<.*>>.*reversed`),
	rule("E017", `bit.*shift.*wrong.*direction`),
	rule("E018", `mid.*=.*\(left.*right\).*/.*2`, `mid.*=.*\(left.*right\).*/.*2.*\+`),
	rule("E018", `binary.*search.*bound.*error`),
}

// Extract runs the code rules then the test-failure rules and keeps the first
// detection of each error id.
func Extract(code string, results judge.Result) []DetectedError {
	var found []DetectedError
	lines := strings.Split(code, "\n")
	for _, r := range codeRules {
		for i, line := range lines {
			if !r.match.MatchString(line) {
				continue
			}
			if r.reject != nil && r.reject.MatchString(line) {
				continue
			}
			found = append(found, detected(r.errorID, codeRuleConfidence, strings.TrimSpace(line), i+1))
		}
	}
	found = append(found, fromFailures(results)...)
	return dedupe(found)
}

func fromFailures(results judge.Result) []DetectedError {
	if results.Passed {
		return nil
	}
	var out []DetectedError
	for _, f := range results.Failures {
		msg := strings.ToLower(strings.TrimSpace(f.Message + " " + f.Details))
		switch {
		case strings.Contains(msg, "index") && strings.Contains(msg, "out of"):
			out = append(out, detected("E005", 0.9, msg, 0))
		case strings.Contains(msg, "none") && strings.Contains(msg, "attribute"):
			out = append(out, detected("E006", 0.85, msg, 0))
		case strings.Contains(msg, "recursion") || strings.Contains(msg, "maximum"):
			out = append(out, detected("E002", 0.8, msg, 0))
		case strings.Contains(msg, "timeout") || strings.Contains(msg, "time limit"):
			out = append(out, detected("E007", 0.75, msg, 0))
		case strings.Contains(msg, "wrong answer") && strings.Contains(strings.ToLower(f.TestCase), "boundary"):
			out = append(out, detected("E001", 0.7, msg, 0))
		}
	}
	return out
}

func detected(id string, confidence float64, context string, line int) DetectedError {
	p, _ := PatternByID(id)
	return DetectedError{Pattern: p, Confidence: confidence, Context: context, Line: line}
}

func dedupe(errs []DetectedError) []DetectedError {
	seen := make(map[string]bool, len(errs))
	out := make([]DetectedError, 0, len(errs))
	for _, e := range errs {
		if seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	return out
}

// Severity is mean(severity*confidence) over errs, zero when empty.
func Severity(errs []DetectedError) float64 {
	if len(errs) == 0 {
		return 0
	}
	sum := 0.0
	for _, e := range errs {
		sum += e.Severity * e.Confidence
	}
	return sum / float64(len(errs))
}
