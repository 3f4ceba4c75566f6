// Package judge runs submitted code against a problem's test cases.
package judge

import (
	"context"
	"time"

	types "github.com/yungbote/codeflow-backend/internal/domain"
)

const (
	MsgRuntimeError = "Runtime Error"
	MsgWrongAnswer  = "Wrong Answer"
	MsgTimeLimit    = "Time Limit Exceeded"

	DefaultTimeout = 2 * time.Second
)

type Failure struct {
	TestCase string `json:"testCase"`
	Message  string `json:"message"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Details  string `json:"details,omitempty"`
}

type Result struct {
	Passed      bool      `json:"passed"`
	PassedCount int       `json:"passedCount"`
	TotalTests  int       `json:"totalTests"`
	Failures    []Failure `json:"failures"`
	// SolveTime is wall time in seconds across every executed case.
	SolveTime float64 `json:"solveTime"`
}

// Executor runs code against test cases. Each case runs in its own process
// with its own timeout; a timeout aborts the remaining cases. Runtime errors,
// wrong answers and timeouts are reported in Result, not as errors.
type Executor interface {
	Execute(ctx context.Context, code string, cases []types.TestCase, timeout time.Duration) (Result, error)
}
