package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/httpx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

const (
	statusAccepted = "Accepted"
	statusTimeout  = "Time Limit Exceeded"

	defaultPathEnv = "PATH=/usr/local/sbin:/usr/local/bin:/usr/sbin:/usr/bin:/sbin:/bin"
	outputMaxBytes = 10240
	memoryLimit    = 256 * 1024 * 1024
	procLimit      = 50
	maxAttempts    = 3
)

// GoJudgeClient talks to a go-judge sandbox over its HTTP /run endpoint.
type GoJudgeClient struct {
	baseURL string
	http    *http.Client
	log     *logger.Logger
	backoff time.Duration
}

func NewGoJudgeClient(log *logger.Logger, baseURL string, requestTimeout time.Duration) *GoJudgeClient {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &GoJudgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: requestTimeout},
		log:     log.With("client", "GoJudgeClient"),
		backoff: 250 * time.Millisecond,
	}
}

type cmdFile struct {
	Name    string  `json:"name,omitempty"`
	Content *string `json:"content,omitempty"`
	Max     int64   `json:"max,omitempty"`
}

type cmdRequest struct {
	Args        []string           `json:"args"`
	Env         []string           `json:"env,omitempty"`
	Files       []*cmdFile         `json:"files,omitempty"`
	CPULimit    uint64             `json:"cpuLimit,omitempty"`   // ns
	ClockLimit  uint64             `json:"clockLimit,omitempty"` // ns
	MemoryLimit uint64             `json:"memoryLimit,omitempty"`
	ProcLimit   uint64             `json:"procLimit,omitempty"`
	CopyIn      map[string]cmdFile `json:"copyIn,omitempty"`
}

type cmdResponse struct {
	Status     string            `json:"status"`
	ExitStatus int               `json:"exitStatus"`
	Error      string            `json:"error"`
	Time       uint64            `json:"time"`
	RunTime    uint64            `json:"runTime"`
	Files      map[string]string `json:"files"`
}

func (c *GoJudgeClient) Execute(ctx context.Context, code string, cases []types.TestCase, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	start := time.Now()
	res := Result{TotalTests: len(cases), Failures: []Failure{}}

	for i, tc := range cases {
		name := tc.Name
		if strings.TrimSpace(name) == "" {
			name = fmt.Sprintf("Test %d", i+1)
		}
		out, err := c.run(ctx, code, tc.Input, timeout)
		if err != nil {
			return Result{}, fmt.Errorf("judge: run %s: %w", name, err)
		}

		if out.Status == statusTimeout {
			res.Failures = append(res.Failures, Failure{TestCase: name, Message: MsgTimeLimit})
			break
		}
		actual := strings.TrimSpace(out.Files["stdout"])
		expected := strings.TrimSpace(tc.Output)
		switch {
		case out.Status != statusAccepted || out.ExitStatus != 0:
			details := strings.TrimSpace(out.Files["stderr"])
			if details == "" {
				details = strings.TrimSpace(out.Status + " " + out.Error)
			}
			res.Failures = append(res.Failures, Failure{TestCase: name, Message: MsgRuntimeError, Details: details})
		case actual != expected:
			res.Failures = append(res.Failures, Failure{TestCase: name, Message: MsgWrongAnswer, Expected: expected, Actual: actual})
		default:
			res.PassedCount++
		}
	}

	res.Passed = len(res.Failures) == 0
	res.SolveTime = time.Since(start).Seconds()
	return res, nil
}

func (c *GoJudgeClient) run(ctx context.Context, code, stdin string, timeout time.Duration) (cmdResponse, error) {
	src := code
	input := stdin
	limit := uint64(timeout.Nanoseconds())
	body := map[string]any{"cmd": []cmdRequest{{
		Args: []string{"python3", "main.py"},
		Env:  []string{defaultPathEnv, "PYTHONIOENCODING=utf-8"},
		Files: []*cmdFile{
			{Content: &input},
			{Name: "stdout", Max: outputMaxBytes},
			{Name: "stderr", Max: outputMaxBytes},
		},
		CopyIn:      map[string]cmdFile{"main.py": {Content: &src}},
		CPULimit:    limit,
		ClockLimit:  limit,
		MemoryLimit: memoryLimit,
		ProcLimit:   procLimit,
	}}}
	raw, err := json.Marshal(body)
	if err != nil {
		return cmdResponse{}, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out, retryAfter, err := c.post(ctx, raw)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) || attempt == maxAttempts {
			break
		}
		wait := httpx.JitterSleep(c.backoff * time.Duration(attempt))
		if retryAfter > 0 {
			wait = retryAfter
		}
		c.log.Warn("judge request failed, retrying", "attempt", attempt, "wait", wait.String(), "error", err)
		if err := httpx.Sleep(ctx, wait); err != nil {
			return cmdResponse{}, err
		}
	}
	return cmdResponse{}, lastErr
}

func (c *GoJudgeClient) post(ctx context.Context, raw []byte) (cmdResponse, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/run", bytes.NewReader(raw))
	if err != nil {
		return cmdResponse{}, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return cmdResponse{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryAfter := httpx.RetryAfterDuration(resp, 0, 10*time.Second)
		return cmdResponse{}, retryAfter, &httpx.StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b)), RetryAfter: retryAfter}
	}

	var results []cmdResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return cmdResponse{}, 0, fmt.Errorf("decode go-judge response: %w", err)
	}
	if len(results) == 0 {
		return cmdResponse{}, 0, fmt.Errorf("go-judge returned no results")
	}
	return results[0], 0, nil
}
