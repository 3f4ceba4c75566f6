package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	"github.com/yungbote/codeflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	httpH "github.com/yungbote/codeflow-backend/internal/http/handlers"
	"github.com/yungbote/codeflow-backend/internal/http/response"
	"github.com/yungbote/codeflow-backend/internal/jobs/worker"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/realtime/bus"
	"github.com/yungbote/codeflow-backend/internal/sequencer"
	"github.com/yungbote/codeflow-backend/internal/services"
)

type testServer struct {
	engine *gin.Engine
	worker *worker.Worker
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	engine, err := mastery.NewEngine(mastery.DefaultTables())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	catalog := services.NewSkillCatalog([]*types.Skill{{ID: "recursion"}, {ID: "sorting"}})
	metrics := observability.NewMetrics()

	catalogSvc := services.NewCatalogService(db, log, catalog, set.Skill, set.Problem)
	students := services.NewStudentService(db, log, catalog, set.Student, set.SkillMastery)
	ingestion := services.NewIngestionService(db, log, catalog, set.Student, set.LearningEvent, bus.Noop{}, metrics)
	masterySvc := services.NewMasteryService(db, log, engine, set.SkillMastery, set.SkillHistory, set.PerformanceRecord, set.LearningEvent)
	learner := services.NewLearnerStateService(db, log, set.SkillMastery, set.LearnerState)
	sequencing := services.NewSequencingService(db, log, sequencer.DefaultConfig(), set.SkillMastery, set.Problem, set.SequenceLog, set.LearningEvent, metrics)

	testutil.SeedProblem(t, context.Background(), db, "p1", "recursion", 0.2)
	testutil.SeedProblem(t, context.Background(), db, "p2", "sorting", 0.25)

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("db handle: %v", err)
	}
	r := NewRouter(RouterConfig{
		Log:            log,
		Metrics:        metrics,
		LearnHandler:   httpH.NewLearnHandler(ingestion, learner),
		StudentHandler: httpH.NewStudentHandler(students, sequencing),
		CatalogHandler: httpH.NewCatalogHandler(catalogSvc),
		HealthHandler:  httpH.NewHealthHandler(sqlDB),
	})
	w := worker.NewWorker(log, worker.Config{Concurrency: 1}, set.LearningEvent, masterySvc, learner, sequencing, nil, metrics)
	return &testServer{engine: r, worker: w}
}

func (s *testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

const learnBody = `{
	"submissionId": "sub-1",
	"studentId": "s1",
	"problemId": "p1",
	"result": {"correct": true, "attempts": 1, "solveTime": 42},
	"diagnosis": {"skills": ["recursion"]}
}`

func TestLearnFlow(t *testing.T) {
	s := newTestServer(t)

	if rec := s.do(t, http.MethodPost, "/students", `{"studentId":"s1"}`); rec.Code != http.StatusCreated {
		t.Fatalf("onboard: %d %s", rec.Code, rec.Body.String())
	}
	if rec := s.do(t, http.MethodPost, "/students", `{"studentId":"s1"}`); rec.Code != http.StatusConflict {
		t.Fatalf("second onboard: %d %s", rec.Code, rec.Body.String())
	}

	rec := s.do(t, http.MethodGet, "/state/s1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("state before processing: %d", rec.Code)
	}

	rec = s.do(t, http.MethodPost, "/learn", learnBody)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("learn: %d %s", rec.Code, rec.Body.String())
	}
	first := decode[services.IngestResult](t, rec)
	if first.Status != "accepted" {
		t.Fatalf("learn status: %+v", first)
	}

	rec = s.do(t, http.MethodPost, "/learn", learnBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate learn: %d %s", rec.Code, rec.Body.String())
	}
	if dup := decode[services.IngestResult](t, rec); dup.EventID != first.EventID {
		t.Fatalf("duplicate returned %s, want %s", dup.EventID, first.EventID)
	}

	rec = s.do(t, http.MethodGet, "/event/"+first.EventID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("event: %d", rec.Code)
	}
	if st := decode[services.EventStatus](t, rec); st.Completed || st.StudentID != "s1" {
		t.Fatalf("event before processing: %+v", st)
	}

	if n, err := s.worker.Cycle(context.Background()); err != nil || n != 1 {
		t.Fatalf("Cycle: n=%d err=%v", n, err)
	}

	rec = s.do(t, http.MethodGet, "/event/"+first.EventID.String(), "")
	if st := decode[services.EventStatus](t, rec); !st.Completed {
		t.Fatalf("event after processing: %+v", st)
	}

	rec = s.do(t, http.MethodGet, "/state/s1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state: %d %s", rec.Code, rec.Body.String())
	}
	state := decode[map[string]any](t, rec)
	if _, ok := state["id"]; ok {
		t.Fatalf("state leaked internal id: %v", state)
	}
	ts, _ := state["updatedAt"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Fatalf("updatedAt %q is not RFC3339: %v", ts, err)
	}
	if ls := state["learningState"]; ls != types.StateStruggling && ls != types.StateLearning {
		t.Fatalf("learningState: %v", state["learningState"])
	}

	rec = s.do(t, http.MethodGet, "/students/s1/next-problem", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("next-problem: %d %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, http.MethodGet, "/students/s1/weak-skills?limit=1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("weak-skills: %d %s", rec.Code, rec.Body.String())
	}
	weak := decode[struct {
		WeakSkills []services.SkillMasteryView `json:"weakSkills"`
	}](t, rec)
	if len(weak.WeakSkills) != 1 || weak.WeakSkills[0].SkillID != "sorting" {
		t.Fatalf("weak-skills: %+v", weak)
	}

	if rec := s.do(t, http.MethodGet, "/metrics", ""); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "codeflow_events_ingested_total") {
		t.Fatalf("metrics: %d", rec.Code)
	}
}

func TestLearnErrors(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodPost, "/students", `{"studentId":"s1"}`)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{"submissionId":`, http.StatusBadRequest},
		{"missing result", `{"submissionId":"x","studentId":"s1","problemId":"p1","diagnosis":{"skills":["recursion"]}}`, http.StatusBadRequest},
		{"wrong type", strings.Replace(learnBody, `"correct": true`, `"correct": "yes"`, 1), http.StatusBadRequest},
		{"unknown student", strings.Replace(learnBody, `"studentId": "s1"`, `"studentId": "ghost"`, 1), http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/learn", tc.body)
			if rec.Code != tc.status {
				t.Fatalf("status: got %d want %d (%s)", rec.Code, tc.status, rec.Body.String())
			}
			env := decode[response.ErrorEnvelope](t, rec)
			if env.Error.Message == "" || env.Error.Code == "" {
				t.Fatalf("error envelope incomplete: %+v", env)
			}
		})
	}

	if rec := s.do(t, http.MethodGet, "/event/not-a-uuid", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("bad event id: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/students/ghost/mastery", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown student mastery: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/students/s1/weak-skills?limit=zero", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: %d", rec.Code)
	}
}

func TestHealthcheck(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthcheck", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("healthcheck: %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("request id header missing")
	}
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/skills", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("skills: %d", rec.Code)
	}
	skills := decode[struct {
		Skills []types.Skill `json:"skills"`
	}](t, rec)
	if len(skills.Skills) != 2 || skills.Skills[0].ID != "recursion" {
		t.Fatalf("skills: %+v", skills)
	}

	rec = s.do(t, http.MethodGet, "/problems?skill=sorting", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("problems: %d", rec.Code)
	}
	list := decode[struct {
		Problems []map[string]any `json:"problems"`
	}](t, rec)
	if len(list.Problems) != 1 || list.Problems[0]["id"] != "p2" {
		t.Fatalf("filtered problems: %+v", list)
	}
	if _, ok := list.Problems[0]["test_cases"]; ok {
		t.Fatalf("problem view leaked test cases")
	}

	if rec := s.do(t, http.MethodGet, "/problems/p1", ""); rec.Code != http.StatusOK {
		t.Fatalf("problem p1: %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/problems/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("missing problem: %d", rec.Code)
	}
}
