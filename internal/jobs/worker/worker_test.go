package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	"github.com/yungbote/codeflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/pkg/pointers"
	"github.com/yungbote/codeflow-backend/internal/realtime/bus"
	"github.com/yungbote/codeflow-backend/internal/sequencer"
	"github.com/yungbote/codeflow-backend/internal/services"
)

type fixture struct {
	db         *gorm.DB
	dbc        dbctx.Context
	repos      repos.Set
	students   services.StudentService
	ingestion  services.IngestionService
	mastery    services.MasteryService
	learner    services.LearnerStateService
	sequencing services.SequencingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	engine, err := mastery.NewEngine(mastery.DefaultTables())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	catalog := services.NewSkillCatalog([]*types.Skill{
		{ID: "recursion", Name: "Recursion"},
		{ID: "sorting", Name: "Sorting"},
	})
	set := repos.NewSet(db, log)
	f := &fixture{
		db:    db,
		dbc:   dbctx.Context{Ctx: context.Background()},
		repos: set,
	}
	f.students = services.NewStudentService(db, log, catalog, set.Student, set.SkillMastery)
	f.ingestion = services.NewIngestionService(db, log, catalog, set.Student, set.LearningEvent, bus.Noop{}, nil)
	f.mastery = services.NewMasteryService(db, log, engine, set.SkillMastery, set.SkillHistory, set.PerformanceRecord, set.LearningEvent)
	f.learner = services.NewLearnerStateService(db, log, set.SkillMastery, set.LearnerState)
	f.sequencing = services.NewSequencingService(db, log, sequencer.DefaultConfig(), set.SkillMastery, set.Problem, set.SequenceLog, set.LearningEvent, nil)

	testutil.SeedProblem(t, f.dbc.Ctx, db, "p1", "recursion", 0.2)
	testutil.SeedProblem(t, f.dbc.Ctx, db, "p2", "recursion", 0.25)
	testutil.SeedProblem(t, f.dbc.Ctx, db, "p3", "sorting", 0.3)
	return f
}

func (f *fixture) worker(t *testing.T, m services.MasteryService, l services.LearnerStateService) *Worker {
	t.Helper()
	if m == nil {
		m = f.mastery
	}
	if l == nil {
		l = f.learner
	}
	return NewWorker(testutil.Logger(t), Config{Concurrency: 1, PollInterval: 10 * time.Millisecond}, f.repos.LearningEvent, m, l, f.sequencing, nil, nil)
}

func (f *fixture) onboard(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := f.students.Onboard(f.dbc, services.OnboardInput{StudentID: id}); err != nil {
			t.Fatalf("Onboard(%s): %v", id, err)
		}
	}
}

func (f *fixture) ingest(t *testing.T, submissionID, studentID string, correct bool) uuid.UUID {
	t.Helper()
	res, err := f.ingestion.Ingest(f.dbc, services.LearnInput{
		SubmissionID: submissionID,
		StudentID:    studentID,
		ProblemID:    "p1",
		Result: services.LearnResult{
			Correct:   pointers.Ptr(correct),
			Attempts:  1,
			SolveTime: pointers.Ptr(20.0),
		},
		Diagnosis: services.LearnDiagnosis{Skills: []string{"recursion"}},
	})
	if err != nil {
		t.Fatalf("Ingest(%s): %v", submissionID, err)
	}
	return res.EventID
}

func (f *fixture) event(t *testing.T, id uuid.UUID) *types.LearningEvent {
	t.Helper()
	ev, err := f.repos.LearningEvent.GetByID(f.dbc, id)
	if err != nil || ev == nil {
		t.Fatalf("GetByID(%s): %v %v", id, ev, err)
	}
	return ev
}

func TestCycleProcessesOneEventPerStudent(t *testing.T) {
	f := newFixture(t)
	f.onboard(t, "s1", "s2")
	first := f.ingest(t, "a", "s1", true)
	second := f.ingest(t, "b", "s1", false)
	other := f.ingest(t, "c", "s2", true)

	w := f.worker(t, nil, nil)
	n, err := w.Cycle(f.dbc.Ctx)
	if err != nil || n != 2 {
		t.Fatalf("first cycle: n=%d err=%v", n, err)
	}
	if ev := f.event(t, first); !ev.Completed || ev.BKTStatus != types.BKTDone || !ev.LearnerStateDone {
		t.Fatalf("first event not completed: %+v", ev)
	}
	if ev := f.event(t, other); !ev.Completed {
		t.Fatalf("other student's event not completed: %+v", ev)
	}
	if ev := f.event(t, second); ev.BKTStatus != types.BKTUnclaimed {
		t.Fatalf("later event advanced early: %+v", ev)
	}

	n, err = w.Cycle(f.dbc.Ctx)
	if err != nil || n != 1 {
		t.Fatalf("second cycle: n=%d err=%v", n, err)
	}
	n, err = w.Cycle(f.dbc.Ctx)
	if err != nil || n != 0 {
		t.Fatalf("idle cycle: n=%d err=%v", n, err)
	}

	ev := f.event(t, second)
	if !ev.Completed || ev.NextProblemID == nil || *ev.NextProblemID == "p1" {
		t.Fatalf("second event: %+v", ev)
	}
	state, err := f.learner.Latest(f.dbc, "s1")
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if state.EventID == nil || *state.EventID != second {
		t.Fatalf("latest learner state is not from the last event: %+v", state)
	}
	row, err := f.repos.SkillMastery.GetByStudentSkills(f.dbc, "s1", []string{"recursion"})
	if err != nil || len(row) != 1 || row[0].AttemptCount != 2 {
		t.Fatalf("recursion row: %+v %v", row, err)
	}
	logs, err := f.repos.SequenceLog.ListRecent(f.dbc, "s1", 10)
	if err != nil || len(logs) != 2 {
		t.Fatalf("sequence logs: %d %v", len(logs), err)
	}
	if logs[0].WasCorrect || !logs[1].WasCorrect {
		t.Fatalf("sequence log outcomes out of order: %+v", logs)
	}
}

func TestRacingWorkersProcessEachEventOnce(t *testing.T) {
	f := newFixture(t)
	students := []string{"s1", "s2", "s3", "s4"}
	f.onboard(t, students...)
	var ids []uuid.UUID
	for _, s := range students {
		ids = append(ids, f.ingest(t, "sub-"+s, s, true))
	}

	a, b := f.worker(t, nil, nil), f.worker(t, nil, nil)
	var wg sync.WaitGroup
	counts := make([]int, 2)
	for i, w := range []*Worker{a, b} {
		wg.Add(1)
		go func(i int, w *Worker) {
			defer wg.Done()
			n, err := w.Cycle(f.dbc.Ctx)
			if err != nil {
				t.Errorf("Cycle: %v", err)
			}
			counts[i] = n
		}(i, w)
	}
	wg.Wait()

	if counts[0]+counts[1] != len(students) {
		t.Fatalf("claims: %v, expected %d total", counts, len(students))
	}
	for _, id := range ids {
		ev := f.event(t, id)
		if !ev.Completed || ev.ClaimCount != 1 {
			t.Fatalf("event %s: completed=%v claims=%d", id, ev.Completed, ev.ClaimCount)
		}
	}
	hist, err := f.repos.SkillHistory.ListByStudent(f.dbc, "s1", 0)
	if err != nil || len(hist) != 1 {
		t.Fatalf("history rows for s1: %d %v", len(hist), err)
	}
}

type failingMastery struct {
	err   error
	panic bool
}

func (m failingMastery) ApplyEvent(dbctx.Context, *types.LearningEvent) ([]services.SkillUpdate, error) {
	if m.panic {
		panic("boom")
	}
	return nil, m.err
}

func TestMasteryFailureReleasesClaim(t *testing.T) {
	for _, tc := range []struct {
		name string
		m    failingMastery
	}{
		{"error", failingMastery{err: errors.New("db gone")}},
		{"panic", failingMastery{panic: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.onboard(t, "s1")
			id := f.ingest(t, "a", "s1", true)

			w := f.worker(t, tc.m, nil)
			if n, err := w.Cycle(f.dbc.Ctx); err != nil || n != 1 {
				t.Fatalf("Cycle: n=%d err=%v", n, err)
			}
			ev := f.event(t, id)
			if ev.BKTStatus != types.BKTUnclaimed || ev.Completed || ev.LastError == "" || ev.ClaimedAt != nil {
				t.Fatalf("event not released: %+v", ev)
			}

			// A healthy worker picks it up on a later cycle.
			if n, err := f.worker(t, nil, nil).Cycle(f.dbc.Ctx); err != nil || n != 1 {
				t.Fatalf("retry cycle: n=%d err=%v", n, err)
			}
			ev = f.event(t, id)
			if !ev.Completed || ev.ClaimCount != 2 {
				t.Fatalf("retry did not complete: %+v", ev)
			}
		})
	}
}

type failingLearner struct{}

func (failingLearner) Recompute(dbctx.Context, string, *uuid.UUID) (*types.LearnerState, error) {
	return nil, errors.New("state store down")
}

func (failingLearner) Latest(dbctx.Context, string) (*types.LearnerState, error) {
	return nil, errors.New("state store down")
}

func TestLearnerStateFailureKeepsMasteryDone(t *testing.T) {
	f := newFixture(t)
	f.onboard(t, "s1")
	id := f.ingest(t, "a", "s1", true)

	w := f.worker(t, nil, failingLearner{})
	if n, err := w.Cycle(f.dbc.Ctx); err != nil || n != 1 {
		t.Fatalf("Cycle: n=%d err=%v", n, err)
	}
	ev := f.event(t, id)
	if ev.BKTStatus != types.BKTDone || ev.Completed || ev.LastError == "" {
		t.Fatalf("unexpected event state %+v", ev)
	}
	// Not reprocessed for mastery.
	if n, err := w.Cycle(f.dbc.Ctx); err != nil || n != 0 {
		t.Fatalf("second cycle: n=%d err=%v", n, err)
	}
	row, err := f.repos.SkillMastery.GetByStudentSkills(f.dbc, "s1", []string{"recursion"})
	if err != nil || len(row) != 1 || row[0].AttemptCount != 1 {
		t.Fatalf("mastery applied more than once: %+v %v", row, err)
	}
}

func TestCycleReleasesStaleClaims(t *testing.T) {
	f := newFixture(t)
	f.onboard(t, "s1")
	id := f.ingest(t, "a", "s1", true)

	if ev, err := f.repos.LearningEvent.ClaimNext(f.dbc, "s1"); err != nil || ev == nil {
		t.Fatalf("ClaimNext: %v %v", ev, err)
	}
	old := time.Now().UTC().Add(-time.Hour)
	if err := f.db.Model(&types.LearningEvent{}).Where("id = ?", id).Update("claimed_at", old).Error; err != nil {
		t.Fatalf("age claim: %v", err)
	}

	w := NewWorker(testutil.Logger(t), Config{StaleClaim: time.Minute}, f.repos.LearningEvent, f.mastery, f.learner, f.sequencing, nil, nil)
	if n, err := w.Cycle(f.dbc.Ctx); err != nil || n != 1 {
		t.Fatalf("Cycle: n=%d err=%v", n, err)
	}
	if ev := f.event(t, id); !ev.Completed {
		t.Fatalf("stale event not reprocessed: %+v", ev)
	}
}

func TestStartStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.onboard(t, "s1")
	id := f.ingest(t, "a", "s1", true)

	wake := bus.NewMemory()
	w := NewWorker(testutil.Logger(t), Config{Concurrency: 2, PollInterval: time.Hour}, f.repos.LearningEvent, f.mastery, f.learner, f.sequencing, wake, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !f.event(t, id).Completed {
		if time.Now().After(deadline) {
			t.Fatalf("event not processed by the pool")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// A wakeup triggers a cycle even though the ticker is an hour away.
	next := f.ingest(t, "b", "s1", false)
	_ = wake.Publish(ctx, bus.Wakeup{StudentID: "s1", EventID: next})
	for !f.event(t, next).Completed {
		if time.Now().After(deadline) {
			t.Fatalf("wakeup did not trigger a cycle")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Start did not return after cancel")
	}
}
