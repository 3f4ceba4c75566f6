package services

import (
	"context"
	"testing"

	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	"github.com/yungbote/codeflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/realtime/bus"
	"github.com/yungbote/codeflow-backend/internal/sequencer"
)

var testSkills = []string{"array_traversal", "dynamic_programming", "recursion", "sorting", "two_pointer"}

type harness struct {
	db      *gorm.DB
	ctx     context.Context
	dbc     dbctx.Context
	repos   repos.Set
	engine  *mastery.Engine
	catalog *SkillCatalog
	bus     *bus.Memory

	students   StudentService
	ingestion  IngestionService
	masterySvc MasteryService
	learner    LearnerStateService
	sequencing SequencingService
	catalogSvc CatalogService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()

	engine, err := mastery.NewEngine(mastery.DefaultTables())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	skills := make([]*types.Skill, 0, len(testSkills))
	for _, id := range testSkills {
		skills = append(skills, &types.Skill{ID: id, Name: id})
	}
	catalog := NewSkillCatalog(skills)
	set := repos.NewSet(db, log)
	wake := bus.NewMemory()

	h := &harness{
		db:      db,
		ctx:     ctx,
		dbc:     dbctx.Context{Ctx: ctx},
		repos:   set,
		engine:  engine,
		catalog: catalog,
		bus:     wake,
	}
	h.students = NewStudentService(db, log, catalog, set.Student, set.SkillMastery)
	h.ingestion = NewIngestionService(db, log, catalog, set.Student, set.LearningEvent, wake, nil)
	h.masterySvc = NewMasteryService(db, log, engine, set.SkillMastery, set.SkillHistory, set.PerformanceRecord, set.LearningEvent)
	h.learner = NewLearnerStateService(db, log, set.SkillMastery, set.LearnerState)
	h.sequencing = NewSequencingService(db, log, sequencer.DefaultConfig(), set.SkillMastery, set.Problem, set.SequenceLog, set.LearningEvent, nil)
	h.catalogSvc = NewCatalogService(db, log, catalog, set.Skill, set.Problem)
	return h
}

func (h *harness) onboard(t *testing.T, studentID string) {
	t.Helper()
	if _, err := h.students.Onboard(h.dbc, OnboardInput{StudentID: studentID}); err != nil {
		t.Fatalf("Onboard(%s): %v", studentID, err)
	}
}

func (h *harness) claim(t *testing.T, studentID string) *types.LearningEvent {
	t.Helper()
	ev, err := h.repos.LearningEvent.ClaimNext(h.dbc, studentID)
	if err != nil {
		t.Fatalf("ClaimNext: %v", err)
	}
	if ev == nil {
		t.Fatalf("ClaimNext: nothing claimed for %s", studentID)
	}
	return ev
}

func (h *harness) masteryOf(t *testing.T, studentID, skillID string) *types.SkillMastery {
	t.Helper()
	rows, err := h.repos.SkillMastery.GetByStudentSkills(h.dbc, studentID, []string{skillID})
	if err != nil {
		t.Fatalf("GetByStudentSkills: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("GetByStudentSkills: expected 1 row, got %d", len(rows))
	}
	return rows[0]
}
