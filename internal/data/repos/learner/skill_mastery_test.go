package learner

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/codeflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
)

func TestSkillMasteryRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewSkillMasteryRepo(db, testutil.Logger(t))

	testutil.SeedMastery(t, ctx, db, "s1", "recursion", 0.8, 4)

	rows := []*types.SkillMastery{
		{StudentID: "s1", SkillID: "recursion", Mastery: types.InitialMastery},
		{StudentID: "s1", SkillID: "sorting", Mastery: types.InitialMastery},
		{StudentID: "s1", SkillID: "graph_traversal", Mastery: 0.1},
	}
	if err := repo.CreateMissing(dbc, rows); err != nil {
		t.Fatalf("CreateMissing: %v", err)
	}

	all, err := repo.ListByStudent(dbc, "s1")
	if err != nil {
		t.Fatalf("ListByStudent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(all))
	}
	for _, m := range all {
		if m.SkillID == "recursion" && (m.Mastery != 0.8 || m.AttemptCount != 4) {
			t.Fatalf("CreateMissing overwrote existing row: %+v", m)
		}
	}

	weakest, err := repo.ListWeakest(dbc, "s1", 2)
	if err != nil {
		t.Fatalf("ListWeakest: %v", err)
	}
	if len(weakest) != 2 || weakest[0].SkillID != "graph_traversal" || weakest[1].SkillID != "sorting" {
		t.Fatalf("ListWeakest: unexpected order %+v", weakest)
	}

	target := weakest[1]
	target.Mastery = 0.42
	target.AttemptCount = 1
	target.LastUpdated = time.Now().UTC()
	if err := repo.Save(dbc, target); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.GetByStudentSkills(dbc, "s1", []string{"sorting"})
	if err != nil || len(got) != 1 {
		t.Fatalf("GetByStudentSkills: err=%v len=%d", err, len(got))
	}
	if got[0].Mastery != 0.42 || got[0].AttemptCount != 1 {
		t.Fatalf("Save not persisted: %+v", got[0])
	}
}

func TestSkillHistoryRecentPosteriors(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewSkillHistoryRepo(db, testutil.Logger(t))

	base := time.Now().UTC().Add(-time.Hour)
	var rows []*types.SkillHistory
	for i, p := range []float64{0.1, 0.2, 0.3} {
		rows = append(rows, &types.SkillHistory{
			StudentID:    "s1",
			SkillID:      "recursion",
			EventID:      uuid.New(),
			Posterior:    p,
			EvidenceType: types.EvidenceCorrect,
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	rows = append(rows, &types.SkillHistory{
		StudentID:    "s1",
		SkillID:      "sorting",
		EventID:      uuid.New(),
		Posterior:    0.9,
		EvidenceType: types.EvidenceCorrect,
		Timestamp:    base.Add(10 * time.Minute),
	})
	if err := repo.Create(dbc, rows); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.RecentPosteriors(dbc, "s1", "recursion", 2)
	if err != nil {
		t.Fatalf("RecentPosteriors: %v", err)
	}
	if len(got) != 2 || got[0] != 0.3 || got[1] != 0.2 {
		t.Fatalf("RecentPosteriors: expected [0.3 0.2], got %v", got)
	}
}

func TestLearnerStateRepoLatest(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewLearnerStateRepo(db, testutil.Logger(t))

	if st, err := repo.GetLatest(dbc, "s1"); err != nil || st != nil {
		t.Fatalf("GetLatest empty: err=%v st=%+v", err, st)
	}

	base := time.Now().UTC().Add(-time.Hour)
	for i, state := range []string{types.StateStruggling, types.StateLearning} {
		if err := repo.Create(dbc, &types.LearnerState{
			StudentID:     "s1",
			LearningState: state,
			UpdatedAt:     base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	st, err := repo.GetLatest(dbc, "s1")
	if err != nil || st == nil {
		t.Fatalf("GetLatest: err=%v", err)
	}
	if st.LearningState != types.StateLearning {
		t.Fatalf("expected newest state %q, got %q", types.StateLearning, st.LearningState)
	}
}
