package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/codeflow-backend/internal/domain"
)

func SeedStudent(tb testing.TB, ctx context.Context, tx *gorm.DB, id string) *types.Student {
	tb.Helper()
	s := &types.Student{ID: id, Name: "student " + id}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed student: %v", err)
	}
	return s
}

func SeedMastery(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, skillID string, mastery float64, attempts int) *types.SkillMastery {
	tb.Helper()
	m := &types.SkillMastery{
		ID:           uuid.New(),
		StudentID:    studentID,
		SkillID:      skillID,
		Mastery:      mastery,
		AttemptCount: attempts,
		LastUpdated:  time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed mastery: %v", err)
	}
	return m
}

func SeedEvent(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, submissionID string, ts time.Time, correct bool, skills ...string) *types.LearningEvent {
	tb.Helper()
	ev := &types.LearningEvent{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		StudentID:    studentID,
		ProblemID:    "p1",
		Timestamp:    ts.UTC(),
		Correct:      correct,
		Attempts:     1,
		Skills:       datatypes.NewJSONSlice(skills),
		BKTStatus:    types.BKTUnclaimed,
	}
	if err := tx.WithContext(ctx).Create(ev).Error; err != nil {
		tb.Fatalf("seed event: %v", err)
	}
	return ev
}

func SeedProblem(tb testing.TB, ctx context.Context, tx *gorm.DB, id, primary string, difficulty float64, skills ...string) *types.Problem {
	tb.Helper()
	if len(skills) == 0 {
		skills = []string{primary}
	}
	p := &types.Problem{
		ID:           id,
		Title:        "problem " + id,
		PrimarySkill: primary,
		Skills:       datatypes.NewJSONSlice(skills),
		Difficulty:   difficulty,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed problem: %v", err)
	}
	for _, s := range skills {
		if err := tx.WithContext(ctx).Create(&types.ProblemSkill{ProblemID: id, SkillID: s}).Error; err != nil {
			tb.Fatalf("seed problem skill: %v", err)
		}
	}
	return p
}

func SeedSequenceLog(tb testing.TB, ctx context.Context, tx *gorm.DB, studentID, prev, next string, wasCorrect bool, ts time.Time) *types.SequenceLog {
	tb.Helper()
	row := &types.SequenceLog{
		ID:            uuid.New(),
		StudentID:     studentID,
		PrevProblemID: prev,
		NextProblemID: next,
		WasCorrect:    wasCorrect,
		Timestamp:     ts.UTC(),
	}
	if err := tx.WithContext(ctx).Create(row).Error; err != nil {
		tb.Fatalf("seed sequence log: %v", err)
	}
	return row
}
