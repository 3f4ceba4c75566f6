package services

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

const DefaultWeakSkillLimit = 3

type OnboardInput struct {
	StudentID string `json:"studentId" validate:"required,max=128"`
	Name      string `json:"name,omitempty" validate:"max=256"`
}

type SkillMasteryView struct {
	SkillID      string  `json:"skillId"`
	Mastery      float64 `json:"mastery"`
	AttemptCount int     `json:"attemptCount"`
}

type StudentService interface {
	// Onboard creates the student and one mastery row per catalog skill at
	// the initial mastery. Onboarding an existing student is a conflict.
	Onboard(dbc dbctx.Context, in OnboardInput) (*types.Student, error)
	Mastery(dbc dbctx.Context, studentID string) ([]SkillMasteryView, error)
	WeakSkills(dbc dbctx.Context, studentID string, limit int) ([]SkillMasteryView, error)
}

type studentService struct {
	db       *gorm.DB
	log      *logger.Logger
	catalog  *SkillCatalog
	students repos.StudentRepo
	mastery  repos.SkillMasteryRepo
}

func NewStudentService(db *gorm.DB, baseLog *logger.Logger, catalog *SkillCatalog, students repos.StudentRepo, mastery repos.SkillMasteryRepo) StudentService {
	return &studentService{
		db:       db,
		log:      baseLog.With("service", "StudentService"),
		catalog:  catalog,
		students: students,
		mastery:  mastery,
	}
}

func (s *studentService) Onboard(dbc dbctx.Context, in OnboardInput) (*types.Student, error) {
	in.StudentID = strings.TrimSpace(in.StudentID)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	var student *types.Student
	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)
		exists, err := s.students.Exists(inner, in.StudentID)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("student_exists", "student %s already onboarded", in.StudentID)
		}
		student = &types.Student{ID: in.StudentID, Name: in.Name}
		if err := s.students.Create(inner, student); err != nil {
			return err
		}
		return s.mastery.CreateMissing(inner, initialRows(in.StudentID, s.catalog.IDs()))
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("student onboarded", "student_id", in.StudentID, "skills", len(s.catalog.IDs()))
	return student, nil
}

func (s *studentService) Mastery(dbc dbctx.Context, studentID string) ([]SkillMasteryView, error) {
	if err := s.requireStudent(dbc, studentID); err != nil {
		return nil, err
	}
	rows, err := s.mastery.ListByStudent(dbc, studentID)
	if err != nil {
		return nil, fmt.Errorf("list mastery: %w", err)
	}
	return masteryViews(rows), nil
}

func (s *studentService) WeakSkills(dbc dbctx.Context, studentID string, limit int) ([]SkillMasteryView, error) {
	if limit <= 0 {
		limit = DefaultWeakSkillLimit
	}
	if err := s.requireStudent(dbc, studentID); err != nil {
		return nil, err
	}
	rows, err := s.mastery.ListWeakest(dbc, studentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list weakest: %w", err)
	}
	return masteryViews(rows), nil
}

func (s *studentService) requireStudent(dbc dbctx.Context, studentID string) error {
	ok, err := s.students.Exists(dbc, studentID)
	if err != nil {
		return err
	}
	if !ok {
		return apierr.NotFound("student_not_found", "student %s not found", studentID)
	}
	return nil
}

func initialRows(studentID string, skillIDs []string) []*types.SkillMastery {
	rows := make([]*types.SkillMastery, 0, len(skillIDs))
	for _, id := range skillIDs {
		rows = append(rows, &types.SkillMastery{
			StudentID: studentID,
			SkillID:   id,
			Mastery:   types.InitialMastery,
		})
	}
	return rows
}

func masteryViews(rows []*types.SkillMastery) []SkillMasteryView {
	out := make([]SkillMasteryView, 0, len(rows))
	for _, r := range rows {
		out = append(out, SkillMasteryView{SkillID: r.SkillID, Mastery: r.Mastery, AttemptCount: r.AttemptCount})
	}
	return out
}
