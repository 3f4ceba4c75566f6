package services

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

// ComputeLearnerState derives the aggregate state from every tracked skill.
// Weak skills are sorted by id. With no skills the average is 0.
func ComputeLearnerState(studentID string, rows []*types.SkillMastery) *types.LearnerState {
	weak := []string{}
	sum := 0.0
	for _, r := range rows {
		sum += r.Mastery
		if r.Mastery < types.WeakSkillThreshold {
			weak = append(weak, r.SkillID)
		}
	}
	sort.Strings(weak)
	avg := 0.0
	if len(rows) > 0 {
		avg = sum / float64(len(rows))
	}
	return &types.LearnerState{
		StudentID:     studentID,
		WeakSkills:    datatypes.NewJSONSlice(weak),
		LearningState: learningState(avg),
		AvgMastery:    avg,
		SkillCount:    len(rows),
	}
}

func learningState(avg float64) string {
	switch {
	case avg < types.WeakSkillThreshold:
		return types.StateStruggling
	case avg <= types.MasteredThreshold:
		return types.StateLearning
	default:
		return types.StateMastered
	}
}

type LearnerStateService interface {
	// Recompute appends a fresh LearnerState row for the student.
	Recompute(dbc dbctx.Context, studentID string, eventID *uuid.UUID) (*types.LearnerState, error)
	Latest(dbc dbctx.Context, studentID string) (*types.LearnerState, error)
}

type learnerStateService struct {
	db      *gorm.DB
	log     *logger.Logger
	mastery repos.SkillMasteryRepo
	states  repos.LearnerStateRepo
}

func NewLearnerStateService(db *gorm.DB, baseLog *logger.Logger, masteryRepo repos.SkillMasteryRepo, states repos.LearnerStateRepo) LearnerStateService {
	return &learnerStateService{
		db:      db,
		log:     baseLog.With("service", "LearnerStateService"),
		mastery: masteryRepo,
		states:  states,
	}
}

func (s *learnerStateService) Recompute(dbc dbctx.Context, studentID string, eventID *uuid.UUID) (*types.LearnerState, error) {
	rows, err := s.mastery.ListByStudent(dbc, studentID)
	if err != nil {
		return nil, fmt.Errorf("load mastery: %w", err)
	}
	state := ComputeLearnerState(studentID, rows)
	state.ID = uuid.New()
	state.EventID = eventID
	state.UpdatedAt = time.Now().UTC()
	if err := s.states.Create(dbc, state); err != nil {
		return nil, fmt.Errorf("append learner state: %w", err)
	}
	s.log.Debug("learner state recomputed",
		"student_id", studentID,
		"learning_state", state.LearningState,
		"weak_skills", len(state.WeakSkills),
	)
	return state, nil
}

func (s *learnerStateService) Latest(dbc dbctx.Context, studentID string) (*types.LearnerState, error) {
	state, err := s.states.GetLatest(dbc, studentID)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, apierr.NotFound("learner_state_not_found", "no learner state for student %s", studentID)
	}
	return state, nil
}
