package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

// SkillUpdate is the audit view of one skill changed by an event.
type SkillUpdate struct {
	SkillID      string  `json:"skillId"`
	Old          float64 `json:"old"`
	New          float64 `json:"new"`
	Posterior    float64 `json:"posterior"`
	Confidence   float64 `json:"confidence"`
	Boost        float64 `json:"boost,omitempty"`
	Recalibrated bool    `json:"recalibrated,omitempty"`
}

type MasteryService interface {
	// ApplyEvent runs the BKT update for every skill on a claimed event and
	// marks the event's mastery step done, all in one transaction. The event
	// must be in the claimed state.
	ApplyEvent(dbc dbctx.Context, ev *types.LearningEvent) ([]SkillUpdate, error)
}

type masteryService struct {
	db      *gorm.DB
	log     *logger.Logger
	engine  *mastery.Engine
	mastery repos.SkillMasteryRepo
	history repos.SkillHistoryRepo
	perf    repos.PerformanceRecordRepo
	events  repos.LearningEventRepo
	nowFunc func() time.Time
}

func NewMasteryService(
	db *gorm.DB,
	baseLog *logger.Logger,
	engine *mastery.Engine,
	masteryRepo repos.SkillMasteryRepo,
	history repos.SkillHistoryRepo,
	perf repos.PerformanceRecordRepo,
	events repos.LearningEventRepo,
) MasteryService {
	return &masteryService{
		db:      db,
		log:     baseLog.With("service", "MasteryService"),
		engine:  engine,
		mastery: masteryRepo,
		history: history,
		perf:    perf,
		events:  events,
		nowFunc: func() time.Time { return time.Now().UTC() },
	}
}

func (s *masteryService) ApplyEvent(dbc dbctx.Context, ev *types.LearningEvent) ([]SkillUpdate, error) {
	if ev == nil {
		return nil, fmt.Errorf("apply event: nil event")
	}
	skills := dedupe(ev.Skills)
	var updates []SkillUpdate

	err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		inner := dbc.WithTx(tx)
		updates = updates[:0]

		// Skills added to the catalog after onboarding get their row here.
		if err := s.mastery.CreateMissing(inner, initialRows(ev.StudentID, skills)); err != nil {
			return fmt.Errorf("create missing mastery: %w", err)
		}
		all, err := s.mastery.ListByStudent(inner, ev.StudentID)
		if err != nil {
			return fmt.Errorf("load mastery: %w", err)
		}
		// Prerequisite checks read the state from before this event.
		snapshot := make(map[string]float64, len(all))
		rows := make(map[string]*types.SkillMastery, len(all))
		for _, row := range all {
			snapshot[row.SkillID] = row.Mastery
			rows[row.SkillID] = row
		}

		now := s.nowFunc()
		history := make([]*types.SkillHistory, 0, len(skills))
		for _, skillID := range skills {
			row := rows[skillID]
			if row == nil {
				return fmt.Errorf("mastery row missing for skill %s", skillID)
			}
			u := s.engine.Update(row.Mastery, ev.Correct, skillID, ev.ErrorType, ev.Attempts, ev.SolveTimeSeconds)
			next := u.New

			boost := 0.0
			if row.AttemptCount == 0 {
				boost = s.engine.PrerequisiteBoost(skillID, snapshot)
				if boost > 0 {
					next = mastery.ApplyBoost(next, boost)
				}
			}

			recalibrated := false
			if row.AttemptCount == mastery.RecalibrationAttempt {
				prev, err := s.history.RecentPosteriors(inner, ev.StudentID, skillID, mastery.RecalibrationWindow-1)
				if err != nil {
					return fmt.Errorf("load posteriors: %w", err)
				}
				posteriors := append([]float64{u.Posterior}, prev...)
				if len(posteriors) >= mastery.RecalibrationWindow {
					next = mastery.Recalibrate(posteriors, next)
					recalibrated = true
				}
			}

			row.Mastery = next
			row.AttemptCount++
			row.LastUpdated = now
			if err := s.mastery.Save(inner, row); err != nil {
				return fmt.Errorf("save mastery %s: %w", skillID, err)
			}

			history = append(history, &types.SkillHistory{
				ID:           uuid.New(),
				StudentID:    ev.StudentID,
				SkillID:      skillID,
				EventID:      ev.ID,
				ProblemID:    ev.ProblemID,
				OldMastery:   u.Old,
				NewMastery:   next,
				Posterior:    u.Posterior,
				Confidence:   u.Confidence,
				ParamT:       u.Params.T,
				ParamG:       u.Params.G,
				ParamS:       u.Params.S,
				EvidenceType: evidenceType(ev),
				ErrorType:    ev.ErrorType,
				Boost:        boost,
				Recalibrated: recalibrated,
				Timestamp:    now,
			})
			updates = append(updates, SkillUpdate{
				SkillID:      skillID,
				Old:          u.Old,
				New:          next,
				Posterior:    u.Posterior,
				Confidence:   u.Confidence,
				Boost:        boost,
				Recalibrated: recalibrated,
			})
		}

		if err := s.history.Create(inner, history); err != nil {
			return fmt.Errorf("write history: %w", err)
		}
		if err := s.perf.Create(inner, &types.PerformanceRecord{
			ID:               uuid.New(),
			StudentID:        ev.StudentID,
			EventID:          ev.ID,
			ProblemID:        ev.ProblemID,
			Skills:           datatypes.NewJSONSlice(skills),
			Correct:          ev.Correct,
			Attempts:         ev.Attempts,
			SolveTimeSeconds: ev.SolveTimeSeconds,
			ErrorType:        ev.ErrorType,
			Timestamp:        now,
		}); err != nil {
			return fmt.Errorf("write performance record: %w", err)
		}

		ok, err := s.events.MarkBKTDone(inner, ev.ID)
		if err != nil {
			return fmt.Errorf("mark bkt done: %w", err)
		}
		if !ok {
			return fmt.Errorf("event %s is no longer claimed", ev.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ev.BKTStatus = types.BKTDone
	s.log.Debug("mastery applied", "event_id", ev.ID, "student_id", ev.StudentID, "skills", len(updates))
	return updates, nil
}

// evidenceType records what the update was based on: "correct", the error
// type when one was diagnosed, otherwise "incorrect".
func evidenceType(ev *types.LearningEvent) string {
	if ev.Correct {
		return types.EvidenceCorrect
	}
	if ev.ErrorType != "" {
		return ev.ErrorType
	}
	return types.EvidenceIncorrect
}
