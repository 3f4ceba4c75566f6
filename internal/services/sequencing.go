package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/sequencer"
)

// ProblemSource adapts the problem bank to sequencer.Source. Tx is honored
// when set.
type ProblemSource struct {
	Problems repos.ProblemRepo
	Tx       *gorm.DB
}

func (p ProblemSource) Candidates(ctx context.Context, q sequencer.Query) ([]sequencer.Candidate, error) {
	rows, err := p.Problems.ListCandidates(dbctx.Context{Ctx: ctx, Tx: p.Tx}, repos.CandidateQuery{
		SkillIDs:      q.SkillIDs,
		MinDifficulty: q.MinDifficulty,
		MaxDifficulty: q.MaxDifficulty,
		ExcludeID:     q.ExcludeID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]sequencer.Candidate, 0, len(rows))
	for _, r := range rows {
		out = append(out, sequencer.Candidate{ID: r.ID, PrimarySkill: r.PrimarySkill, Difficulty: r.Difficulty})
	}
	return out, nil
}

type SequenceRequest struct {
	StudentID        string
	EventID          *uuid.UUID
	CurrentProblemID string
	WasCorrect       bool
	WeakSkills       []string
}

type NextProblemView struct {
	Problem         *types.Problem `json:"problem"`
	Tier            string         `json:"tier,omitempty"`
	Mastery         float64        `json:"mastery"`
	Momentum        float64        `json:"momentum"`
	TargetChallenge float64        `json:"targetChallenge"`
	DecidedAt       time.Time      `json:"decidedAt"`
}

type SequencingService interface {
	// Next selects the student's next problem and appends a SequenceLog row
	// for the decision. A nil decision means no candidate matched.
	Next(dbc dbctx.Context, req SequenceRequest) (*sequencer.Decision, error)
	// Latest returns the most recent decision with its problem.
	Latest(dbc dbctx.Context, studentID string) (*NextProblemView, error)
}

type sequencingService struct {
	db       *gorm.DB
	log      *logger.Logger
	cfg      sequencer.Config
	mastery  repos.SkillMasteryRepo
	problems repos.ProblemRepo
	logs     repos.SequenceLogRepo
	events   repos.LearningEventRepo
	metrics  *observability.Metrics
}

func NewSequencingService(
	db *gorm.DB,
	baseLog *logger.Logger,
	cfg sequencer.Config,
	masteryRepo repos.SkillMasteryRepo,
	problems repos.ProblemRepo,
	logs repos.SequenceLogRepo,
	events repos.LearningEventRepo,
	metrics *observability.Metrics,
) SequencingService {
	return &sequencingService{
		db:       db,
		log:      baseLog.With("service", "SequencingService"),
		cfg:      cfg,
		mastery:  masteryRepo,
		problems: problems,
		logs:     logs,
		events:   events,
		metrics:  metrics,
	}
}

func (s *sequencingService) Next(dbc dbctx.Context, req SequenceRequest) (*sequencer.Decision, error) {
	in, err := s.buildInput(dbc, req)
	if err != nil {
		return nil, err
	}
	seq := sequencer.New(s.cfg, ProblemSource{Problems: s.problems, Tx: dbc.Tx})
	decision, err := seq.Select(dbc.Ctx, in)
	if err != nil {
		return nil, err
	}
	if decision == nil {
		s.metrics.IncSequencerDecision("")
		s.log.Info("no candidate problem", "student_id", req.StudentID, "current_problem_id", req.CurrentProblemID)
		return nil, nil
	}
	s.metrics.IncSequencerDecision(string(decision.Tier))

	row := &types.SequenceLog{
		ID:              uuid.New(),
		StudentID:       req.StudentID,
		EventID:         req.EventID,
		PrevProblemID:   req.CurrentProblemID,
		NextProblemID:   decision.Problem.ID,
		WasCorrect:      req.WasCorrect,
		Mastery:         decision.Mastery,
		Momentum:        decision.Momentum,
		TargetChallenge: decision.TargetChallenge,
		Tier:            string(decision.Tier),
		Timestamp:       time.Now().UTC(),
	}
	if err := s.logs.Create(dbc, row); err != nil {
		return nil, fmt.Errorf("append sequence log: %w", err)
	}
	if req.EventID != nil {
		if err := s.events.SetNextProblem(dbc, *req.EventID, decision.Problem.ID); err != nil {
			return nil, fmt.Errorf("store next problem: %w", err)
		}
	}
	s.log.Debug("next problem selected",
		"student_id", req.StudentID,
		"next_problem_id", decision.Problem.ID,
		"tier", decision.Tier,
		"target_challenge", decision.TargetChallenge,
	)
	return decision, nil
}

func (s *sequencingService) buildInput(dbc dbctx.Context, req SequenceRequest) (sequencer.Input, error) {
	rows, err := s.mastery.ListByStudent(dbc, req.StudentID)
	if err != nil {
		return sequencer.Input{}, fmt.Errorf("load mastery: %w", err)
	}
	sum := 0.0
	for _, r := range rows {
		sum += r.Mastery
	}
	mean := 0.0
	if len(rows) > 0 {
		mean = sum / float64(len(rows))
	}

	recent, err := s.logs.ListRecent(dbc, req.StudentID, s.cfg.MomentumWindow)
	if err != nil {
		return sequencer.Input{}, fmt.Errorf("load recent decisions: %w", err)
	}
	// ListRecent is newest first; momentum wants oldest first.
	outcomes := make([]bool, len(recent))
	for i, l := range recent {
		outcomes[len(recent)-1-i] = l.WasCorrect
	}

	var seenIDs []string
	for i, l := range recent {
		if i >= s.cfg.StagnationLookback {
			break
		}
		seenIDs = append(seenIDs, l.NextProblemID)
	}

	failedLogs, err := s.logs.ListRecentFailed(dbc, req.StudentID, s.cfg.FailureLookback)
	if err != nil {
		return sequencer.Input{}, fmt.Errorf("load failed decisions: %w", err)
	}
	failedIDs := make([]string, 0, len(failedLogs))
	for _, l := range failedLogs {
		failedIDs = append(failedIDs, l.PrevProblemID)
	}

	recentSkills, err := s.primarySkills(dbc, seenIDs)
	if err != nil {
		return sequencer.Input{}, err
	}
	failedSkills, err := s.primarySkills(dbc, failedIDs)
	if err != nil {
		return sequencer.Input{}, err
	}

	return sequencer.Input{
		CurrentProblemID: req.CurrentProblemID,
		Mastery:          mean,
		WeakSkills:       req.WeakSkills,
		RecentOutcomes:   outcomes,
		RecentSkills:     recentSkills,
		FailedSkills:     failedSkills,
	}, nil
}

func (s *sequencingService) primarySkills(dbc dbctx.Context, problemIDs []string) ([]string, error) {
	if len(problemIDs) == 0 {
		return nil, nil
	}
	byID, err := s.problems.GetByIDs(dbc, dedupe(problemIDs))
	if err != nil {
		return nil, fmt.Errorf("load problems: %w", err)
	}
	var out []string
	for _, id := range problemIDs {
		if p := byID[id]; p != nil && p.PrimarySkill != "" {
			out = append(out, p.PrimarySkill)
		}
	}
	return dedupe(out), nil
}

func (s *sequencingService) Latest(dbc dbctx.Context, studentID string) (*NextProblemView, error) {
	row, err := s.logs.GetLatest(dbc, studentID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, apierr.NotFound("next_problem_not_found", "no sequencing decision for student %s", studentID)
	}
	p, err := s.problems.GetByID(dbc, row.NextProblemID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apierr.NotFound("problem_not_found", "problem %s not found", row.NextProblemID)
	}
	return &NextProblemView{
		Problem:         p,
		Tier:            row.Tier,
		Mastery:         row.Mastery,
		Momentum:        row.Momentum,
		TargetChallenge: row.TargetChallenge,
		DecidedAt:       row.Timestamp,
	}, nil
}
