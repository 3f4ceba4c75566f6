package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	appdb "github.com/yungbote/codeflow-backend/internal/data/db"
	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/realtime/bus"
)

const IngestStatusAccepted = "accepted"

type LearnResult struct {
	Correct   *bool    `json:"correct" validate:"required"`
	Attempts  int      `json:"attempts" validate:"min=1"`
	SolveTime *float64 `json:"solveTime" validate:"required,min=0"`
}

type LearnDiagnosis struct {
	Skills    []string `json:"skills" validate:"required,min=1,dive,required"`
	ErrorType string   `json:"errorType,omitempty" validate:"max=128"`
	Severity  *float64 `json:"severity,omitempty" validate:"omitempty,min=0,max=1"`
}

type LearnInput struct {
	SubmissionID string         `json:"submissionId" validate:"required,max=256"`
	StudentID    string         `json:"studentId" validate:"required,max=128"`
	ProblemID    string         `json:"problemId" validate:"required,max=128"`
	Result       LearnResult    `json:"result"`
	Diagnosis    LearnDiagnosis `json:"diagnosis"`
}

type IngestResult struct {
	Status    string    `json:"status"`
	EventID   uuid.UUID `json:"eventId"`
	Duplicate bool      `json:"-"`
}

type EventStatus struct {
	EventID       uuid.UUID `json:"eventId"`
	StudentID     string    `json:"studentId"`
	Completed     bool      `json:"completed"`
	NextProblemID *string   `json:"nextProblemId,omitempty"`
}

type IngestionService interface {
	// Ingest stores the event once per submissionId. Repeated submissions,
	// including concurrent ones, return the original event id.
	Ingest(dbc dbctx.Context, in LearnInput) (*IngestResult, error)
	Status(dbc dbctx.Context, eventID uuid.UUID) (*EventStatus, error)
}

type ingestionService struct {
	db       *gorm.DB
	log      *logger.Logger
	catalog  *SkillCatalog
	students repos.StudentRepo
	events   repos.LearningEventRepo
	bus      bus.Bus
	metrics  *observability.Metrics
}

func NewIngestionService(
	db *gorm.DB,
	baseLog *logger.Logger,
	catalog *SkillCatalog,
	students repos.StudentRepo,
	events repos.LearningEventRepo,
	wake bus.Bus,
	metrics *observability.Metrics,
) IngestionService {
	if wake == nil {
		wake = bus.Noop{}
	}
	return &ingestionService{
		db:       db,
		log:      baseLog.With("service", "IngestionService"),
		catalog:  catalog,
		students: students,
		events:   events,
		bus:      wake,
		metrics:  metrics,
	}
}

func (s *ingestionService) Ingest(dbc dbctx.Context, in LearnInput) (*IngestResult, error) {
	in.SubmissionID = strings.TrimSpace(in.SubmissionID)
	in.StudentID = strings.TrimSpace(in.StudentID)
	in.ProblemID = strings.TrimSpace(in.ProblemID)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if unknown := s.catalog.Unknown(dedupe(in.Diagnosis.Skills)); len(unknown) > 0 {
		return nil, apierr.Validation("unknown_skill", "diagnosis.skills: unknown skills %v", unknown)
	}

	existing, err := s.events.GetBySubmissionID(dbc, in.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("lookup submission: %w", err)
	}
	if existing != nil {
		return s.duplicate(existing), nil
	}

	ok, err := s.students.Exists(dbc, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	if !ok {
		return nil, apierr.NotFound("student_not_found", "student %s not found", in.StudentID)
	}

	ts, err := s.nextTimestamp(dbc, in.StudentID)
	if err != nil {
		return nil, err
	}
	ev := &types.LearningEvent{
		ID:               uuid.New(),
		SubmissionID:     in.SubmissionID,
		StudentID:        in.StudentID,
		ProblemID:        in.ProblemID,
		Timestamp:        ts,
		Correct:          *in.Result.Correct,
		Attempts:         in.Result.Attempts,
		SolveTimeSeconds: *in.Result.SolveTime,
		Skills:           datatypes.NewJSONSlice(dedupe(in.Diagnosis.Skills)),
		ErrorType:        strings.TrimSpace(in.Diagnosis.ErrorType),
		Severity:         in.Diagnosis.Severity,
		BKTStatus:        types.BKTUnclaimed,
	}
	if err := s.events.Create(dbc, ev); err != nil {
		if !appdb.IsUniqueViolation(err) {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		// Lost an insert race on submission_id; the winner's row is the answer.
		existing, rerr := s.events.GetBySubmissionID(dbctx.Context{Ctx: dbc.Ctx}, in.SubmissionID)
		if rerr != nil {
			return nil, fmt.Errorf("reread submission: %w", rerr)
		}
		if existing == nil {
			return nil, fmt.Errorf("insert event: %w", err)
		}
		return s.duplicate(existing), nil
	}

	s.metrics.IncEventIngested("created")
	s.log.Debug("event ingested", "event_id", ev.ID, "student_id", ev.StudentID, "submission_id", ev.SubmissionID)
	if err := s.bus.Publish(dbc.Ctx, bus.Wakeup{StudentID: ev.StudentID, EventID: ev.ID, At: ts}); err != nil {
		s.log.Warn("wakeup publish failed", "event_id", ev.ID, "error", err)
	}
	return &IngestResult{Status: IngestStatusAccepted, EventID: ev.ID}, nil
}

// nextTimestamp stamps events on the server and keeps each student's
// timestamps strictly increasing, so claim order follows arrival order even
// when the clock steps backwards.
func (s *ingestionService) nextTimestamp(dbc dbctx.Context, studentID string) (time.Time, error) {
	now := time.Now().UTC()
	latest, err := s.events.LatestTimestamp(dbc, studentID)
	if err != nil {
		return time.Time{}, fmt.Errorf("lookup latest event: %w", err)
	}
	if !latest.IsZero() && !now.After(latest) {
		now = latest.UTC().Add(time.Microsecond)
	}
	return now, nil
}

func (s *ingestionService) duplicate(ev *types.LearningEvent) *IngestResult {
	s.metrics.IncEventIngested("duplicate")
	s.log.Debug("duplicate submission", "event_id", ev.ID, "submission_id", ev.SubmissionID)
	return &IngestResult{Status: IngestStatusAccepted, EventID: ev.ID, Duplicate: true}
}

func (s *ingestionService) Status(dbc dbctx.Context, eventID uuid.UUID) (*EventStatus, error) {
	ev, err := s.events.GetByID(dbc, eventID)
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return nil, apierr.NotFound("event_not_found", "event %s not found", eventID)
	}
	return &EventStatus{
		EventID:       ev.ID,
		StudentID:     ev.StudentID,
		Completed:     ev.Completed,
		NextProblemID: ev.NextProblemID,
	}, nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
