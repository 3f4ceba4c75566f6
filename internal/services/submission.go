package services

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	"github.com/yungbote/codeflow-backend/internal/diagnosis"
	"github.com/yungbote/codeflow-backend/internal/judge"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/pkg/pointers"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type SubmitInput struct {
	SubmissionID string `json:"submissionId" validate:"required,max=256"`
	StudentID    string `json:"studentId" validate:"required,max=128"`
	ProblemID    string `json:"problemId" validate:"required,max=128"`
	Code         string `json:"code" validate:"required,max=65536"`
	Attempts     int    `json:"attempts" validate:"min=1"`
}

type SubmitResult struct {
	IngestResult
	Duplicate bool              `json:"duplicate,omitempty"`
	Judge     *judge.Result     `json:"submissionResult,omitempty"`
	Diagnosis *diagnosis.Result `json:"errorAnalysis,omitempty"`
}

type SubmissionService interface {
	// Submit judges the code, diagnoses the outcome and ingests the event.
	// A submissionId seen before returns the stored event without rerunning
	// the judge.
	Submit(dbc dbctx.Context, in SubmitInput) (*SubmitResult, error)
}

type submissionService struct {
	log       *logger.Logger
	catalog   CatalogService
	ingestion IngestionService
	students  repos.StudentRepo
	events    repos.LearningEventRepo
	judge     judge.Executor
	diagnoser diagnosis.Diagnoser
	timeout   time.Duration
}

func NewSubmissionService(
	baseLog *logger.Logger,
	catalog CatalogService,
	ingestion IngestionService,
	students repos.StudentRepo,
	events repos.LearningEventRepo,
	executor judge.Executor,
	diagnoser diagnosis.Diagnoser,
	timeout time.Duration,
) SubmissionService {
	if timeout <= 0 {
		timeout = judge.DefaultTimeout
	}
	return &submissionService{
		log:       baseLog.With("service", "SubmissionService"),
		catalog:   catalog,
		ingestion: ingestion,
		students:  students,
		events:    events,
		judge:     executor,
		diagnoser: diagnoser,
		timeout:   timeout,
	}
}

func (s *submissionService) Submit(dbc dbctx.Context, in SubmitInput) (*SubmitResult, error) {
	in.SubmissionID = strings.TrimSpace(in.SubmissionID)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if s.judge == nil {
		return nil, apierr.New(http.StatusServiceUnavailable, "judge_not_configured", fmt.Errorf("%w: no judge configured", apierr.ErrUpstream))
	}

	existing, err := s.events.GetBySubmissionID(dbc, in.SubmissionID)
	if err != nil {
		return nil, fmt.Errorf("lookup submission: %w", err)
	}
	if existing != nil {
		return &SubmitResult{
			IngestResult: IngestResult{Status: IngestStatusAccepted, EventID: existing.ID},
			Duplicate:    true,
		}, nil
	}

	// Unknown students and problems are rejected before any code runs.
	ok, err := s.students.Exists(dbc, in.StudentID)
	if err != nil {
		return nil, fmt.Errorf("lookup student: %w", err)
	}
	if !ok {
		return nil, apierr.NotFound("student_not_found", "student %s not found", in.StudentID)
	}
	problem, err := s.catalog.GetProblem(dbc, in.ProblemID)
	if err != nil {
		return nil, err
	}

	res, err := s.judge.Execute(dbc.Ctx, in.Code, problem.TestCases, s.timeout)
	if err != nil {
		s.log.Warn("judge execution failed", "problem_id", problem.ID, "error", err)
		return nil, apierr.New(http.StatusBadGateway, "judge_unavailable", fmt.Errorf("%w: %v", apierr.ErrUpstream, err))
	}
	diag := s.diagnoser.Diagnose(in.Code, res, problem.Skills)

	learn := LearnInput{
		SubmissionID: in.SubmissionID,
		StudentID:    in.StudentID,
		ProblemID:    problem.ID,
		Result: LearnResult{
			Correct:   pointers.Ptr(res.Passed),
			Attempts:  in.Attempts,
			SolveTime: pointers.Ptr(res.SolveTime),
		},
		Diagnosis: LearnDiagnosis{
			Skills:    problem.Skills,
			ErrorType: diag.ErrorType,
		},
	}
	if len(diag.Errors) > 0 {
		learn.Diagnosis.Severity = pointers.Ptr(diag.Severity)
	}
	ingested, err := s.ingestion.Ingest(dbc, learn)
	if err != nil {
		return nil, err
	}
	s.log.Info("submission processed",
		"student_id", in.StudentID,
		"problem_id", problem.ID,
		"passed", res.Passed,
		"error_type", diag.ErrorType,
	)
	return &SubmitResult{
		IngestResult: *ingested,
		Duplicate:    ingested.Duplicate,
		Judge:        &res,
		Diagnosis:    &diag,
	}, nil
}
