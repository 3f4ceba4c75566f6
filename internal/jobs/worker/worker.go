package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/ctxutil"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/realtime/bus"
	"github.com/yungbote/codeflow-backend/internal/services"
)

const (
	OutcomeCompleted = "completed"
	OutcomeRetry     = "retry"
	OutcomePartial   = "partial"
)

type Config struct {
	Concurrency  int
	PollInterval time.Duration
	// StaleClaim is how long a claim may be held before another cycle
	// returns it to unclaimed.
	StaleClaim time.Duration
	// StudentBatch caps how many students one cycle visits; 0 means all.
	StudentBatch int
}

func DefaultConfig() Config {
	return Config{
		Concurrency:  4,
		PollInterval: time.Second,
		StaleClaim:   5 * time.Minute,
	}
}

// Worker drains unclaimed learning events, one claim per student at a time.
// Any number of Workers, in any number of processes, may share a database.
type Worker struct {
	log        *logger.Logger
	cfg        Config
	events     repos.LearningEventRepo
	mastery    services.MasteryService
	learner    services.LearnerStateService
	sequencing services.SequencingService
	bus        bus.Bus
	metrics    *observability.Metrics
}

func NewWorker(
	baseLog *logger.Logger,
	cfg Config,
	events repos.LearningEventRepo,
	mastery services.MasteryService,
	learner services.LearnerStateService,
	sequencing services.SequencingService,
	wake bus.Bus,
	metrics *observability.Metrics,
) *Worker {
	def := DefaultConfig()
	if cfg.Concurrency < 1 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.StaleClaim <= 0 {
		cfg.StaleClaim = def.StaleClaim
	}
	if wake == nil {
		wake = bus.Noop{}
	}
	return &Worker{
		log:        baseLog.With("component", "LearningEventWorker"),
		cfg:        cfg,
		events:     events,
		mastery:    mastery,
		learner:    learner,
		sequencing: sequencing,
		bus:        wake,
		metrics:    metrics,
	}
}

// Start runs Concurrency poll loops until ctx is cancelled. Each loop
// finishes its current cycle before returning.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info("Starting learning event worker pool",
		"concurrency", w.cfg.Concurrency,
		"poll_interval", w.cfg.PollInterval.String(),
	)

	wakes := make([]chan struct{}, w.cfg.Concurrency)
	for i := range wakes {
		wakes[i] = make(chan struct{}, 1)
	}
	if err := w.bus.StartForwarder(ctx, func(bus.Wakeup) {
		for _, ch := range wakes {
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}); err != nil {
		// Polling still finds the work.
		w.log.Warn("Wakeup forwarder unavailable", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < w.cfg.Concurrency; i++ {
		workerID := i + 1
		wake := wakes[i]
		g.Go(func() error {
			w.runLoop(gctx, workerID, wake)
			return nil
		})
	}
	return g.Wait()
}

func (w *Worker) runLoop(ctx context.Context, workerID int, wake <-chan struct{}) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	// Cycles are not interrupted by cancellation; the loop exits between them.
	cycleCtx := context.WithoutCancel(ctx)
	for {
		if _, err := w.Cycle(cycleCtx); err != nil {
			w.log.Warn("Worker cycle failed", "worker_id", workerID, "error", err)
		}
		select {
		case <-ctx.Done():
			w.log.Info("Worker loop stopped", "worker_id", workerID)
			return
		case <-ticker.C:
		case <-wake:
		}
	}
}

// Cycle runs one poll: release stale claims, then claim and process at most
// one event per student. It returns how many events were claimed.
func (w *Worker) Cycle(ctx context.Context) (int, error) {
	w.metrics.IncWorkerCycle()
	dbc := dbctx.Context{Ctx: ctx}

	released, err := w.events.ReleaseStale(dbc, time.Now().UTC().Add(-w.cfg.StaleClaim))
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	if released > 0 {
		w.metrics.AddStaleReleased(released)
		w.log.Warn("Released stale claims", "count", released)
	}

	if w.metrics != nil {
		if counts, err := w.events.CountByStatus(dbc); err == nil {
			byName := make(map[string]int64, len(counts))
			for k, v := range counts {
				byName[string(k)] = v
			}
			w.metrics.SetEventsByStatus(byName)
		}
	}

	students, err := w.events.ListStudentsWithUnclaimed(dbc, w.cfg.StudentBatch)
	if err != nil {
		return 0, fmt.Errorf("list students: %w", err)
	}

	processed := 0
	for _, studentID := range students {
		ev, err := w.events.ClaimNext(dbc, studentID)
		if err != nil {
			w.log.Warn("ClaimNext failed", "student_id", studentID, "error", err)
			continue
		}
		if ev == nil {
			// Another worker holds this student's claim.
			continue
		}
		processed++
		w.process(ctx, ev)
	}
	return processed, nil
}

func (w *Worker) process(ctx context.Context, ev *types.LearningEvent) {
	start := time.Now()
	ctx, span := observability.Tracer("codeflow/worker").Start(ctx, "worker.process_event")
	span.SetAttributes(
		attribute.String("event.id", ev.ID.String()),
		attribute.String("student.id", ev.StudentID),
		attribute.Int("event.claim_count", ev.ClaimCount),
	)
	defer span.End()
	ctx = ctxutil.WithTraceData(ctx, &ctxutil.TraceData{
		TraceID:   span.SpanContext().TraceID().String(),
		StudentID: ev.StudentID,
		EventID:   ev.ID.String(),
	})
	log := w.log.With(ctxutil.LogFields(ctx)...)
	dbc := dbctx.Context{Ctx: ctx}

	if err := guard(func() error {
		_, err := w.mastery.ApplyEvent(dbc, ev)
		return err
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mastery update failed")
		if _, rerr := w.events.Release(dbc, ev.ID, err.Error()); rerr != nil {
			log.Error("Release failed", "error", rerr)
		}
		w.metrics.ObserveWorkerEvent(OutcomeRetry, time.Since(start))
		log.Warn("Mastery update failed; event released for retry", "claim_count", ev.ClaimCount, "error", err)
		return
	}

	var state *types.LearnerState
	if err := guard(func() error {
		var err error
		state, err = w.learner.Recompute(dbc, ev.StudentID, uuidPtr(ev.ID))
		return err
	}); err != nil {
		// Mastery is already applied; the event must not be reprocessed.
		span.RecordError(err)
		span.SetStatus(codes.Error, "learner state failed")
		if rerr := w.events.RecordError(dbc, ev.ID, "learner state: "+err.Error()); rerr != nil {
			log.Error("RecordError failed", "error", rerr)
		}
		w.metrics.ObserveWorkerEvent(OutcomePartial, time.Since(start))
		log.Error("Learner state recompute failed", "error", err)
		return
	}

	if err := w.events.MarkCompleted(dbc, ev.ID); err != nil {
		log.Error("MarkCompleted failed", "error", err)
		w.metrics.ObserveWorkerEvent(OutcomePartial, time.Since(start))
		return
	}
	w.metrics.ObserveWorkerEvent(OutcomeCompleted, time.Since(start))

	if err := guard(func() error {
		_, err := w.sequencing.Next(dbc, services.SequenceRequest{
			StudentID:        ev.StudentID,
			EventID:          uuidPtr(ev.ID),
			CurrentProblemID: ev.ProblemID,
			WasCorrect:       ev.Correct,
			WeakSkills:       state.WeakSkills,
		})
		return err
	}); err != nil {
		log.Warn("Sequencing failed", "error", err)
	}
	log.Debug("Event processed", "duration", time.Since(start).String())
}

// guard runs fn and converts a panic into an error.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{Val: r}
		}
	}()
	return fn()
}

type panicError struct{ Val any }

func (e *panicError) Error() string { return fmt.Sprintf("panic: %v", e.Val) }

func uuidPtr(id uuid.UUID) *uuid.UUID { return &id }

