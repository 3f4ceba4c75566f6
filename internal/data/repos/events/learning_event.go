package events

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type LearningEventRepo interface {
	Create(dbc dbctx.Context, ev *types.LearningEvent) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LearningEvent, error)
	GetBySubmissionID(dbc dbctx.Context, submissionID string) (*types.LearningEvent, error)
	ListByStudent(dbc dbctx.Context, studentID string, limit int) ([]*types.LearningEvent, error)
	// LatestTimestamp is the newest event timestamp stored for the student,
	// zero when there is none.
	LatestTimestamp(dbc dbctx.Context, studentID string) (time.Time, error)

	ListStudentsWithUnclaimed(dbc dbctx.Context, limit int) ([]string, error)
	ClaimNext(dbc dbctx.Context, studentID string) (*types.LearningEvent, error)
	Claim(dbc dbctx.Context, id uuid.UUID, studentID string) (bool, error)
	MarkBKTDone(dbc dbctx.Context, id uuid.UUID) (bool, error)
	Release(dbc dbctx.Context, id uuid.UUID, reason string) (bool, error)
	MarkCompleted(dbc dbctx.Context, id uuid.UUID) error
	RecordError(dbc dbctx.Context, id uuid.UUID, reason string) error
	SetNextProblem(dbc dbctx.Context, id uuid.UUID, problemID string) error
	ReleaseStale(dbc dbctx.Context, claimedBefore time.Time) (int64, error)
	CountByStatus(dbc dbctx.Context) (map[types.BKTStatus]int64, error)
}

type learningEventRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearningEventRepo(db *gorm.DB, baseLog *logger.Logger) LearningEventRepo {
	return &learningEventRepo{
		db:  db,
		log: baseLog.With("repo", "LearningEventRepo"),
	}
}

func (r *learningEventRepo) Create(dbc dbctx.Context, ev *types.LearningEvent) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if ev == nil {
		return nil
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.BKTStatus == "" {
		ev.BKTStatus = types.BKTUnclaimed
	}
	return transaction.WithContext(dbc.Ctx).Create(ev).Error
}

func (r *learningEventRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.LearningEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil, nil
	}
	var ev types.LearningEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&ev).Error; err != nil {
		return nil, err
	}
	if ev.ID == uuid.Nil {
		return nil, nil
	}
	return &ev, nil
}

func (r *learningEventRepo) GetBySubmissionID(dbc dbctx.Context, submissionID string) (*types.LearningEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if submissionID == "" {
		return nil, nil
	}
	var ev types.LearningEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("submission_id = ?", submissionID).
		Limit(1).
		Find(&ev).Error; err != nil {
		return nil, err
	}
	if ev.ID == uuid.Nil {
		return nil, nil
	}
	return &ev, nil
}

func (r *learningEventRepo) ListByStudent(dbc dbctx.Context, studentID string, limit int) ([]*types.LearningEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.LearningEvent
	if studentID == "" {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("timestamp ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *learningEventRepo) LatestTimestamp(dbc dbctx.Context, studentID string) (time.Time, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var latest types.LearningEvent
	if err := transaction.WithContext(dbc.Ctx).
		Select("timestamp").
		Where("student_id = ?", studentID).
		Order("timestamp DESC").
		Limit(1).
		Find(&latest).Error; err != nil {
		return time.Time{}, err
	}
	return latest.Timestamp, nil
}

// ListStudentsWithUnclaimed lists students that have unclaimed events and no
// event in flight.
func (r *learningEventRepo) ListStudentsWithUnclaimed(dbc dbctx.Context, limit int) ([]string, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var ids []string
	q := transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Distinct("student_id").
		Where("bkt_status = ?", types.BKTUnclaimed).
		// Students with a claim in flight cannot be claimed again, so they
		// must not hold batch slots ahead of students that can.
		Where(`NOT EXISTS (
			SELECT 1 FROM learning_event AS inflight
			WHERE inflight.student_id = learning_event.student_id AND inflight.bkt_status = ?
		)`, types.BKTClaimed).
		Order("student_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("student_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// ClaimNext claims the student's earliest unclaimed event. It returns nil when
// the student has nothing unclaimed, when another of the student's events is
// still in flight, or when a concurrent worker won the claim.
func (r *learningEventRepo) ClaimNext(dbc dbctx.Context, studentID string) (*types.LearningEvent, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == "" {
		return nil, nil
	}
	var next types.LearningEvent
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND bkt_status = ?", studentID, types.BKTUnclaimed).
		Order("timestamp ASC, id ASC").
		Limit(1).
		Find(&next).Error; err != nil {
		return nil, err
	}
	if next.ID == uuid.Nil {
		return nil, nil
	}
	ok, err := r.Claim(dbc, next.ID, studentID)
	if err != nil || !ok {
		return nil, err
	}
	return r.GetByID(dbc, next.ID)
}

// Claim is the compare-and-set unclaimed -> claimed. The status predicate is
// re-evaluated by the UPDATE itself, so of two racing callers exactly one sees
// a row affected. The NOT EXISTS guard keeps one in-flight claim per student.
//
// On Postgres two claims for different events of one student could both pass
// the guard under READ COMMITTED, so the update runs behind a per-student
// advisory lock and sees any claim committed before it.
func (r *learningEventRepo) Claim(dbc dbctx.Context, id uuid.UUID, studentID string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if transaction.Dialector.Name() != "postgres" {
		return r.claim(transaction.WithContext(dbc.Ctx), id, studentID)
	}
	var ok bool
	err := transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", studentID).Error; err != nil {
			return err
		}
		var err error
		ok, err = r.claim(txx, id, studentID)
		return err
	})
	return ok, err
}

func (r *learningEventRepo) claim(tx *gorm.DB, id uuid.UUID, studentID string) (bool, error) {
	now := time.Now().UTC()
	res := tx.Model(&types.LearningEvent{}).
		Where("id = ? AND bkt_status = ?", id, types.BKTUnclaimed).
		Where(`NOT EXISTS (
			SELECT 1 FROM learning_event AS inflight
			WHERE inflight.student_id = ? AND inflight.bkt_status = ?
		)`, studentID, types.BKTClaimed).
		Updates(map[string]interface{}{
			"bkt_status":  types.BKTClaimed,
			"claimed_at":  now,
			"claim_count": gorm.Expr("claim_count + 1"),
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *learningEventRepo) MarkBKTDone(dbc dbctx.Context, id uuid.UUID) (bool, error) {
	return r.transition(dbc, id, types.BKTClaimed, map[string]interface{}{
		"bkt_status": types.BKTDone,
		"last_error": "",
	})
}

func (r *learningEventRepo) Release(dbc dbctx.Context, id uuid.UUID, reason string) (bool, error) {
	return r.transition(dbc, id, types.BKTClaimed, map[string]interface{}{
		"bkt_status": types.BKTUnclaimed,
		"claimed_at": nil,
		"last_error": reason,
	})
}

func (r *learningEventRepo) transition(dbc dbctx.Context, id uuid.UUID, from types.BKTStatus, updates map[string]interface{}) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return false, nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Where("id = ? AND bkt_status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *learningEventRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Where("id = ? AND bkt_status = ?", id, types.BKTDone).
		Updates(map[string]interface{}{
			"learner_state_done": true,
			"completed":          true,
			"last_error":         "",
			"updated_at":         time.Now().UTC(),
		}).Error
}

func (r *learningEventRepo) RecordError(dbc dbctx.Context, id uuid.UUID, reason string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_error": reason,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *learningEventRepo) SetNextProblem(dbc dbctx.Context, id uuid.UUID, problemID string) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == uuid.Nil || problemID == "" {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"next_problem_id": problemID,
			"updated_at":      time.Now().UTC(),
		}).Error
}

// ReleaseStale returns claims older than claimedBefore to unclaimed so that a
// crashed worker does not block its student forever.
func (r *learningEventRepo) ReleaseStale(dbc dbctx.Context, claimedBefore time.Time) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Where("bkt_status = ? AND claimed_at IS NOT NULL AND claimed_at < ?", types.BKTClaimed, claimedBefore.UTC()).
		Updates(map[string]interface{}{
			"bkt_status": types.BKTUnclaimed,
			"claimed_at": nil,
			"last_error": "stale claim released",
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

func (r *learningEventRepo) CountByStatus(dbc dbctx.Context) (map[types.BKTStatus]int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var rows []struct {
		BKTStatus types.BKTStatus `gorm:"column:bkt_status"`
		N         int64           `gorm:"column:n"`
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.LearningEvent{}).
		Select("bkt_status, COUNT(*) AS n").
		Group("bkt_status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := map[types.BKTStatus]int64{
		types.BKTUnclaimed: 0,
		types.BKTClaimed:   0,
		types.BKTDone:      0,
	}
	for _, row := range rows {
		out[row.BKTStatus] = row.N
	}
	return out, nil
}
