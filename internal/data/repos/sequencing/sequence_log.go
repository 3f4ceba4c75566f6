package sequencing

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type SequenceLogRepo interface {
	Create(dbc dbctx.Context, row *types.SequenceLog) error
	// ListRecent returns up to limit rows for the student, newest first.
	ListRecent(dbc dbctx.Context, studentID string, limit int) ([]*types.SequenceLog, error)
	// ListRecentFailed returns up to limit rows with was_correct=false, newest first.
	ListRecentFailed(dbc dbctx.Context, studentID string, limit int) ([]*types.SequenceLog, error)
	GetLatest(dbc dbctx.Context, studentID string) (*types.SequenceLog, error)
}

type sequenceLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSequenceLogRepo(db *gorm.DB, baseLog *logger.Logger) SequenceLogRepo {
	return &sequenceLogRepo{db: db, log: baseLog.With("repo", "SequenceLogRepo")}
}

func (r *sequenceLogRepo) Create(dbc dbctx.Context, row *types.SequenceLog) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil {
		return nil
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if row.Timestamp.IsZero() {
		row.Timestamp = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).Create(row).Error
}

func (r *sequenceLogRepo) ListRecent(dbc dbctx.Context, studentID string, limit int) ([]*types.SequenceLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SequenceLog
	if studentID == "" || limit <= 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sequenceLogRepo) ListRecentFailed(dbc dbctx.Context, studentID string, limit int) ([]*types.SequenceLog, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SequenceLog
	if studentID == "" || limit <= 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND was_correct = ?", studentID, false).
		Order("timestamp DESC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *sequenceLogRepo) GetLatest(dbc dbctx.Context, studentID string) (*types.SequenceLog, error) {
	rows, err := r.ListRecent(dbc, studentID, 1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return rows[0], nil
}
