package learner

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type PerformanceRecordRepo interface {
	Create(dbc dbctx.Context, rec *types.PerformanceRecord) error
	ListByStudent(dbc dbctx.Context, studentID string, limit int) ([]*types.PerformanceRecord, error)
}

type performanceRecordRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPerformanceRecordRepo(db *gorm.DB, baseLog *logger.Logger) PerformanceRecordRepo {
	return &performanceRecordRepo{db: db, log: baseLog.With("repo", "PerformanceRecordRepo")}
}

func (r *performanceRecordRepo) Create(dbc dbctx.Context, rec *types.PerformanceRecord) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if rec == nil {
		return nil
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	// One record per event; a retried event must not append a second row.
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(rec).Error
}

func (r *performanceRecordRepo) ListByStudent(dbc dbctx.Context, studentID string, limit int) ([]*types.PerformanceRecord, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PerformanceRecord
	if studentID == "" {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("timestamp DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
