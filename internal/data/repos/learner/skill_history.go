package learner

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type SkillHistoryRepo interface {
	Create(dbc dbctx.Context, rows []*types.SkillHistory) error
	// RecentPosteriors returns up to limit posteriors for the skill, newest first.
	RecentPosteriors(dbc dbctx.Context, studentID, skillID string, limit int) ([]float64, error)
	ListByStudent(dbc dbctx.Context, studentID string, limit int) ([]*types.SkillHistory, error)
}

type skillHistoryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillHistoryRepo(db *gorm.DB, baseLog *logger.Logger) SkillHistoryRepo {
	return &skillHistoryRepo{db: db, log: baseLog.With("repo", "SkillHistoryRepo")}
}

func (r *skillHistoryRepo) Create(dbc dbctx.Context, rows []*types.SkillHistory) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
	}
	return transaction.WithContext(dbc.Ctx).Create(&rows).Error
}

func (r *skillHistoryRepo) RecentPosteriors(dbc dbctx.Context, studentID, skillID string, limit int) ([]float64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []float64
	if studentID == "" || skillID == "" || limit <= 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.SkillHistory{}).
		Where("student_id = ? AND skill_id = ?", studentID, skillID).
		Order("timestamp DESC").
		Limit(limit).
		Pluck("posterior", &out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillHistoryRepo) ListByStudent(dbc dbctx.Context, studentID string, limit int) ([]*types.SkillHistory, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SkillHistory
	if studentID == "" {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("timestamp DESC, skill_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
