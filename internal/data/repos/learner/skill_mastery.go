package learner

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type SkillMasteryRepo interface {
	// CreateMissing inserts rows that do not exist yet; existing
	// (student, skill) pairs are left untouched.
	CreateMissing(dbc dbctx.Context, rows []*types.SkillMastery) error
	ListByStudent(dbc dbctx.Context, studentID string) ([]*types.SkillMastery, error)
	GetByStudentSkills(dbc dbctx.Context, studentID string, skillIDs []string) ([]*types.SkillMastery, error)
	ListWeakest(dbc dbctx.Context, studentID string, limit int) ([]*types.SkillMastery, error)
	Save(dbc dbctx.Context, row *types.SkillMastery) error
}

type skillMasteryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillMasteryRepo(db *gorm.DB, baseLog *logger.Logger) SkillMasteryRepo {
	return &skillMasteryRepo{db: db, log: baseLog.With("repo", "SkillMasteryRepo")}
}

func (r *skillMasteryRepo) CreateMissing(dbc dbctx.Context, rows []*types.SkillMastery) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return nil
	}
	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		if row.LastUpdated.IsZero() {
			row.LastUpdated = now
		}
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "student_id"}, {Name: "skill_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
}

func (r *skillMasteryRepo) ListByStudent(dbc dbctx.Context, studentID string) ([]*types.SkillMastery, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SkillMastery
	if studentID == "" {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("skill_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillMasteryRepo) GetByStudentSkills(dbc dbctx.Context, studentID string, skillIDs []string) ([]*types.SkillMastery, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SkillMastery
	if studentID == "" || len(skillIDs) == 0 {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ? AND skill_id IN ?", studentID, skillIDs).
		Order("skill_id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillMasteryRepo) ListWeakest(dbc dbctx.Context, studentID string, limit int) ([]*types.SkillMastery, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.SkillMastery
	if studentID == "" {
		return out, nil
	}
	q := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("mastery ASC, skill_id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *skillMasteryRepo) Save(dbc dbctx.Context, row *types.SkillMastery) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if row == nil || row.ID == uuid.Nil {
		return nil
	}
	if row.LastUpdated.IsZero() {
		row.LastUpdated = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).
		Model(&types.SkillMastery{}).
		Where("id = ?", row.ID).
		Updates(map[string]interface{}{
			"mastery":       row.Mastery,
			"attempt_count": row.AttemptCount,
			"last_updated":  row.LastUpdated,
		}).Error
}
