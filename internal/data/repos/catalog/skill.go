package catalog

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type SkillRepo interface {
	Upsert(dbc dbctx.Context, skills []*types.Skill) error
	List(dbc dbctx.Context) ([]*types.Skill, error)
}

type skillRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSkillRepo(db *gorm.DB, baseLog *logger.Logger) SkillRepo {
	return &skillRepo{db: db, log: baseLog.With("repo", "SkillRepo")}
}

func (r *skillRepo) Upsert(dbc dbctx.Context, skills []*types.Skill) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(skills) == 0 {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&skills).Error
}

func (r *skillRepo) List(dbc dbctx.Context) ([]*types.Skill, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Skill
	if err := transaction.WithContext(dbc.Ctx).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
