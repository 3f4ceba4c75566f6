package learner

import (
	"gorm.io/gorm"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type StudentRepo interface {
	Create(dbc dbctx.Context, student *types.Student) error
	GetByID(dbc dbctx.Context, id string) (*types.Student, error)
	Exists(dbc dbctx.Context, id string) (bool, error)
}

type studentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStudentRepo(db *gorm.DB, baseLog *logger.Logger) StudentRepo {
	return &studentRepo{db: db, log: baseLog.With("repo", "StudentRepo")}
}

func (r *studentRepo) Create(dbc dbctx.Context, student *types.Student) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if student == nil {
		return nil
	}
	return transaction.WithContext(dbc.Ctx).Create(student).Error
}

func (r *studentRepo) GetByID(dbc dbctx.Context, id string) (*types.Student, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var s types.Student
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&s).Error; err != nil {
		return nil, err
	}
	if s.ID == "" {
		return nil, nil
	}
	return &s, nil
}

func (r *studentRepo) Exists(dbc dbctx.Context, id string) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return false, nil
	}
	var n int64
	if err := transaction.WithContext(dbc.Ctx).
		Model(&types.Student{}).
		Where("id = ?", id).
		Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}
