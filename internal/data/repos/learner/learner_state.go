package learner

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type LearnerStateRepo interface {
	Create(dbc dbctx.Context, state *types.LearnerState) error
	GetLatest(dbc dbctx.Context, studentID string) (*types.LearnerState, error)
}

type learnerStateRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLearnerStateRepo(db *gorm.DB, baseLog *logger.Logger) LearnerStateRepo {
	return &learnerStateRepo{db: db, log: baseLog.With("repo", "LearnerStateRepo")}
}

func (r *learnerStateRepo) Create(dbc dbctx.Context, state *types.LearnerState) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if state == nil {
		return nil
	}
	if state.ID == uuid.Nil {
		state.ID = uuid.New()
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now().UTC()
	}
	return transaction.WithContext(dbc.Ctx).Create(state).Error
}

func (r *learnerStateRepo) GetLatest(dbc dbctx.Context, studentID string) (*types.LearnerState, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if studentID == "" {
		return nil, nil
	}
	var st types.LearnerState
	if err := transaction.WithContext(dbc.Ctx).
		Where("student_id = ?", studentID).
		Order("updated_at DESC").
		Limit(1).
		Find(&st).Error; err != nil {
		return nil, err
	}
	if st.ID == uuid.Nil {
		return nil, nil
	}
	return &st, nil
}
