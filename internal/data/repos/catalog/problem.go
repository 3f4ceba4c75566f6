package catalog

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

// CandidateQuery narrows the problem bank. Empty SkillIDs means any skill; a
// nil bound means unbounded. ExcludeID is always honoured.
type CandidateQuery struct {
	SkillIDs      []string
	MinDifficulty *float64
	MaxDifficulty *float64
	ExcludeID     string
}

type ProblemRepo interface {
	Upsert(dbc dbctx.Context, problems []*types.Problem) error
	GetByID(dbc dbctx.Context, id string) (*types.Problem, error)
	GetByIDs(dbc dbctx.Context, ids []string) (map[string]*types.Problem, error)
	List(dbc dbctx.Context) ([]*types.Problem, error)
	// ListCandidates returns matches ordered by id ascending.
	ListCandidates(dbc dbctx.Context, q CandidateQuery) ([]*types.Problem, error)
}

type problemRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProblemRepo(db *gorm.DB, baseLog *logger.Logger) ProblemRepo {
	return &problemRepo{db: db, log: baseLog.With("repo", "ProblemRepo")}
}

// Upsert writes the problems and replaces their problem_skill rows.
func (r *problemRepo) Upsert(dbc dbctx.Context, problems []*types.Problem) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(problems) == 0 {
		return nil
	}
	now := time.Now().UTC()
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		ids := make([]string, 0, len(problems))
		joins := make([]*types.ProblemSkill, 0, len(problems)*2)
		for _, p := range problems {
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			p.UpdatedAt = now
			ids = append(ids, p.ID)
			seen := map[string]bool{}
			for _, s := range p.Skills {
				if s == "" || seen[s] {
					continue
				}
				seen[s] = true
				joins = append(joins, &types.ProblemSkill{ProblemID: p.ID, SkillID: s})
			}
		}
		if err := txx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"title", "description", "primary_skill", "skills", "difficulty", "test_cases", "updated_at"}),
		}).Create(&problems).Error; err != nil {
			return err
		}
		if err := txx.Where("problem_id IN ?", ids).Delete(&types.ProblemSkill{}).Error; err != nil {
			return err
		}
		if len(joins) == 0 {
			return nil
		}
		return txx.Create(&joins).Error
	})
}

func (r *problemRepo) GetByID(dbc dbctx.Context, id string) (*types.Problem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if id == "" {
		return nil, nil
	}
	var p types.Problem
	if err := transaction.WithContext(dbc.Ctx).
		Where("id = ?", id).
		Limit(1).
		Find(&p).Error; err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, nil
	}
	return &p, nil
}

func (r *problemRepo) GetByIDs(dbc dbctx.Context, ids []string) (map[string]*types.Problem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	out := map[string]*types.Problem{}
	if len(ids) == 0 {
		return out, nil
	}
	var rows []*types.Problem
	if err := transaction.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

func (r *problemRepo) List(dbc dbctx.Context) ([]*types.Problem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Problem
	if err := transaction.WithContext(dbc.Ctx).
		Order("id ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *problemRepo) ListCandidates(dbc dbctx.Context, q CandidateQuery) ([]*types.Problem, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Problem
	query := transaction.WithContext(dbc.Ctx).Model(&types.Problem{})
	if len(q.SkillIDs) > 0 {
		query = query.Where("id IN (?)",
			transaction.Model(&types.ProblemSkill{}).
				Select("problem_id").
				Where("skill_id IN ?", q.SkillIDs),
		)
	}
	if q.MinDifficulty != nil {
		query = query.Where("difficulty >= ?", *q.MinDifficulty)
	}
	if q.MaxDifficulty != nil {
		query = query.Where("difficulty <= ?", *q.MaxDifficulty)
	}
	if q.ExcludeID != "" {
		query = query.Where("id <> ?", q.ExcludeID)
	}
	if err := query.Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
