package services

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/apierr"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

// SkillCatalog is the immutable set of known skill ids, built once at startup.
type SkillCatalog struct {
	skills []*types.Skill
	ids    map[string]bool
}

func NewSkillCatalog(skills []*types.Skill) *SkillCatalog {
	c := &SkillCatalog{ids: map[string]bool{}}
	for _, s := range skills {
		if s == nil || s.ID == "" || c.ids[s.ID] {
			continue
		}
		c.ids[s.ID] = true
		c.skills = append(c.skills, &types.Skill{ID: s.ID, Name: s.Name})
	}
	sort.Slice(c.skills, func(i, j int) bool { return c.skills[i].ID < c.skills[j].ID })
	return c
}

func (c *SkillCatalog) Has(id string) bool { return c != nil && c.ids[id] }

func (c *SkillCatalog) IDs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s.ID)
	}
	return out
}

func (c *SkillCatalog) Skills() []*types.Skill {
	if c == nil {
		return nil
	}
	out := make([]*types.Skill, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, &types.Skill{ID: s.ID, Name: s.Name})
	}
	return out
}

// Unknown returns the ids not in the catalog, in input order.
func (c *SkillCatalog) Unknown(ids []string) []string {
	var out []string
	for _, id := range ids {
		if !c.Has(id) {
			out = append(out, id)
		}
	}
	return out
}

type skillsFile struct {
	Skills []*types.Skill `yaml:"skills"`
}

func LoadSkillsFile(path string) ([]*types.Skill, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read skills %s: %w", path, err)
	}
	var f skillsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse skills %s: %w", path, err)
	}
	for i, s := range f.Skills {
		if s == nil || strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("skills %s: entry %d has no id", path, i)
		}
	}
	return f.Skills, nil
}

type problemYAML struct {
	ID           string           `yaml:"id"`
	Title        string           `yaml:"title"`
	Description  string           `yaml:"description"`
	PrimarySkill string           `yaml:"primary_skill"`
	Skills       []string         `yaml:"skills"`
	Difficulty   float64          `yaml:"difficulty"`
	TestCases    []types.TestCase `yaml:"test_cases"`
}

type problemsFile struct {
	Problems []problemYAML `yaml:"problems"`
}

func LoadProblemsFile(path string) ([]*types.Problem, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problems %s: %w", path, err)
	}
	var f problemsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse problems %s: %w", path, err)
	}
	out := make([]*types.Problem, 0, len(f.Problems))
	for i, p := range f.Problems {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("problems %s: entry %d has no id", path, i)
		}
		skills := p.Skills
		if p.PrimarySkill != "" && !contains(skills, p.PrimarySkill) {
			skills = append([]string{p.PrimarySkill}, skills...)
		}
		out = append(out, &types.Problem{
			ID:           p.ID,
			Title:        p.Title,
			Description:  p.Description,
			PrimarySkill: p.PrimarySkill,
			Skills:       datatypes.NewJSONSlice(skills),
			Difficulty:   p.Difficulty,
			TestCases:    datatypes.NewJSONSlice(p.TestCases),
		})
	}
	return out, nil
}

type CatalogService interface {
	Catalog() *SkillCatalog
	SyncSkills(dbc dbctx.Context) error
	// SeedProblems validates and upserts problems. Every skill must be in
	// the catalog and difficulty must lie in [0, 1].
	SeedProblems(dbc dbctx.Context, problems []*types.Problem) error
	GetProblem(dbc dbctx.Context, id string) (*types.Problem, error)
	ListProblems(dbc dbctx.Context) ([]*types.Problem, error)
}

type catalogService struct {
	db       *gorm.DB
	log      *logger.Logger
	catalog  *SkillCatalog
	skills   repos.SkillRepo
	problems repos.ProblemRepo
}

func NewCatalogService(db *gorm.DB, baseLog *logger.Logger, catalog *SkillCatalog, skills repos.SkillRepo, problems repos.ProblemRepo) CatalogService {
	return &catalogService{
		db:       db,
		log:      baseLog.With("service", "CatalogService"),
		catalog:  catalog,
		skills:   skills,
		problems: problems,
	}
}

func (s *catalogService) Catalog() *SkillCatalog { return s.catalog }

func (s *catalogService) SyncSkills(dbc dbctx.Context) error {
	if err := s.skills.Upsert(dbc, s.catalog.Skills()); err != nil {
		return fmt.Errorf("sync skills: %w", err)
	}
	s.log.Debug("skill catalog synced", "skills", len(s.catalog.IDs()))
	return nil
}

func (s *catalogService) SeedProblems(dbc dbctx.Context, problems []*types.Problem) error {
	for _, p := range problems {
		if p.Difficulty < 0 || p.Difficulty > 1 {
			return apierr.Validation("invalid_difficulty", "problem %s: difficulty %v outside [0,1]", p.ID, p.Difficulty)
		}
		if p.PrimarySkill == "" {
			return apierr.Validation("missing_primary_skill", "problem %s: primary_skill required", p.ID)
		}
		if unknown := s.catalog.Unknown(append([]string{p.PrimarySkill}, p.Skills...)); len(unknown) > 0 {
			return apierr.Validation("unknown_skill", "problem %s: unknown skills %v", p.ID, unknown)
		}
	}
	if err := s.problems.Upsert(dbc, problems); err != nil {
		return fmt.Errorf("seed problems: %w", err)
	}
	s.log.Info("problems seeded", "count", len(problems))
	return nil
}

func (s *catalogService) GetProblem(dbc dbctx.Context, id string) (*types.Problem, error) {
	p, err := s.problems.GetByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apierr.NotFound("problem_not_found", "problem %s not found", id)
	}
	return p, nil
}

func (s *catalogService) ListProblems(dbc dbctx.Context) ([]*types.Problem, error) {
	return s.problems.List(dbc)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
