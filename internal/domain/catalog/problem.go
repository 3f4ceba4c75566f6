package catalog

import (
	"time"

	"gorm.io/datatypes"
)

type TestCase struct {
	Name   string `json:"name,omitempty" yaml:"name,omitempty"`
	Input  string `json:"input" yaml:"input"`
	Output string `json:"output" yaml:"output"`
}

// Problem is read-only at runtime; rows are written by the seed command.
type Problem struct {
	ID           string                        `gorm:"column:id;primaryKey" json:"id"`
	Title        string                        `gorm:"column:title" json:"title"`
	Description  string                        `gorm:"column:description" json:"description,omitempty"`
	PrimarySkill string                        `gorm:"column:primary_skill;not null;index" json:"primary_skill"`
	Skills       datatypes.JSONSlice[string]   `gorm:"column:skills" json:"skills"`
	Difficulty   float64                       `gorm:"column:difficulty;not null;index" json:"difficulty"`
	TestCases    datatypes.JSONSlice[TestCase] `gorm:"column:test_cases" json:"test_cases,omitempty"`
	CreatedAt    time.Time                     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time                     `gorm:"not null" json:"updated_at"`
}

func (Problem) TableName() string { return "problem" }

// ProblemSkill is the (problem, skill) join used to filter candidates by skill
// without JSON operators.
type ProblemSkill struct {
	ProblemID string `gorm:"column:problem_id;primaryKey" json:"problem_id"`
	SkillID   string `gorm:"column:skill_id;primaryKey;index:idx_problem_skill_skill" json:"skill_id"`
}

func (ProblemSkill) TableName() string { return "problem_skill" }

// Skill is a catalog entry. The catalog is loaded from configuration and
// mirrored into this table so it can be inspected alongside the rest of the data.
type Skill struct {
	ID   string `gorm:"column:id;primaryKey" json:"id" yaml:"id"`
	Name string `gorm:"column:name" json:"name" yaml:"name"`
}

func (Skill) TableName() string { return "skill" }
