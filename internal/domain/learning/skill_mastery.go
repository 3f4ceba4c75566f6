package learning

import (
	"time"

	"github.com/google/uuid"
)

const (
	MasteryFloor   = 0.01
	MasteryCeiling = 0.99
	InitialMastery = 0.20
)

type SkillMastery struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    string    `gorm:"column:student_id;not null;index:idx_skill_mastery_student_skill,unique,priority:1" json:"student_id"`
	SkillID      string    `gorm:"column:skill_id;not null;index:idx_skill_mastery_student_skill,unique,priority:2" json:"skill_id"`
	Mastery      float64   `gorm:"column:mastery;not null" json:"mastery"`
	AttemptCount int       `gorm:"column:attempt_count;not null;default:0" json:"attempt_count"`
	LastUpdated  time.Time `gorm:"column:last_updated;not null" json:"last_updated"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
}

func (SkillMastery) TableName() string { return "skill_mastery" }
