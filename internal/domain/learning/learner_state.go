package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	StateStruggling = "struggling"
	StateLearning   = "learning"
	StateMastered   = "mastered"

	WeakSkillThreshold = 0.4
	MasteredThreshold  = 0.7
)

// LearnerState is appended after each processed event; the newest row by
// UpdatedAt is authoritative.
type LearnerState struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"-"`
	StudentID     string                      `gorm:"column:student_id;not null;index:idx_learner_state_student_updated,priority:1" json:"studentId"`
	EventID       *uuid.UUID                  `gorm:"type:uuid;column:event_id;index" json:"eventId,omitempty"`
	WeakSkills    datatypes.JSONSlice[string] `gorm:"column:weak_skills" json:"weakSkills"`
	LearningState string                      `gorm:"column:learning_state;not null" json:"learningState"`
	AvgMastery    float64                     `gorm:"column:avg_mastery;not null" json:"avgMastery"`
	SkillCount    int                         `gorm:"column:skill_count;not null" json:"skillCount"`
	UpdatedAt     time.Time                   `gorm:"column:updated_at;not null;index:idx_learner_state_student_updated,priority:2" json:"updatedAt"`
}

func (LearnerState) TableName() string { return "learner_state" }
