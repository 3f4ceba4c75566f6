package learning

import (
	"time"

	"github.com/google/uuid"
)

// SequenceLog records one sequencing decision. Rows feed the next decision's
// momentum, stagnation and redemption terms.
type SequenceLog struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID       string     `gorm:"column:student_id;not null;index:idx_sequence_log_student_time,priority:1" json:"student_id"`
	EventID         *uuid.UUID `gorm:"type:uuid;column:event_id;index" json:"event_id,omitempty"`
	PrevProblemID   string     `gorm:"column:prev_problem_id;not null" json:"prev_problem_id"`
	NextProblemID   string     `gorm:"column:next_problem_id;not null" json:"next_problem_id"`
	WasCorrect      bool       `gorm:"column:was_correct;not null" json:"was_correct"`
	Mastery         float64    `gorm:"column:mastery;not null" json:"mastery"`
	Momentum        float64    `gorm:"column:momentum;not null" json:"momentum"`
	TargetChallenge float64    `gorm:"column:target_challenge;not null" json:"target_challenge"`
	Tier            string     `gorm:"column:tier" json:"tier,omitempty"`
	Timestamp       time.Time  `gorm:"column:timestamp;not null;index:idx_sequence_log_student_time,priority:2" json:"timestamp"`
}

func (SequenceLog) TableName() string { return "sequence_log" }
