package learning

import (
	"time"

	"github.com/google/uuid"
)

const (
	EvidenceCorrect   = "correct"
	EvidenceIncorrect = "incorrect"
)

// SkillHistory is the append-only audit row written for every (event, skill)
// mastery update.
type SkillHistory struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID    string    `gorm:"column:student_id;not null;index:idx_skill_history_student_skill,priority:1" json:"student_id"`
	SkillID      string    `gorm:"column:skill_id;not null;index:idx_skill_history_student_skill,priority:2" json:"skill_id"`
	EventID      uuid.UUID `gorm:"type:uuid;column:event_id;not null;index" json:"event_id"`
	ProblemID    string    `gorm:"column:problem_id" json:"problem_id"`
	OldMastery   float64   `gorm:"column:old_mastery;not null" json:"old_mastery"`
	NewMastery   float64   `gorm:"column:new_mastery;not null" json:"new_mastery"`
	Posterior    float64   `gorm:"column:posterior;not null" json:"posterior"`
	Confidence   float64   `gorm:"column:confidence;not null" json:"confidence"`
	ParamT       float64   `gorm:"column:param_t;not null" json:"param_t"`
	ParamG       float64   `gorm:"column:param_g;not null" json:"param_g"`
	ParamS       float64   `gorm:"column:param_s;not null" json:"param_s"`
	EvidenceType string    `gorm:"column:evidence_type;not null" json:"evidence_type"`
	ErrorType    string    `gorm:"column:error_type" json:"error_type,omitempty"`
	Boost        float64   `gorm:"column:boost;not null;default:0" json:"boost"`
	Recalibrated bool      `gorm:"column:recalibrated;not null;default:false" json:"recalibrated"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;index:idx_skill_history_student_skill,priority:3" json:"timestamp"`
}

func (SkillHistory) TableName() string { return "skill_history" }
