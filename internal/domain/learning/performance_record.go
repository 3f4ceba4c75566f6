package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type PerformanceRecord struct {
	ID               uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID        string                      `gorm:"column:student_id;not null;index:idx_performance_student_time,priority:1" json:"student_id"`
	EventID          uuid.UUID                   `gorm:"type:uuid;column:event_id;not null;uniqueIndex" json:"event_id"`
	ProblemID        string                      `gorm:"column:problem_id;not null" json:"problem_id"`
	Skills           datatypes.JSONSlice[string] `gorm:"column:skills" json:"skills"`
	Correct          bool                        `gorm:"column:correct;not null" json:"correct"`
	Attempts         int                         `gorm:"column:attempts;not null" json:"attempts"`
	SolveTimeSeconds float64                     `gorm:"column:solve_time_seconds;not null" json:"solve_time_seconds"`
	ErrorType        string                      `gorm:"column:error_type" json:"error_type,omitempty"`
	Timestamp        time.Time                   `gorm:"column:timestamp;not null;index:idx_performance_student_time,priority:2" json:"timestamp"`
}

func (PerformanceRecord) TableName() string { return "performance_record" }
