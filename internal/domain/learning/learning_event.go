package learning

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// BKTStatus is the mastery-processing state of a LearningEvent.
//
//	unclaimed -> claimed -> done
//	claimed   -> unclaimed   (failure or stale claim)
type BKTStatus string

const (
	BKTUnclaimed BKTStatus = "unclaimed"
	BKTClaimed   BKTStatus = "claimed"
	BKTDone      BKTStatus = "done"
)

func (s BKTStatus) Valid() bool {
	switch s {
	case BKTUnclaimed, BKTClaimed, BKTDone:
		return true
	default:
		return false
	}
}

// CanTransition reports whether moving from s to next is a legal step.
func (s BKTStatus) CanTransition(next BKTStatus) bool {
	switch s {
	case BKTUnclaimed:
		return next == BKTClaimed
	case BKTClaimed:
		return next == BKTDone || next == BKTUnclaimed
	default:
		return false
	}
}

type LearningEvent struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SubmissionID string    `gorm:"column:submission_id;not null;uniqueIndex:idx_learning_event_submission" json:"submission_id"`
	StudentID    string    `gorm:"column:student_id;not null;index:idx_learning_event_claim,priority:1" json:"student_id"`
	ProblemID    string    `gorm:"column:problem_id;not null" json:"problem_id"`
	Timestamp    time.Time `gorm:"column:timestamp;not null;index:idx_learning_event_claim,priority:3" json:"timestamp"`

	// Result and diagnosis payload. Never updated after insert.
	Correct          bool                        `gorm:"column:correct;not null" json:"correct"`
	Attempts         int                         `gorm:"column:attempts;not null" json:"attempts"`
	SolveTimeSeconds float64                     `gorm:"column:solve_time_seconds;not null;default:0" json:"solve_time_seconds"`
	Skills           datatypes.JSONSlice[string] `gorm:"column:skills" json:"skills"`
	ErrorType        string                      `gorm:"column:error_type" json:"error_type,omitempty"`
	Severity         *float64                    `gorm:"column:severity" json:"severity,omitempty"`

	BKTStatus        BKTStatus  `gorm:"column:bkt_status;not null;index:idx_learning_event_claim,priority:2" json:"bkt_status"`
	LearnerStateDone bool       `gorm:"column:learner_state_done;not null;default:false" json:"learner_state_done"`
	Completed        bool       `gorm:"column:completed;not null;default:false;index" json:"completed"`
	ClaimedAt        *time.Time `gorm:"column:claimed_at;index" json:"claimed_at,omitempty"`
	ClaimCount       int        `gorm:"column:claim_count;not null;default:0" json:"claim_count"`
	LastError        string     `gorm:"column:last_error" json:"last_error,omitempty"`
	NextProblemID    *string    `gorm:"column:next_problem_id" json:"next_problem_id,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (LearningEvent) TableName() string { return "learning_event" }
