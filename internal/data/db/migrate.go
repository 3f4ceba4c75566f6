package db

import (
	"fmt"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureIndexes creates the indexes that struct tags cannot express. Every
// statement is valid on both Postgres and SQLite.
func EnsureIndexes(db *gorm.DB) error {
	stmts := []struct {
		name string
		sql  string
	}{
		// Claim lookup: earliest unclaimed event per student.
		{"idx_learning_event_student_status_time", `
			CREATE INDEX IF NOT EXISTS idx_learning_event_student_status_time
			ON learning_event (student_id, bkt_status, timestamp, id);
		`},
		// Stale claim sweep.
		{"idx_learning_event_status_claimed_at", `
			CREATE INDEX IF NOT EXISTS idx_learning_event_status_claimed_at
			ON learning_event (bkt_status, claimed_at);
		`},
		// Tier (a)/(b) candidate filter.
		{"idx_problem_skill_skill_problem", `
			CREATE INDEX IF NOT EXISTS idx_problem_skill_skill_problem
			ON problem_skill (skill_id, problem_id);
		`},
		{"idx_problem_difficulty_id", `
			CREATE INDEX IF NOT EXISTS idx_problem_difficulty_id
			ON problem (difficulty, id);
		`},
	}
	for _, st := range stmts {
		if err := db.Exec(st.sql).Error; err != nil {
			return fmt.Errorf("create %s: %w", st.name, err)
		}
	}
	return nil
}
