package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos/catalog"
	"github.com/yungbote/codeflow-backend/internal/data/repos/events"
	"github.com/yungbote/codeflow-backend/internal/data/repos/learner"
	"github.com/yungbote/codeflow-backend/internal/data/repos/sequencing"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type StudentRepo = learner.StudentRepo
type SkillMasteryRepo = learner.SkillMasteryRepo
type SkillHistoryRepo = learner.SkillHistoryRepo
type LearnerStateRepo = learner.LearnerStateRepo
type PerformanceRecordRepo = learner.PerformanceRecordRepo

type LearningEventRepo = events.LearningEventRepo

type ProblemRepo = catalog.ProblemRepo
type SkillRepo = catalog.SkillRepo
type CandidateQuery = catalog.CandidateQuery

type SequenceLogRepo = sequencing.SequenceLogRepo

// Set is every repository the application uses, built over one *gorm.DB.
type Set struct {
	Student           StudentRepo
	SkillMastery      SkillMasteryRepo
	SkillHistory      SkillHistoryRepo
	LearnerState      LearnerStateRepo
	PerformanceRecord PerformanceRecordRepo
	LearningEvent     LearningEventRepo
	Problem           ProblemRepo
	Skill             SkillRepo
	SequenceLog       SequenceLogRepo
}

func NewSet(db *gorm.DB, log *logger.Logger) Set {
	return Set{
		Student:           learner.NewStudentRepo(db, log),
		SkillMastery:      learner.NewSkillMasteryRepo(db, log),
		SkillHistory:      learner.NewSkillHistoryRepo(db, log),
		LearnerState:      learner.NewLearnerStateRepo(db, log),
		PerformanceRecord: learner.NewPerformanceRecordRepo(db, log),
		LearningEvent:     events.NewLearningEventRepo(db, log),
		Problem:           catalog.NewProblemRepo(db, log),
		Skill:             catalog.NewSkillRepo(db, log),
		SequenceLog:       sequencing.NewSequenceLogRepo(db, log),
	}
}
