package domain

import (
	"github.com/yungbote/codeflow-backend/internal/domain/catalog"
	"github.com/yungbote/codeflow-backend/internal/domain/learning"
)

type BKTStatus = learning.BKTStatus

const (
	BKTUnclaimed = learning.BKTUnclaimed
	BKTClaimed   = learning.BKTClaimed
	BKTDone      = learning.BKTDone
)

const (
	MasteryFloor   = learning.MasteryFloor
	MasteryCeiling = learning.MasteryCeiling
	InitialMastery = learning.InitialMastery

	StateStruggling = learning.StateStruggling
	StateLearning   = learning.StateLearning
	StateMastered   = learning.StateMastered

	WeakSkillThreshold = learning.WeakSkillThreshold
	MasteredThreshold  = learning.MasteredThreshold

	EvidenceCorrect   = learning.EvidenceCorrect
	EvidenceIncorrect = learning.EvidenceIncorrect
)

type Student = learning.Student
type SkillMastery = learning.SkillMastery
type SkillHistory = learning.SkillHistory
type LearningEvent = learning.LearningEvent
type LearnerState = learning.LearnerState
type PerformanceRecord = learning.PerformanceRecord
type SequenceLog = learning.SequenceLog

type Problem = catalog.Problem
type ProblemSkill = catalog.ProblemSkill
type TestCase = catalog.TestCase
type Skill = catalog.Skill

// Models lists every persisted type in migration order.
func Models() []any {
	return []any{
		&Student{},
		&Skill{},
		&SkillMastery{},
		&SkillHistory{},
		&LearningEvent{},
		&LearnerState{},
		&PerformanceRecord{},
		&Problem{},
		&ProblemSkill{},
		&SequenceLog{},
	}
}
