package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/repos"
	"github.com/yungbote/codeflow-backend/internal/diagnosis"
	"github.com/yungbote/codeflow-backend/internal/jobs/worker"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/services"
)

type Services struct {
	Catalog      services.CatalogService
	Students     services.StudentService
	Ingestion    services.IngestionService
	Mastery      services.MasteryService
	LearnerState services.LearnerStateService
	Sequencing   services.SequencingService
	Submission   services.SubmissionService
	Worker       *worker.Worker
}

func wireServices(
	db *gorm.DB,
	log *logger.Logger,
	cfg Config,
	reposet repos.Set,
	clients Clients,
	engine *mastery.Engine,
	catalog *services.SkillCatalog,
	metrics *observability.Metrics,
) Services {
	log.Info("Wiring services...")

	catalogSvc := services.NewCatalogService(db, log, catalog, reposet.Skill, reposet.Problem)
	students := services.NewStudentService(db, log, catalog, reposet.Student, reposet.SkillMastery)
	ingestion := services.NewIngestionService(db, log, catalog, reposet.Student, reposet.LearningEvent, clients.Bus, metrics)
	masterySvc := services.NewMasteryService(db, log, engine, reposet.SkillMastery, reposet.SkillHistory, reposet.PerformanceRecord, reposet.LearningEvent)
	learner := services.NewLearnerStateService(db, log, reposet.SkillMastery, reposet.LearnerState)
	sequencing := services.NewSequencingService(db, log, cfg.Sequencer, reposet.SkillMastery, reposet.Problem, reposet.SequenceLog, reposet.LearningEvent, metrics)
	submission := services.NewSubmissionService(log, catalogSvc, ingestion, reposet.Student, reposet.LearningEvent, clients.Judge, diagnosis.NewPatternDiagnoser(), cfg.JudgeTimeout)

	w := worker.NewWorker(log, cfg.Worker, reposet.LearningEvent, masterySvc, learner, sequencing, clients.Bus, metrics)

	return Services{
		Catalog:      catalogSvc,
		Students:     students,
		Ingestion:    ingestion,
		Mastery:      masterySvc,
		LearnerState: learner,
		Sequencing:   sequencing,
		Submission:   submission,
		Worker:       w,
	}
}
