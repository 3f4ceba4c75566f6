package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/codeflow-backend/internal/http"
	httpH "github.com/yungbote/codeflow-backend/internal/http/handlers"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type Handlers struct {
	Health     *httpH.HealthHandler
	Learn      *httpH.LearnHandler
	Student    *httpH.StudentHandler
	Submission *httpH.SubmissionHandler
	Catalog    *httpH.CatalogHandler
}

func wireHandlers(log *logger.Logger, services Services, sqlDB *sql.DB) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:     httpH.NewHealthHandler(sqlDB),
		Learn:      httpH.NewLearnHandler(services.Ingestion, services.LearnerState),
		Student:    httpH.NewStudentHandler(services.Students, services.Sequencing),
		Submission: httpH.NewSubmissionHandler(services.Submission),
		Catalog:    httpH.NewCatalogHandler(services.Catalog),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	return http.NewRouter(http.RouterConfig{
		Log:               log,
		Metrics:           metrics,
		CORSOrigins:       cfg.CORSOrigins,
		Tracing:           cfg.Tracing,
		ServiceName:       cfg.ServiceName,
		LearnHandler:      handlers.Learn,
		StudentHandler:    handlers.Student,
		SubmissionHandler: handlers.Submission,
		CatalogHandler:    handlers.Catalog,
		HealthHandler:     handlers.Health,
	})
}
