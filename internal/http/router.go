package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/codeflow-backend/internal/http/handlers"
	httpMW "github.com/yungbote/codeflow-backend/internal/http/middleware"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	CORSOrigins []string
	// Tracing wraps every request in an otelgin span.
	Tracing     bool
	ServiceName string

	LearnHandler      *httpH.LearnHandler
	StudentHandler    *httpH.StudentHandler
	SubmissionHandler *httpH.SubmissionHandler
	CatalogHandler    *httpH.CatalogHandler
	HealthHandler     *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.Tracing {
		name := cfg.ServiceName
		if name == "" {
			name = "codeflow"
		}
		r.Use(otelgin.Middleware(name))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins...))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	// Learning events
	if cfg.LearnHandler != nil {
		r.POST("/learn", cfg.LearnHandler.Learn)
		r.GET("/event/:eventId", cfg.LearnHandler.GetEvent)
		r.GET("/state/:studentId", cfg.LearnHandler.GetState)
	}

	// Students
	if cfg.StudentHandler != nil {
		r.POST("/students", cfg.StudentHandler.Onboard)
		r.GET("/students/:studentId/mastery", cfg.StudentHandler.Mastery)
		r.GET("/students/:studentId/weak-skills", cfg.StudentHandler.WeakSkills)
		r.GET("/students/:studentId/next-problem", cfg.StudentHandler.NextProblem)
	}

	// Submissions
	if cfg.SubmissionHandler != nil {
		r.POST("/submit", cfg.SubmissionHandler.Submit)
	}

	// Catalog
	if cfg.CatalogHandler != nil {
		r.GET("/skills", cfg.CatalogHandler.ListSkills)
		r.GET("/problems", cfg.CatalogHandler.ListProblems)
		r.GET("/problems/:problemId", cfg.CatalogHandler.GetProblem)
	}

	return r
}
