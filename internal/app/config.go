package app

import (
	"time"

	"github.com/yungbote/codeflow-backend/internal/data/db"
	"github.com/yungbote/codeflow-backend/internal/jobs/worker"
	"github.com/yungbote/codeflow-backend/internal/judge"
	"github.com/yungbote/codeflow-backend/internal/platform/envutil"
	"github.com/yungbote/codeflow-backend/internal/sequencer"
)

type Config struct {
	HTTPAddr    string
	LogMode     string
	ServiceName string
	Environment string
	// Version is stamped by the binary, not read from the environment.
	Version     string

	DB          db.Config
	AutoMigrate bool

	BKTParamsFile string
	SkillsFile    string
	ProblemsFile  string

	Worker    worker.Config
	Sequencer sequencer.Config

	RedisAddr    string
	RedisChannel string

	JudgeURL     string
	JudgeTimeout time.Duration

	CORSOrigins []string
	Tracing     bool
}

// LoadConfig reads the process environment. Call envutil.LoadDotEnv first
// when a .env file should be honoured.
func LoadConfig() Config {
	wcfg := worker.DefaultConfig()
	wcfg.Concurrency = envutil.Int("WORKER_CONCURRENCY", wcfg.Concurrency)
	wcfg.PollInterval = envutil.Duration("WORKER_POLL_INTERVAL", wcfg.PollInterval)
	wcfg.StaleClaim = envutil.Duration("WORKER_STALE_CLAIM", wcfg.StaleClaim)
	wcfg.StudentBatch = envutil.Int("WORKER_STUDENT_BATCH", wcfg.StudentBatch)

	scfg := sequencer.DefaultConfig()
	scfg.Margin = envutil.Float("SEQUENCER_MARGIN", scfg.Margin)
	scfg.MomentumWindow = envutil.Int("SEQUENCER_MOMENTUM_WINDOW", scfg.MomentumWindow)

	return Config{
		HTTPAddr:    envutil.String("HTTP_ADDR", ":8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "codeflow-backend"),
		Environment: envutil.String("APP_ENV", "development"),
		DB: db.Config{
			Driver:       envutil.String("DB_DRIVER", db.DriverPostgres),
			DSN:          envutil.String("DATABASE_URL", ""),
			Host:         envutil.String("DB_HOST", "localhost"),
			Port:         envutil.String("DB_PORT", "5432"),
			User:         envutil.String("DB_USER", "postgres"),
			Password:     envutil.String("DB_PASSWORD", ""),
			Name:         envutil.String("DB_NAME", "codeflow"),
			SQLitePath:   envutil.String("DB_SQLITE_PATH", "codeflow.db"),
			MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 20),
		},
		AutoMigrate:   envutil.Bool("DB_AUTO_MIGRATE", true),
		BKTParamsFile: envutil.String("BKT_PARAMS_FILE", "configs/bkt_params.yaml"),
		SkillsFile:    envutil.String("SKILLS_FILE", "configs/skills.yaml"),
		ProblemsFile:  envutil.String("PROBLEMS_FILE", "configs/problems.yaml"),
		Worker:        wcfg,
		Sequencer:     scfg,
		RedisAddr:     envutil.String("REDIS_ADDR", ""),
		RedisChannel:  envutil.String("REDIS_CHANNEL", "codeflow:wakeups"),
		JudgeURL:      envutil.String("JUDGE_URL", ""),
		JudgeTimeout:  envutil.Duration("JUDGE_TIMEOUT_SECONDS", judge.DefaultTimeout),
		CORSOrigins:   envutil.List("CORS_ALLOWED_ORIGINS", nil),
		Tracing:       envutil.Bool("OTEL_ENABLED", false),
	}
}
