package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/codeflow-backend/internal/data/db"
	"github.com/yungbote/codeflow-backend/internal/data/graph"
	"github.com/yungbote/codeflow-backend/internal/data/repos"
	"github.com/yungbote/codeflow-backend/internal/http"
	"github.com/yungbote/codeflow-backend/internal/mastery"
	"github.com/yungbote/codeflow-backend/internal/observability"
	"github.com/yungbote/codeflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/services"
)

type App struct {
	Log      *logger.Logger
	Cfg      Config
	DB       *gorm.DB
	Repos    repos.Set
	Clients  Clients
	Services Services
	Metrics  *observability.Metrics
	Router   *gin.Engine

	dbService    *db.Service
	tables       mastery.Tables
	otelShutdown func(context.Context) error
}

func New(ctx context.Context, cfg Config) (*App, error) {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName:       cfg.ServiceName,
		Environment:       cfg.Environment,
		Version:           cfg.Version,
		Enabled:           cfg.Tracing,
		DBDriver:          cfg.DB.Driver,
		EventBus:          eventBusKind(cfg.RedisAddr),
		WorkerConcurrency: cfg.Worker.Concurrency,
		WorkerPoll:        cfg.Worker.PollInterval,
		StaleClaim:        cfg.Worker.StaleClaim,
		SequencerMargin:   cfg.Sequencer.Margin,
	})
	metrics := observability.Init(log)

	dbService, err := db.NewService(cfg.DB, log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init db: %w", err)
	}
	if cfg.AutoMigrate {
		if err := dbService.Migrate(); err != nil {
			_ = dbService.Close()
			log.Sync()
			return nil, err
		}
	}
	theDB := dbService.DB()

	tables, err := mastery.LoadTables(cfg.BKTParamsFile)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}
	engine, err := mastery.NewEngine(tables)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("init mastery engine: %w", err)
	}

	skills, err := services.LoadSkillsFile(cfg.SkillsFile)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}
	catalog := services.NewSkillCatalog(skills)

	clients, err := wireClients(log, cfg)
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, err
	}
	if clients.Graph != nil {
		prereqs, err := graph.LoadSkillPrerequisites(ctx, clients.Graph)
		if err != nil {
			log.Warn("skill graph unavailable; using file prerequisites", "error", err)
		} else {
			engine = engine.WithPrerequisites(prereqs)
		}
	}

	reposet := repos.NewSet(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet, clients, engine, catalog, metrics)

	sqlDB, err := theDB.DB()
	if err != nil {
		_ = dbService.Close()
		log.Sync()
		return nil, fmt.Errorf("db handle: %w", err)
	}
	handlerset := wireHandlers(log, serviceset, sqlDB)
	router := wireRouter(log, cfg, metrics, handlerset)

	return &App{
		Log:          log,
		Cfg:          cfg,
		DB:           theDB,
		Repos:        reposet,
		Clients:      clients,
		Services:     serviceset,
		Metrics:      metrics,
		Router:       router,
		dbService:    dbService,
		tables:       tables,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Migrate() error {
	return a.dbService.Migrate()
}

// Seed upserts the skill catalog and problem bank, then mirrors the
// prerequisite table into the skill graph when one is configured.
func (a *App) Seed(ctx context.Context) error {
	dbc := dbctx.New(ctx)
	if err := a.Services.Catalog.SyncSkills(dbc); err != nil {
		return fmt.Errorf("sync skills: %w", err)
	}
	if a.Cfg.ProblemsFile != "" {
		problems, err := services.LoadProblemsFile(a.Cfg.ProblemsFile)
		if err != nil {
			return err
		}
		if err := a.Services.Catalog.SeedProblems(dbc, problems); err != nil {
			return fmt.Errorf("seed problems: %w", err)
		}
		a.Log.Info("Seeded problem bank", "problems", len(problems))
	}
	if err := graph.UpsertSkillGraph(ctx, a.Clients.Graph, a.Log, a.Services.Catalog.Catalog().Skills(), a.tables.Prerequisites); err != nil {
		return fmt.Errorf("upsert skill graph: %w", err)
	}
	return nil
}

func (a *App) RunServer(ctx context.Context) error {
	a.Log.Info("Serving HTTP", "addr", a.Cfg.HTTPAddr)
	srv := &http.Server{Engine: a.Router}
	return srv.Run(ctx, a.Cfg.HTTPAddr)
}

func (a *App) RunWorker(ctx context.Context) error {
	return a.Services.Worker.Start(ctx)
}

// Run serves HTTP and drains events in one process until ctx is done.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.RunServer(gctx) })
	g.Go(func() error { return a.RunWorker(gctx) })
	return g.Wait()
}

func (a *App) Close() {
	if a == nil {
		return
	}
	ctx := context.Background()
	if a.Clients.Bus != nil {
		if err := a.Clients.Bus.Close(); err != nil {
			a.Log.Warn("bus close failed", "error", err)
		}
	}
	if err := a.Clients.Graph.Close(ctx); err != nil {
		a.Log.Warn("neo4j close failed", "error", err)
	}
	if a.dbService != nil {
		if err := a.dbService.Close(); err != nil {
			a.Log.Warn("db close failed", "error", err)
		}
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(ctx)
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
