package testutil

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	appdb "github.com/yungbote/codeflow-backend/internal/data/db"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
	logErr  error

	dbSeq atomic.Int64
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg, logErr = logger.New("test")
	})
	if logErr != nil {
		tb.Fatalf("failed to init logger: %v", logErr)
	}
	return logg
}

// PostgresDSNEnv names the DSN PostgresDB connects to.
const PostgresDSNEnv = "TEST_POSTGRES_DSN"

// DB opens a private in-memory SQLite database with the full schema. Each call
// gets its own database, closed when the test ends.
//
// The pool holds a single connection, so goroutines in a test interleave
// only between statements. Concurrency tests that need statements racing
// inside the database also run against PostgresDB.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	name := strings.NewReplacer("/", "_", " ", "_", "#", "_", "?", "_", "&", "_", "=", "_").Replace(tb.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("sqlite handle: %v", err)
	}
	// The in-memory database lives as long as its connection.
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := appdb.AutoMigrateAll(db); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	if err := appdb.EnsureIndexes(db); err != nil {
		tb.Fatalf("ensure indexes: %v", err)
	}
	return db
}

// PostgresDB opens the database named by TEST_POSTGRES_DSN with the full
// schema migrated into a private schema, dropped when the test ends. The test
// is skipped when the variable is unset.
func PostgresDB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := strings.TrimSpace(os.Getenv(PostgresDSNEnv))
	if dsn == "" {
		tb.Skipf("%s not set", PostgresDSNEnv)
	}
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}

	admin, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		tb.Fatalf("open postgres: %v", err)
	}
	adminDB, err := admin.DB()
	if err != nil {
		tb.Fatalf("postgres handle: %v", err)
	}
	schema := fmt.Sprintf("test_%d_%d", os.Getpid(), dbSeq.Add(1))
	if err := admin.Exec("CREATE SCHEMA " + schema).Error; err != nil {
		_ = adminDB.Close()
		tb.Fatalf("create schema: %v", err)
	}
	tb.Cleanup(func() {
		_ = admin.Exec("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Error
		_ = adminDB.Close()
	})

	db, err := gorm.Open(postgres.Open(withSearchPath(dsn, schema)), cfg)
	if err != nil {
		tb.Fatalf("open postgres schema %s: %v", schema, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("postgres handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(16)
	// Registered after the schema drop, so it runs first.
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := appdb.AutoMigrateAll(db); err != nil {
		tb.Fatalf("automigrate: %v", err)
	}
	if err := appdb.EnsureIndexes(db); err != nil {
		tb.Fatalf("ensure indexes: %v", err)
	}
	return db
}

func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}
