// Package database opens the GORM connections behind the SQL storage
// backends and owns their schema.
package database

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/model"
)

const (
	memoryDSN         = "file::memory:?cache=shared"
	maxOpenConns      = 10
	postgresBatchSize = 10000
	sqliteBatchSize   = 2000
)

var ErrNoDumpPath = errors.New("sqlite dump path not set")

var sqlitePragmas = []string{
	"PRAGMA user_version = 1;",
	"PRAGMA journal_mode = MEMORY;",
	"PRAGMA synchronous = OFF;",
	"PRAGMA cache_size = -32000;",
	"PRAGMA temp_store = MEMORY;",
}

func gormConfig(batch int, prepare bool) *gorm.Config {
	return &gorm.Config{
		PrepareStmt:            prepare,
		SkipDefaultTransaction: true,
		CreateBatchSize:        batch,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}
}

// Manager holds the connection of the Postgres backend. When Postgres
// cannot be reached it switches to SQLite and sets Local.
type Manager struct {
	DB        *gorm.DB
	Local     bool
	LocalPath string // "" is the shared in-memory database

	log zerolog.Logger
}

func NewManager(log zerolog.Logger) *Manager {
	return &Manager{log: log}
}

// Connect opens and pings Postgres, falling back to SQLite at fallbackPath.
func (m *Manager) Connect(cfg config.DBConfig, fallbackPath string) error {
	m.log.Debug().
		Str("host", cfg.Host).
		Str("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("Connecting to Postgres DB")

	db, err := OpenPostgres(cfg)
	if err == nil {
		if err = ping(db); err != nil {
			closeDB(db)
		}
	}
	if err == nil {
		m.DB = db
		m.log.Info().Msg("Connected to database")
		return nil
	}

	m.log.Error().Err(err).Msg("Postgres unavailable, falling back to SQLite")
	if db, err = OpenSqlite(fallbackPath); err != nil {
		return fmt.Errorf("failed to open local SQLite DB: %w", err)
	}
	m.DB, m.Local, m.LocalPath = db, true, fallbackPath

	ev := m.log.Info()
	if fallbackPath == "" {
		ev.Msg("Using local SQLite DB in memory")
	} else {
		ev.Str("path", fallbackPath).Msg("Using local SQLite DB")
	}
	return nil
}

func ping(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	return sqlDB.Ping()
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Close releases the connection pool.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	sqlDB, err := m.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates every track table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func OpenPostgres(cfg config.DBConfig) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true,
	}), gormConfig(postgresBatchSize, false))
}

// OpenSqlite opens the database at path, or the shared in-memory database
// when path is empty, and applies the write-speed pragmas.
func OpenSqlite(path string) (*gorm.DB, error) {
	dsn := path
	if dsn == "" {
		dsn = memoryDSN
	}
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig(sqliteBatchSize, true))
	if err != nil {
		return nil, err
	}
	for _, pragma := range sqlitePragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting %q: %w", pragma, err)
		}
	}
	return db, nil
}

// DumpMemoryDBToDisk snapshots db into a fresh file with VACUUM INTO,
// replacing any file already at path.
func DumpMemoryDBToDisk(db *gorm.DB, path string) error {
	if path == "" {
		return ErrNoDumpPath
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("error removing existing DB file: %w", err)
	}
	target := strings.ReplaceAll("file:"+path, "'", "''")
	if err := db.Exec("VACUUM INTO '" + target + "';").Error; err != nil {
		return fmt.Errorf("error dumping memory DB to disk: %w", err)
	}
	return nil
}
