// Package sqlitestorage implements the storage backend using an in-memory
// SQLite database with periodic disk dumps via VACUUM INTO.
// It wraps the GORM backend; the only SQLite-specific concerns are creating
// the in-memory DB and the periodic disk dump.
package sqlitestorage

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/database"
	gormstorage "github.com/OCAP2/routemonitor/internal/storage/gorm"

	"gorm.io/gorm"
)

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	db       *gorm.DB
	cfg      config.SQLiteConfig
	log      *slog.Logger
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new SQLite storage backend. dsn "" opens the shared in-memory
// database; tests pass a file path.
func New(cfg config.SQLiteConfig, dsn string, deps gormstorage.Dependencies) (*Backend, error) {
	db, err := database.OpenSqlite(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create SQLite DB: %w", err)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.DB = db

	return &Backend{
		Backend:  gormstorage.New(deps),
		db:       db,
		cfg:      cfg,
		log:      deps.Logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Init initializes the embedded GORM backend and starts the dump goroutine.
func (b *Backend) Init() error {
	if err := b.Backend.Init(); err != nil {
		return err
	}

	if b.cfg.DumpPath != "" && b.cfg.DumpInterval > 0 {
		b.wg.Add(1)
		go b.dumpLoop()
	}

	return nil
}

// EndSession flushes pending rows and writes a final dump.
func (b *Backend) EndSession() error {
	if err := b.Backend.EndSession(); err != nil {
		return err
	}
	return b.Dump()
}

// Dump writes a point-in-time snapshot to DumpPath. No-op without a path.
func (b *Backend) Dump() error {
	if b.cfg.DumpPath == "" {
		return nil
	}
	start := time.Now()
	if err := database.DumpMemoryDBToDisk(b.db, b.cfg.DumpPath); err != nil {
		return err
	}
	b.log.Debug("Dumped to disk", "path", b.cfg.DumpPath, "duration", time.Since(start))
	return nil
}

// Close stops the dump goroutine and closes the embedded GORM backend.
func (b *Backend) Close() error {
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	b.wg.Wait()
	return b.Backend.Close()
}

// dumpLoop periodically dumps the database to disk.
// VACUUM INTO creates a point-in-time snapshot, so no pause mechanism is needed.
func (b *Backend) dumpLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.cfg.DumpInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.log.Warn("Flush before dump failed", "error", err)
			}
			if err := b.Dump(); err != nil {
				b.log.Error("Error dumping to disk", "error", err)
			}
		}
	}
}
