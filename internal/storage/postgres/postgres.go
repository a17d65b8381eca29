// Package postgres implements the storage backend on PostgreSQL. It wraps the
// GORM backend and falls back to a local SQLite file when Postgres is unreachable.
package postgres

import (
	"errors"
	"fmt"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/database"
	gormstorage "github.com/OCAP2/routemonitor/internal/storage/gorm"
	"github.com/rs/zerolog"
)

// Backend wraps the GORM backend with a managed Postgres connection.
type Backend struct {
	*gormstorage.Backend
	mgr *database.Manager
}

// New connects to Postgres using cfg. When the server cannot be reached the
// track data goes to a SQLite database at fallbackPath instead.
// deps.DB is ignored.
func New(cfg config.DBConfig, fallbackPath string, deps gormstorage.Dependencies, log zerolog.Logger) (*Backend, error) {
	mgr := database.NewManager(log)
	if err := mgr.Connect(cfg, fallbackPath); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	deps.DB = mgr.DB
	return &Backend{
		Backend: gormstorage.New(deps),
		mgr:     mgr,
	}, nil
}

// Fallback reports whether the backend is writing to the local SQLite fallback.
func (b *Backend) Fallback() bool {
	return b.mgr.Local
}

// Close flushes pending rows and releases the connection pool.
func (b *Backend) Close() error {
	return errors.Join(b.Backend.Close(), b.mgr.Close())
}
