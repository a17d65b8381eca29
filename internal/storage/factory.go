// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/influx"
	gormstorage "github.com/OCAP2/routemonitor/internal/storage/gorm"
	influxstorage "github.com/OCAP2/routemonitor/internal/storage/influx"
	"github.com/OCAP2/routemonitor/internal/storage/memory"
	"github.com/OCAP2/routemonitor/internal/storage/natsbus"
	"github.com/OCAP2/routemonitor/internal/storage/postgres"
	sqlitestorage "github.com/OCAP2/routemonitor/internal/storage/sqlite"
	"github.com/OCAP2/routemonitor/internal/storage/websocket"
	"github.com/rs/zerolog"
)

// Storage type names accepted in storage.type.
const (
	TypeMemory    = "memory"
	TypeSQLite    = "sqlite"
	TypePostgres  = "postgres"
	TypeWebSocket = "websocket"
	TypeNATS      = "nats"
	TypeInflux    = "influx"
)

// Dependencies are shared by all backends the factory builds.
type Dependencies struct {
	Logger *slog.Logger
	// ZLogger is used by the database and influx managers.
	ZLogger zerolog.Logger
	// DataDir receives fallback databases and backup files.
	DataDir  string
	Settings []byte
	Influx   config.InfluxConfig
}

// NewBackend creates the backends named in cfg.Types. More than one type
// yields a Multi fanning out to all of them.
func NewBackend(cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if len(cfg.Types) == 0 {
		return nil, fmt.Errorf("no storage type configured")
	}

	backends := make([]Named, 0, len(cfg.Types))
	for _, t := range cfg.Types {
		b, err := newSingle(t, cfg, deps)
		if err != nil {
			return nil, err
		}
		backends = append(backends, Named{Name: t, Backend: b})
	}

	if len(backends) == 1 {
		return backends[0].Backend, nil
	}
	return NewMulti(deps.Logger, backends...), nil
}

func newSingle(t string, cfg config.StorageConfig, deps Dependencies) (Backend, error) {
	gormDeps := gormstorage.Dependencies{
		Logger:        deps.Logger.With("backend", t),
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Settings:      deps.Settings,
	}

	switch t {
	case TypeMemory:
		return memory.New(cfg.Memory), nil
	case TypeSQLite:
		b, err := sqlitestorage.New(cfg.SQLite, "", gormDeps)
		if err != nil {
			return nil, err
		}
		return b, nil
	case TypePostgres:
		b, err := postgres.New(cfg.Postgres, filepath.Join(deps.DataDir, "routemonitor_fallback.db"), gormDeps, deps.ZLogger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case TypeWebSocket:
		return websocket.New(cfg.WebSocket, deps.Logger), nil
	case TypeNATS:
		return natsbus.New(cfg.NATS, deps.Logger), nil
	case TypeInflux:
		influxCfg := cfg.Influx
		influxCfg.Enabled = true
		mgr := influx.NewManager(influxCfg, deps.ZLogger, filepath.Join(deps.DataDir, "influx_backup.log.gz"))
		return influxstorage.New(mgr), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", t)
	}
}

// FindUploadable returns the first backend producing an uploadable export.
func FindUploadable(b Backend) (Uploadable, bool) {
	if m, ok := b.(*Multi); ok {
		for _, n := range m.Backends() {
			if u, ok := n.Backend.(Uploadable); ok {
				return u, true
			}
		}
		return nil, false
	}
	u, ok := b.(Uploadable)
	return u, ok
}
