// Package gormstorage implements the storage backend on top of GORM. Samples
// and resets are queued in memory and written in batches by a background
// writer goroutine. Both the postgres and sqlite backends wrap it.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/routemonitor/internal/database"
	"github.com/OCAP2/routemonitor/internal/model"
	"github.com/OCAP2/routemonitor/internal/model/convert"
	"github.com/OCAP2/routemonitor/internal/queue"
	"github.com/OCAP2/routemonitor/pkg/core"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	defaultBatchSize     = 500
	defaultFlushInterval = 2 * time.Second
	defaultMaxPending    = 200000
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB            *gorm.DB
	Logger        *slog.Logger
	BatchSize     int
	FlushInterval time.Duration
	MaxPending    int
	// Settings is stored as JSON on every new session row.
	Settings []byte
}

// Backend implements storage.Backend using GORM with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	points    *queue.Queue[model.TrackPoint]
	resets    *queue.Queue[model.TraceReset]
	sessionID atomic.Uint64

	flushMu  sync.Mutex
	stopChan chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.MaxPending <= 0 {
		deps.MaxPending = defaultMaxPending
	}
	return &Backend{
		deps:   deps,
		points: queue.NewBounded[model.TrackPoint](deps.MaxPending),
		resets: queue.NewBounded[model.TraceReset](deps.MaxPending),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database connection")
	}
	b.deps.Logger.Info("Migrating schema", "dialect", b.deps.DB.Name())
	if err := database.Migrate(b.deps.DB); err != nil {
		return err
	}

	b.stopChan = make(chan struct{})
	b.startDBWriter()
	return nil
}

// Close stops the DB writer goroutine after a final flush.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() {
		close(b.stopChan)
	})
	b.wg.Wait()
	return nil
}

// StartSession inserts the session row and stamps its ID on everything recorded after.
func (b *Backend) StartSession(s *core.Session) error {
	if err := b.Flush(); err != nil {
		b.deps.Logger.Warn("Flush before new session failed", "error", err)
	}

	row := convert.CoreToSession(*s, b.deps.Settings)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	b.deps.Logger.Info("Session started", "id", row.ID, "name", row.Name)
	return nil
}

// EndSession writes everything still queued.
func (b *Backend) EndSession() error {
	return b.Flush()
}

// SessionID returns the ID of the active session, 0 if none.
func (b *Backend) SessionID() uint {
	return uint(b.sessionID.Load())
}

// RecordSamples converts and queues samples.
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	rows := make([]model.TrackPoint, len(samples))
	for i, s := range samples {
		rows[i] = convert.CoreToTrackPoint(s, id)
	}
	if dropped := b.points.Push(rows...); dropped > 0 {
		b.deps.Logger.Warn("Pending track points over limit, dropped oldest", "dropped", dropped)
	}
	return nil
}

// RecordTraceReset converts and queues a trace reset.
func (b *Backend) RecordTraceReset(r *core.TraceReset) error {
	id := b.SessionID()
	if id == 0 {
		return ErrNoSession
	}
	b.resets.Push(convert.CoreToTraceReset(*r, id))
	return nil
}

// Pending returns how many rows wait for the writer.
func (b *Backend) Pending() int {
	return b.points.Len() + b.resets.Len()
}

// Flush drains both queues into the database.
func (b *Backend) Flush() error {
	b.flushMu.Lock()
	defer b.flushMu.Unlock()

	return errors.Join(
		writeQueue(b.deps.DB, b.points, "track points", b.deps.BatchSize, b.deps.Logger),
		writeQueue(b.deps.DB, b.resets, "trace resets", b.deps.BatchSize, b.deps.Logger),
	)
}

// writeQueue writes all items from a queue to the database, one transaction
// per batch. A failed batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], name string, batchSize int, log *slog.Logger) error {
	for !q.Empty() {
		items := q.Take(batchSize)
		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Omit(clause.Associations).Create(&items).Error
		})
		if err != nil {
			log.Error("DB write failed", "table", name, "count", len(items), "error", err)
			q.Requeue(items...)
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		log.Debug("DB write", "table", name, "count", len(items))
	}
	return nil
}

// startDBWriter starts the background goroutine that periodically drains queues into the DB.
func (b *Backend) startDBWriter() {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.deps.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-b.stopChan:
				if err := b.Flush(); err != nil {
					b.deps.Logger.Error("Final flush failed", "error", err, "pending", b.Pending())
				}
				return
			case <-ticker.C:
				_ = b.Flush()
			}
		}
	}()
}
