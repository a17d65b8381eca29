// Package worker moves accepted samples and trace resets from the pipelines
// into the storage backend in batches, off the pipelines' consumer goroutines.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/routemonitor/internal/metrics"
	"github.com/OCAP2/routemonitor/internal/queue"
	"github.com/OCAP2/routemonitor/internal/storage"
	"github.com/OCAP2/routemonitor/pkg/core"
)

const (
	defaultFlushInterval = time.Second
	defaultBatchSize     = 500
	defaultMaxPending    = 100000
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend       storage.Backend
	Logger        *slog.Logger
	FlushInterval time.Duration
	BatchSize     int
	// MaxPending bounds the sample queue; the oldest samples are dropped beyond it.
	MaxPending int
}

// Manager buffers records and flushes them to the backend. It satisfies
// pipeline.Recorder.
type Manager struct {
	deps    Dependencies
	samples *queue.Queue[core.TrackSample]
	resets  *queue.Queue[core.TraceReset]
	kick    chan struct{}

	flushMu   sync.Mutex
	lastFlush atomic.Int64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = defaultBatchSize
	}
	if deps.MaxPending <= 0 {
		deps.MaxPending = defaultMaxPending
	}
	return &Manager{
		deps:    deps,
		samples: queue.NewBounded[core.TrackSample](deps.MaxPending),
		resets:  queue.New[core.TraceReset](),
		kick:    make(chan struct{}, 1),
	}
}

// RecordSample queues a sample. It never blocks.
func (m *Manager) RecordSample(s core.TrackSample) {
	if dropped := m.samples.Push(s); dropped > 0 {
		metrics.StorageErrors.Add(float64(dropped))
	}
	if m.samples.Len() >= m.deps.BatchSize {
		m.wake()
	}
}

// RecordTraceReset queues a trace reset. It never blocks.
func (m *Manager) RecordTraceReset(r core.TraceReset) {
	m.resets.Push(r)
	m.wake()
}

func (m *Manager) wake() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Pending returns how many records wait for the next flush.
func (m *Manager) Pending() int {
	return m.samples.Len() + m.resets.Len()
}

// Dropped returns how many samples were discarded because the queue was full.
func (m *Manager) Dropped() uint64 {
	return m.samples.Dropped()
}

// GetLastFlushDuration returns the duration of the last flush cycle.
func (m *Manager) GetLastFlushDuration() time.Duration {
	return time.Duration(m.lastFlush.Load())
}

// Flush hands everything queued to the backend, samples in batches of BatchSize.
// A rejected batch goes back to the front of its queue for the next flush.
func (m *Manager) Flush() error {
	m.flushMu.Lock()
	defer m.flushMu.Unlock()

	start := time.Now()
	defer func() { m.lastFlush.Store(int64(time.Since(start))) }()

	var errs []error
	resets := m.resets.Drain()
	for i := range resets {
		if err := m.deps.Backend.RecordTraceReset(&resets[i]); err != nil {
			errs = append(errs, err)
			metrics.StorageErrors.Inc()
			m.resets.Requeue(resets[i:]...)
			break
		}
		metrics.StorageWrites.WithLabelValues("trace_reset").Inc()
	}

	for !m.samples.Empty() {
		batch := m.samples.Take(m.deps.BatchSize)
		if err := m.deps.Backend.RecordSamples(batch); err != nil {
			errs = append(errs, err)
			metrics.StorageErrors.Add(float64(len(batch)))
			m.samples.Requeue(batch...)
			break
		}
		metrics.StorageWrites.WithLabelValues("sample").Add(float64(len(batch)))
	}

	err := errors.Join(errs...)
	if err != nil {
		m.deps.Logger.Error("Storage flush failed", "error", err, "pending", m.Pending())
	}
	return err
}

// Run flushes every FlushInterval, or sooner when a batch fills, until ctx
// is done. A final flush runs before it returns.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = m.Flush()
			return nil
		case <-ticker.C:
			_ = m.Flush()
		case <-m.kick:
			_ = m.Flush()
		}
	}
}
