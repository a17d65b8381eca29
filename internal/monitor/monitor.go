package monitor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OCAP2/routemonitor/internal/pipeline"
	"github.com/OCAP2/routemonitor/pkg/core"
)

// Pipeline is the read side of a track pipeline.
type Pipeline interface {
	Config() pipeline.Config
	Command() string
	Stats() pipeline.Stats
}

// QueueReader reports the number of events waiting in a dispatcher queue.
type QueueReader interface {
	QueueLen(command string) int
}

// MarkerReader returns the last marker state published for a role.
type MarkerReader interface {
	Get(role core.Role) (core.MarkerState, bool)
}

// WriterStats is the storage worker as seen by the monitor.
type WriterStats interface {
	Pending() int
	Dropped() uint64
	GetLastFlushDuration() time.Duration
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	StatusPath string
	Interval   time.Duration
	Logger     *slog.Logger
	Pipelines  []Pipeline
	Queues     QueueReader
	Markers    MarkerReader
	Writer     WriterStats
	Motion     *pipeline.MotionControl
	Now        func() time.Time
}

// PipelineStatus is the snapshot of one pipeline.
type PipelineStatus struct {
	Role       string            `json:"role"`
	Port       int               `json:"port"`
	QueueLen   int               `json:"queueLen"`
	Accepted   uint64            `json:"accepted"`
	Malformed  uint64            `json:"malformed"`
	Suppressed uint64            `json:"suppressed"`
	Resets     uint64            `json:"resets"`
	Published  uint64            `json:"published"`
	TraceLen   int               `json:"traceLen"`
	Capacity   int               `json:"capacity"`
	LastPoint  *core.Position3D  `json:"lastPoint,omitempty"`
	Marker     *core.MarkerState `json:"marker,omitempty"`
}

// Status is what gets written to the status file.
type Status struct {
	Time                time.Time        `json:"time"`
	MotionEnabled       bool             `json:"motionEnabled"`
	Pipelines           []PipelineStatus `json:"pipelines"`
	PendingWrites       int              `json:"pendingWrites"`
	DroppedWrites       uint64           `json:"droppedWrites"`
	LastWriteDurationMs float32          `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetProgramStatus returns the current program status
func (s *Service) GetProgramStatus() Status {
	st := Status{
		Time:      s.deps.Now(),
		Pipelines: make([]PipelineStatus, 0, len(s.deps.Pipelines)),
	}
	if s.deps.Motion != nil {
		st.MotionEnabled = s.deps.Motion.Enabled()
	}

	for _, p := range s.deps.Pipelines {
		cfg := p.Config()
		stats := p.Stats()
		ps := PipelineStatus{
			Role:       cfg.Role.String(),
			Port:       cfg.Port,
			Accepted:   stats.Accepted,
			Malformed:  stats.Malformed,
			Suppressed: stats.Suppressed,
			Resets:     stats.Resets,
			Published:  stats.Published,
			TraceLen:   stats.TraceLen,
			Capacity:   cfg.Capacity,
			LastPoint:  stats.Last,
		}
		if s.deps.Queues != nil {
			ps.QueueLen = s.deps.Queues.QueueLen(p.Command())
		}
		if s.deps.Markers != nil {
			if m, ok := s.deps.Markers.Get(cfg.Role); ok {
				ps.Marker = &m
			}
		}
		st.Pipelines = append(st.Pipelines, ps)
	}

	if s.deps.Writer != nil {
		st.PendingWrites = s.deps.Writer.Pending()
		st.DroppedWrites = s.deps.Writer.Dropped()
		st.LastWriteDurationMs = float32(s.deps.Writer.GetLastFlushDuration().Microseconds()) / 1000
	}
	return st
}

// WriteStatus replaces the status file with the current status.
func (s *Service) WriteStatus() error {
	data, err := json.MarshalIndent(s.GetProgramStatus(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	dir := filepath.Dir(s.deps.StatusPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create status directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".status-*")
	if err != nil {
		return fmt.Errorf("failed to create status file: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write status file: %w", err)
	}
	// readers never see a half-written file
	if err := os.Rename(tmp.Name(), s.deps.StatusPath); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	if s.deps.StatusPath == "" {
		return fmt.Errorf("status path is not set")
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "path", s.deps.StatusPath, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
				return
			case <-ticker.C:
				if err := s.WriteStatus(); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for the final status write.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()

	<-done
}
