package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/OCAP2/routemonitor/pkg/core"
)

// Named pairs a backend with its storage type name.
type Named struct {
	Name    string
	Backend Backend
}

// Multi fans every call out to a set of backends. Backends that fail Init are
// dropped with a warning; Init fails only when none is left.
type Multi struct {
	log *slog.Logger

	mu       sync.RWMutex
	backends []Named
}

// NewMulti creates a fan-out over backends.
func NewMulti(log *slog.Logger, backends ...Named) *Multi {
	if log == nil {
		log = slog.Default()
	}
	return &Multi{log: log, backends: backends}
}

// Backends returns the active backends.
func (m *Multi) Backends() []Named {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Named, len(m.backends))
	copy(out, m.backends)
	return out
}

func (m *Multi) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	active := m.backends[:0:0]
	for _, n := range m.backends {
		if err := n.Backend.Init(); err != nil {
			m.log.Warn("Storage backend failed to initialize, disabling it", "backend", n.Name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
			continue
		}
		active = append(active, n)
	}
	m.backends = active
	if len(active) == 0 {
		return fmt.Errorf("no storage backend available: %w", errors.Join(errs...))
	}
	return nil
}

func (m *Multi) each(fn func(Backend) error) error {
	var errs []error
	for _, n := range m.Backends() {
		if err := fn(n.Backend); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name, err))
		}
	}
	return errors.Join(errs...)
}

func (m *Multi) Close() error {
	return m.each(func(b Backend) error { return b.Close() })
}

func (m *Multi) StartSession(s *core.Session) error {
	return m.each(func(b Backend) error { return b.StartSession(s) })
}

func (m *Multi) EndSession() error {
	return m.each(func(b Backend) error { return b.EndSession() })
}

func (m *Multi) RecordSamples(samples []core.TrackSample) error {
	return m.each(func(b Backend) error { return b.RecordSamples(samples) })
}

func (m *Multi) RecordTraceReset(r *core.TraceReset) error {
	return m.each(func(b Backend) error { return b.RecordTraceReset(r) })
}
