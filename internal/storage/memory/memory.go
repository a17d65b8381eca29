// internal/storage/memory/memory.go
package memory

import (
	"sync"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/pkg/core"
)

// Backend keeps the session's tracks in memory and exports them to JSON when
// the session ends.
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	samples map[core.Role][]core.TrackSample
	resets  []core.TraceReset

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg:     cfg,
		samples: make(map[core.Role][]core.TrackSample),
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.samples = make(map[core.Role][]core.TrackSample)
	b.resets = nil
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	return b.exportJSON()
}

// RecordSamples appends samples to their role's track
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range samples {
		b.samples[s.Role] = append(b.samples[s.Role], s)
	}
	return nil
}

// RecordTraceReset records a trace overflow
func (b *Backend) RecordTraceReset(r *core.TraceReset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.resets = append(b.resets, *r)
	return nil
}

// Samples returns a copy of the recorded samples of a role
func (b *Backend) Samples(role core.Role) []core.TrackSample {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.TrackSample, len(b.samples[role]))
	copy(out, b.samples[role])
	return out
}

// Resets returns a copy of the recorded trace resets
func (b *Backend) Resets() []core.TraceReset {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.TraceReset, len(b.resets))
	copy(out, b.resets)
	return out
}

// GetExportedFilePath returns the path of the last export
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// GetExportMetadata describes the last export for upload
func (b *Backend) GetExportMetadata() core.UploadMetadata {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.session == nil {
		return core.UploadMetadata{}
	}
	return core.UploadMetadata{
		Name:     b.session.Name,
		Duration: b.durationLocked().Seconds(),
		Tag:      b.session.Tag,
	}
}
