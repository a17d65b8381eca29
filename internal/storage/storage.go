// internal/storage/storage.go
package storage

import "github.com/OCAP2/routemonitor/pkg/core"

// Backend is the interface all storage implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordSamples(samples []core.TrackSample) error
	RecordTraceReset(r *core.TraceReset) error
}

// Uploadable is an optional interface for storage backends that produce
// files suitable for upload to a web server.
type Uploadable interface {
	GetExportedFilePath() string
	GetExportMetadata() core.UploadMetadata
}
