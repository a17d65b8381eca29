// Package influxstorage records track samples as InfluxDB measurements.
package influxstorage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/OCAP2/routemonitor/internal/influx"
	"github.com/OCAP2/routemonitor/pkg/core"
)

const connectTimeout = 10 * time.Second

// Backend writes samples and resets through an influx.Manager.
type Backend struct {
	mgr *influx.Manager

	mu      sync.RWMutex
	session string
}

// New creates a backend on top of mgr. Init connects it.
func New(mgr *influx.Manager) *Backend {
	return &Backend{mgr: mgr}
}

// Init connects to the server or opens the backup file.
func (b *Backend) Init() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return b.mgr.Connect(ctx)
}

func (b *Backend) Close() error {
	return b.mgr.Close()
}

// StartSession tags everything recorded after with the session name.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.session = s.Name
	return nil
}

func (b *Backend) EndSession() error {
	b.mgr.Flush()
	return nil
}

func (b *Backend) sessionName() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	session := b.sessionName()
	var errs []error
	for _, s := range samples {
		if err := b.mgr.WritePoint(b.mgr.Bucket(), influx.PositionPoint(session, s)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *Backend) RecordTraceReset(r *core.TraceReset) error {
	return b.mgr.WritePoint(b.mgr.Bucket(), influx.TraceResetPoint(b.sessionName(), *r))
}
