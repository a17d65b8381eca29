// Package influx writes track measurements to InfluxDB, falling back to a
// gzipped line-protocol file when the server is unreachable.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
)

const (
	MeasurementPosition   = "position"
	MeasurementTraceReset = "trace_reset"

	retentionSeconds = 60 * 60 * 24 * 90 // 90 days
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influxdb is disabled")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
	mu         sync.Mutex
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		Writers:    make(map[string]influxdb2_api.WriteAPI),
		IsValid:    false,
		Logger:     log,
		BackupPath: backupPath,
		cfg:        cfg,
	}
}

// Bucket returns the bucket track data is written to.
func (m *Manager) Bucket() string {
	return m.cfg.Bucket
}

// Connect establishes a connection to InfluxDB, or opens the backup file when
// the server does not answer.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if err := m.openBackup(); err != nil {
			return err
		}
		m.Logger.Warn().Err(err).Str("backupPath", m.BackupPath).
			Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if m.BackupWriter != nil {
		return nil
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.Client.OrganizationsAPI()

	// ensure org exists
	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.Logger.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err == nil {
		return nil
	}
	m.Logger.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

	rule := domain.RetentionRuleTypeExpire
	_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
		Type:         &rule,
		EverySeconds: retentionSeconds,
	})
	if err != nil {
		m.Logger.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
		return err
	}
	return nil
}

// CreateWriters creates the write API for the configured bucket.
func (m *Manager) CreateWriters() {
	bucket := m.cfg.Bucket
	m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

	errorsCh := m.Writers[bucket].Errors()
	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(errorsCh)

	m.Logger.Debug().Str("bucket", bucket).Msg("InfluxDB writer created")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	// PointToLineProtocol terminates the line itself
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// Flush pushes buffered points to the server.
func (m *Manager) Flush() {
	for _, w := range m.Writers {
		w.Flush()
	}
}

// Close flushes and closes the client and the backup file.
func (m *Manager) Close() error {
	m.Flush()
	if m.Client != nil {
		m.Client.Close()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// PositionPoint builds the measurement for one accepted sample.
func PositionPoint(session string, s core.TrackSample) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementPosition,
		map[string]string{
			"session": session,
			"role":    s.Role.String(),
		},
		map[string]interface{}{
			"longitude":  s.Sample.Longitude,
			"latitude":   s.Sample.Latitude,
			"heading":    s.Sample.Heading,
			"x":          s.Projected.X,
			"y":          s.Projected.Y,
			"z":          s.Projected.Z,
			"trace_len":  s.TraceLen,
			"suppressed": s.Suppressed,
		},
		s.Time,
	)
}

// TraceResetPoint builds the measurement for a trace overflow.
func TraceResetPoint(session string, r core.TraceReset) *influxdb2_write.Point {
	return influxdb2_write.NewPoint(
		MeasurementTraceReset,
		map[string]string{
			"session": session,
			"role":    r.Role.String(),
			"policy":  r.Policy,
		},
		map[string]interface{}{
			"discarded": r.Discarded,
		},
		r.Time,
	)
}
