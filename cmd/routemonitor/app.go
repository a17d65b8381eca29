package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/OCAP2/routemonitor/internal/cache"
	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/internal/dispatcher"
	"github.com/OCAP2/routemonitor/internal/geo"
	"github.com/OCAP2/routemonitor/internal/logging"
	"github.com/OCAP2/routemonitor/internal/metrics"
	"github.com/OCAP2/routemonitor/internal/monitor"
	intOtel "github.com/OCAP2/routemonitor/internal/otel"
	"github.com/OCAP2/routemonitor/internal/pipeline"
	"github.com/OCAP2/routemonitor/internal/receiver"
	"github.com/OCAP2/routemonitor/internal/scene"
	"github.com/OCAP2/routemonitor/internal/settings"
	"github.com/OCAP2/routemonitor/internal/storage"
	"github.com/OCAP2/routemonitor/internal/worker"
	"github.com/OCAP2/routemonitor/pkg/core"
)

const appName = "routemonitor"

var roles = []core.Role{core.RolePlane, core.RoleTarget}

type appOptions struct {
	ConfigDir string
	LogLevel  string
	Console   bool
	NoMotion  bool
}

// app owns every long-lived component of a run.
type app struct {
	startTime time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	zlog        zerolog.Logger
	otel        *intOtel.Provider
	closers     []io.Closer

	motion    *pipeline.MotionControl
	projector *geo.Projector
	scene     *scene.Scene
	tracks    *cache.TrackCache
	markers   *cache.MarkerCache

	settingsPath string
	settings     settings.Settings

	backend    storage.Backend
	session    *core.Session
	writer     *worker.Manager
	dispatcher *dispatcher.Dispatcher
	pipelines  []*pipeline.Updater
	receivers  []*receiver.Receiver
	monitor    *monitor.Service

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// stops the storage worker once the dispatcher has drained
	stopWriter context.CancelFunc
	writerDone chan struct{}
}

func newApp(opts appOptions) (*app, error) {
	a := &app{
		startTime:   time.Now(),
		slogManager: logging.NewSlogManager(),
		tracks:      cache.NewTrackCache(),
		markers:     cache.NewMarkerCache(),
	}

	configErr := config.Load(opts.ConfigDir)
	if configErr != nil && !errors.Is(configErr, config.ErrNotFound) {
		return nil, configErr
	}
	if opts.LogLevel != "" {
		config.Set("logLevel", opts.LogLevel)
	}

	a.motion = pipeline.NewMotionControl(config.GetBool("motion.enabled") && !opts.NoMotion)

	if err := a.setupLogging(opts.Console); err != nil {
		return nil, err
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		a.logger.Info("Loaded config", "dir", opts.ConfigDir)
	}

	var err error
	a.projector, err = geo.NewProjector(config.GetInt("frame"))
	if err != nil {
		a.closeLogs()
		return nil, err
	}

	a.settingsPath = config.GetString("settingsFile")
	a.settings, err = settings.Load(a.settingsPath)
	if err != nil {
		a.logger.Warn("Failed to load settings, using defaults", "path", a.settingsPath, "error", err)
		a.settings = settings.Settings{Height: settings.DefaultHeight}
	}
	a.setupScene()

	return a, nil
}

func (a *app) setupLogging(console bool) error {
	level := config.GetString("logLevel")

	var file io.Writer
	if !console {
		logsDir := config.GetString("logsDir")
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs directory: %w", err)
		}
		lj := logging.NewFileWriter(logging.LogFilePath(logsDir, appName, a.startTime), logging.RotationConfig{
			MaxSizeMB:  config.GetInt("logs.maxSizeMB"),
			MaxBackups: config.GetInt("logs.maxBackups"),
			MaxAgeDays: config.GetInt("logs.maxAgeDays"),
		})
		a.closers = append(a.closers, lj)
		file = lj
	}

	var gelfErr error
	var gelfWriter io.Writer
	if config.GetBool("graylog.enabled") {
		w, err := logging.NewGelfWriter(config.GetString("graylog.address"))
		if err != nil {
			gelfErr = err
		} else {
			a.closers = append(a.closers, w)
			gelfWriter = w
		}
	}

	var otelErr error
	var provider *sdklog.LoggerProvider
	if otelCfg := config.GetOTelConfig(); otelCfg.Enabled {
		logWriter := file
		if logWriter == nil {
			logWriter = os.Stdout
		}
		p, err := intOtel.New(otelCfg, logWriter)
		if err != nil {
			otelErr = err
		} else {
			a.otel = p
			provider = p.LoggerProvider()
		}
	}

	a.slogManager.Configure(logging.Options{
		File:     file,
		Level:    level,
		Provider: provider,
		Gelf:     gelfWriter,
		Context:  logging.MotionContext(a.motion.Enabled),
	})
	a.logger = a.slogManager.Logger()
	slog.SetDefault(a.logger)

	zw := file
	if zw == nil {
		zw = os.Stdout
	}
	a.zlog = logging.NewZerolog(zw, level)

	if gelfErr != nil {
		a.logger.Error("Failed to set up Graylog output", "error", gelfErr)
	}
	if otelErr != nil {
		a.logger.Error("Failed to initialize OTel provider", "error", otelErr)
	}
	return nil
}

// setupScene restores the camera and markers saved by the previous run.
func (a *app) setupScene() {
	a.scene = scene.New(core.Viewpoint{
		Name:  "home",
		Focal: core.GeoPoint{Longitude: a.settings.Lon, Latitude: a.settings.Lat},
		Pitch: -90,
		Range: a.settings.Height,
	})

	markerAltitude := config.GetFloat64("marker.altitude")
	restore := map[core.Role]core.PositionSample{
		core.RolePlane:  a.settings.Plane(),
		core.RoleTarget: a.settings.Target(),
	}
	for role, s := range restore {
		m := a.scene.Marker(role.String())
		m.SetPosition(a.projector.Project(s.At(markerAltitude)))
		m.SetHeading(s.Heading)
	}
}

// start wires storage, pipelines and receivers and begins accepting datagrams.
func (a *app) start(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)

	if err := a.initStorage(); err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	a.writer = worker.NewManager(worker.Dependencies{
		Backend:       a.backend,
		Logger:        a.logger.With("component", "worker"),
		FlushInterval: storageCfg.FlushInterval,
		BatchSize:     storageCfg.BatchSize,
	})
	writerCtx, stopWriter := context.WithCancel(context.Background())
	a.stopWriter = stopWriter
	a.writerDone = make(chan struct{})
	go func() {
		defer close(a.writerDone)
		if err := a.writer.Run(writerCtx); err != nil {
			a.logger.Error("Storage worker stopped", "error", err)
		}
	}()

	var meter metric.Meter
	if a.otel != nil {
		meter = a.otel.Meter(dispatcher.InstrumentationName)
	}
	var err error
	a.dispatcher, err = dispatcher.NewWithMeter(logging.NewDispatcherLogger(a.logger), meter)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	rc := config.GetReceiverConfig()
	for _, role := range roles {
		if err := a.startPipeline(ctx, role, rc); err != nil {
			return err
		}
	}

	if config.GetBool("metrics.enabled") {
		addr := config.GetString("metrics.addr")
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := metrics.Serve(ctx, addr, a.logger); err != nil {
				a.logger.Error("Metrics endpoint failed", "addr", addr, "error", err)
			}
		}()
	}

	if config.GetBool("monitor.enabled") {
		a.monitor = monitor.NewService(monitor.Dependencies{
			StatusPath: config.GetString("monitor.statusFile"),
			Interval:   config.GetDuration("monitor.interval"),
			Logger:     a.logger.With("component", "monitor"),
			Pipelines:  a.monitoredPipelines(),
			Queues:     a.dispatcher,
			Markers:    a.markers,
			Writer:     a.writer,
			Motion:     a.motion,
		})
		if err := a.monitor.Start(); err != nil {
			a.logger.Error("Failed to start status monitor", "error", err)
		}
	}

	a.logger.Info("Started",
		"version", version,
		"frame", a.projector.Target(),
		"session", a.session.Name,
		"motion", a.motion.Enabled(),
	)
	return nil
}

func (a *app) startPipeline(ctx context.Context, role core.Role, rc config.ReceiverConfig) error {
	cfg := config.GetPipelineConfig(role)
	deps := pipeline.Dependencies{
		Projector:  a.projector,
		Attachment: a.scene.Layer(role.String()),
		Marker:     a.scene.Marker(role.String()),
		Motion:     a.motion,
		Recorder:   a.writer,
		Tracks:     a.tracks,
		Markers:    a.markers,
		Logger:     a.logger,
	}
	if cfg.FollowsCamera {
		deps.Camera = a.scene.Camera()
	}

	u, err := pipeline.New(cfg, deps)
	if err != nil {
		return fmt.Errorf("failed to create %s pipeline: %w", role, err)
	}
	u.Register(a.dispatcher, rc.QueueSize, rc.Blocking)
	a.pipelines = append(a.pipelines, u)

	label := role.String()
	command := u.Command()
	deliver := func(payload []byte, from *net.UDPAddr) {
		metrics.DatagramsReceived.WithLabelValues(label).Inc()
		_, err := a.dispatcher.Dispatch(dispatcher.Event{
			Command:   command,
			Payload:   payload,
			Source:    from.String(),
			Timestamp: time.Now(),
		})
		switch {
		case err == nil, errors.Is(err, dispatcher.ErrClosed):
		case errors.Is(err, dispatcher.ErrQueueFull):
			metrics.DatagramsDropped.WithLabelValues(label).Inc()
		default:
			a.logger.Warn("Failed to dispatch datagram", "role", label, "error", err)
		}
	}

	r, err := receiver.New(receiver.Config{
		Host:       rc.Host,
		Port:       cfg.Port,
		BufferSize: rc.BufferSize,
	}, deliver, a.logger.With("role", label))
	if err != nil {
		return fmt.Errorf("failed to start %s receiver: %w", role, err)
	}
	a.receivers = append(a.receivers, r)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := r.Run(ctx); err != nil {
			a.logger.Error("Receiver failed", "role", label, "error", err)
		}
	}()
	return nil
}

func (a *app) monitoredPipelines() []monitor.Pipeline {
	out := make([]monitor.Pipeline, len(a.pipelines))
	for i, p := range a.pipelines {
		out[i] = p
	}
	return out
}

// shutdown stops intake, drains queues into storage, ends the session and
// persists settings. It is safe to call after a failed start.
func (a *app) shutdown(ctx context.Context) error {
	var errs []error

	if a.cancel != nil {
		a.cancel()
	}
	for _, r := range a.receivers {
		_ = r.Close()
	}
	a.wg.Wait()

	if a.dispatcher != nil {
		a.dispatcher.Close()
	}
	if a.stopWriter != nil {
		a.stopWriter()
		<-a.writerDone
	}
	if a.monitor != nil {
		a.monitor.Stop()
	}

	if a.backend != nil {
		if err := a.endSession(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := a.saveSettings(); err != nil {
		a.logger.Error("Failed to save settings", "path", a.settingsPath, "error", err)
		errs = append(errs, err)
	}

	if a.otel != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := a.otel.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
		cancel()
	}
	a.logger.Info("Stopped")
	a.closeLogs()

	return errors.Join(errs...)
}

func (a *app) saveSettings() error {
	st := a.settings.Update(a.tracks.Snapshot())
	st.Height = a.scene.Camera().Viewpoint().Range
	if err := settings.Save(a.settingsPath, st); err != nil {
		return err
	}
	a.settings = st
	a.logger.Info("Saved settings", "path", a.settingsPath)
	return nil
}

func (a *app) closeLogs() {
	_ = a.slogManager.Flush(context.Background())
	for _, c := range a.closers {
		_ = c.Close()
	}
	a.closers = nil
}

// sessionSettings is stored alongside each database session row.
func sessionSettings(p pipeline.Config, motion bool) []byte {
	data, _ := json.Marshal(map[string]any{
		"capacity":       p.Capacity,
		"overflow":       p.Overflow,
		"focus":          p.Focus,
		"traceAltitude":  p.TraceAltitude,
		"markerAltitude": p.MarkerAltitude,
		"motion":         motion,
	})
	return data
}
