// Package pipeline turns position datagrams for one tracked entity into a
// bounded trace, a line-strip in the scene, a marker and, for the entity the
// camera follows, a chase viewpoint.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/OCAP2/routemonitor/internal/cache"
	"github.com/OCAP2/routemonitor/internal/dispatcher"
	"github.com/OCAP2/routemonitor/internal/metrics"
	"github.com/OCAP2/routemonitor/internal/scene"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/OCAP2/routemonitor/pkg/datagram"
)

// Projector converts geographic points into the working frame.
type Projector interface {
	Project(pt core.GeoPoint) core.Position3D
}

// Recorder receives every accepted sample and every trace reset.
// Implementations must not block the pipeline.
type Recorder interface {
	RecordSample(s core.TrackSample)
	RecordTraceReset(r core.TraceReset)
}

// Dependencies holds the collaborators of an Updater.
type Dependencies struct {
	Projector  Projector
	Attachment scene.Attachment
	Marker     scene.Marker
	Camera     scene.Camera // required when the pipeline follows the camera
	Motion     *MotionControl
	Recorder   Recorder
	Tracks     *cache.TrackCache
	Markers    *cache.MarkerCache
	Logger     *slog.Logger
	Now        func() time.Time
}

// Stats are cumulative counters of one pipeline.
type Stats struct {
	Accepted   uint64
	Malformed  uint64
	Suppressed uint64
	Resets     uint64
	Published  uint64
	TraceLen   int
	Last       *core.Position3D // newest trace point, nil while the trace is empty
}

// Updater is one track pipeline. OnDatagram must only be called from a single
// goroutine; register it with a buffered dispatcher handler to get that.
type Updater struct {
	cfg       Config
	deps      Dependencies
	trace     *Trace
	marker    core.MarkerState
	publisher *Publisher
	follower  *Follower
	role      string

	accepted   atomic.Uint64
	malformed  atomic.Uint64
	suppressed atomic.Uint64
	resets     atomic.Uint64
	published  atomic.Uint64
}

// New builds a pipeline. Missing optional dependencies get defaults.
func New(cfg Config, deps Dependencies) (*Updater, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Projector == nil {
		return nil, fmt.Errorf("%w: projector is required", ErrInvalidConfig)
	}
	if deps.Attachment == nil {
		return nil, fmt.Errorf("%w: attachment is required", ErrInvalidConfig)
	}
	if cfg.FollowsCamera && deps.Camera == nil {
		return nil, fmt.Errorf("%w: %s follows the camera but no camera was given", ErrInvalidConfig, cfg.Role)
	}
	if deps.Motion == nil {
		deps.Motion = NewMotionControl(true)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	deps.Logger = deps.Logger.With("role", cfg.Role.String())

	u := &Updater{
		cfg:       cfg,
		deps:      deps,
		trace:     NewTrace(cfg.Capacity, cfg.Overflow),
		publisher: NewPublisher(cfg.Role, deps.Attachment, deps.Marker, deps.Markers),
		role:      cfg.Role.String(),
	}
	if cfg.FollowsCamera {
		u.follower = NewFollower(deps.Camera, deps.Marker, cfg.Focus, cfg.FixedFocal)
	}
	return u, nil
}

// OnDatagram handles one received payload.
func (u *Updater) OnDatagram(payload []byte) error {
	sample, err := datagram.Decode(payload)
	if err != nil {
		u.malformed.Add(1)
		metrics.SamplesMalformed.WithLabelValues(u.role).Inc()
		u.deps.Logger.Debug("Dropping malformed datagram", "bytes", len(payload), "error", err)
		return fmt.Errorf("%s pipeline: %w", u.role, err)
	}

	now := u.deps.Now()
	point := u.deps.Projector.Project(sample.At(u.cfg.TraceAltitude))

	if discarded := u.trace.Append(point); discarded > 0 {
		u.resets.Add(1)
		metrics.TraceResets.WithLabelValues(u.role).Inc()
		u.deps.Logger.Info("Trace overflow", "discarded", discarded, "policy", string(u.cfg.Overflow))
		if u.deps.Recorder != nil {
			u.deps.Recorder.RecordTraceReset(core.TraceReset{
				Role:      u.cfg.Role,
				Time:      now,
				Discarded: discarded,
				Policy:    string(u.cfg.Overflow),
			})
		}
	}
	u.accepted.Add(1)
	traceLen := u.trace.Len()
	metrics.SamplesAccepted.WithLabelValues(u.role).Inc()
	metrics.TraceLength.WithLabelValues(u.role).Set(float64(traceLen))

	if u.deps.Tracks != nil {
		u.deps.Tracks.Set(u.cfg.Role, sample)
	}

	enabled := u.deps.Motion.Enabled()
	if u.deps.Recorder != nil {
		u.deps.Recorder.RecordSample(core.TrackSample{
			Role:       u.cfg.Role,
			Time:       now,
			Sample:     sample,
			Projected:  point,
			TraceLen:   traceLen,
			Suppressed: !enabled,
		})
	}

	if !enabled {
		u.suppressed.Add(1)
		metrics.RenderSuppressed.WithLabelValues(u.role).Inc()
		return nil
	}

	if u.follower != nil {
		u.follower.Follow(sample)
	}

	geographic := sample.At(u.cfg.MarkerAltitude)
	u.marker = core.MarkerState{
		Position:   u.deps.Projector.Project(geographic),
		Geographic: geographic,
		Heading:    sample.Heading,
		Set:        true,
	}
	u.publisher.Publish(u.trace.Snapshot(), u.marker)
	u.published.Add(1)
	return nil
}

// Handle adapts OnDatagram to a dispatcher handler. Malformed datagrams are
// already counted and logged by OnDatagram and are not reported again.
func (u *Updater) Handle(e dispatcher.Event) (any, error) {
	err := u.OnDatagram(e.Payload)
	if errors.Is(err, datagram.ErrMalformedSample) {
		return nil, nil
	}
	return nil, err
}

// Command is the dispatcher command this pipeline is registered under.
func (u *Updater) Command() string {
	return CommandFor(u.cfg.Role)
}

// CommandFor returns the dispatcher command for a role.
func CommandFor(role core.Role) string {
	return "datagram:" + role.String()
}

// Register installs the pipeline as a buffered single-consumer handler.
func (u *Updater) Register(d *dispatcher.Dispatcher, queueSize int, blocking bool) {
	opts := []dispatcher.Option{dispatcher.Buffered(queueSize)}
	if blocking {
		opts = append(opts, dispatcher.Blocking())
	}
	d.Register(u.Command(), u.Handle, opts...)
}

func (u *Updater) Config() Config {
	return u.cfg
}

// Trace returns the pipeline's trace. Callers other than the pipeline must
// only read it.
func (u *Updater) Trace() *Trace {
	return u.trace
}

// Stats returns the current counters.
func (u *Updater) Stats() Stats {
	st := Stats{
		Accepted:   u.accepted.Load(),
		Malformed:  u.malformed.Load(),
		Suppressed: u.suppressed.Load(),
		Resets:     u.resets.Load(),
		Published:  u.published.Load(),
		TraceLen:   u.trace.Len(),
	}
	if last, ok := u.trace.Last(); ok {
		st.Last = &last
	}
	return st
}
