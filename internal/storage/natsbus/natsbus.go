// Package natsbus publishes track data to a NATS subject tree:
//
//	<prefix>.session          start_session / end_session envelopes
//	<prefix>.<role>.sample    one track_sample envelope per sample
//	<prefix>.<role>.reset     trace_reset envelopes
package natsbus

import (
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strings"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/OCAP2/routemonitor/pkg/streaming"
	"github.com/nats-io/nats.go"
)

const defaultPrefix = "routemonitor"

// Backend implements storage.Backend on a NATS connection.
type Backend struct {
	url    string
	prefix string
	conn   *nats.Conn
	log    *slog.Logger
}

// New creates the backend. The connection is made by Init.
func New(cfg config.NATSConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	prefix := strings.Trim(cfg.SubjectPrefix, ".")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &Backend{
		url:    normalizeURL(cfg.URL),
		prefix: prefix,
		log:    logger.With("backend", "nats"),
	}
}

// normalizeURL adds the default client port when the URL has none.
func normalizeURL(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return serverURL
	}
	if u.Port() == "" {
		u.Host = net.JoinHostPort(u.Hostname(), "4222")
	}
	return u.String()
}

// URL returns the server address used by Init.
func (b *Backend) URL() string {
	return b.url
}

// SessionSubject returns the subject session lifecycle messages go to.
func (b *Backend) SessionSubject() string {
	return b.prefix + ".session"
}

// SampleSubject returns the subject samples of role go to.
func (b *Backend) SampleSubject(role core.Role) string {
	return b.prefix + "." + role.String() + ".sample"
}

// ResetSubject returns the subject trace resets of role go to.
func (b *Backend) ResetSubject(role core.Role) string {
	return b.prefix + "." + role.String() + ".reset"
}

// Init connects to the server.
func (b *Backend) Init() error {
	b.log.Debug("connecting to server", "url", b.url)
	conn, err := nats.Connect(b.url, nats.Name("routemonitor"))
	if err != nil {
		return fmt.Errorf("unable to connect to NATS server: %w", err)
	}
	b.conn = conn
	return nil
}

// Close flushes pending messages and closes the connection.
func (b *Backend) Close() error {
	if b.conn == nil {
		return nil
	}
	if b.conn.IsConnected() {
		if err := b.conn.Drain(); err != nil {
			b.log.Error("failed to drain connection", "error", err)
		}
	}
	b.conn.Close()
	return nil
}

func (b *Backend) publish(subject, msgType string, payload any) error {
	if b.conn == nil || !b.conn.IsConnected() {
		return nil
	}
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	return b.conn.Publish(subject, data)
}

func (b *Backend) StartSession(s *core.Session) error {
	return b.publish(b.SessionSubject(), streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
}

// EndSession announces the end and flushes the connection.
func (b *Backend) EndSession() error {
	if err := b.publish(b.SessionSubject(), streaming.TypeEndSession, nil); err != nil {
		return err
	}
	if b.conn == nil || !b.conn.IsConnected() {
		return nil
	}
	return b.conn.Flush()
}

func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	for i := range samples {
		if err := b.publish(b.SampleSubject(samples[i].Role), streaming.TypeTrackSample, &samples[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) RecordTraceReset(r *core.TraceReset) error {
	return b.publish(b.ResetSubject(r.Role), streaming.TypeTraceReset, r)
}
