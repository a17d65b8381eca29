// Package websocket streams track data to a live viewer over WebSocket.
package websocket

import (
	"fmt"
	"log/slog"

	"github.com/OCAP2/routemonitor/internal/config"
	"github.com/OCAP2/routemonitor/pkg/core"
	"github.com/OCAP2/routemonitor/pkg/streaming"
)

// Backend streams samples and resets as JSON envelopes.
// It implements storage.Backend but not storage.Uploadable.
type Backend struct {
	link *link
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{link: newLink(cfg.URL, cfg.Secret, logger.With("backend", "websocket"))}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.link.open()
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	b.link.close()
	return nil
}

// Dropped returns how many messages were discarded because the send buffer was full.
func (b *Backend) Dropped() uint64 {
	return b.link.dropped.Load()
}

func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := streaming.Marshal(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	b.link.send(data)
	return nil
}

// StartSession announces the session and waits for the server ack. The
// message is replayed after every reconnect.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := streaming.Marshal(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeStartSession, err)
	}

	b.link.setHello(data)
	return b.link.request(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for the server ack.
func (b *Backend) EndSession() error {
	data, err := streaming.Marshal(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	b.link.setHello(nil)
	return b.link.request(data, streaming.TypeEndSession, ackTimeout)
}

// RecordSamples sends one track_sample envelope per sample, fire-and-forget.
func (b *Backend) RecordSamples(samples []core.TrackSample) error {
	for i := range samples {
		if err := b.sendEnvelope(streaming.TypeTrackSample, &samples[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) RecordTraceReset(r *core.TraceReset) error {
	return b.sendEnvelope(streaming.TypeTraceReset, r)
}
