package websocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/OCAP2/routemonitor/pkg/streaming"
)

const (
	outboxSize   = 10_000
	ackBuffer    = 16
	maxReconnect = 10
	maxBackoff   = 30 * time.Second
	writeWait    = 10 * time.Second
	ackTimeout   = 10 * time.Second
)

var errLinkClosed = errors.New("websocket link closed")

// link owns one viewer connection at a time. A single supervisor goroutine
// does every write and redials with backoff when the connection drops.
type link struct {
	url    string
	secret string
	logger *slog.Logger

	outbox chan []byte
	acks   chan streaming.AckMessage

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	mu    sync.Mutex
	hello []byte // sent first on every new connection

	dropped atomic.Uint64
}

func newLink(rawURL, secret string, logger *slog.Logger) *link {
	return &link{
		url:    rawURL,
		secret: secret,
		logger: logger,
		outbox: make(chan []byte, outboxSize),
		acks:   make(chan streaming.AckMessage, ackBuffer),
		done:   make(chan struct{}),
	}
}

// open dials once and hands the connection to the supervisor.
func (l *link) open() error {
	conn, err := l.dial()
	if err != nil {
		return err
	}
	l.wg.Add(1)
	go l.supervise(conn)
	return nil
}

func (l *link) dial() (*ws.Conn, error) {
	u, err := url.Parse(l.url)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket URL: %w", err)
	}
	q := u.Query()
	q.Set("secret", l.secret)
	u.RawQuery = q.Encode()

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func (l *link) closing() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}

func (l *link) supervise(conn *ws.Conn) {
	defer l.wg.Done()
	for conn != nil {
		err := l.serve(conn)
		_ = conn.Close()
		if l.closing() {
			return
		}
		l.logger.Warn("WebSocket connection lost", "error", err)
		conn = l.redial()
	}
}

// serve pumps the outbox into conn until a read or write fails or the link
// closes.
func (l *link) serve(conn *ws.Conn) error {
	readErr := make(chan error, 1)
	go func() { readErr <- l.readAcks(conn) }()

	for {
		select {
		case <-l.done:
			return write(conn, ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
		case err := <-readErr:
			return err
		case data := <-l.outbox:
			if err := write(conn, ws.TextMessage, data); err != nil {
				return err
			}
		}
	}
}

func write(conn *ws.Conn, messageType int, data []byte) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(messageType, data)
}

func (l *link) readAcks(conn *ws.Conn) error {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ack streaming.AckMessage
		if json.Unmarshal(msg, &ack) != nil || ack.Type != "ack" {
			l.logger.Debug("Ignoring non-ack message", "raw", string(msg))
			continue
		}
		select {
		case l.acks <- ack:
		default:
			l.logger.Debug("Ack buffer full, dropping", "for", ack.For)
		}
	}
}

// redial returns nil when the link closes or every attempt failed.
func (l *link) redial() *ws.Conn {
	backoff := time.Second
	for attempt := 1; attempt <= maxReconnect; attempt++ {
		l.logger.Info("Reconnecting to WebSocket", "attempt", attempt, "backoff", backoff)
		select {
		case <-l.done:
			return nil
		case <-time.After(backoff):
		}

		conn, err := l.dial()
		if err == nil {
			if err = l.replayHello(conn); err != nil {
				_ = conn.Close()
			}
		}
		if err == nil {
			l.logger.Info("WebSocket reconnected", "attempt", attempt)
			return conn
		}

		l.logger.Warn("Reconnect failed", "attempt", attempt, "error", err)
		backoff = min(backoff*2, maxBackoff)
	}
	l.logger.Error("Giving up on WebSocket reconnect", "maxAttempts", maxReconnect)
	return nil
}

// replayHello resends the session announcement; the viewer forgets the
// session together with the old connection.
func (l *link) replayHello(conn *ws.Conn) error {
	l.mu.Lock()
	hello := l.hello
	l.mu.Unlock()
	if hello == nil {
		return nil
	}
	return write(conn, ws.TextMessage, hello)
}

func (l *link) setHello(data []byte) {
	l.mu.Lock()
	l.hello = data
	l.mu.Unlock()
}

// send queues data without blocking and drops it when the outbox is full.
func (l *link) send(data []byte) {
	select {
	case l.outbox <- data:
	default:
		if n := l.dropped.Add(1); n%1000 == 1 {
			l.logger.Warn("WebSocket outbox full, dropping message", "dropped", n)
		}
	}
}

// request sends data and waits for the ack naming ackFor.
func (l *link) request(data []byte, ackFor string, timeout time.Duration) error {
	l.send(data)

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ack := <-l.acks:
			if ack.For == ackFor {
				return nil
			}
		case <-timer.C:
			return fmt.Errorf("timeout waiting for ack of %q", ackFor)
		case <-l.done:
			return fmt.Errorf("%w while waiting for ack of %q", errLinkClosed, ackFor)
		}
	}
}

// close stops the supervisor after it sends a close frame.
func (l *link) close() {
	l.closeOnce.Do(func() { close(l.done) })
	l.wg.Wait()
}
