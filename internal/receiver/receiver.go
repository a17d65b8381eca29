// Package receiver reads position datagrams from a loopback UDP socket.
package receiver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"
	"time"
)

const (
	DefaultHost       = "127.0.0.1"
	DefaultBufferSize = 65536

	// pause after a failed read, doubled while reads keep failing
	minReadBackoff = 10 * time.Millisecond
	maxReadBackoff = time.Second
)

// Config describes the socket a receiver binds.
type Config struct {
	Host       string
	Port       int
	BufferSize int
}

// DeliverFunc is called once per datagram, in arrival order. The payload is
// owned by the callee.
type DeliverFunc func(payload []byte, from *net.UDPAddr)

type udpConn interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	LocalAddr() net.Addr
	Close() error
}

// Receiver owns one bound UDP socket.
type Receiver struct {
	conn    udpConn
	deliver DeliverFunc
	logger  *slog.Logger
	bufSize int

	received   atomic.Uint64
	readErrors atomic.Uint64
	closed     atomic.Bool
}

// New binds the socket. It fails if the address is already in use.
func New(cfg Config, deliver DeliverFunc, logger *slog.Logger) (*Receiver, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("resolve %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}

	return &Receiver{
		conn:    conn,
		deliver: deliver,
		logger:  logger.With("addr", conn.LocalAddr().String()),
		bufSize: cfg.BufferSize,
	}, nil
}

// Addr returns the bound address.
func (r *Receiver) Addr() *net.UDPAddr {
	return r.conn.LocalAddr().(*net.UDPAddr)
}

// Received returns the number of datagrams delivered so far.
func (r *Receiver) Received() uint64 {
	return r.received.Load()
}

// ReadErrors returns the number of failed reads other than the final one on close.
func (r *Receiver) ReadErrors() uint64 {
	return r.readErrors.Load()
}

// Run reads until ctx is cancelled or the receiver is closed.
func (r *Receiver) Run(ctx context.Context) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			r.Close()
		case <-stop:
		}
	}()

	r.logger.Info("Receiver listening")
	buffer := make([]byte, r.bufSize)
	var backoff time.Duration
	for {
		n, from, err := r.conn.ReadFromUDP(buffer)
		if err != nil {
			if r.closed.Load() || errors.Is(err, net.ErrClosed) {
				r.logger.Info("Receiver stopped", "received", r.received.Load())
				return nil
			}
			backoff = min(max(backoff*2, minReadBackoff), maxReadBackoff)
			r.readErrors.Add(1)
			if backoff == minReadBackoff {
				r.logger.Warn("Read error", "error", err)
			} else {
				r.logger.Debug("Read error", "error", err, "backoff", backoff)
			}
			select {
			case <-ctx.Done():
				r.Close()
			case <-time.After(backoff):
			}
			continue
		}
		backoff = 0

		payload := make([]byte, n)
		copy(payload, buffer[:n])
		r.received.Add(1)
		r.deliver(payload, from)
	}
}

// Close releases the socket. It is safe to call more than once.
func (r *Receiver) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.conn.Close()
}
