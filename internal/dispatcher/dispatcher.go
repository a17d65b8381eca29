package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrQueueFull      = errors.New("queue full")
	ErrClosed         = errors.New("dispatcher closed")
)

// Event is one unit of work routed by command, typically a received datagram.
type Event struct {
	Command   string
	Payload   []byte
	Source    string
	Timestamp time.Time
}

// HandlerFunc processes an event and returns a result.
type HandlerFunc func(Event) (any, error)

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	blocking   bool
}

// Buffered makes the handler async with a queue of the given size.
// Events for one command are handled by a single goroutine in dispatch order.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Blocking makes a buffered handler block when the queue is full instead of dropping.
func Blocking() Option {
	return func(c *config) {
		c.blocking = true
	}
}

// Dispatcher routes events to registered handlers.
type Dispatcher struct {
	logger  Logger
	metrics *instruments

	mu       sync.RWMutex
	handlers map[string]HandlerFunc
	buffers  map[string]chan Event

	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Dispatcher reporting to the global OTel meter, which is a
// no-op until a provider is installed.
func New(logger Logger) (*Dispatcher, error) {
	return NewWithMeter(logger, nil)
}

// NewWithMeter creates a Dispatcher reporting queue metrics to m.
func NewWithMeter(logger Logger, m metric.Meter) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan Event),
		logger:   logger,
	}

	ins, err := newInstruments(m, d.queueDepths)
	if err != nil {
		return nil, err
	}
	d.metrics = ins
	return d, nil
}

func (d *Dispatcher) queueDepths() map[string]int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]int, len(d.buffers))
	for cmd, buf := range d.buffers {
		out[cmd] = len(buf)
	}
	return out
}

// Register adds a handler for the given command with optional configuration.
func (d *Dispatcher) Register(command string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := h

	if cfg.bufferSize > 0 {
		handler = d.withBuffer(command, cfg.bufferSize, cfg.blocking, handler)
	}

	d.mu.Lock()
	d.handlers[command] = handler
	d.mu.Unlock()
	d.logger.Debug("handler registered", "command", command, "buffer", cfg.bufferSize, "blocking", cfg.blocking)
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(e Event) (any, error) {
	d.mu.RLock()
	h, ok := d.handlers[e.Command]
	d.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCommand, e.Command)
	}
	return h(e)
}

// QueueLen returns the number of events waiting for a buffered command.
func (d *Dispatcher) QueueLen(command string) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.buffers[command])
}

// Close stops accepting buffered events and waits until every queued event
// has been handled. It is safe to call more than once.
func (d *Dispatcher) Close() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	d.mu.RLock()
	for _, buf := range d.buffers {
		close(buf)
	}
	d.mu.RUnlock()
	d.closeMu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher drained")
}

func (d *Dispatcher) withBuffer(command string, size int, blocking bool, h HandlerFunc) HandlerFunc {
	buffer := make(chan Event, size)

	d.mu.Lock()
	d.buffers[command] = buffer
	d.mu.Unlock()

	cmdAttr := commandAttr(command)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for e := range buffer {
			if _, err := h(e); err != nil {
				d.metrics.failed.Add(context.Background(), 1, cmdAttr)
				d.logger.Error("buffered event failed", "command", command, "error", err)
			}
			d.metrics.processed.Add(context.Background(), 1, cmdAttr)
		}
	}()

	if blocking {
		return func(e Event) (any, error) {
			d.closeMu.RLock()
			defer d.closeMu.RUnlock()
			if d.closed {
				return nil, ErrClosed
			}
			buffer <- e
			return "queued", nil
		}
	}

	return func(e Event) (any, error) {
		d.closeMu.RLock()
		defer d.closeMu.RUnlock()
		if d.closed {
			return nil, ErrClosed
		}
		select {
		case buffer <- e:
			return "queued", nil
		default:
			d.metrics.dropped.Add(context.Background(), 1, cmdAttr)
			return nil, fmt.Errorf("%w: %s", ErrQueueFull, command)
		}
	}
}
