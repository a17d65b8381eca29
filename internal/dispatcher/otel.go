package dispatcher

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// InstrumentationName scopes the dispatcher's meter.
const InstrumentationName = "github.com/OCAP2/routemonitor/internal/dispatcher"

// instruments are the per-command queue metrics.
type instruments struct {
	depth     metric.Int64ObservableGauge
	processed metric.Int64Counter
	dropped   metric.Int64Counter
	failed    metric.Int64Counter
}

func commandAttr(command string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("command", command))
}

// newInstruments creates the counters on m and reports every queue depth
// returned by depths at collection time.
func newInstruments(m metric.Meter, depths func() map[string]int) (*instruments, error) {
	if m == nil {
		m = otel.Meter(InstrumentationName)
	}

	var (
		ins instruments
		err error
	)
	if ins.depth, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Datagrams waiting in a pipeline queue"),
	); err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	if _, err = m.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		for cmd, n := range depths() {
			o.ObserveInt64(ins.depth, int64(n), commandAttr(cmd))
		}
		return nil
	}, ins.depth); err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&ins.processed, "dispatcher.events.processed", "Events handled by a pipeline consumer"},
		{&ins.dropped, "dispatcher.events.dropped", "Events dropped because the queue was full"},
		{&ins.failed, "dispatcher.events.failed", "Buffered events whose handler returned an error"},
	}
	for _, c := range counters {
		if *c.dst, err = m.Int64Counter(c.name, metric.WithDescription(c.desc)); err != nil {
			return nil, fmt.Errorf("creating %s counter: %w", c.name, err)
		}
	}
	return &ins, nil
}
