package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Stream pairs a track with the destination its samples go to.
type Stream struct {
	Name  string
	Track *Track
	Out   *Broadcaster
}

// Feeder advances every stream once per interval and sends the new sample.
type Feeder struct {
	streams  []Stream
	interval time.Duration
	logger   *slog.Logger
}

func NewFeeder(interval time.Duration, logger *slog.Logger, streams ...Stream) *Feeder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Feeder{
		streams:  streams,
		interval: interval,
		logger:   logger,
	}
}

// Tick advances all streams by one interval and sends their samples.
func (f *Feeder) Tick() error {
	dt := f.interval.Seconds()
	for _, s := range f.streams {
		sample := s.Track.Step(dt)
		if err := s.Out.Send(sample); err != nil {
			return fmt.Errorf("send %s to %s: %w", s.Name, s.Out.Dest(), err)
		}
	}
	return nil
}

// Run ticks until ctx is done or count ticks were sent. A count of zero or
// less runs until ctx is done. It returns the number of ticks sent.
func (f *Feeder) Run(ctx context.Context, count int) (int, error) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	sent := 0
	for count <= 0 || sent < count {
		select {
		case <-ctx.Done():
			return sent, nil
		case <-ticker.C:
			if err := f.Tick(); err != nil {
				return sent, err
			}
			sent++
			if sent%100 == 0 {
				f.logger.Debug("Feed progress", "ticks", sent)
			}
		}
	}
	return sent, nil
}
