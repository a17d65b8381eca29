package main

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/OCAP2/routemonitor/internal/feed"
	"github.com/OCAP2/routemonitor/internal/geo"
	"github.com/OCAP2/routemonitor/internal/pipeline"
)

var version = "dev"

func main() {
	app := cli.NewApp()

	app.Version = version
	app.Name = "trackfeed"
	app.Usage = "Streams synthetic plane and target tracks to routemonitor"
	app.Description = `trackfeed sends one position datagram per entity and interval to the plane and target ports.` +
		"\n\n" +
		`example: trackfeed --plane-start=116.39,39.9 --plane-turn=1.5 --interval=100ms --count=600`

	app.Flags = []cli.Flag{
		&cli.StringFlag{Name: "host", Value: "127.0.0.1", Usage: "Destination host"},
		&cli.IntFlag{Name: "plane-port", Value: pipeline.PlanePort},
		&cli.IntFlag{Name: "target-port", Value: pipeline.TargetPort},
		&cli.DurationFlag{Name: "interval", Value: 100 * time.Millisecond, Usage: "Time between samples"},
		&cli.IntFlag{Name: "count", Usage: "Number of samples per entity, 0 streams until interrupted"},
		&cli.StringFlag{Name: "plane-start", Value: "116.39,39.9", Usage: "Plane start as lon,lat"},
		&cli.Float64Flag{Name: "plane-heading", Value: 90},
		&cli.Float64Flag{Name: "plane-speed", Value: 250, Usage: "Plane speed in m/s"},
		&cli.Float64Flag{Name: "plane-turn", Value: 0, Usage: "Plane turn rate in deg/s"},
		&cli.StringFlag{Name: "target-start", Value: "117.2,39.1", Usage: "Target start as lon,lat"},
		&cli.Float64Flag{Name: "target-heading", Value: 315},
		&cli.Float64Flag{Name: "target-speed", Value: 15, Usage: "Target speed in m/s"},
		&cli.BoolFlag{Name: "verbose", Usage: "Log progress at debug level"},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "trackfeed: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	level := slog.LevelInfo
	if c.Bool("verbose") {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	planeStart, err := geo.GeoPointFromString(c.String("plane-start"))
	if err != nil {
		return fmt.Errorf("plane-start: %w", err)
	}
	targetStart, err := geo.GeoPointFromString(c.String("target-start"))
	if err != nil {
		return fmt.Errorf("target-start: %w", err)
	}

	host := c.String("host")
	plane, err := feed.NewBroadcaster(net.JoinHostPort(host, strconv.Itoa(c.Int("plane-port"))))
	if err != nil {
		return err
	}
	defer plane.Close()
	target, err := feed.NewBroadcaster(net.JoinHostPort(host, strconv.Itoa(c.Int("target-port"))))
	if err != nil {
		return err
	}
	defer target.Close()

	f := feed.NewFeeder(c.Duration("interval"), logger,
		feed.Stream{
			Name:  "plane",
			Track: feed.NewTrack(planeStart, c.Float64("plane-heading"), c.Float64("plane-speed"), c.Float64("plane-turn")),
			Out:   plane,
		},
		feed.Stream{
			Name:  "target",
			Track: feed.NewTrack(targetStart, c.Float64("target-heading"), c.Float64("target-speed"), 0),
			Out:   target,
		},
	)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Streaming tracks", "plane", plane.Dest(), "target", target.Dest(), "interval", c.Duration("interval"))
	sent, err := f.Run(ctx, c.Int("count"))
	logger.Info("Stopped", "samples", sent)
	return err
}
