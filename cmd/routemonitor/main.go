package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

// BuildDate can be set at build time via ldflags
var (
	version   = "dev"
	BuildDate = "unknown"
)

const (
	flagConfigDir = "config-dir"
	flagLogLevel  = "log-level"
	flagConsole   = "console"
	flagNoMotion  = "no-motion"
)

func main() {
	app := cli.NewApp()

	app.Version = fmt.Sprintf("%s (%s)", version, BuildDate)
	app.Name = "routemonitor"
	app.Usage = "Draws live plane and target tracks from UDP position datagrams"
	app.Description = `routemonitor listens for 25 byte position datagrams on two loopback ports, ` +
		`keeps a trace per entity, keeps the camera on the plane and records every sample ` +
		`to the configured storage backends.` +
		"\n\n" +
		`example: routemonitor --config-dir=/etc/routemonitor --console`

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    flagConfigDir,
			Usage:   "Directory containing routemonitor.cfg.json",
			Value:   ".",
			EnvVars: []string{"ROUTEMONITOR_CONFIG_DIR"},
		},
		&cli.StringFlag{
			Name:    flagLogLevel,
			Usage:   "Overrides logLevel from the config file (debug, info, warn, error)",
			EnvVars: []string{"ROUTEMONITOR_LOG_LEVEL"},
		},
		&cli.BoolFlag{
			Name:  flagConsole,
			Usage: "Log to stdout instead of the rotated log file",
		},
		&cli.BoolFlag{
			Name:  flagNoMotion,
			Usage: "Start with rendering updates paused",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "routemonitor: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(appOptions{
		ConfigDir: c.String(flagConfigDir),
		LogLevel:  c.String(flagLogLevel),
		Console:   c.Bool(flagConsole),
		NoMotion:  c.Bool(flagNoMotion),
	})
	if err != nil {
		return err
	}

	if err := a.start(ctx); err != nil {
		a.shutdown(context.Background())
		return err
	}
	go watchMotionToggle(ctx, a.motion, a.logger)

	<-ctx.Done()
	a.logger.Info("Shutting down", "reason", context.Cause(ctx))
	return a.shutdown(context.Background())
}
