package main

import (
	"context"
	"errors"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/cobotkit/cobot/pkg/cobot"
	"github.com/cobotkit/cobot/pkg/sim"
)

type Options struct {
	Config  string `long:"config" short:"c" default:"cobot.yaml" description:"Path to the config file"`
	Verbose bool   `long:"verbose" short:"v" description:"Enable debug logging"`

	Scan      ScanCommand      `command:"scan" description:"List candidate serial ports"`
	Monitor   MonitorCommand   `command:"monitor" description:"Live joint telemetry view"`
	Move      MoveCommand      `command:"move" description:"Move one joint to a target angle"`
	Stop      StopCommand      `command:"stop" description:"Stop one joint or the whole arm"`
	Calibrate CalibrateCommand `command:"calibrate" description:"Run controller-side calibration"`
}

var opts Options
var parser = flags.NewParser(&opts, flags.Default)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	parser.LongDescription = "cobotctl - control session CLI for a six-axis COBOT arm"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}
}

// loadConfig reads the config file if present, falling back to defaults, and
// applies the log level.
func loadConfig() cobot.Config {
	cfg := cobot.DefaultConfig()
	if _, err := os.Stat(opts.Config); err == nil {
		loaded, err := cobot.LoadConfig(opts.Config)
		if err != nil {
			log.Fatal().Err(err).Str("path", opts.Config).Msg("bad config file")
		}
		cfg = loaded
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		log.Warn().Str("level", cfg.Log.Level).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	return cfg
}

// newClient builds a client over the simulator or, eventually, real
// hardware. The firmware framing is not part of this module; hardware use
// means embedding pkg/cobot with a cobot.Transport for your controller.
func newClient(cfg cobot.Config, simMode bool) (*cobot.Client, error) {
	if !simMode {
		return nil, errors.New("no firmware framing is built into cobotctl; run with --sim, or embed pkg/cobot with a cobot.Transport for your controller")
	}
	return cobot.New(cfg, sim.New().Dialer())
}

// bringUp connects and initializes, returning a Ready client.
func bringUp(ctx context.Context, cfg cobot.Config, simMode bool) (*cobot.Client, error) {
	client, err := newClient(cfg, simMode)
	if err != nil {
		return nil, err
	}
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	if err := client.Initialize(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
