// Package cli provides the command-line interface for skillbridge.
package cli

import (
	"context"
	"log/slog"

	"github.com/urfave/cli/v3"

	"github.com/openskills/skillbridge/internal/config"
	"github.com/openskills/skillbridge/internal/logging"
	"github.com/openskills/skillbridge/internal/ui"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	app := &cli.Command{
		Name:    "skillbridge",
		Usage:   "Manage a skill corpus and drive phones over JSON-RPC",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Load configuration from this file instead of the default location",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configPath = cmd.String("config")
			configureColors(cmd)
			return ctx, configureLogging(cmd)
		},
		Commands: []*cli.Command{
			versionCommand(),
			configCommand(),
			registryCommand(),
			validateCommand(),
			devicesCommand(),
			bridgeCommand(),
			forwardCommand(),
			rpcCommand(),
		},
	}
	return app.Run(ctx, args)
}

func configureColors(cmd *cli.Command) {
	if cmd.Bool("no-color") {
		ui.DisableColors()
	}
}

func configureLogging(cmd *cli.Command) error {
	opts := logging.DefaultOptions()

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") {
		opts.Level = slog.LevelInfo
	}

	logger := logging.New(opts)
	logging.SetDefault(logger)

	logging.Debug("logging configured", slog.String("level", opts.Level.String()))

	return nil
}

// configPath holds the --config override for the current invocation.
var configPath string

// configFilePath reports where configuration is read from, honoring
// the --config override.
func configFilePath() string {
	if configPath != "" {
		return configPath
	}
	return config.FilePath()
}

// loadConfig loads the configuration and applies the output color
// preference.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromPath(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	force, disable := cfg.ColorEnabled()
	if force {
		ui.EnableColors()
	}
	if disable {
		ui.DisableColors()
	}
	return cfg, nil
}
