package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/fxnlabs/autotune/fixtures"
	"github.com/fxnlabs/autotune/internal/app"
	"github.com/fxnlabs/autotune/internal/config"
	"github.com/fxnlabs/autotune/internal/logger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	var configPath string

	return &cli.App{
		Name:  "autotune",
		Usage: "Benchmark compute kernels and manage the autotune cache",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Value:       config.DefaultConfigPath,
				Usage:       "Path to the config file",
				EnvVars:     []string{"AUTOTUNE_CONFIG"},
				Destination: &configPath,
			},
		},
		Before: func(c *cli.Context) error {
			// init creates the file, so it never requires one
			explicit := c.IsSet("config") && c.Args().First() != "init"
			cfg, err := loadConfig(configPath, explicit)
			if err != nil {
				return err
			}
			zapLogger, err := logger.NewWithEncoding(cfg.Logger.Verbosity, cfg.Logger.Encoding)
			if err != nil {
				return err
			}
			c.App.Metadata["config"] = cfg
			c.App.Metadata["configPath"] = configPath
			c.App.Metadata["logger"] = zapLogger.Named("cli")
			return nil
		},
		After: func(c *cli.Context) error {
			if log, ok := c.App.Metadata["logger"].(*zap.Logger); ok {
				_ = log.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			initCommand(),
			tuneCommand(),
			cacheCommands(),
			serveCommand(),
		},
	}
}

// loadConfig falls back to defaults when the default config file is absent.
// An explicitly requested file must exist.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) && !explicit {
		return config.Default(), nil
	}
	return config.LoadConfig(path)
}

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Write a default config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
		},
		Action: func(c *cli.Context) error {
			path := c.App.Metadata["configPath"].(string)
			log := c.App.Metadata["logger"].(*zap.Logger)
			if _, err := os.Stat(path); err == nil && !c.Bool("force") {
				return fmt.Errorf("config file %s already exists", path)
			}
			if err := os.WriteFile(path, fixtures.ConfigTemplate, 0o644); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}
			log.Info("Wrote config", zap.String("path", path))
			return nil
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the autotune cache and metrics over HTTP",
		Action: func(c *cli.Context) error {
			cfg := c.App.Metadata["config"].(*config.Config)
			fxApp := app.New(cfg, app.Admin)
			if err := fxApp.Err(); err != nil {
				return err
			}
			fxApp.Run()
			return nil
		},
	}
}
