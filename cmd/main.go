package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/proofs/internal/services"
	"github.com/desertthunder/proofs/internal/shared"
	"github.com/urfave/cli/v3"
)

const defaultConfigPath = "config.toml"

func main() {
	logger := shared.NewLogger(nil)

	configPath := defaultConfigPath
	if v := os.Getenv("PROOFS_CONFIG"); v != "" {
		configPath = v
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	if err := config.ApplyEnv(".env"); err != nil {
		logger.Warn("ignoring environment overrides", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	httpClient := services.NewAuthClient(ctx, "")
	if token, err := services.ResolveToken(config.Credentials); err == nil {
		httpClient = services.NewAuthClient(ctx, token)
	} else if !errors.Is(err, shared.ErrNotAuthenticated) {
		logger.Warn("stored credentials unreadable", "error", err)
	}

	studio := services.NewStudioService(services.StudioOpts{
		BaseURL:    config.Backend.BaseURL(),
		HTTPClient: httpClient,
		ClientPage: config.Backend.ClientPage,
		Timeout:    config.Backend.RequestTimeout(),
	})
	apiService := services.NewAPIService(config.Backend.BaseURL(), httpClient)

	runner := NewRunner(RunnerOpts{
		Config:     config,
		ConfigPath: configPath,
		Studio:     studio,
		API:        apiService,
		HTTPClient: httpClient,
		Logger:     logger,
	})
	defer runner.Close()

	app := &cli.Command{
		Name:    "proofs",
		Usage:   "Upload and manage photo proofing sessions",
		Version: "0.3.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn or error",
				Value: "info",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			level, err := log.ParseLevel(cmd.String("log-level"))
			if err != nil {
				return ctx, err
			}
			shared.SetLogLevel(logger, level)
			return ctx, nil
		},
		Commands: runner.register(),
	}

	if err := app.Run(ctx, os.Args); err != nil {
		switch {
		case errors.Is(err, shared.ErrNotImplemented):
			logger.Warn("not implemented")
		case errors.Is(err, context.Canceled):
			logger.Warn("interrupted")
			runner.Close()
			os.Exit(130)
		default:
			logger.Error("application error", "error", err)
			runner.Close()
			os.Exit(1)
		}
	}
}
