// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/autobrr/nzbridge/internal/api"
	"github.com/autobrr/nzbridge/internal/buildinfo"
	"github.com/autobrr/nzbridge/internal/config"
	"github.com/autobrr/nzbridge/internal/domain"
	"github.com/autobrr/nzbridge/internal/easynews"
	"github.com/autobrr/nzbridge/internal/metrics"
)

func main() {
	// A .env in the working directory is optional.
	_ = godotenv.Load(".env")

	config.InitDefaultLogger(buildinfo.Version)

	var rootCmd = &cobra.Command{
		Use:   "nzbridge",
		Short: "Newznab indexer bridge for Easynews",
		Long: `nzbridge - serves Easynews search results as a Newznab feed for
indexer managers and download clients, and turns feed ids into NZB files.`,
	}

	rootCmd.Version = buildinfo.Version

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand(buildinfo.String()))
	rootCmd.AddCommand(RunGenerateConfigCommand())
	rootCmd.AddCommand(RunSearchCommand())
	rootCmd.AddCommand(RunDecodeIDCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunServeCommand() *cobra.Command {
	var (
		configDir string
		logPath   string
	)

	var command = &cobra.Command{
		Use:   "serve",
		Short: "Start the server",
	}

	command.Flags().StringVar(&configDir, "config-dir", "", "config directory path (default is OS-specific: ~/.config/nzbridge/ or %APPDATA%\\nzbridge\\). Can also be a direct path to a .toml file")
	command.Flags().StringVar(&logPath, "log-path", "", "log file path (default is stdout)")

	command.Run = func(cmd *cobra.Command, args []string) {
		app := NewApplication(configDir, logPath)
		app.runServer()
	}

	return command
}

func RunVersionCommand(version string) *cobra.Command {
	var command = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of nzbridge",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	return command
}

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	command := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default configuration file",
		Long: `Generate a default configuration file without starting the server.

If no --config-dir is specified, uses the OS-specific default location:
- Linux/macOS: ~/.config/nzbridge/config.toml
- Windows: %APPDATA%\nzbridge\config.toml

You can specify either a directory path or a direct file path:
- Directory: nzbridge generate-config --config-dir /path/to/config/
- File: nzbridge generate-config --config-dir /path/to/myconfig.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var configPath string
			if configDir != "" {
				if strings.HasSuffix(strings.ToLower(configDir), ".toml") {
					configPath = configDir
				} else if info, err := os.Stat(configDir); err == nil && !info.IsDir() {
					configPath = configDir
				} else {
					configPath = filepath.Join(configDir, "config.toml")
				}
			} else {
				configPath = filepath.Join(config.GetDefaultConfigDir(), "config.toml")
			}

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Configuration file already exists at: %s\n", configPath)
				cmd.Println("Skipping generation to avoid overwriting existing configuration.")
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return fmt.Errorf("failed to create configuration file: %w", err)
			}

			cmd.Printf("Configuration file created successfully at: %s\n", configPath)
			return nil
		},
	}

	command.Flags().StringVar(&configDir, "config-dir", "",
		"config directory or file path (defaults to OS-specific location)")

	return command
}

type Application struct {
	configDir string
	logPath   string
}

func NewApplication(configDir, logPath string) *Application {
	return &Application{
		configDir: configDir,
		logPath:   logPath,
	}
}

// upstreamConfig maps the app config onto the Easynews connection settings.
// observer may be nil.
func upstreamConfig(cfg *domain.Config, timeout time.Duration, observer easynews.RequestObserver) easynews.Config {
	return easynews.Config{
		BaseURL:   cfg.EasynewsBaseURL,
		Username:  cfg.EasynewsUsername,
		Password:  cfg.EasynewsPassword,
		Timeout:   timeout,
		UserAgent: buildinfo.UserAgent,
		Observer:  observer,
	}
}

func (app *Application) runServer() {
	cfg, err := config.New(app.configDir, buildinfo.Version)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize configuration")
	}

	if app.logPath != "" {
		cfg.SetLogPath(app.logPath)
	}

	cfg.ApplyLogConfig()

	log.Info().Str("version", buildinfo.Version).Msg("Starting nzbridge")

	if cfg.Config.EasynewsUsername == "" || cfg.Config.EasynewsPassword == "" {
		log.Warn().Msg("Easynews credentials are not configured - only caps and the sample result will work")
	}

	var (
		appMetrics *metrics.Metrics
		observer   easynews.RequestObserver
	)
	if cfg.Config.MetricsEnabled {
		appMetrics = metrics.New()
		observer = appMetrics
	}

	session := easynews.NewSession(upstreamConfig(cfg.Config, cfg.UpstreamTimeout(), observer), cfg.SessionTTL(), nil)

	cfg.RegisterReloadListener(func(updated *domain.Config) {
		if session.Reconfigure(upstreamConfig(updated, time.Duration(updated.UpstreamTimeout)*time.Second, observer)) {
			log.Info().Msg("easynews connection settings changed, session reset")
		}
	})

	deps := &api.Dependencies{
		Config:   cfg,
		Version:  buildinfo.Version,
		Upstream: session,
		Ready: func() error {
			if current := cfg.Current(); current.EasynewsUsername == "" || current.EasynewsPassword == "" {
				return easynews.ErrMissingCredentials
			}
			return nil
		},
	}
	if appMetrics != nil {
		deps.Recorder = appMetrics
	}
	httpServer := api.NewServer(deps)

	errorChannel := make(chan error)
	serverReady := make(chan struct{}, 1)
	go func() {
		if err := httpServer.ListenAndServeReady(serverReady); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errorChannel <- err
		}
	}()

	select {
	case <-serverReady:
	case err := <-errorChannel:
		log.Fatal().Err(err).Msg("failed to start HTTP server")
	}

	var metricsServer *metrics.Server
	if appMetrics != nil {
		metricsServer = metrics.NewServer(
			appMetrics,
			cfg.Config.MetricsHost,
			cfg.Config.MetricsPort,
			cfg.Config.MetricsBasicAuthUsers,
		)

		// Start metrics server on separate port
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				errorChannel <- err
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown the server
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Msgf("got signal %v, shutting down server", sig.String())
	case err := <-errorChannel:
		log.Error().Err(err).Msg("got unexpected error from server")
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("got error during metrics server shutdown")
		}
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("got error during graceful http shutdown")

		os.Exit(1)
	}

	os.Exit(0)
}
