package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/loggw/loggw/internal/api"
	"github.com/loggw/loggw/internal/config"
	"github.com/loggw/loggw/internal/files"
	"github.com/loggw/loggw/internal/logging"
	"github.com/loggw/loggw/internal/supervisor"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "loggw",
	Short:   "loggw - authenticated log and config gateway for Home Assistant",
	Long:    `loggw exposes read-only log snapshots and an allowlisted set of add-on configuration files through a single bearer-token HTTP API, so operators never need direct Supervisor access.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("loggw %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
		if GitCommit != "unknown" {
			fmt.Printf("Commit: %s\n", GitCommit)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer() {
	// Baseline logger for early startup messages
	logging.Init(logging.Config{
		Format:    "auto",
		Level:     "info",
		Component: "loggw",
	})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Re-initialize logging with configuration-driven settings
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "loggw",
	})

	log.Info().Str("version", Version).Msg("Starting log gateway")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		startMetricsServer(ctx, cfg.MetricsAddr)
	}

	client := supervisor.NewHTTPClient(cfg.SupervisorURL, cfg.SupervisorToken, cfg.NoColors)
	resolver := files.NewResolver(cfg)
	router := api.NewRouter(cfg, client, resolver)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// The watcher only reports changes; config stays immutable until restart.
	watcher, err := config.NewWatcher(cfg.EnvFile)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create env file watcher")
	} else if watcher != nil {
		if err := watcher.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start env file watcher")
		} else {
			defer watcher.Stop()
		}
	}

	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start HTTP server")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	cancel()

	log.Info().Msg("Server stopped")
}
