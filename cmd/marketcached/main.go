package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/northbeam/quotecache/internal/config"
	"github.com/northbeam/quotecache/internal/httpapi"
	"github.com/northbeam/quotecache/internal/market"
	"github.com/northbeam/quotecache/internal/obs"
)

const appName = "marketcached"

var (
	configPath string
	debugLog   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Market-data caching and streaming core",
		Version: "0.1.0",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults to built-in config)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "enable debug-level logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(warmCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	return config.Load(configPath)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP cache/stream server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := obs.NewLogger(debugLog)
			registry := prometheus.NewRegistry()
			metrics := obs.NewMetrics(registry)

			core := httpapi.NewCore(cfg, logger, metrics, registry)
			server := httpapi.NewServer(cfg, core, logger)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			core.StartBackground(ctx)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("server exited: %w", err)
				}
				return nil
			case <-ctx.Done():
				logger.Info().Msg("shutdown signal received")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			}
		},
	}
}

func warmCmd() *cobra.Command {
	var symbols []string
	var tf string
	var ext bool

	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Prewarm the cache for a fixed set of symbols, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(symbols) == 0 {
				return fmt.Errorf("at least one --symbol is required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			logger := obs.NewLogger(debugLog)
			registry := prometheus.NewRegistry()
			metrics := obs.NewMetrics(registry)
			core := httpapi.NewCore(cfg, logger, metrics, registry)

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Cache.BuildWaitBudget*time.Duration(len(symbols)))
			defer cancel()

			for _, s := range symbols {
				key := market.Key{Symbol: s, Timeframe: tf, Ext: ext}
				if err := core.Warm(ctx, key); err != nil {
					logger.Warn().Str("symbol", s).Err(err).Msg("warm failed")
					continue
				}
				logger.Info().Str("symbol", s).Msg("warmed")
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbol", nil, "symbol to warm (repeatable)")
	cmd.Flags().StringVar(&tf, "tf", "5m", "timeframe to warm")
	cmd.Flags().BoolVar(&ext, "ext", false, "include extended hours")
	return cmd
}
