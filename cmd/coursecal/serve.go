package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"coursecal/internal/config"
	"coursecal/internal/ics"
	appLog "coursecal/internal/log"
	"coursecal/internal/metrics"
	"coursecal/internal/refresh"
	"coursecal/internal/web"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		listen     string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cross-reference HTTP API",
		Long: `Start the HTTP API. The schedule feed named by ics_url is fetched once at
startup and then on the refresh cron schedule.

Endpoints:
  GET  /health
  GET  /api/events?days=N
  POST /api/crossref?days=N
  POST /api/crossref.ics?days=N
  GET  /metrics

If the config file does not exist a default one is written. COURSECAL_*
environment variables override file values.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config %s: %w", configPath, err)
			}
			if listen != "" {
				cfg.Listen = listen
			}
			if !cmd.Flags().Changed("log-level") {
				appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
			}

			appLog.Info("effective config",
				"listen", cfg.Listen,
				"ics_url", ics.RedactURL(cfg.ICSURL),
				"days_ahead", cfg.DaysAhead,
				"refresh", cfg.RefreshCron,
				"fallback", cfg.Match.Fallback,
				"keywords", len(cfg.Match.Keywords),
				"basic_auth", cfg.BasicAuth != nil,
			)

			// Root context with cancellation on SIGINT/SIGTERM.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "/etc/coursecal/config.yaml", "Path to config file")
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	fetcher := ics.NewFetcher(cfg.CacheDir, ics.WithUserAgent(cfg.UserAgent))
	m := metrics.New()
	r := refresh.New(cfg.ICSURL, fetcher, nil, m)

	if cfg.ICSURL == "" {
		appLog.Info("no ics_url configured; feed endpoints will return 503")
	} else if err := r.Start(ctx, cfg.RefreshCron); err != nil {
		return err
	}

	if err := web.StartServer(ctx, web.NewServer(cfg, r, m)); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	appLog.Info("coursecal exiting")
	return nil
}
