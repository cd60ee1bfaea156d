// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/api"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/config"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/telemetry"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/templates"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP dispatch service",
		Long: `Serves GET /execute?q=... and the supporting endpoints.

With --watch the template file is reloaded when it changes; a file that
fails to compile is logged and the previous templates stay active.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadServiceConfig(v)
			if err != nil {
				return err
			}
			logger := newLogger(cmd.ErrOrStderr(), cfg.Debug, !cfg.Debug)
			slog.SetDefault(logger)
			return runServe(cmd.Context(), cfg, logger)
		},
	}

	f := cmd.Flags()
	f.IntP("port", "p", 8000, "HTTP listen port")
	f.Bool("watch", false, "reload --templates when the file changes")
	f.Duration("cache-ttl", 5*time.Minute, "memoize resolutions for this long (0 disables)")
	f.Int("rate-limit", 0, "requests per minute per client (0 disables)")
	f.String("trace-exporter", config.TraceExporterNone, "span exporter: none, stdout or otlp")
	f.String("otlp-endpoint", "", "OTLP collector address (host:port)")
	f.String("metric-exporter", config.MetricExporterPrometheus, "OpenTelemetry metric exporter: none, prometheus or stdout")
	f.Duration("shutdown-timeout", 10*time.Second, "graceful shutdown bound")

	_ = v.BindPFlag("port", f.Lookup("port"))
	_ = v.BindPFlag("watch_templates", f.Lookup("watch"))
	_ = v.BindPFlag("cache_ttl", f.Lookup("cache-ttl"))
	_ = v.BindPFlag("rate_limit_per_minute", f.Lookup("rate-limit"))
	_ = v.BindPFlag("trace_exporter", f.Lookup("trace-exporter"))
	_ = v.BindPFlag("otlp_endpoint", f.Lookup("otlp-endpoint"))
	_ = v.BindPFlag("metric_exporter", f.Lookup("metric-exporter"))
	_ = v.BindPFlag("shutdown_timeout", f.Lookup("shutdown-timeout"))

	return cmd
}

// runServe runs the HTTP server until ctx is cancelled or a signal arrives.
func runServe(ctx context.Context, cfg config.ServiceConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.Config{
		Exporter:     cfg.TraceExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", slog.String("error", err.Error()))
		}
	}()

	shutdownMetrics, err := telemetry.InitMetrics(ctx, telemetry.MetricsConfig{
		Exporter: cfg.MetricExporter,
		Writer:   os.Stderr,
	})
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(flushCtx); err != nil {
			logger.Warn("meter shutdown failed", slog.String("error", err.Error()))
		}
	}()

	d, err := loadDispatcher(ctx, cfg.TemplatesPath, logger)
	if err != nil {
		return err
	}
	source := templateSource(cfg.TemplatesPath)
	for _, f := range dispatch.Lint(ctx, d) {
		logger.Warn("template lint finding", slog.String("finding", f.String()))
	}

	provider := api.NewProvider(api.NewSnapshot(d, source, cfg.CacheTTL))
	router := api.NewRouter(api.RouterConfig{
		Debug:              cfg.Debug,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CORS:               api.DefaultCORSConfig(),
	}, api.NewHandlers(provider, logger))

	var watcher *templates.Watcher
	if cfg.WatchTemplates {
		watcher, err = templates.NewWatcher(cfg.TemplatesPath, func(c *templates.Compiled) {
			nd, err := dispatch.NewFromCompiled(c, dispatch.WithLogger(logger))
			if err != nil {
				logger.Warn("template reload rejected", slog.String("error", err.Error()))
				return
			}
			provider.Store(api.NewSnapshot(nd, source, cfg.CacheTTL))
			logger.Info("templates reloaded", slog.Int("template_count", nd.Registry().Len()))
		}, templates.WithWatcherLogger(logger))
		if err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("dispatch service listening",
			slog.String("addr", srv.Addr),
			slog.String("templates", source),
			slog.Int("template_count", d.Registry().Len()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = config.DefaultServiceConfig().ShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if watcher != nil {
		g.Go(func() error { return watcher.Run(gctx) })
	}

	return g.Wait()
}
