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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AleutianAI/AleutianDispatch/services/dispatch"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/config"
	"github.com/AleutianAI/AleutianDispatch/services/dispatch/templates"
)

var version = "dev"

// envPrefix prefixes every environment variable read by the CLI.
const envPrefix = "DISPATCH"

// exitError carries a process exit code for results that are not faults,
// e.g. a query that matched nothing. Its output has already been printed.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// newRootCmd builds the command tree around v. Each call is independent so
// tests can run commands in isolation.
func newRootCmd(v *viper.Viper) *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "dispatch",
		Short:         "Template-matching query dispatcher",
		Long:          `Maps free-form queries to a function name and typed arguments using an ordered list of full-match templates.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(v, cfgFile)
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().String("templates", "", "template file (default: embedded templates)")
	root.PersistentFlags().Bool("debug", false, "enable debug logging")
	_ = v.BindPFlag("templates_path", root.PersistentFlags().Lookup("templates"))
	_ = v.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))

	root.AddCommand(
		newServeCmd(v),
		newResolveCmd(v),
		newTemplatesCmd(v),
		newFunctionsCmd(v),
	)
	return root
}

// initConfig wires defaults, environment and the optional config file.
func initConfig(v *viper.Viper, cfgFile string) error {
	d := config.DefaultServiceConfig()
	v.SetDefault("port", d.Port)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("templates_path", d.TemplatesPath)
	v.SetDefault("watch_templates", d.WatchTemplates)
	v.SetDefault("cache_ttl", d.CacheTTL)
	v.SetDefault("rate_limit_per_minute", d.RateLimitPerMinute)
	v.SetDefault("trace_exporter", d.TraceExporter)
	v.SetDefault("otlp_endpoint", d.OTLPEndpoint)
	v.SetDefault("metric_exporter", d.MetricExporter)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", cfgFile, err)
	}
	return nil
}

// loadServiceConfig decodes and validates the merged configuration.
func loadServiceConfig(v *viper.Viper) (config.ServiceConfig, error) {
	var cfg config.ServiceConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// newLogger returns the process logger. Servers log JSON; interactive
// commands log text. Debug lowers the level to debug.
func newLogger(w io.Writer, debug, jsonFormat bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if jsonFormat {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// cliLogger is the logger for one-shot commands: warnings only, unless
// --debug.
func cliLogger(cmd *cobra.Command, v *viper.Viper) *slog.Logger {
	level := slog.LevelWarn
	if v.GetBool("debug") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// loadDispatcher compiles the configured templates into a dispatcher.
func loadDispatcher(ctx context.Context, path string, logger *slog.Logger) (*dispatch.Dispatcher, error) {
	compiled, err := templates.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading templates: %w", err)
	}
	return dispatch.NewFromCompiled(compiled, dispatch.WithLogger(logger))
}

func templateSource(path string) string {
	if path == "" {
		return "embedded"
	}
	return path
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// writeJSON writes v as JSON, indented when pretty. HTML characters are
// left as-is.
func writeJSON(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
