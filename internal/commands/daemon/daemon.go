// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package daemon implements the 'mcpd daemon' command: a long-running
// process that keeps the registry in sync with a servers file, refreshes
// tool discovery on an interval, and serves Prometheus metrics.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tombee/mcpd/internal/commands/shared"
	"github.com/tombee/mcpd/internal/mcp"
	"github.com/tombee/mcpd/internal/tracing"
)

// NewCommand creates the daemon command.
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the mcpd daemon",
		Long: `Run mcpd as a long-lived daemon.

The daemon watches the servers file for changes, re-syncs the registry,
periodically refreshes tool discovery, and exposes Prometheus metrics.
On SIGINT or SIGTERM every live connection is torn down before exit.`,
		Example: `  # Example 1: Run with a servers file and metrics
  mcpd daemon --config ~/.mcpd/servers.yaml --metrics-addr :9090

  # Example 2: Refresh discovery every minute
  mcpd daemon --config servers.yaml --refresh-interval 1m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.configPath, "config", "", "Servers file to sync and watch")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Prometheus metrics listen address (e.g. :9090)")
	cmd.Flags().DurationVar(&opts.refreshInterval, "refresh-interval", 5*time.Minute, "Tool discovery refresh interval (0 disables)")
	cmd.Flags().DurationVar(&opts.callTimeout, "call-timeout", 0, "Per-call timeout (default 30s)")
	cmd.Flags().IntVar(&opts.callsPerMinute, "calls-per-minute", 0, "Per-server tool call limit (0 = unlimited)")
	cmd.Flags().BoolVar(&opts.trace, "trace", false, "Emit OpenTelemetry spans to stdout")

	return cmd
}

type options struct {
	configPath      string
	metricsAddr     string
	refreshInterval time.Duration
	callTimeout     time.Duration
	callsPerMinute  int
	trace           bool
}

func run(ctx context.Context, opts options) error {
	version, _, _ := shared.GetVersion()

	tracer, err := tracing.Init("mcpd", version, opts.trace)
	if err != nil {
		return err
	}

	rt, err := shared.OpenRuntime(shared.RuntimeOptions{
		CallTimeout:    opts.callTimeout,
		CallsPerMinute: opts.callsPerMinute,
	})
	if err != nil {
		return err
	}
	logger := rt.Logger

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initial sync before anything else so the first refresh sees the
	// declared servers.
	if opts.configPath != "" {
		if err := mcp.SyncFromFile(ctx, rt.Store, opts.configPath, logger); err != nil {
			rt.Close()
			return err
		}
	}

	var watcher *mcp.ConfigWatcher
	if opts.configPath != "" {
		watcher, err = mcp.NewConfigWatcher(mcp.ConfigWatcherConfig{
			Path:   opts.configPath,
			Logger: logger,
			OnChange: func() {
				syncCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				defer cancel()
				if err := mcp.SyncFromFile(syncCtx, rt.Store, opts.configPath, logger); err != nil {
					logger.Error("failed to re-sync servers file", "error", err)
				}
			},
		})
		if err != nil {
			rt.Close()
			return err
		}
	}

	var metricsSrv *http.Server
	if opts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{Addr: opts.metricsAddr, Handler: mux}

		go func() {
			logger.Info("metrics server listening", "addr", opts.metricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	// Initial discovery, then periodic refresh.
	refresh := func() {
		refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		results, err := rt.Invoker.RefreshAll(refreshCtx)
		if err != nil {
			logger.Error("refresh failed", "error", err)
			return
		}
		ok := 0
		for _, r := range results {
			if r.Err == nil {
				ok++
			}
		}
		logger.Info("refreshed servers", "ok", ok, "failed", len(results)-ok)
	}
	refresh()

	if opts.refreshInterval > 0 {
		ticker := time.NewTicker(opts.refreshInterval)
		defer ticker.Stop()
		go func() {
			for {
				select {
				case <-ticker.C:
					refresh()
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	logger.Info("mcpd daemon started", "version", version)
	<-ctx.Done()
	logger.Info("shutting down")

	// Teardown order: stop inputs, then connections, then exporters.
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logger.Warn("failed to close config watcher", "error", err)
		}
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to stop metrics server", "error", err)
		}
	}
	if err := rt.Close(); err != nil {
		logger.Warn("failed to close runtime", "error", err)
	}
	if err := tracer.Shutdown(context.Background()); err != nil {
		logger.Warn("failed to flush traces", "error", err)
	}

	fmt.Println("mcpd stopped")
	return nil
}
