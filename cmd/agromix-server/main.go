// Command agromix-server serves the spray-mix engine and entity persistence
// over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"agromix/internal/adapters/httpapi"
	"agromix/internal/config"
	"agromix/internal/core"
)

const (
	shutdownTimeout    = 10 * time.Second
	startupPingTimeout = 5 * time.Second
)

var exitFunc = os.Exit

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	exitFunc(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("agromix-server", flag.ContinueOnError)
	fs.SetOutput(stderr)
	envFile := fs.String("env", "", "path to a .env file (default: ./.env when present)")
	metricsMode := fs.String("metrics", "prometheus", "metrics backend: prometheus or expvar")
	trace := fs.Bool("trace", false, "write persistence spans as JSON lines to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	logger := slog.New(slog.NewJSONHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	srv, cleanup, err := newServer(ctx, cfg, logger, serverOptions{metrics: *metricsMode, trace: *trace, traceOut: stderr})
	if err != nil {
		logger.Error("startup failed", "error", err)
		return 1
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr,
			"local_driver", cfg.Storage.LocalDriver, "remote_driver", cfg.Storage.RemoteDriver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			return 1
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
			return 1
		}
		logger.Info("shutdown complete")
	}
	return 0
}

type serverOptions struct {
	metrics  string
	trace    bool
	traceOut io.Writer
}

// newServer opens both storage tiers and wires the service behind the router.
// cleanup closes the stores.
func newServer(ctx context.Context, cfg config.Config, logger *slog.Logger, opts serverOptions) (*http.Server, func(), error) {
	local, err := core.OpenLocalStore(ctx, cfg.Storage)
	if err != nil {
		return nil, nil, fmt.Errorf("open local store: %w", err)
	}
	remote, err := core.OpenRemoteStore(ctx, cfg.Storage)
	if err != nil {
		_ = core.CloseStore(local)
		return nil, nil, fmt.Errorf("open remote store: %w", err)
	}
	if remote != nil {
		pingCtx, cancel := context.WithTimeout(ctx, startupPingTimeout)
		if err := core.PingRemote(pingCtx, remote); err != nil {
			logger.Warn("remote store unreachable, serving from local storage until it answers",
				"driver", cfg.Storage.RemoteDriver, "kind", core.Classify(err).Kind, "error", err)
		}
		cancel()
	}
	cleanup := func() {
		if err := core.CloseStore(remote); err != nil {
			logger.Warn("close remote store", "error", err)
		}
		if err := core.CloseStore(local); err != nil {
			logger.Warn("close local store", "error", err)
		}
	}

	svcOpts := []core.Option{core.WithLogger(logger)}
	if remote != nil {
		svcOpts = append(svcOpts, core.WithRemoteStore(remote))
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	routerOpts := httpapi.Options{JWTSecret: cfg.JWTSecret, Logger: logger, Gatherer: reg}
	switch opts.metrics {
	case "", "prometheus":
		metrics, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		svcOpts = append(svcOpts, core.WithMetricsRecorder(metrics))
	case "expvar":
		svcOpts = append(svcOpts, core.WithMetricsRecorder(core.NewExpvarMetricsRecorder("")))
		routerOpts.DebugVars = true
	default:
		cleanup()
		return nil, nil, fmt.Errorf("unknown metrics backend %q", opts.metrics)
	}
	if opts.trace {
		svcOpts = append(svcOpts, core.WithTracer(core.NewJSONTracer(opts.traceOut)))
	}

	svc := core.NewService(local, svcOpts...)
	svc.Subscribe(core.TopicCalculationSaved, func(payload any) {
		logger.Debug("calculation changed", "event", payload)
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(svc, routerOpts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv, cleanup, nil
}
