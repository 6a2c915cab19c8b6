// Package app assembles the service, chat store and HTTP API from a Config
// and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"alquimist/docs/schema"
	"alquimist/docs/schema/openapi"
	"alquimist/internal/adapters/httpapi"
	"alquimist/internal/blob"
	"alquimist/internal/chat"
	"alquimist/internal/config"
	"alquimist/internal/core"
	"alquimist/internal/seed"
)

const readHeaderTimeout = 10 * time.Second

// App holds every long-lived component of a server process.
type App struct {
	Config   config.Config
	Service  *core.Service
	Chat     *chat.Store
	Blobs    blob.Store
	Handler  http.Handler
	Registry *prometheus.Registry
	Expvar   *core.ExpvarMetricsRecorder

	logger *zap.Logger
	store  core.PersistentStore
}

// OpenChat opens the blob store and the chat snapshot named by cfg. When
// cfg.Seed is set a missing snapshot starts from the embedded channels.
func OpenChat(ctx context.Context, cfg config.Config, logger *zap.Logger) (*chat.Store, blob.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	blobs, err := blob.Open(ctx, cfg.Blob)
	if err != nil {
		return nil, nil, fmt.Errorf("open blob store: %w", err)
	}
	opts := []chat.Option{
		chat.WithLogger(logger.Named("chat")),
		chat.WithBlobStore(blobs),
	}
	if cfg.Seed {
		ds, err := seed.Load()
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, chat.WithSeed(ds.ChatSnapshot(time.Now().UTC())))
	}
	store, err := chat.Open(cfg.ChatPath, opts...)
	if err != nil {
		return nil, nil, err
	}
	return store, blobs, nil
}

// Build opens the entity store, seeds it when configured and wires the HTTP
// handler with Prometheus and expvar instrumentation.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	reg := prometheus.NewRegistry()
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}
	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	promRec, err := core.NewPrometheusMetricsRecorder(reg)
	if err != nil {
		return nil, fmt.Errorf("register service metrics: %w", err)
	}
	expRec := core.NewExpvarMetricsRecorder("")

	store, err := core.OpenPersistentStore(ctx, cfg.Storage, core.NewDefaultRulesEngine())
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Storage.Driver, err)
	}
	a := &App{Config: cfg, Registry: reg, Expvar: expRec, logger: logger, store: store}
	a.Service = core.NewService(store,
		core.WithLogger(logger.Named("service")),
		core.WithMetricsRecorder(core.MultiMetricsRecorder{promRec, expRec}),
		core.WithBcryptCost(cfg.BcryptCost))

	if cfg.Seed {
		ds, err := seed.Load()
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		applied, err := seed.Apply(ctx, a.Service, ds)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("seed store: %w", err)
		}
		if applied {
			logger.Info("seeded empty store", zap.String("driver", string(cfg.Storage.Driver)))
		}
	}

	a.Chat, a.Blobs, err = OpenChat(ctx, cfg, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	httpMetrics, err := httpapi.NewMetrics(reg)
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("register http metrics: %w", err)
	}
	opts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithMetrics(httpMetrics, reg),
		httpapi.WithOpenAPI(openapi.Spec()),
	}
	if version, err := schema.APIVersion(); err == nil {
		opts = append(opts, httpapi.WithVersion(version))
	} else {
		logger.Warn("api version unavailable", zap.Error(err))
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewHandler(a.Service, a.Chat, opts...))
	mux.Handle("GET /debug/vars", expvar.Handler())
	a.Handler = mux
	return a, nil
}

// Close releases the entity store.
func (a *App) Close() error {
	return core.CloseStore(a.store)
}

// Serve listens on Config.Addr until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", a.Config.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Config.Addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx is cancelled, then drains in-flight
// requests for up to Config.ShutdownTimeout.
func (a *App) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.Handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          zap.NewStdLog(a.logger.Named("http")),
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := a.Config.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		a.logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
