package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/swagger"
	"github.com/hashicorp/go-hclog"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"docstore/docs"
	"docstore/internal/config"
	handlers "docstore/internal/http/handler"
	"docstore/internal/http/middleware"
	"docstore/internal/logging"
	"docstore/internal/otel"
	"docstore/internal/service"
	"docstore/internal/storage"
)

// @title Document Store API
// @version 1.0
// @BasePath /
func main() {
	// Load configuration from environment variables (.env auto-loaded if present)
	cfg := config.Load()
	logger := logging.New(cfg.Log)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

type server struct {
	app   *fiber.App
	store *storage.LocalStore
}

// newServer provisions the store and builds the HTTP app. When any step after
// provisioning fails the store is torn down again before returning.
func newServer(ctx context.Context, cfg *config.AppConfig, logger hclog.Logger, reg *prometheus.Registry) (_ *server, err error) {
	// Store root: explicit directory or a fresh temporary one per process
	fsys := afero.NewOsFs()
	root := cfg.Store.Dir
	if root == "" {
		if root, err = storage.TempRoot(fsys, cfg.Store.TempPrefix); err != nil {
			return nil, err
		}
	}
	store := storage.NewLocal(fsys, root,
		storage.WithLogger(logger.Named("storage")),
		storage.WithMaxIDAttempts(cfg.Store.MaxIDAttempts),
	)
	if err := store.Provision(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if terr := store.Teardown(context.Background()); terr != nil {
			logger.Error("teardown after failed startup", "error", terr)
		}
	}()

	docMetrics, err := service.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("register document metrics: %w", err)
	}
	httpMetrics, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, fmt.Errorf("register http metrics: %w", err)
	}

	docSvc := service.NewDocumentService(store, docMetrics)

	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             cfg.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(recover.New())
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	app.Use(otelfiber.Middleware())
	app.Use(middleware.Logger(logger))
	app.Use(httpMetrics.Handler())

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		host := c.Get("Host")
		if host == "" {
			host = cfg.AppHost
		}
		docs.SwaggerInfo.Host = host
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	handlers.RegisterRoutes(app, cfg.RoutePrefix, store, docSvc)

	return &server{app: app, store: store}, nil
}

func run(ctx context.Context, cfg *config.AppConfig, logger hclog.Logger) error {
	shutdownTracing, err := otel.Init(ctx, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv, err := newServer(ctx, cfg, logger, reg)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}
	app, store := srv.app, srv.store

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", "port", cfg.Port, "route_prefix", cfg.RoutePrefix, "store_root", store.Root())
		return app.Listen(":" + cfg.Port)
	})
	g.Go(func() error {
		<-gctx.Done()
		timeout := time.Duration(cfg.ShutdownTimeoutSec) * time.Second

		var errs []error
		if err := app.ShutdownWithTimeout(timeout); err != nil {
			errs = append(errs, fmt.Errorf("shutdown http: %w", err))
		}
		// Requests have drained; the store goes away with the process.
		if err := store.Teardown(context.Background()); err != nil {
			errs = append(errs, fmt.Errorf("teardown store: %w", err))
		}

		flushCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
		logger.Info("shutdown complete")
		return errors.Join(errs...)
	})

	return g.Wait()
}
