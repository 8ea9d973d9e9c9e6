package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	_ "github.com/noah-isme/guard-forms/api/swagger"
	"github.com/noah-isme/guard-forms/internal/console"
	"github.com/noah-isme/guard-forms/internal/forms"
	"github.com/noah-isme/guard-forms/internal/handler"
	"github.com/noah-isme/guard-forms/internal/listing"
	"github.com/noah-isme/guard-forms/internal/service"
	"github.com/noah-isme/guard-forms/internal/session"
	"github.com/noah-isme/guard-forms/internal/submit"
	"github.com/noah-isme/guard-forms/internal/upstream"
	"github.com/noah-isme/guard-forms/internal/validation"
	"github.com/noah-isme/guard-forms/pkg/cache"
	"github.com/noah-isme/guard-forms/pkg/config"
	"github.com/noah-isme/guard-forms/pkg/jobs"
	"github.com/noah-isme/guard-forms/pkg/logger"
	"github.com/noah-isme/guard-forms/pkg/storage"
)

// @title Guard Forms Gateway
// @version 1.0.0
// @description Validation and state sync for the guard admin forms.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("gateway failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Timezone != "" {
		loc, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
		}
		// date rules compare against the office calendar day
		time.Local = loc
	}

	validate := validator.New()
	if err := validation.RegisterTags(validate, time.Now); err != nil {
		return fmt.Errorf("register validation tags: %w", err)
	}

	registry, err := forms.NewRegistry(cfg.Forms.DefinitionsPath, logr)
	if err != nil {
		return fmt.Errorf("load form definitions: %w", err)
	}
	if cfg.Forms.Watch && registry.Dir() != "" {
		watcher, err := forms.NewWatcher(registry, 0, logr)
		if err != nil {
			return fmt.Errorf("watch form definitions: %w", err)
		}
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("watch form definitions: %w", err)
		}
		defer watcher.Stop() //nolint:errcheck
	}

	downloads, err := storage.NewLocalStorage(cfg.Downloads.Dir)
	if err != nil {
		return err
	}
	staging, err := storage.NewLocalStorage(cfg.Staging.Dir)
	if err != nil {
		return err
	}
	signer := storage.NewSignedURLSigner(cfg.Downloads.SignedURLSecret, cfg.Downloads.SignedURLTTL)

	opts := upstream.Options{
		BaseURL:     cfg.Upstream.BaseURL,
		ReadTimeout: cfg.Upstream.ReadTimeout,
		CSRFHeader:  cfg.Upstream.CSRFHeader,
		CSRFCookie:  cfg.Upstream.CSRFCookie,
		Downloads:   downloads,
		Signer:      signer,
		Logger:      logr,
	}
	if cfg.Upstream.CSRFToken != "" {
		opts.Tokens = upstream.StaticToken(cfg.Upstream.CSRFToken)
	}
	client, err := upstream.New(opts)
	if err != nil {
		return err
	}

	var (
		store  session.Store
		memory *session.MemoryStore
		checks = []handler.ReadinessCheck{{
			Name: "forms",
			Check: func(context.Context) error {
				if len(registry.List()) == 0 {
					return errors.New("no form definitions loaded")
				}
				return nil
			},
		}}
	)
	switch cfg.Sessions.Store {
	case config.SessionStoreRedis:
		rdb, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect session store: %w", err)
		}
		defer rdb.Close() //nolint:errcheck
		store = session.NewRedisStore(rdb, cfg.Sessions.TTL)
		checks = append(checks, handler.ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return cache.Check(ctx, rdb) }})
	default:
		memory = session.NewMemoryStore(cfg.Sessions.TTL)
		store = memory
	}

	var manager *session.Manager
	purgeQueue := jobs.NewQueue("attachments", func(ctx context.Context, job jobs.Job) error {
		return manager.PurgeJob(ctx, job)
	}, jobs.QueueConfig{Workers: cfg.Purge.Workers, MaxRetries: cfg.Purge.Retries, Logger: logr})
	manager = session.NewManager(registry, store, client, staging, purgeQueue, session.Limits{
		MaxFileSize:  cfg.Staging.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Staging.AllowedMIMEs,
	}, logr)
	purgeQueue.Start(ctx)
	defer purgeQueue.Stop()

	views := console.NewStore()
	lists := listing.NewService(client, views, logr)
	exporter := listing.NewExporter(lists, cfg.Export.PDFFont)
	pipeline := submit.NewPipeline(manager, client, lists, views, validate, logr)
	downloadSvc := service.NewDownloadService(downloads, signer)

	go jobs.Every(ctx, "staging-sweep", cfg.Staging.CleanupInterval, logr, func(context.Context) error {
		if memory != nil {
			manager.Expired(memory.Sweep())
		}
		if _, err := manager.SweepStaging(cfg.Staging.Retention); err != nil {
			return err
		}
		_, err := downloadSvc.Sweep()
		return err
	})

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
		metrics.RegisterQueue("attachments", purgeQueue)
	}
	csrf := service.NewCSRFService(cfg.CSRF.Secret, cfg.CSRF.TTL)

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:       cfg.APIPrefix,
		AllowedOrigins:  cfg.CORS.AllowedOrigins,
		Docs:            cfg.Env != config.EnvProduction,
		MaxUploadBytes:  cfg.Staging.MaxFileSizeBytes,
		Logger:          logr,
		Metrics:         metrics,
		CSRF:            csrf,
		CSRFHandler:     handler.NewCSRFHandler(csrf, cfg.Env == config.EnvProduction),
		FormHandler:     handler.NewFormHandler(service.NewFormService(registry, validate)),
		SessionHandler:  handler.NewSessionHandler(service.NewSessionService(manager, pipeline, validate, metrics, logr)),
		ListHandler:     handler.NewListHandler(service.NewListService(views, lists, exporter, validate, metrics, logr)),
		DownloadHandler: handler.NewDownloadHandler(downloadSvc),
		MetricsHandler:  handler.NewMetricsHandler(metrics, checks...),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("upstream", cfg.Upstream.BaseURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
