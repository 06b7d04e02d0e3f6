package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/docmgmt-api/internal/handler"
	"github.com/noah-isme/docmgmt-api/internal/processing"
	"github.com/noah-isme/docmgmt-api/internal/repository"
	"github.com/noah-isme/docmgmt-api/internal/service"
	"github.com/noah-isme/docmgmt-api/pkg/cache"
	"github.com/noah-isme/docmgmt-api/pkg/config"
	"github.com/noah-isme/docmgmt-api/pkg/database"
	"github.com/noah-isme/docmgmt-api/pkg/jobs"
	"github.com/noah-isme/docmgmt-api/pkg/logger"
	"github.com/noah-isme/docmgmt-api/pkg/signature"
	"github.com/noah-isme/docmgmt-api/pkg/storage"
	"github.com/noah-isme/docmgmt-api/pkg/validation"
)

const shutdownTimeout = 15 * time.Second

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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	store, err := newObjectStore(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	validate := validation.New()
	metrics := service.NewMetricsService()

	users := repository.NewUserRepository(db)
	roles := repository.NewRoleRepository(db)
	documents := repository.NewDocumentRepository(db)
	tasks := repository.NewIngestionTaskRepository(db)

	signer := signature.NewSigner(cfg.Ingestion.CallbackSecret, 5*time.Minute)
	backend, cleanup, err := newBackend(ctx, cfg.Ingestion, signer, logr)
	if err != nil {
		return fmt.Errorf("init ingestion backend: %w", err)
	}
	defer cleanup()

	authSvc := service.NewAuthService(users, roles, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	documentSvc := service.NewDocumentService(documents, users, store, validate, metrics, logr, service.DocumentConfig{
		PresignTTL:     cfg.Storage.PresignTTL,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	})
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Ingestion.CacheTTL, logr, true)
	ingestionSvc := service.NewIngestionService(tasks, backend, cacheSvc, validate, metrics, logr, cfg.Ingestion.CacheTTL)

	router := handler.NewRouter(handler.RouterDeps{
		Logger:         logr,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		Tokens:         authSvc,
		CallbackSigner: signer,
		Metrics:        metrics,
		Auth:           handler.NewAuthHandler(authSvc),
		Documents:      handler.NewDocumentHandler(documentSvc),
		Ingestion:      handler.NewIngestionHandler(ingestionSvc),
		Health: handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
			"postgres": db.PingContext,
			"redis":    cacheRepo.Ping,
		}),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env),
			zap.String("storage", cfg.Storage.Driver), zap.String("ingestion_backend", cfg.Ingestion.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logr.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func newObjectStore(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStore, error) {
	if cfg.Driver == config.StorageMemory {
		return storage.NewMemoryStore(cfg.Bucket), nil
	}
	return storage.NewMinioStore(ctx, cfg)
}

// newBackend selects the processing system. The returned cleanup releases whatever it started.
func newBackend(ctx context.Context, cfg config.IngestionConfig, signer *signature.Signer, logr *zap.Logger) (service.ProcessingBackend, func(), error) {
	ids := processing.NewIDGenerator(time.Now())
	client := &http.Client{Timeout: 10 * time.Second}

	switch cfg.Backend {
	case config.BackendHTTP:
		return processing.NewHTTPBackend(cfg.ProcessorURL, cfg.ProcessorToken, cfg.CallbackURL, client), func() {}, nil
	case config.BackendAMQP:
		backend, err := processing.DialAMQP(cfg.AMQPURL, cfg.AMQPQueue, cfg.CallbackURL, ids)
		if err != nil {
			return nil, nil, err
		}
		return backend, func() {
			if err := backend.Close(); err != nil {
				logr.Warn("amqp close failed", zap.Error(err))
			}
		}, nil
	default:
		notifier := processing.NewHTTPNotifier(cfg.CallbackURL, signer, client)
		queue := jobs.NewQueue("ingestion-callbacks", processing.CallbackHandler(notifier, logr), jobs.QueueConfig{
			Workers:    cfg.CallbackWorkers,
			MaxRetries: cfg.CallbackRetries,
			RetryDelay: 2 * time.Second,
			Logger:     logr,
		})
		queue.Start(ctx)
		return processing.NewSimulated(ids, queue, cfg.SimulatedDelay, logr), queue.Stop, nil
	}
}
