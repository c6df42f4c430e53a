package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/ai"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/cache"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/config"
	httpserver "github.com/awolfe89/ecommerce-kpi-dashboard/internal/http"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/http/handlers"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/queue"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/service"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/store"
	"github.com/awolfe89/ecommerce-kpi-dashboard/internal/worker"
)

func main() {
	logger := log.New(os.Stdout, "[kpi-reports] ", log.LstdFlags|log.LUTC|log.Lmicroseconds)
	if err := config.LoadDotEnv(".env", ".env.local"); err != nil {
		logger.Printf("failed loading .env files: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobStore, storeCloser := setupStore(ctx, cfg, logger)
	defer storeCloser()

	producer, consumer, queueCloser := setupQueue(ctx, cfg, logger)
	defer queueCloser()

	aiClient := ai.NewOpenAIClient(ai.OpenAIClientConfig{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		Timeout:    time.Duration(cfg.OpenAITimeoutMS) * time.Millisecond,
		MaxRetries: cfg.OpenAIMaxRetries,
	})
	reportCache := cache.NewReportCache(cache.Config{
		TTL:        time.Duration(cfg.ReportCacheTTLSeconds) * time.Second,
		MaxEntries: cfg.ReportCacheMaxEntries,
	})

	reportsService := service.NewReportsService(jobStore, producer, logger)

	var processor *worker.Processor
	if cfg.WorkerEnabled {
		processor = worker.NewProcessor(jobStore, consumer, aiClient, reportCache, worker.ProcessorConfig{
			BatchSize:     cfg.ProcessorBatchSize,
			SweepInterval: time.Duration(cfg.ProcessorSweepIntervalMS) * time.Millisecond,
			Model:         cfg.OpenAIModel,
			FallbackModel: cfg.OpenAIFallback,
			Temperature:   cfg.OpenAITemperature,
			MaxTokens:     cfg.OpenAIMaxTokens,
		}, logger)
		go processor.Start(ctx)
		logger.Printf("report worker enabled and started")
	} else {
		logger.Printf("report worker disabled by configuration")
	}

	var kicker handlers.ProcessorKicker
	if processor != nil {
		kicker = processor
	}
	api := handlers.NewAPI(reportsService, kicker)

	handler := httpserver.NewRouter(httpserver.RouterDependencies{
		API:            api,
		Logger:         logger,
		AuthToken:      cfg.AuthToken,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Printf("api listening on :%s", cfg.Port)
		errChan <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Printf("shutdown signal received")
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

func setupStore(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (store.JobStore, func()) {
	if cfg.DatabaseURL == "" {
		logger.Printf("DATABASE_URL not configured, using in-memory job store")
		return store.NewMemoryJobStore(), func() {}
	}

	pgStore, err := store.NewPostgresJobStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Printf("failed to initialize postgres job store, fallback to memory: %v", err)
		return store.NewMemoryJobStore(), func() {}
	}
	logger.Printf("postgres job store initialized")
	return pgStore, func() {
		pgStore.Close()
	}
}

func setupQueue(
	ctx context.Context,
	cfg config.Config,
	logger *log.Logger,
) (queue.Producer, queue.Consumer, func()) {
	if cfg.RedisAddr == "" {
		logger.Printf("REDIS_ADDR not configured, using local queue fallback")
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}

	streams, err := queue.NewStreamsQueue(ctx, queue.StreamsConfig{
		Addr:        cfg.RedisAddr,
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		Stream:      cfg.RedisStream,
		DLQStream:   cfg.RedisDLQ,
		Group:       cfg.RedisGroup,
		Consumer:    cfg.RedisConsumer,
		MaxAttempts: 3,
	})
	if err != nil {
		logger.Printf("failed to initialize redis streams queue, fallback to local: %v", err)
		local := queue.NewLocalQueue(512, 3, logger)
		return local, local, func() {}
	}
	logger.Printf("redis streams queue initialized")
	return streams, streams, func() {
		_ = streams.Close()
	}
}
