package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gartstein/hiring/internal/hiring/auth"
	"github.com/gartstein/hiring/internal/hiring/cache"
	"github.com/gartstein/hiring/internal/hiring/config"
	"github.com/gartstein/hiring/internal/hiring/controller"
	"github.com/gartstein/hiring/internal/hiring/events"
	"github.com/gartstein/hiring/internal/hiring/generator"
	"github.com/gartstein/hiring/internal/hiring/handlers"
	"github.com/gartstein/hiring/internal/hiring/llm"
	"github.com/gartstein/hiring/internal/hiring/media"
	"github.com/gartstein/hiring/internal/hiring/scoring"
	"github.com/gartstein/hiring/internal/hiring/storage"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type producer interface {
	Produce(ev events.Event)
	Close()
}

func main() {
	cfg, err := config.Load(configPath(), ".env")
	if err != nil {
		// The logger depends on the config, so fall back to a default one.
		zap.Must(zap.NewProduction()).Fatal("failed to load config", zap.Error(err))
	}

	logger, err := config.NewLogger(cfg.Env)
	if err != nil {
		zap.Must(zap.NewProduction()).Fatal("failed to build logger", zap.Error(err))
	}
	defer func(logger *zap.Logger) {
		_ = logger.Sync()
	}(logger)
	logger.Info("Configuration loaded", zap.Stringer("config", cfg))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, closeStore, err := storage.Open(ctx, storage.Options{
		Signals: storage.Signals{
			BlobURL:     cfg.Storage.BlobURL,
			DatabaseDSN: cfg.DatabaseDSN(),
			Serverless:  cfg.Storage.Serverless,
			Snapshot:    cfg.Storage.Snapshot,
		},
		DataDir: cfg.Storage.DataDir,
	}, logger)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("failed to close storage", zap.Error(err))
		}
	}()

	prod, err := initProducer(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize Kafka producer", zap.Error(err))
	}
	defer prod.Close()

	jobCache, closeCache := initCache(ctx, cfg, logger)
	defer closeCache()

	syncer := cache.NewSynchronizer(jobCache, cache.NewStoreRemote(store, logger), cache.Options{
		PushTimeout: cfg.Cache.PushTimeout,
		OnPushed: func(version string, count int) {
			prod.Produce(events.Event{Type: events.JobsSaved, Version: version, Count: count})
		},
	}, logger)
	defer syncer.Wait()

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.InstanceID, logger)
		consumer.RegisterHandler(syncer.HandleEvent)
		consumer.Start(ctx)
		defer consumer.Close()
	}

	llmClient := llm.NewClient(llm.Config{
		Provider:           llm.Provider(cfg.LLM.Provider),
		APIKey:             cfg.APIKey(),
		Model:              cfg.LLM.Model,
		TranscriptionModel: cfg.LLM.TranscriptionModel,
		BaseURL:            cfg.LLM.BaseURL,
		Timeout:            cfg.LLM.Timeout,
	}, logger)
	if !llmClient.Configured() {
		logger.Warn("No model API key configured, generation falls back to defaults")
	}

	sink, closeSink, err := initSink(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to open media store", zap.Error(err))
	}
	defer closeSink()

	hiringSvc := controller.NewHiringService(controller.Dependencies{
		Store:     store,
		Jobs:      syncer,
		Generator: generator.New(llmClient, logger),
		Analyzer:  scoring.NewEngine(llmClient, cfg.LLM.MaxTranscriptChars, logger),
		Media:     media.NewPipeline(sink, llmClient, cfg.Media.MaxTranscribeMB, logger),
		Producer:  prod,
	}, logger)

	authInterceptor := auth.NewAuthInterceptor(cfg.Auth.JWTSecret)
	server := handlers.NewServer(cfg.GRPCPort, cfg.HTTPPort, logger, grpc.UnaryInterceptor(authInterceptor.Unary()))
	server.RegisterGRPCHandler(handlers.NewJobStoreHandler(hiringSvc, logger))

	maxUpload := int64(cfg.Media.MaxUploadMB) << 20
	if err := server.RegisterHTTPRoutes(handlers.NewHTTPHandler(hiringSvc, maxUpload, logger), cfg.Auth.JWTSecret); err != nil {
		logger.Fatal("Failed to register HTTP routes", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	waitForShutdown(server, errCh, logger)
}

// configPath honours CONFIG_PATH and defaults to the bundled example file.
func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return filepath.Join("internal", "hiring", "config", "config.yaml")
}

func initProducer(cfg *config.Config, logger *zap.Logger) (producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Info("No Kafka brokers configured, events are only logged")
		return events.NewLogProducer(logger), nil
	}
	return events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.InstanceID, logger)
}

// initCache prefers Redis so several instances share one cached copy, and
// falls back to process memory when Redis is absent or unreachable.
func initCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.Cache, func()) {
	if cfg.Cache.RedisAddr == "" {
		return cache.NewMemoryCache(), func() {}
	}

	client := cache.NewRedisClient(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	rc := cache.NewRedisCache(client, cfg.Cache.RedisKey, cfg.Cache.TTL)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		logger.Warn("Redis unreachable, using in-memory cache", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		_ = rc.Close()
		return cache.NewMemoryCache(), func() {}
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			logger.Error("failed to close redis", zap.Error(err))
		}
	}
}

// initSink stores answers in the object store when one is configured and on
// local disk otherwise.
func initSink(ctx context.Context, cfg *config.Config) (media.Sink, func(), error) {
	if cfg.Storage.BlobURL == "" {
		return media.NewLocalSink(cfg.Media.UploadDir), func() {}, nil
	}
	bucket, err := storage.OpenBucket(ctx, cfg.Storage.BlobURL)
	if err != nil {
		return nil, nil, err
	}
	return media.NewBlobSink(bucket, cfg.Media.KeyPrefix), func() { _ = bucket.Close() }, nil
}

// waitForShutdown blocks until an interrupt, SIGTERM or a server failure,
// then shuts down the servers.
func waitForShutdown(server *handlers.Server, errCh <-chan error, logger *zap.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	server.Stop()
	logger.Info("Servers stopped properly")
}
