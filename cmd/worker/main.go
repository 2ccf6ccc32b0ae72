package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/feedforward/feedforward-api/internal/config"
	"github.com/feedforward/feedforward-api/internal/content"
	"github.com/feedforward/feedforward-api/internal/database"
	"github.com/feedforward/feedforward-api/internal/events"
	"github.com/feedforward/feedforward-api/internal/feedback"
	"github.com/feedforward/feedforward-api/internal/fetch"
	"github.com/feedforward/feedforward-api/internal/models"
	"github.com/feedforward/feedforward-api/internal/observability"
	"github.com/feedforward/feedforward-api/internal/queue"
	"github.com/feedforward/feedforward-api/internal/repository"
	"github.com/feedforward/feedforward-api/internal/worker"
	"github.com/feedforward/feedforward-api/pkg/ai"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.Feedback{}); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	var store fetch.ObjectStore
	if cfg.StorageEndpoint != "" {
		minioClient, err := database.ConnectObjectStorage(database.ObjectStorageConfig{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			UseSSL:    cfg.StorageUseSSL,
		})
		if err != nil {
			log.Fatalf("failed to connect to object storage: %v", err)
		}
		store = fetch.NewMinioStore(minioClient)
	} else {
		logger.Warn().Msg("object storage not configured, storage-path submissions will fail")
	}

	generator, closeGenerator, err := buildGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("failed to create ai generator: %v", err)
	}
	defer closeGenerator()

	var natsConn *nats.Conn
	if cfg.NATSURL != "" {
		natsConn, err = nats.Connect(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Close()
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	submissionRepo := repository.NewSubmissionRepository(db)
	feedbackRepo := repository.NewFeedbackRepository(db)

	resolver := fetch.NewResolver(store, fetch.Config{
		Bucket:       cfg.StorageBucket,
		SignedURLTTL: cfg.SignedURLTTL,
		HTTPTimeout:  cfg.JobTimeout,
	}, logger)

	contentProcessor := content.NewProcessor(cfg.MaxImageMB, logger)
	synthesizer := feedback.NewSynthesizer(generator, validate, logger)
	publisher := events.NewPublisher(natsConn, cfg.NATSSubject, logger)

	processor := worker.NewProcessor(
		submissionRepo,
		feedbackRepo,
		resolver,
		contentProcessor,
		synthesizer,
		publisher,
		worker.Config{
			MaxAttempts: cfg.MaxAttempts,
			BaseBackoff: cfg.RetryBaseBackoff,
			JobTimeout:  cfg.JobTimeout,
		},
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := worker.NewPool(cfg.WorkerCount, logger)
	pool.Start(ctx)

	consumer := queue.NewConsumer(redisClient, cfg.QueueName, logger)
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		err := consumer.Consume(ctx, func(ctx context.Context, submissionID uint) error {
			return pool.Submit(ctx, func(jobCtx context.Context) {
				if err := processor.ProcessSubmission(jobCtx, submissionID); err != nil {
					logger.Error().Err(err).Uint("submission_id", submissionID).Msg("submission job failed")
				}
			})
		})
		if err != nil && ctx.Err() == nil {
			logger.Error().Err(err).Msg("queue consumer stopped")
		}
	}()

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})
	app.Get("/healthz", observability.HealthHandler())
	app.Get("/metrics", observability.MetricsHandler())

	go func() {
		if err := app.Listen(cfg.OpsAddress()); err != nil {
			log.Fatalf("failed to start ops server: %v", err)
		}
	}()

	logger.Info().
		Str("queue", cfg.QueueName).
		Int("workers", cfg.WorkerCount).
		Str("provider", cfg.AIProvider).
		Msg("worker started")

	<-ctx.Done()

	// The consumer must stop submitting before the pool's job channel closes.
	<-consumerDone
	pool.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("worker stopped")
}

func buildGenerator(cfg config.Config, logger zerolog.Logger) (ai.Generator, func(), error) {
	switch cfg.AIProvider {
	case "gemini":
		generator, err := ai.NewGeminiGenerator(context.Background(), ai.GeminiConfig{
			APIKey:    cfg.GeminiAPIKey,
			Model:     cfg.GeminiModel,
			MaxTokens: cfg.AIMaxTokens,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return generator, func() { _ = generator.Close() }, nil
	default:
		generator, err := ai.NewOpenAIGenerator(ai.OpenAIConfig{
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.AIMaxTokens,
			Logger:    logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return generator, func() {}, nil
	}
}
