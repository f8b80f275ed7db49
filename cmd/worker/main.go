package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chroniclehq/chronicle/backend/internal/db"
	"github.com/chroniclehq/chronicle/backend/internal/queue"
	"github.com/chroniclehq/chronicle/backend/internal/util"
	"github.com/chroniclehq/chronicle/backend/pkg/ai"
	olai "github.com/chroniclehq/chronicle/backend/pkg/ai/ollama"
	oai "github.com/chroniclehq/chronicle/backend/pkg/ai/openai"
	"github.com/chroniclehq/chronicle/backend/pkg/leaselock"
	"github.com/chroniclehq/chronicle/backend/pkg/logger"
	"github.com/chroniclehq/chronicle/backend/pkg/logger/console"
	"github.com/chroniclehq/chronicle/backend/pkg/wiki"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"
)

func main() {
	util.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// logger
	debug := util.GetEnvBool("DEBUG", false)
	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	// Embedding client
	adapter := util.GetEnvString("AI_ADAPTER", "openai")
	var embedder ai.EmbeddingClient

	embedDimension := int(util.GetEnvNumeric("AI_EMBED_DIMENSION", db.EmbeddingDimension))

	switch adapter {
	case "ollama":
		client, err := olai.NewEmbeddingOllamaClient(olai.NewEmbeddingOllamaClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			Dimension:      embedDimension,
			BaseURL:        util.GetEnv("AI_EMBED_URL"),
		})
		if err != nil {
			logger.Fatal("Could not create Ollama client", "err", err)
		}
		embedder = client
	default:
		embedder = oai.NewEmbeddingOpenAIClient(oai.NewEmbeddingOpenAIClientParams{
			EmbeddingModel: util.GetEnv("AI_EMBED_MODEL"),
			Dimension:      embedDimension,
			BaseURL:        util.GetEnvString("AI_EMBED_URL", ""),
			ApiKey:         util.GetEnv("AI_EMBED_KEY"),
		})
	}

	// The events table pins its vector width, so a differently sized
	// embedder would fail on every insert. Catch the misconfiguration
	// before taking work.
	if embedder.Dimension() != db.EmbeddingDimension {
		logger.Fatal(
			"Embedding dimension does not match the events schema",
			"configured", embedder.Dimension(),
			"schema", db.EmbeddingDimension,
		)
	}

	// Verification source client
	wikiClient := wiki.NewClient(wiki.NewClientParams{
		Endpoint:  util.GetEnvString("WIKI_ENDPOINT", ""),
		UserAgent: util.GetEnvString("WIKI_USER_AGENT", ""),
		Timeout:   time.Duration(int(util.GetEnvNumeric("WIKI_TIMEOUT_SEC", 10))) * time.Second,
	})

	// Run migrations before taking work
	databaseURL := util.GetEnv("DATABASE_URL")
	if err := db.Migrate(databaseURL); err != nil {
		logger.Fatal("Database migration failed", "err", err)
	}

	// Init pgx pool with pgvector types registered on every connection
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		logger.Fatal("Invalid database URL", "err", err)
	}
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}
	pgConn, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal("Unable to connect to database", "err", err)
	}
	defer pgConn.Close()

	locker := leaselock.New(pgConn)

	// Init rabbitmq
	conn := queue.Init()
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open channel", "err", err)
	}
	defer ch.Close()

	queues := []string{queue.IngestQueue}
	if err := queue.SetupQueues(ch, queues); err != nil {
		logger.Fatal("Failed to set up queues", "err", err)
	}

	logger.Info("Listening for messages")

	// One consumer channel with prefetch=1 so only one message is in flight
	// at a time.
	consumerCh, err := conn.Channel()
	if err != nil {
		logger.Fatal("Failed to open consumer channel", "err", err)
	}
	defer consumerCh.Close()

	if err := consumerCh.Qos(1, 0, true); err != nil {
		logger.Fatal("Failed to set QoS", "err", err)
	}

	msgs, err := consumerCh.Consume(
		queue.IngestQueue,
		queue.IngestQueue+"_consumer",
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,   // args
	)
	if err != nil {
		logger.Fatal("Failed to start consuming", "queue", queue.IngestQueue, "err", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				logger.Info("Stopping message processor")
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Info("Message channel closed", "queue", queue.IngestQueue)
					return
				}

				startTime := time.Now()
				logger.Info("Received message", "queue", queue.IngestQueue)

				processingErr := queue.ProcessIngestMessage(ctx, embedder, wikiClient, locker, pgConn, string(msg.Body))
				if processingErr != nil {
					logger.Error("Error processing message", "queue", queue.IngestQueue, "err", processingErr)
					queue.HandleFailure(consumerCh, msg, queue.IngestQueue)
				} else {
					if err := msg.Ack(false); err != nil {
						logger.Error("Failed to ack message", "err", err)
					}
					logger.Info("Message processed successfully", "queue", queue.IngestQueue, "duration", time.Since(startTime).Round(time.Millisecond))
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Shutdown signal received, exiting...")
}
