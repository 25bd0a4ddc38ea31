package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kristobalus/sport-triggers-sub000/internal/config"
	"github.com/kristobalus/sport-triggers-sub000/internal/database"
	"github.com/kristobalus/sport-triggers-sub000/internal/engine"
	"github.com/kristobalus/sport-triggers-sub000/internal/metrics"
	"github.com/kristobalus/sport-triggers-sub000/internal/notifier"
	"github.com/kristobalus/sport-triggers-sub000/internal/pipeline"
	"github.com/kristobalus/sport-triggers-sub000/internal/retry"
)

func main() {
	// Parse command-line flags
	cfg := &config.Config{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.StoreTopic, "store-topic", "snapshots.store", "Kafka topic for incoming snapshots")
	flag.StringVar(&cfg.EvaluateTopic, "evaluate-topic", "triggers.evaluate", "Kafka topic for trigger evaluation jobs")
	flag.StringVar(&cfg.NotifyTopic, "notify-topic", "triggers.notify", "Kafka topic for notification jobs")
	flag.StringVar(&cfg.StoreGroupID, "store-group-id", "triggerd-store", "Kafka consumer group ID for the store queue")
	flag.StringVar(&cfg.EvaluateGroupID, "evaluate-group-id", "triggerd-evaluate", "Kafka consumer group ID for the evaluate queue")
	flag.StringVar(&cfg.NotifyGroupID, "notify-group-id", "triggerd-notify", "Kafka consumer group ID for the notify queue")
	flag.StringVar(&cfg.RedisAddr, "redis-addr", "localhost:6379", "Redis server address")
	flag.DurationVar(&cfg.RetiredTriggerTTL, "retired-trigger-ttl", 24*time.Hour, "How long retired trigger records stay readable")
	flag.DurationVar(&cfg.MetricsInterval, "metrics-interval", metrics.DefaultReportInterval, "Interval for writing service metrics to Redis")
	flag.Parse()

	// Set up structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting trigger engine",
		"kafka_brokers", cfg.KafkaBrokers,
		"store_topic", cfg.StoreTopic,
		"evaluate_topic", cfg.EvaluateTopic,
		"notify_topic", cfg.NotifyTopic,
		"redis_addr", cfg.RedisAddr,
		"retired_trigger_ttl", cfg.RetiredTriggerTTL,
	)

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	// Initialize Redis client
	slog.Info("Connecting to Redis", "addr", cfg.RedisAddr)
	redisClient, err := database.Connect(ctx, cfg.RedisAddr)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("Successfully connected to Redis")

	db := database.New(redisClient)
	eng := engine.New(db, notifier.NewWebhook(), cfg.RetiredTriggerTTL)

	// Metrics reporting
	collector := metrics.NewCollector("triggerd", redisClient)
	collector.SetReportInterval(cfg.MetricsInterval)
	collector.Start(ctx)
	defer collector.Stop()

	// Queue consumers, one per stage
	storeConsumer, err := pipeline.NewConsumer(cfg.KafkaBrokers, cfg.StoreTopic, cfg.StoreGroupID)
	if err != nil {
		slog.Error("Failed to create store consumer", "error", err)
		os.Exit(1)
	}
	defer storeConsumer.Close()

	evaluateConsumer, err := pipeline.NewConsumer(cfg.KafkaBrokers, cfg.EvaluateTopic, cfg.EvaluateGroupID)
	if err != nil {
		slog.Error("Failed to create evaluate consumer", "error", err)
		os.Exit(1)
	}
	defer evaluateConsumer.Close()

	notifyConsumer, err := pipeline.NewConsumer(cfg.KafkaBrokers, cfg.NotifyTopic, cfg.NotifyGroupID)
	if err != nil {
		slog.Error("Failed to create notify consumer", "error", err)
		os.Exit(1)
	}
	defer notifyConsumer.Close()

	// Stage hand-off producers
	evaluateProducer, err := pipeline.NewProducer(cfg.KafkaBrokers, cfg.EvaluateTopic)
	if err != nil {
		slog.Error("Failed to create evaluate producer", "error", err)
		os.Exit(1)
	}
	defer evaluateProducer.Close()

	notifyProducer, err := pipeline.NewProducer(cfg.KafkaBrokers, cfg.NotifyTopic)
	if err != nil {
		slog.Error("Failed to create notify producer", "error", err)
		os.Exit(1)
	}
	defer notifyProducer.Close()

	storeStage := pipeline.NewStoreStage(eng, evaluateProducer, collector)
	evaluateStage := pipeline.NewEvaluateStage(eng, notifyProducer, collector)
	notifyStage := pipeline.NewNotifyStage(eng, collector)

	pipe := pipeline.New(
		storeConsumer, evaluateConsumer, notifyConsumer,
		storeStage, evaluateStage, notifyStage,
		retry.DefaultConfig(), collector,
	)

	slog.Info("Starting pipeline workers")
	pipe.Run(ctx)

	slog.Info("Trigger engine stopped")
}
