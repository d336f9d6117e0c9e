package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/db"
	"github.com/shelfwise/catalog-notifier/internal/kafka"
	"github.com/shelfwise/catalog-notifier/internal/logger"
	"github.com/shelfwise/catalog-notifier/internal/metrics"
	"github.com/shelfwise/catalog-notifier/internal/push"
	"github.com/shelfwise/catalog-notifier/internal/repository"
	"github.com/shelfwise/catalog-notifier/internal/worker"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Poll the outbox and push undelivered events to tenant channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.New(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		pgDB, err := db.NewPostgresConnection(cfg.Postgres.DSN, db.PostgresOpts{
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.Postgres.ConnMaxIdleTime,
			PingTimeout:     cfg.Postgres.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("postgres connect: %w", err)
		}
		defer pgDB.Close()

		redisClient, err := db.NewRedisClient(db.RedisOpts{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			DialTimeout: cfg.Redis.DialTimeout,
		})
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		broker := push.NewRedisBroker(redisClient, log)

		// The firehose is optional: with no brokers configured the relay
		// only delivers pushes and skips analytics.
		var firehose worker.Firehose
		if len(cfg.Kafka.Brokers) > 0 {
			producer, err := kafka.NewProducer(kafka.ProducerConfig{
				Brokers:       cfg.Kafka.Brokers,
				Topic:         cfg.Kafka.Topic,
				WriteTimeout:  cfg.Kafka.WriteTimeout,
				FailThreshold: cfg.Kafka.Breaker.FailThreshold,
				OpenFor:       time.Duration(cfg.Kafka.Breaker.OpenForMs) * time.Millisecond,
			}, log)
			if err != nil {
				return fmt.Errorf("kafka producer: %w", err)
			}
			defer func() { _ = producer.Close() }()
			firehose = producer
		}

		relay := worker.NewRelay(repository.NewOutboxRepository(pgDB), broker, firehose, cfg.Relay, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("relay started",
			zap.String("consumer_id", relay.ConsumerID),
			zap.Duration("poll_interval", relay.PollInterval),
			zap.Int("batch_size", relay.BatchSize),
			zap.Int("max_attempts", relay.MaxAttempts))

		return relay.Run(ctx)
	},
}
