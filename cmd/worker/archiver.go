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
	"github.com/shelfwise/catalog-notifier/internal/repository"
	"github.com/shelfwise/catalog-notifier/internal/worker"
)

var archiverCmd = &cobra.Command{
	Use:   "archiver",
	Short: "Drain the firehose topic into the ClickHouse event archive",
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

		if len(cfg.Kafka.Brokers) == 0 {
			return fmt.Errorf("no kafka brokers configured")
		}

		chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
			DSN:             cfg.ClickHouse.DSN,
			MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
			MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
			ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
			PingTimeout:     cfg.ClickHouse.PingTimeout,
		})
		if err != nil {
			return fmt.Errorf("clickhouse connect: %w", err)
		}
		defer func() { _ = chDB.Close() }()

		groupID := cfg.Kafka.GroupID
		if groupID == "" {
			groupID = "catalog-notifier-archiver"
		}

		consumer := kafka.NewConsumerFromConfig(kafka.ConsumerConfig{
			Brokers:        cfg.Kafka.Brokers,
			Topic:          cfg.Kafka.Topic,
			GroupID:        groupID,
			MinBytes:       cfg.Kafka.MinBytes,
			MaxBytes:       cfg.Kafka.MaxBytes,
			CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
		})
		defer consumer.Close()

		a := worker.NewArchiver(consumer, repository.NewCHEventsRepository(chDB), cfg.Archiver, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("archiver started",
			zap.String("topic", cfg.Kafka.Topic),
			zap.String("group_id", groupID),
			zap.Int("batch_size", a.BatchSize),
			zap.Duration("batch_wait", a.BatchWait))

		return a.Run(ctx)
	},
}
