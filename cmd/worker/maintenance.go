package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/db"
	"github.com/shelfwise/catalog-notifier/internal/logger"
	"github.com/shelfwise/catalog-notifier/internal/metrics"
	"github.com/shelfwise/catalog-notifier/internal/repository"
	"github.com/shelfwise/catalog-notifier/internal/worker"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run the DLQ migrator and retention pruner on a schedule",
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

		m := worker.NewMaintenance(repository.NewOutboxRepository(pgDB), cfg.Maintenance, log)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("maintenance started",
			zap.Duration("interval", m.Interval),
			zap.Duration("retention", m.Retention),
			zap.Int("dlq_max_attempts", m.DLQMaxAttempts),
			zap.Duration("dlq_max_age", m.DLQMaxAge))

		return m.Run(ctx)
	},
}
