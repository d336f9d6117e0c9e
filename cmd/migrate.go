package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/db"
	dbmigrate "github.com/shelfwise/catalog-notifier/internal/db/migrate"
)

var (
	migrateDown       bool
	migrateClickHouse bool
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations (Postgres; --clickhouse for the archive schema)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		direction := "up"
		if migrateDown {
			direction = "down"
		}
		if err := dbmigrate.Run(cfg.Postgres.DSN, direction); err != nil {
			return fmt.Errorf("postgres migrate %s: %w", direction, err)
		}
		fmt.Printf(">> Postgres migrations applied (%s)\n", direction)

		if migrateClickHouse {
			chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
				DSN:         cfg.ClickHouse.DSN,
				PingTimeout: cfg.ClickHouse.PingTimeout,
			})
			if err != nil {
				return fmt.Errorf("clickhouse connect: %w", err)
			}
			defer func() { _ = chDB.Close() }()

			if err := dbmigrate.ApplyClickHouse(cmd.Context(), chDB); err != nil {
				return fmt.Errorf("clickhouse schema: %w", err)
			}
			fmt.Println(">> ClickHouse schema applied")
		}

		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back all Postgres migrations")
	migrateCmd.Flags().BoolVar(&migrateClickHouse, "clickhouse", false, "also apply the ClickHouse archive schema")
}
