package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/db"
	"github.com/shelfwise/catalog-notifier/internal/logger"
	"github.com/shelfwise/catalog-notifier/internal/notify"
	"github.com/shelfwise/catalog-notifier/internal/push"
)

var listenOrg string

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Subscribe to a tenant's notifications and render toasts to the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		orgID, err := uuid.Parse(listenOrg)
		if err != nil {
			return fmt.Errorf("invalid --org: %w", err)
		}

		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		log, err := logger.New(cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

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

		session, err := notify.Open(cmd.Context(), orgID, broker,
			terminalNotifier{}, terminalInvalidator{},
			notify.Config{
				DebounceWindow: cfg.Notify.DebounceWindow,
				SyncedCooldown: cfg.Notify.SyncedCooldown,
			}, log)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}

		fmt.Printf(">> Listening for %s (ctrl-c to stop)\n", orgID)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		session.Close()
		return nil
	},
}

func init() {
	listenCmd.Flags().StringVar(&listenOrg, "org", "", "organization UUID to subscribe to")
	_ = listenCmd.MarkFlagRequired("org")
}

// terminalNotifier renders toasts as terminal lines.
type terminalNotifier struct{}

func (terminalNotifier) Show(t notify.Toast) {
	line := fmt.Sprintf("[%s] %s: %s", t.Kind, t.Title, t.Description)
	if t.Action != nil {
		line += fmt.Sprintf(" (%s: %s)", t.Action.Label, t.Action.Href)
	}
	fmt.Println(line)
}

// terminalInvalidator stands in for the client cache layer.
type terminalInvalidator struct{}

func (terminalInvalidator) Invalidate(key string) {
	fmt.Printf("    refetch %q\n", key)
}
