package cmd

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/db"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/repository"
	"github.com/shelfwise/catalog-notifier/internal/service/catalog"
)

var seedBurst bool

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed demo organizations and cataloging jobs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

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

		ctx := cmd.Context()
		orgs := repository.NewOrgsRepository(pgDB)
		svc := catalog.New(pgDB, repository.NewJobsRepository(pgDB), repository.NewOutboxRepository(pgDB), cfg.Outbox)

		fmt.Println(">> Seeding demo organizations...")
		seeded, err := seedOrganizations(ctx, orgs)
		if err != nil {
			return err
		}

		fmt.Println(">> Seeding demo cataloging jobs...")
		if err := seedJobs(ctx, svc, seeded); err != nil {
			return err
		}

		if seedBurst {
			fmt.Println(">> Completing a burst of jobs for", seeded[0].Name)
			if err := burstComplete(ctx, svc, seeded[0].ID); err != nil {
				return err
			}
		}

		fmt.Println(">> Seed complete")
		return nil
	},
}

func init() {
	seedCmd.Flags().BoolVar(&seedBurst, "burst", false,
		"complete three jobs back-to-back so subscribed clients see one aggregated toast")
}

// seedOrganizations upserts deterministic demo tenants (idempotent).
func seedOrganizations(ctx context.Context, orgs repository.OrgsRepository) ([]model.Organization, error) {
	demo := []model.Organization{
		{
			ID:           uuid.MustParse("11111111-1111-1111-1111-111111111111"),
			Name:         "Driftwood Books",
			APIKey:       strptr("11111111111111111111111111111111"),
			RateLimitRPS: intptr(20),
		},
		{
			ID:           uuid.MustParse("22222222-2222-2222-2222-222222222222"),
			Name:         "Foghorn Rare Books",
			APIKey:       strptr("22222222222222222222222222222222"),
			RateLimitRPS: intptr(50),
		},
		{
			ID:           uuid.MustParse("33333333-3333-3333-3333-333333333333"),
			Name:         "Paper Lantern Used Books",
			APIKey:       strptr("33333333333333333333333333333333"),
			RateLimitRPS: intptr(5),
		},
	}

	for i := range demo {
		if err := orgs.Upsert(ctx, &demo[i]); err != nil {
			return nil, fmt.Errorf("upsert organization %q: %w", demo[i].Name, err)
		}
	}
	return demo, nil
}

// seedJobs inserts a few queued jobs per tenant through the service so capture
// emits the created events.
func seedJobs(ctx context.Context, svc *catalog.Service, orgs []model.Organization) error {
	jobs := []struct {
		title  string
		source model.JobSource
		items  int
	}{
		{"Fall intake box 12", model.SourceCSVImport, 40},
		{"Estate purchase shelving", model.SourceManual, 0},
		{"ISBN backlist refresh", model.SourceISBNLookup, 120},
	}
	for _, org := range orgs {
		for _, j := range jobs {
			if _, err := svc.CreateJob(ctx, org.ID, j.title, j.source, j.items); err != nil {
				return fmt.Errorf("seed job %q for %q: %w", j.title, org.Name, err)
			}
		}
	}
	return nil
}

// burstComplete runs three jobs to completion back-to-back. A client
// subscribed to the tenant collapses the burst into one aggregated toast.
func burstComplete(ctx context.Context, svc *catalog.Service, orgID uuid.UUID) error {
	for i := 1; i <= 3; i++ {
		job, err := svc.CreateJob(ctx, orgID, fmt.Sprintf("Burst demo batch %d", i), model.SourceCSVImport, i*10)
		if err != nil {
			return fmt.Errorf("burst create: %w", err)
		}
		if _, err := svc.TransitionJob(ctx, orgID, job.ID, model.JobStatusProcessing, nil); err != nil {
			return fmt.Errorf("burst transition: %w", err)
		}
		if _, err := svc.TransitionJob(ctx, orgID, job.ID, model.JobStatusCompleted, nil); err != nil {
			return fmt.Errorf("burst complete: %w", err)
		}
	}
	return nil
}

func strptr(s string) *string { return &s }
func intptr(i int) *int       { return &i }
