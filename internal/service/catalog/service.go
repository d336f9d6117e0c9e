// Package catalog is the write side of the cataloging_jobs table. Every
// mutation runs in a single transaction together with, in app capture mode,
// the outbox event that announces it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/config"
	"github.com/shelfwise/catalog-notifier/internal/model"
	"github.com/shelfwise/catalog-notifier/internal/outbox"
	"github.com/shelfwise/catalog-notifier/internal/repository"
	"github.com/shelfwise/catalog-notifier/internal/util"
)

var (
	ErrJobNotFound       = errors.New("cataloging job not found")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// Service persists job mutations. In app capture mode it also derives and
// inserts the outbox event inside the mutation's transaction; in trigger
// mode the database trigger does that and the service only writes rows.
type Service struct {
	db      *sqlx.DB
	jobs    repository.JobsRepository
	events  repository.OutboxRepository
	capture *outbox.Capture
	appMode bool
}

// New constructs the catalog service.
func New(db *sqlx.DB, jobsRepo repository.JobsRepository, outboxRepo repository.OutboxRepository, cfg config.OutboxConfig) *Service {
	return &Service{
		db:      db,
		jobs:    jobsRepo,
		events:  outboxRepo,
		capture: outbox.NewCapture(cfg.TrackedFields),
		appMode: cfg.Capture == outbox.ModeApp,
	}
}

// CreateJob inserts a queued job, generates its ULID and returns it with
// database-assigned timestamps filled in.
func (s *Service) CreateJob(ctx context.Context, orgID uuid.UUID, title string, source model.JobSource, itemCount int) (*model.CatalogingJob, error) {
	if !source.Valid() {
		source = model.SourceManual
	}
	if itemCount < 0 {
		itemCount = 0
	}
	job := &model.CatalogingJob{
		ID:         util.New(),
		OrgID:      orgID,
		Title:      title,
		SourceType: source,
		Status:     model.JobStatusQueued,
		ItemCount:  itemCount,
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if err := s.jobs.Insert(ctx, tx, job); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	if err := s.captureChange(ctx, tx, outbox.OpInsert, nil, job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return job, nil
}

// TransitionJob moves a job along queued → processing → completed|failed.
// errorDetail is stored only on a transition to failed. Jobs belonging to a
// different organization read as not found.
func (s *Service) TransitionJob(ctx context.Context, orgID uuid.UUID, id string, next model.JobStatus, errorDetail *string) (*model.CatalogingJob, error) {
	if !next.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTransition, next)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := s.lockOwned(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !old.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, old.Status, next)
	}

	job := *old
	job.Status = next
	switch next {
	case model.JobStatusCompleted:
		now := time.Now().UTC()
		job.CompletedAt = &now
		job.ErrorDetail = nil
	case model.JobStatusFailed:
		job.ErrorDetail = errorDetail
	}

	if err := s.jobs.Update(ctx, tx, &job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := s.captureChange(ctx, tx, outbox.OpUpdate, old, &job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &job, nil
}

// FinalizeJob stamps finalized_at on a completed or failed job, marking its
// results as reviewed. Finalizing twice is a no-op.
func (s *Service) FinalizeJob(ctx context.Context, orgID uuid.UUID, id string) (*model.CatalogingJob, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := s.lockOwned(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}
	if old.FinalizedAt != nil {
		return old, nil
	}
	if old.Status != model.JobStatusCompleted && old.Status != model.JobStatusFailed {
		return nil, fmt.Errorf("%w: cannot finalize %s job", ErrInvalidTransition, old.Status)
	}

	job := *old
	now := time.Now().UTC()
	job.FinalizedAt = &now

	if err := s.jobs.Update(ctx, tx, &job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := s.captureChange(ctx, tx, outbox.OpUpdate, old, &job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &job, nil
}

// UpdateDetails edits the job's descriptive fields. With the default tracked
// set these edits emit no events.
func (s *Service) UpdateDetails(ctx context.Context, orgID uuid.UUID, id string, title *string, itemCount *int) (*model.CatalogingJob, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := s.lockOwned(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}

	job := *old
	if title != nil {
		job.Title = *title
	}
	if itemCount != nil && *itemCount >= 0 {
		job.ItemCount = *itemCount
	}

	if err := s.jobs.Update(ctx, tx, &job); err != nil {
		return nil, fmt.Errorf("update job: %w", err)
	}
	if err := s.captureChange(ctx, tx, outbox.OpUpdate, old, &job); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &job, nil
}

// DeleteJob removes the job row.
func (s *Service) DeleteJob(ctx context.Context, orgID uuid.UUID, id string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	old, err := s.lockOwned(ctx, tx, orgID, id)
	if err != nil {
		return err
	}

	if err := s.jobs.Delete(ctx, tx, id); err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if err := s.captureChange(ctx, tx, outbox.OpDelete, old, nil); err != nil {
		return err
	}

	return tx.Commit()
}

// Get returns the job or ErrJobNotFound.
func (s *Service) Get(ctx context.Context, orgID uuid.UUID, id string) (*model.CatalogingJob, error) {
	job, err := s.jobs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.OrgID != orgID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// List returns the organization's jobs, newest first.
func (s *Service) List(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]model.CatalogingJob, error) {
	return s.jobs.ListByOrg(ctx, orgID, limit, offset)
}

// lockOwned locks the row and checks it belongs to orgID. Foreign rows are
// indistinguishable from missing ones.
func (s *Service) lockOwned(ctx context.Context, tx *sqlx.Tx, orgID uuid.UUID, id string) (*model.CatalogingJob, error) {
	job, err := s.jobs.GetForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("lock job: %w", err)
	}
	if job == nil || job.OrgID != orgID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// captureChange inserts the outbox event for a row change when running in
// app capture mode. In trigger mode the database emits it.
func (s *Service) captureChange(ctx context.Context, tx *sqlx.Tx, op outbox.Operation, oldJob, newJob *model.CatalogingJob) error {
	if !s.appMode {
		return nil
	}
	ev, ok := s.capture.Event(op, outbox.JobImage(oldJob), outbox.JobImage(newJob))
	if !ok {
		return nil
	}
	if err := s.events.Insert(ctx, tx, ev); err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
