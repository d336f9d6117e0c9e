package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

// JobsRepository defines persistence for the cataloging_jobs table.
type JobsRepository interface {
	Insert(ctx context.Context, tx *sqlx.Tx, j *model.CatalogingJob) error
	Get(ctx context.Context, id string) (*model.CatalogingJob, error)
	// GetForUpdate locks the row for the duration of tx.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.CatalogingJob, error)
	Update(ctx context.Context, tx *sqlx.Tx, j *model.CatalogingJob) error
	Delete(ctx context.Context, tx *sqlx.Tx, id string) error
	ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]model.CatalogingJob, error)
}

type JobsRepositoryImpl struct {
	db *sqlx.DB
}

func NewJobsRepository(db *sqlx.DB) *JobsRepositoryImpl {
	return &JobsRepositoryImpl{db: db}
}

var _ JobsRepository = (*JobsRepositoryImpl)(nil)

func (r *JobsRepositoryImpl) withTx(ctx context.Context, tx *sqlx.Tx, fn func(*sqlx.Tx) error) error {
	if tx != nil {
		return fn(tx)
	}
	t, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = t.Rollback() }()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

const jobColumns = `id, organization_id, title, source_type, status, item_count,
	error_detail, completed_at, finalized_at, created_at, updated_at`

func (r *JobsRepositoryImpl) Insert(ctx context.Context, tx *sqlx.Tx, j *model.CatalogingJob) error {
	const q = `
		INSERT INTO cataloging_jobs
		    (id, organization_id, title, source_type, status, item_count)
		VALUES
		    ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, q,
			j.ID, j.OrgID, j.Title, j.SourceType.String(), j.Status.String(), j.ItemCount,
		).Scan(&j.CreatedAt, &j.UpdatedAt)
	})
}

func (r *JobsRepositoryImpl) Get(ctx context.Context, id string) (*model.CatalogingJob, error) {
	var j model.CatalogingJob
	err := r.db.GetContext(ctx, &j, `SELECT `+jobColumns+` FROM cataloging_jobs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobsRepositoryImpl) GetForUpdate(ctx context.Context, tx *sqlx.Tx, id string) (*model.CatalogingJob, error) {
	var j model.CatalogingJob
	err := tx.GetContext(ctx, &j, `SELECT `+jobColumns+` FROM cataloging_jobs WHERE id = $1 FOR UPDATE`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *JobsRepositoryImpl) Update(ctx context.Context, tx *sqlx.Tx, j *model.CatalogingJob) error {
	const q = `
		UPDATE cataloging_jobs
		   SET title = $2, status = $3, item_count = $4, error_detail = $5,
		       completed_at = $6, finalized_at = $7, updated_at = now()
		 WHERE id = $1
	`
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, q,
			j.ID, j.Title, j.Status.String(), j.ItemCount, j.ErrorDetail,
			j.CompletedAt, j.FinalizedAt,
		)
		return err
	})
}

func (r *JobsRepositoryImpl) Delete(ctx context.Context, tx *sqlx.Tx, id string) error {
	return r.withTx(ctx, tx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `DELETE FROM cataloging_jobs WHERE id = $1`, id)
		return err
	})
}

func (r *JobsRepositoryImpl) ListByOrg(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]model.CatalogingJob, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	const q = `
		SELECT ` + jobColumns + `
		  FROM cataloging_jobs
		 WHERE organization_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3
	`
	var jobs []model.CatalogingJob
	if err := r.db.SelectContext(ctx, &jobs, q, orgID, limit, offset); err != nil {
		return nil, err
	}
	return jobs, nil
}
