package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shelfwise/catalog-notifier/internal/model"
)

type OrgsRepository interface {
	Upsert(ctx context.Context, org *model.Organization) error
	Get(ctx context.Context, id uuid.UUID) (*model.Organization, error)
	GetByAPIKey(ctx context.Context, key string) (*model.Organization, error)
	List(ctx context.Context) ([]model.Organization, error)
}

type OrgsRepositoryImpl struct {
	db *sqlx.DB
}

func NewOrgsRepository(db *sqlx.DB) *OrgsRepositoryImpl {
	return &OrgsRepositoryImpl{db: db}
}

var _ OrgsRepository = (*OrgsRepositoryImpl)(nil)

func (r *OrgsRepositoryImpl) Upsert(ctx context.Context, org *model.Organization) error {
	const q = `
		INSERT INTO organizations (id, name, api_key, rate_limit_rps)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			api_key = EXCLUDED.api_key,
			rate_limit_rps = EXCLUDED.rate_limit_rps
	`
	_, err := r.db.ExecContext(ctx, q, org.ID, org.Name, org.APIKey, org.RateLimitRPS)
	return err
}

func (r *OrgsRepositoryImpl) Get(ctx context.Context, id uuid.UUID) (*model.Organization, error) {
	var org model.Organization
	err := r.db.GetContext(ctx, &org,
		`SELECT id, name, api_key, rate_limit_rps, created_at FROM organizations WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *OrgsRepositoryImpl) GetByAPIKey(ctx context.Context, key string) (*model.Organization, error) {
	var org model.Organization
	err := r.db.GetContext(ctx, &org,
		`SELECT id, name, api_key, rate_limit_rps, created_at FROM organizations WHERE api_key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *OrgsRepositoryImpl) List(ctx context.Context) ([]model.Organization, error) {
	var orgs []model.Organization
	if err := r.db.SelectContext(ctx, &orgs,
		`SELECT id, name, api_key, rate_limit_rps, created_at FROM organizations ORDER BY name`); err != nil {
		return nil, err
	}
	return orgs, nil
}
