package model

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a tenant. Every outbox event, cursor and push channel is
// scoped to exactly one organization. API access is authenticated by the
// organization's key; a NULL key means the tenant has no API access.
type Organization struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	APIKey       *string   `db:"api_key" json:"-"`
	RateLimitRPS *int      `db:"rate_limit_rps" json:"rate_limit_rps,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}
