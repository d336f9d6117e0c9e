package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

func (s JobStatus) String() string {
	return string(s)
}

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusQueued, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a job may move from s to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	switch s {
	case JobStatusQueued:
		return next == JobStatusProcessing
	case JobStatusProcessing:
		return next == JobStatusCompleted || next == JobStatusFailed
	default:
		return false
	}
}

type JobSource string

const (
	SourceISBNLookup JobSource = "isbn_lookup"
	SourceCSVImport  JobSource = "csv_import"
	SourceManual     JobSource = "manual"
)

func (t JobSource) String() string { return string(t) }

// ParseJobSource normalizes input; empty => manual.
// Returns (value, true) if valid; otherwise (manual, false).
func ParseJobSource(s string) (JobSource, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "manual":
		return SourceManual, true
	case "isbn_lookup":
		return SourceISBNLookup, true
	case "csv_import":
		return SourceCSVImport, true
	default:
		return SourceManual, false
	}
}

func (t JobSource) Valid() bool {
	return t == SourceISBNLookup || t == SourceCSVImport || t == SourceManual
}

// CatalogingJob is the DB entity persisted in cataloging_jobs, the watched
// table whose row changes feed the outbox.
type CatalogingJob struct {
	ID          string     `db:"id" json:"id"` // ULID
	OrgID       uuid.UUID  `db:"organization_id" json:"organization_id"`
	Title       string     `db:"title" json:"title"`
	SourceType  JobSource  `db:"source_type" json:"source_type"` // isbn_lookup|csv_import|manual
	Status      JobStatus  `db:"status" json:"status"`
	ItemCount   int        `db:"item_count" json:"item_count"`
	ErrorDetail *string    `db:"error_detail" json:"error_detail,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	FinalizedAt *time.Time `db:"finalized_at" json:"finalized_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
