package storage

import (
	"context"

	"github.com/poiesic/placefinder/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// Close releases resources held by the repository.
	Close() error
}

// RecordQuery selects catalog records. Zero-valued fields do not filter.
type RecordQuery struct {
	Bounds         *core.BoundingBox
	Statuses       []core.RecordStatus
	Sources        []core.Source
	Classification []core.ClassificationStatus
	Limit          int
}

// ClassificationUpdate carries the result of a classification attempt.
// Nil fields leave the stored value unchanged.
type ClassificationUpdate struct {
	Status     core.ClassificationStatus
	Category   *string
	Confidence *float64
}

// CatalogRepository provides operations for the local place catalog.
type CatalogRepository interface {
	Repository

	// AddRecords stores locally authored records, assigning IDs from a sequence.
	// Records carrying an external id go through the same uniqueness check as
	// CreateFromExternal and fail with ErrDuplicateKey on conflict.
	AddRecords(ctx context.Context, records ...*core.CatalogRecord) ([]*core.CatalogRecord, error)

	// CreateFromExternal inserts record unless a record with the same external
	// id already exists. It returns the stored record and whether it was created.
	// Concurrent callers racing on one external id observe exactly one creation.
	CreateFromExternal(ctx context.Context, record *core.CatalogRecord) (*core.CatalogRecord, bool, error)

	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id core.ID) (*core.CatalogRecord, error)

	// GetRecords retrieves multiple records by their IDs.
	// Returns only the records that exist (no error for missing records).
	GetRecords(ctx context.Context, ids ...core.ID) ([]*core.CatalogRecord, error)

	// FindByExternalID looks a record up by provider id.
	// Returns ErrNotFound if no record carries the id.
	FindByExternalID(ctx context.Context, externalID string) (*core.CatalogRecord, error)

	// FindByExternalIDs resolves many provider ids in one read transaction.
	// The result is keyed by external id and omits unknown ids.
	FindByExternalIDs(ctx context.Context, externalIDs []string) (map[string]*core.CatalogRecord, error)

	// FindRecords returns records matching query ordered by ID.
	FindRecords(ctx context.Context, query RecordQuery) ([]*core.CatalogRecord, error)

	// UpdateStatus sets the moderation status of a record.
	UpdateStatus(ctx context.Context, id core.ID, status core.RecordStatus) error

	// UpdateClassification writes classification status, category and confidence.
	// The status must move forward; see core.ValidateRecordTransition.
	UpdateClassification(ctx context.Context, id core.ID, update ClassificationUpdate) error

	// AssignCategory sets the record category. A non-empty description is
	// written only when the record has none.
	AssignCategory(ctx context.Context, id core.ID, category, description string) error
}

// JobRepository persists classification jobs. Every attempt is stored; the
// attempt with the highest number is the record's current job.
type JobRepository interface {
	Repository

	// SaveJob stores a new attempt for a record. It is accepted only when the
	// current job is terminal and the new attempt number is higher; otherwise
	// ErrDuplicateKey is returned. Earlier attempts are kept unchanged.
	SaveJob(ctx context.Context, job *core.ClassificationJob) error

	// GetJob returns the current job for a record or ErrNotFound.
	GetJob(ctx context.Context, recordID core.ID) (*core.ClassificationJob, error)

	// TransitionJob moves the current job forward, recording errMsg on failure.
	// Backward moves fail with core.ErrInvalidTransition.
	TransitionJob(ctx context.Context, recordID core.ID, next core.ClassificationStatus, errMsg string) (*core.ClassificationJob, error)

	// ListJobs returns current jobs in any of the given statuses (all current
	// jobs when none are given) ordered by enqueue time.
	ListJobs(ctx context.Context, statuses ...core.ClassificationStatus) ([]*core.ClassificationJob, error)

	// ListAttempts returns every stored attempt for a record, oldest first.
	ListAttempts(ctx context.Context, recordID core.ID) ([]*core.ClassificationJob, error)
}
