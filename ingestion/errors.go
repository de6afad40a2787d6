package ingestion

import "errors"

var (
	// ErrCatalogRequired is returned when a catalog repository is not provided.
	ErrCatalogRequired = errors.New("catalog repository required")

	// ErrDeduplicatorRequired is returned when a deduplicator is not provided.
	ErrDeduplicatorRequired = errors.New("deduplicator required")

	// ErrInvalidBatchSize is returned for a non-positive enrichment batch size.
	ErrInvalidBatchSize = errors.New("batch size must be positive")
)
