package classify

import "errors"

var (
	// ErrCatalogRequired is returned when a catalog repository is not provided.
	ErrCatalogRequired = errors.New("catalog repository required")

	// ErrJobRepositoryRequired is returned when a job repository is not provided.
	ErrJobRepositoryRequired = errors.New("job repository required")

	// ErrClassifierRequired is returned when a classifier is not provided.
	ErrClassifierRequired = errors.New("classifier required")

	// ErrInvalidConfig is returned for a non-positive batch size, a negative
	// delay or a threshold outside [0, 1].
	ErrInvalidConfig = errors.New("invalid queue config")

	// ErrNotFailed is returned by Requeue for a job that has not failed.
	ErrNotFailed = errors.New("job has not failed")
)
