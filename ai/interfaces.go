package ai

import (
	"context"

	"github.com/poiesic/placefinder/core"
)

// Classifier assigns a catalog category to a place.
// Implementations must be thread-safe for concurrent use.
type Classifier interface {
	// Classify asks the model which category a place belongs to.
	// A transport or parse failure is returned as an error. A model that
	// answers but cannot decide returns a Classification with Success false.
	Classify(ctx context.Context, place PlaceData) (*Classification, error)
}

// PlaceData is what a classifier gets to see about a place.
type PlaceData struct {
	Name        string
	Address     string
	Description string
	Types       []string
	PrimaryType string
}

// PlaceDataFromRecord extracts classifier input from a catalog record.
func PlaceDataFromRecord(record *core.CatalogRecord) PlaceData {
	return PlaceData{
		Name:        record.Name,
		Address:     record.Address,
		Description: record.Description,
		Types:       record.Types,
		PrimaryType: record.PrimaryType,
	}
}

// Classification is a classifier's verdict on one place.
type Classification struct {
	Success bool

	// Category is the raw category the model answered with. Use
	// NormalizeCategory before storing it as a catalog category.
	Category string

	// Confidence is in [0, 1].
	Confidence float64

	// Description is an optional one-sentence summary of the place.
	Description string

	// Error explains an unsuccessful classification.
	Error string
}

// Provider aggregates AI services for convenient initialization and lifecycle management.
type Provider interface {
	// Classifier returns the place classification service.
	// The returned Classifier is safe for concurrent use.
	Classifier() Classifier

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
