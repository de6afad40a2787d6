package core

import (
	"encoding/binary"
	"strings"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for catalog entities.
// It is generated using content-based hashing or database sequences.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Coordinates is a WGS84 latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64
	Lng float64
}

// BoundingBox is an axis-aligned latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// Contains reports whether c lies inside the box, edges included.
func (b BoundingBox) Contains(c Coordinates) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat &&
		c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}

// CatalogRecord is a place persisted in the local catalog.
// Records are never deleted automatically.
type CatalogRecord struct {
	Id                       ID
	ExternalId               string // provider id; unique across the catalog when set
	Name                     string
	Address                  string
	Description              string
	Location                 *Coordinates
	Category                 string
	Types                    []string
	PrimaryType              string
	Rating                   float64
	RatingsTotal             int
	PhotoURL                 string
	ContextId                string // campus the record was discovered from
	Source                   Source
	Status                   RecordStatus
	Classification           ClassificationStatus
	ClassifiedCategory       string
	ClassificationConfidence float64
	InsertedAt               time.Time
	UpdatedAt                time.Time
}

// Position implements geo.Locatable.
func (r *CatalogRecord) Position() (Coordinates, bool) {
	if r == nil || r.Location == nil {
		return Coordinates{}, false
	}
	return *r.Location, true
}

// Searchable returns the text fields used for relevance scoring.
func (r *CatalogRecord) Searchable() Searchable {
	category := r.Category
	if category == "" {
		category = r.ClassifiedCategory
	}
	return Searchable{
		Name:        r.Name,
		Types:       r.Types,
		PrimaryType: r.PrimaryType,
		Category:    category,
		Description: r.Description,
	}
}

// InCategory reports whether the record belongs to category.
// An empty category or "all" matches everything.
func (r *CatalogRecord) InCategory(category string) bool {
	if category == "" || strings.EqualFold(category, "all") {
		return true
	}
	return strings.EqualFold(r.Category, category) ||
		strings.EqualFold(r.ClassifiedCategory, category)
}

// ExternalCandidate is a place returned by the geo-search provider.
// It is transient and only reaches storage through the catalog's
// create-from-external operation.
type ExternalCandidate struct {
	ExternalId     string
	Name           string
	Address        string
	Location       *Coordinates
	Types          []string
	PrimaryType    string
	Rating         float64
	RatingsTotal   int
	PhotoReference string
	PhotoURL       string

	// Populated only by a details lookup.
	Detailed       bool
	Summary        string
	Phone          string
	Website        string
	BusinessStatus string
}

// Position implements geo.Locatable.
func (c *ExternalCandidate) Position() (Coordinates, bool) {
	if c == nil || c.Location == nil {
		return Coordinates{}, false
	}
	return *c.Location, true
}

// Searchable returns the text fields used for relevance scoring.
func (c *ExternalCandidate) Searchable() Searchable {
	return Searchable{
		Name:        c.Name,
		Types:       c.Types,
		PrimaryType: c.PrimaryType,
		Description: c.Summary,
	}
}

// Merge overlays the non-empty fields of details onto a copy of c.
func (c ExternalCandidate) Merge(details *ExternalCandidate) ExternalCandidate {
	if details == nil {
		return c
	}
	merged := c
	if details.Name != "" {
		merged.Name = details.Name
	}
	if details.Address != "" {
		merged.Address = details.Address
	}
	if details.Location != nil {
		merged.Location = details.Location
	}
	if len(details.Types) > 0 {
		merged.Types = details.Types
	}
	if details.PrimaryType != "" {
		merged.PrimaryType = details.PrimaryType
	}
	if details.Rating != 0 {
		merged.Rating = details.Rating
	}
	if details.RatingsTotal != 0 {
		merged.RatingsTotal = details.RatingsTotal
	}
	if details.PhotoReference != "" {
		merged.PhotoReference = details.PhotoReference
	}
	if details.PhotoURL != "" {
		merged.PhotoURL = details.PhotoURL
	}
	merged.Detailed = details.Detailed
	merged.Summary = details.Summary
	merged.Phone = details.Phone
	merged.Website = details.Website
	merged.BusinessStatus = details.BusinessStatus
	return merged
}

// Searchable holds the text fields a relevance scorer looks at.
type Searchable struct {
	Name        string
	Types       []string
	PrimaryType string
	Category    string
	Description string
}

// ClassificationJob tracks one classification attempt for a record.
type ClassificationJob struct {
	RecordId   ID
	Status     ClassificationStatus
	Attempt    int
	Error      string
	EnqueuedAt time.Time
	UpdatedAt  time.Time
}
