package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/metrics"
	"github.com/poiesic/placefinder/places"
	"github.com/poiesic/placefinder/storage"
)

// ResolutionKind says how a candidate relates to the local catalog.
type ResolutionKind int

const (
	// ResolutionNew means no record carries the candidate's external id.
	ResolutionNew ResolutionKind = iota + 1
	// ResolutionExisting means an approved record already represents the place.
	ResolutionExisting
	// ResolutionUnapproved means a pending or rejected record exists. It is
	// shown provisionally and never recreated.
	ResolutionUnapproved
)

func (k ResolutionKind) String() string {
	switch k {
	case ResolutionNew:
		return "new"
	case ResolutionExisting:
		return "existing"
	case ResolutionUnapproved:
		return "unapproved"
	}
	return fmt.Sprintf("ResolutionKind(%d)", int(k))
}

// Resolution pairs a candidate with its catalog record, if any.
type Resolution struct {
	Candidate core.ExternalCandidate
	Kind      ResolutionKind
	Record    *core.CatalogRecord
}

// Deduplicator maps provider candidates onto catalog records.
type Deduplicator struct {
	catalog storage.CatalogRepository
	locks   keyedMutex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// DedupeOption configures a Deduplicator.
type DedupeOption func(*Deduplicator) error

// WithDedupeLogger sets a custom logger.
func WithDedupeLogger(logger *slog.Logger) DedupeOption {
	return func(d *Deduplicator) error {
		if logger == nil {
			logger = slog.Default()
		}
		d.logger = logger
		return nil
	}
}

// WithDedupeMetrics reports record creations to m.
func WithDedupeMetrics(m *metrics.Metrics) DedupeOption {
	return func(d *Deduplicator) error {
		d.metrics = m
		return nil
	}
}

// NewDeduplicator creates a deduplicator over catalog.
func NewDeduplicator(catalog storage.CatalogRepository, opts ...DedupeOption) (*Deduplicator, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	d := &Deduplicator{
		catalog: catalog,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "deduplicator")
	return d, nil
}

// Resolve classifies candidates against the catalog with one batched lookup.
// The result has one entry per candidate, in input order.
func (d *Deduplicator) Resolve(ctx context.Context, candidates []core.ExternalCandidate) ([]Resolution, error) {
	if len(candidates) == 0 {
		return []Resolution{}, nil
	}

	ids := make([]string, 0, len(candidates))
	for i := range candidates {
		if candidates[i].ExternalId != "" {
			ids = append(ids, candidates[i].ExternalId)
		}
	}

	known, err := d.catalog.FindByExternalIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("resolving candidates: %w", err)
	}

	resolutions := make([]Resolution, len(candidates))
	for i, candidate := range candidates {
		res := Resolution{Candidate: candidate, Kind: ResolutionNew}
		if record, ok := known[candidate.ExternalId]; ok && candidate.ExternalId != "" {
			res.Record = record
			if record.Status == core.RecordStatusApproved {
				res.Kind = ResolutionExisting
			} else {
				res.Kind = ResolutionUnapproved
			}
		}
		resolutions[i] = res
	}

	d.logger.Debug("resolved candidates", "count", len(candidates), "known", len(known))
	return resolutions, nil
}

// Create returns the record for candidate, creating it when none exists.
// The boolean reports whether this call created it. Concurrent calls for
// one external id are serialized, so exactly one of them creates.
func (d *Deduplicator) Create(ctx context.Context, candidate core.ExternalCandidate, contextID string) (*core.CatalogRecord, bool, error) {
	if err := core.ValidateCandidate(&candidate); err != nil {
		return nil, false, err
	}

	unlock := d.locks.lock(candidate.ExternalId)
	defer unlock()

	existing, err := d.catalog.FindByExternalID(ctx, candidate.ExternalId)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}

	record, created, err := d.catalog.CreateFromExternal(ctx, RecordFromCandidate(candidate, contextID))
	if err != nil {
		return nil, false, fmt.Errorf("creating record for %s: %w", candidate.ExternalId, err)
	}
	if created {
		d.metrics.RecordCreated()
		d.logger.Info("created catalog record", "id", record.Id, "external_id", record.ExternalId, "name", record.Name)
	}
	return record, created, nil
}

// RecordFromCandidate builds the pending record a candidate becomes.
func RecordFromCandidate(candidate core.ExternalCandidate, contextID string) *core.CatalogRecord {
	description := strings.TrimSpace(candidate.Summary)
	if description == "" {
		description = GenerateDescription(candidate)
	}

	var location *core.Coordinates
	if candidate.Location != nil {
		loc := *candidate.Location
		location = &loc
	}

	return &core.CatalogRecord{
		ExternalId:     candidate.ExternalId,
		Name:           candidate.Name,
		Address:        candidate.Address,
		Description:    description,
		Location:       location,
		Types:          append([]string(nil), candidate.Types...),
		PrimaryType:    candidate.PrimaryType,
		Rating:         candidate.Rating,
		RatingsTotal:   candidate.RatingsTotal,
		PhotoURL:       candidate.PhotoURL,
		ContextId:      contextID,
		Source:         core.SourceExternal,
		Status:         core.RecordStatusPending,
		Classification: core.ClassificationPending,
	}
}

const maxDescriptionTypes = 3

// GenerateDescription writes a one-sentence description from the
// candidate's type tags, e.g. "Brew Lab is a Cafe, Food located at 1 Main St."
// It returns "" when the candidate has no specific types.
func GenerateDescription(candidate core.ExternalCandidate) string {
	labels := make([]string, 0, maxDescriptionTypes)
	for _, t := range candidate.Types {
		if places.IsGenericType(t) {
			continue
		}
		labels = append(labels, typeLabel(t))
		if len(labels) == maxDescriptionTypes {
			break
		}
	}
	if len(labels) == 0 {
		return ""
	}

	where := "in the area"
	if candidate.Address != "" {
		where = "at " + strings.TrimSpace(strings.SplitN(candidate.Address, ",", 2)[0])
	}
	return fmt.Sprintf("%s is a %s located %s.", candidate.Name, strings.Join(labels, ", "), where)
}

// typeLabel turns "meal_takeaway" into "Meal Takeaway".
func typeLabel(t string) string {
	words := strings.Fields(strings.ReplaceAll(t, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// keyedMutex serializes work per key without holding a lock per key forever.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
