package ingestion

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/metrics"
)

// DefaultBatchSize is how many candidates are enriched concurrently.
const DefaultBatchSize = 3

// DetailsFetcher looks up the full description of a place.
// A nil result with no error means the provider had nothing more.
type DetailsFetcher interface {
	Details(ctx context.Context, externalID string) (*core.ExternalCandidate, error)
}

// Entry is one enriched candidate and the record that now represents it.
type Entry struct {
	Candidate core.ExternalCandidate
	Record    *core.CatalogRecord
	Created   bool
}

// Failure is a candidate that could not be turned into a record.
type Failure struct {
	Candidate core.ExternalCandidate
	Err       error
}

// Batch reports one finished enrichment batch.
type Batch struct {
	Index   int
	Total   int
	Entries []Entry
	Failed  []Failure
}

// Pipeline enriches candidates and persists them as catalog records.
// It is safe for concurrent use; all calls share one worker pool.
type Pipeline struct {
	dedupe    *Deduplicator
	details   DetailsFetcher
	pool      *ants.Pool
	batchSize int
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size shared by all enrichment calls.
// Default is runtime.NumCPU() / 2, and never less than the batch size.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithBatchSize sets how many candidates are enriched per batch.
func WithBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			return ErrInvalidBatchSize
		}
		p.batchSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithMetrics reports enrichment failures to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) error {
		p.metrics = m
		return nil
	}
}

// NewPipeline creates an enrichment pipeline. details may be nil, in which
// case records are built from the basic search fields only.
func NewPipeline(dedupe *Deduplicator, details DetailsFetcher, opts ...Option) (*Pipeline, error) {
	if dedupe == nil {
		return nil, ErrDeduplicatorRequired
	}

	p := &Pipeline{
		dedupe:    dedupe,
		details:   details,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if err := opt(p); err != nil {
			p.Release()
			return nil, err
		}
	}

	if p.pool == nil {
		poolSize := max(runtime.NumCPU()/2, p.batchSize)
		pool, err := ants.NewPool(poolSize)
		if err != nil {
			return nil, err
		}
		p.pool = pool
	}

	p.logger = p.logger.With("component", "enrichment")
	return p, nil
}

// Enrich processes candidates in batches and sends one Batch per finished
// batch, in submission order. The channel is buffered for every batch, so
// work completes even if the receiver stops reading, and it is closed when
// all batches are done. Pass a context detached from the caller to let
// enrichment outlive the request.
func (p *Pipeline) Enrich(ctx context.Context, candidates []core.ExternalCandidate, contextID string) <-chan Batch {
	numBatches := (len(candidates) + p.batchSize - 1) / p.batchSize
	out := make(chan Batch, numBatches)

	go func() {
		defer close(out)
		for index := range numBatches {
			start := index * p.batchSize
			end := min(start+p.batchSize, len(candidates))
			batch := p.runBatch(ctx, index, candidates[start:end], contextID)
			batch.Total = numBatches
			out <- batch
		}
	}()

	return out
}

// runBatch enriches one batch concurrently and waits for all of it.
func (p *Pipeline) runBatch(ctx context.Context, index int, batch []core.ExternalCandidate, contextID string) Batch {
	entries := make([]Entry, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i := range batch {
		wg.Add(1)
		submitErr := p.pool.Submit(func() {
			defer wg.Done()
			entries[i], errs[i] = p.enrichOne(ctx, batch[i], contextID)
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	result := Batch{Index: index, Entries: make([]Entry, 0, len(batch))}
	for i := range batch {
		if errs[i] != nil {
			p.metrics.EnrichmentFailed()
			p.logger.Warn("enrichment failed", "external_id", batch[i].ExternalId, "name", batch[i].Name, "err", errs[i])
			result.Failed = append(result.Failed, Failure{Candidate: batch[i], Err: errs[i]})
			continue
		}
		result.Entries = append(result.Entries, entries[i])
	}
	p.logger.Debug("enrichment batch done", "batch", index, "ok", len(result.Entries), "failed", len(result.Failed))
	return result
}

// enrichOne merges details into candidate, falling back to the basic fields
// when the lookup fails, and creates its record.
func (p *Pipeline) enrichOne(ctx context.Context, candidate core.ExternalCandidate, contextID string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}

	if p.details != nil && !candidate.Detailed {
		details, err := p.details.Details(ctx, candidate.ExternalId)
		if err != nil {
			p.logger.Warn("details lookup failed, using search fields", "external_id", candidate.ExternalId, "err", err)
		} else {
			candidate = candidate.Merge(details)
		}
	}

	record, created, err := p.dedupe.Create(ctx, candidate, contextID)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Candidate: candidate, Record: record, Created: created}, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
