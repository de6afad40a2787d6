package search

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/geo"
	"github.com/poiesic/placefinder/ingestion"
	"github.com/poiesic/placefinder/metrics"
	"github.com/poiesic/placefinder/places"
	"github.com/poiesic/placefinder/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// updateBuffer lets the local and external updates go out without waiting
// for the consumer.
const updateBuffer = 2

// ExternalSource searches the geo-search provider.
type ExternalSource interface {
	TextSearch(ctx context.Context, query string, center core.Coordinates, radiusMeters float64, placeType string) ([]core.ExternalCandidate, error)
	NearbySearch(ctx context.Context, center core.Coordinates, radiusMeters float64, placeType string) ([]core.ExternalCandidate, error)
}

// Resolver matches provider candidates against the catalog.
type Resolver interface {
	Resolve(ctx context.Context, candidates []core.ExternalCandidate) ([]ingestion.Resolution, error)
}

// Enricher turns candidates into catalog records batch by batch.
type Enricher interface {
	Enrich(ctx context.Context, candidates []core.ExternalCandidate, contextID string) <-chan ingestion.Batch
}

// ClassificationQueue receives newly created records.
type ClassificationQueue interface {
	Enqueue(ctx context.Context, ids ...core.ID) error
	Start() bool
}

// Coordinator runs progressive searches. Only the most recent search
// delivers updates; starting another supersedes it.
type Coordinator struct {
	catalog    storage.CatalogRepository
	external   ExternalSource
	resolver   Resolver
	enricher   Enricher
	queue      ClassificationQueue
	minScore   int
	monitor    SearchMonitor
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	background *sync.WaitGroup
	generation atomic.Uint64

	mu      sync.Mutex
	current *session
}

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithExternalSource enables provider searches. Candidates are resolved
// against the catalog by resolver and turned into records by enricher.
func WithExternalSource(source ExternalSource, resolver Resolver, enricher Enricher) Option {
	return func(c *Coordinator) error {
		if source == nil {
			return nil
		}
		if resolver == nil || enricher == nil {
			return ErrIncompleteExternal
		}
		c.external = source
		c.resolver = resolver
		c.enricher = enricher
		return nil
	}
}

// WithBackgroundGroup tracks every search, including enrichment that
// continues after its stream closes, in wg. Owners wait on wg before
// releasing the collaborators the coordinator uses.
func WithBackgroundGroup(wg *sync.WaitGroup) Option {
	return func(c *Coordinator) error {
		if wg != nil {
			c.background = wg
		}
		return nil
	}
}

// WithClassificationQueue sends records created by searches to queue.
func WithClassificationQueue(queue ClassificationQueue) Option {
	return func(c *Coordinator) error {
		c.queue = queue
		return nil
	}
}

// WithMinScore sets the relevance cutoff. Default is DefaultMinScore.
func WithMinScore(score int) Option {
	return func(c *Coordinator) error {
		if score < 0 || score > MaxScore {
			return fmt.Errorf("%w: %d", ErrInvalidMinScore, score)
		}
		c.minScore = score
		return nil
	}
}

// WithMonitor installs hooks that observe every search.
func WithMonitor(monitor SearchMonitor) Option {
	return func(c *Coordinator) error {
		if monitor == nil {
			monitor = &noopMonitor{}
		}
		c.monitor = monitor
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics reports update counts to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) error {
		c.metrics = m
		return nil
	}
}

// NewCoordinator creates a coordinator over catalog. Without
// WithExternalSource it only searches the catalog.
func NewCoordinator(catalog storage.CatalogRepository, opts ...Option) (*Coordinator, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}

	c := &Coordinator{
		catalog:    catalog,
		minScore:   DefaultMinScore,
		monitor:    &noopMonitor{},
		logger:     slog.Default(),
		tracer:     otel.Tracer("github.com/poiesic/placefinder/search"),
		background: &sync.WaitGroup{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	c.logger = c.logger.With("component", "search")
	return c, nil
}

// Generation returns the generation of the most recent search.
func (c *Coordinator) Generation() uint64 {
	return c.generation.Load()
}

// Search starts a search and returns its update stream. The stream closes
// after the Final update, when ctx is cancelled, or when a newer search
// supersedes this one; once a newer Search call returns, the older stream
// receives no further updates. Enrichment and classification started by the
// search continue after the stream closes.
func (c *Coordinator) Search(ctx context.Context, req Request) (<-chan Update, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	s := c.begin(req)
	c.background.Add(1)
	go c.run(ctx, s)
	return s.out, nil
}

// Wait blocks until every search started by this coordinator, including
// detached enrichment, has finished or ctx is done.
func (c *Coordinator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.background.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// begin registers a new session as the current generation and supersedes
// the previous one.
func (c *Coordinator) begin(req Request) *session {
	s := &session{
		coord:      c,
		req:        req,
		id:         uuid.NewString(),
		out:        make(chan Update, updateBuffer),
		superseded: make(chan struct{}),
	}

	c.mu.Lock()
	s.gen = c.generation.Add(1)
	prev := c.current
	c.current = s
	c.mu.Unlock()

	if prev != nil {
		prev.supersede()
	}
	return s
}

// session is the state of one search.
type session struct {
	coord *Coordinator
	req   Request
	id    string
	gen   uint64
	out   chan Update

	// superseded is closed when a newer search starts. It releases an emit
	// blocked on a slow consumer.
	superseded chan struct{}
	once       sync.Once

	// mu serializes emit with supersede.
	mu    sync.Mutex
	stale bool
	// closed is set once updates can no longer be delivered.
	closed bool
}

// supersede marks the session stale. On return no emit is in progress and
// none will deliver again.
func (s *session) supersede() {
	s.once.Do(func() { close(s.superseded) })
	s.mu.Lock()
	s.stale = true
	s.mu.Unlock()
}

// emit delivers u unless the search was superseded or abandoned. It reports
// whether the consumer can still receive updates.
func (s *session) emit(ctx context.Context, u Update) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if s.stale || s.coord.generation.Load() != s.gen {
		s.dropStale(u)
		return false
	}

	c := s.coord
	u.Generation = s.gen
	u.SearchID = s.id
	select {
	case s.out <- u:
		c.metrics.SearchUpdate(u.Phase.String())
		if u.Final {
			c.monitor.Finish(u.Results)
		}
		return true
	case <-s.superseded:
		s.dropStale(u)
		return false
	case <-ctx.Done():
		s.closed = true
		return false
	}
}

// dropStale closes the session for a superseded search. Must be called with
// s.mu held.
func (s *session) dropStale(u Update) {
	c := s.coord
	s.closed = true
	c.metrics.StaleDropped()
	c.monitor.Superseded(s.gen)
	c.logger.Debug("dropping stale update", "search_id", s.id, "generation", s.gen, "phase", u.Phase)
}

type externalResult struct {
	candidates []core.ExternalCandidate
	err        error
}

func (c *Coordinator) run(ctx context.Context, s *session) {
	defer c.background.Done()
	defer close(s.out)

	ctx, span := c.tracer.Start(ctx, "search.Search", trace.WithAttributes(
		attribute.String("search.id", s.id),
		attribute.Int64("search.generation", int64(s.gen)),
		attribute.String("search.category", s.req.Category),
	))
	defer span.End()
	c.monitor.Start(s.id, s.req)

	// The provider query runs while the catalog is read.
	var external chan externalResult
	if c.external != nil && s.req.Center != nil {
		external = make(chan externalResult, 1)
		go func() {
			candidates, err := c.searchExternal(ctx, s.req)
			external <- externalResult{candidates: candidates, err: err}
		}()
	}

	local, err := c.searchLocal(ctx, s.req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "local search failed")
		c.logger.Error("local search failed", "search_id", s.id, "err", err)
		s.emit(ctx, Update{Phase: PhaseLocal, Err: err, Final: true})
		return
	}
	c.monitor.AfterLocalSearch(local)
	span.SetAttributes(attribute.Int("search.local_results", len(local)))

	if !s.emit(ctx, Update{Phase: PhaseLocal, Results: local, Final: external == nil}) || external == nil {
		return
	}

	var res externalResult
	select {
	case res = <-external:
	case <-ctx.Done():
		return
	}
	c.monitor.AfterExternalSearch(len(res.candidates), res.err)
	if res.err != nil {
		span.RecordError(res.err)
		c.logger.Warn("external search failed", "search_id", s.id, "kind", places.KindOf(res.err), "err", res.err)
		s.emit(ctx, Update{Phase: PhaseExternal, Results: local, Err: res.err, Final: true})
		return
	}

	visible, fresh, err := c.merge(ctx, s.req, local, res.candidates)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("resolving candidates failed", "search_id", s.id, "err", err)
		s.emit(ctx, Update{Phase: PhaseExternal, Results: local, Err: err, Final: true})
		return
	}
	span.SetAttributes(attribute.Int("search.new_candidates", len(fresh)))

	// Enrichment outlives the consumer and the request context.
	var batches <-chan ingestion.Batch
	detached := context.WithoutCancel(ctx)
	if len(fresh) > 0 {
		batches = c.enricher.Enrich(detached, fresh, s.req.ContextID)
	}

	if !s.emit(ctx, Update{Phase: PhaseExternal, Results: slices.Clone(visible), Final: batches == nil}) {
		if batches != nil {
			c.background.Add(1)
			go c.drain(detached, batches)
		}
		return
	}
	if batches == nil {
		return
	}

	for batch := range batches {
		c.afterBatch(detached, batch)
		visible = applyBatch(visible, batch, s.req.Query)
		final := batch.Index == batch.Total-1
		if !s.emit(ctx, Update{Phase: PhaseEnriched, Results: slices.Clone(visible), Final: final}) {
			c.background.Add(1)
			go c.drain(detached, batches)
			return
		}
	}
}

// searchLocal returns approved catalog records matching req, best first.
func (c *Coordinator) searchLocal(ctx context.Context, req Request) ([]Result, error) {
	ctx, span := c.tracer.Start(ctx, "search.local")
	defer span.End()

	query := storage.RecordQuery{Statuses: []core.RecordStatus{core.RecordStatusApproved}}
	radiusMiles, bounded := req.radiusMiles()
	if req.Center != nil && bounded {
		box := geo.BoundingBoxFor(*req.Center, radiusMiles)
		query.Bounds = &box
	}

	records, err := c.catalog.FindRecords(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "catalog query failed")
		return nil, fmt.Errorf("querying catalog: %w", err)
	}
	records = slices.DeleteFunc(records, func(r *core.CatalogRecord) bool {
		return !r.InCategory(req.Category)
	})

	var results []Result
	switch {
	case req.Center != nil && bounded:
		for _, hit := range geo.FilterByRadius(records, *req.Center, radiusMiles) {
			results = append(results, Result{Record: hit.Item, DistanceMiles: hit.DistanceMiles, HasDistance: true})
		}
	case req.Center != nil:
		distances, ok := geo.Annotate(records, *req.Center)
		for i, r := range records {
			results = append(results, Result{Record: r, DistanceMiles: distances[i], HasDistance: ok[i]})
		}
	default:
		for _, r := range records {
			results = append(results, Result{Record: r})
		}
	}

	ranked := c.rank(results, req.Query)
	span.SetAttributes(attribute.Int("search.results", len(ranked)))
	return ranked, nil
}

// searchExternal asks the provider for candidates around req.Center.
func (c *Coordinator) searchExternal(ctx context.Context, req Request) ([]core.ExternalCandidate, error) {
	ctx, span := c.tracer.Start(ctx, "search.external")
	defer span.End()

	radius := geo.MilesToMeters(geo.AnyDistanceRadiusMiles)
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
	}
	placeType := places.CategoryToType(req.Category)

	var (
		candidates []core.ExternalCandidate
		err        error
	)
	if query := strings.TrimSpace(req.Query); query != "" {
		candidates, err = c.external.TextSearch(ctx, query, *req.Center, radius, placeType)
	} else {
		candidates, err = c.external.NearbySearch(ctx, *req.Center, radius, placeType)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, places.KindOf(err).String())
		return nil, err
	}
	span.SetAttributes(attribute.Int("search.candidates", len(candidates)))
	return candidates, nil
}

// merge filters candidates, resolves them against the catalog and returns
// the new visible set together with the candidates that need records.
func (c *Coordinator) merge(ctx context.Context, req Request, local []Result, candidates []core.ExternalCandidate) ([]Result, []core.ExternalCandidate, error) {
	hits := make([]Result, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for i := range candidates {
		candidate := &candidates[i]
		if candidate.ExternalId == "" || seen[candidate.ExternalId] {
			continue
		}
		seen[candidate.ExternalId] = true
		hits = append(hits, Result{Candidate: candidate, Provisional: true})
	}
	hits = locate(hits, req)
	hits = c.rank(hits, req.Query)

	found := make([]core.ExternalCandidate, len(hits))
	for i, hit := range hits {
		found[i] = *hit.Candidate
	}
	resolutions, err := c.resolver.Resolve(ctx, found)
	if err != nil {
		return nil, nil, err
	}
	c.monitor.AfterResolve(resolutions)

	shown := make(map[core.ID]bool, len(local))
	for _, r := range local {
		shown[r.Record.Id] = true
	}

	visible := slices.Clone(local)
	var fresh []core.ExternalCandidate
	for i, res := range resolutions {
		hit := hits[i]
		switch res.Kind {
		case ingestion.ResolutionNew:
			visible = append(visible, hit)
			fresh = append(fresh, res.Candidate)
		default:
			if shown[res.Record.Id] || !categoryAllows(res.Record, req.Category) {
				continue
			}
			shown[res.Record.Id] = true
			hit.Record = res.Record
			hit.Candidate = nil
			hit.Provisional = res.Kind != ingestion.ResolutionExisting
			hit.Score = max(hit.Score, Score(res.Record.Searchable(), req.Query))
			visible = append(visible, hit)
		}
	}

	sortResults(visible)
	return visible, fresh, nil
}

// categoryAllows applies the category filter to a record matched by the
// provider. Records not categorized yet stay visible: the provider type
// filter already selected them.
func categoryAllows(r *core.CatalogRecord, category string) bool {
	if r.Category == "" && r.ClassifiedCategory == "" {
		return true
	}
	return r.InCategory(category)
}

// locate annotates candidate results with distances and applies the radius.
func locate(hits []Result, req Request) []Result {
	if req.Center == nil {
		return hits
	}
	radiusMiles, bounded := req.radiusMiles()
	out := hits[:0]
	for _, hit := range hits {
		pos, ok := hit.Candidate.Position()
		if !ok {
			if !bounded {
				out = append(out, hit)
			}
			continue
		}
		d := geo.DistanceMiles(*req.Center, pos)
		if bounded && d > radiusMiles {
			continue
		}
		hit.DistanceMiles = geo.RoundTenth(d)
		hit.HasDistance = true
		out = append(out, hit)
	}
	return out
}

// rank scores results, drops those under the cutoff and sorts the rest.
func (c *Coordinator) rank(results []Result, query string) []Result {
	scored := FilterAndSort(results, query, c.minScore)
	ranked := make([]Result, len(scored))
	for i, s := range scored {
		ranked[i] = s.Item
		ranked[i].Score = s.Score
	}
	sortResults(ranked)
	return ranked
}

// applyBatch returns a copy of visible with provisional candidates replaced
// by the records a batch stored for them. Candidates that failed stay
// visible as provisional. visible itself is not modified: earlier updates
// share it with the consumer.
func applyBatch(visible []Result, batch ingestion.Batch, query string) []Result {
	visible = slices.Clone(visible)
	records := make(map[string]*core.CatalogRecord, len(batch.Entries))
	for _, entry := range batch.Entries {
		records[entry.Candidate.ExternalId] = entry.Record
	}

	for i, r := range visible {
		if r.Candidate == nil {
			continue
		}
		record, ok := records[r.Candidate.ExternalId]
		if !ok || record == nil {
			continue
		}
		visible[i] = Result{
			Record:        record,
			Provisional:   record.Status != core.RecordStatusApproved,
			Score:         max(r.Score, Score(record.Searchable(), query)),
			DistanceMiles: r.DistanceMiles,
			HasDistance:   r.HasDistance,
		}
	}
	sortResults(visible)
	return visible
}

// afterBatch logs failures and hands created records to classification.
func (c *Coordinator) afterBatch(ctx context.Context, batch ingestion.Batch) {
	defer c.monitor.AfterEnrichBatch(batch)
	for _, f := range batch.Failed {
		c.logger.Warn("enrichment failed", "external_id", f.Candidate.ExternalId, "err", f.Err)
	}
	if c.queue == nil {
		return
	}

	var created []core.ID
	for _, entry := range batch.Entries {
		if entry.Created {
			created = append(created, entry.Record.Id)
		}
	}
	if len(created) == 0 {
		return
	}
	if err := c.queue.Enqueue(ctx, created...); err != nil {
		c.logger.Warn("enqueueing classification failed", "count", len(created), "err", err)
	}
	c.queue.Start()
}

// drain finishes the work of a search nobody listens to anymore.
func (c *Coordinator) drain(ctx context.Context, batches <-chan ingestion.Batch) {
	defer c.background.Done()
	for batch := range batches {
		c.afterBatch(ctx, batch)
	}
}
