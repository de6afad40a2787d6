// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package placefinder wires the catalog, the provider client, enrichment,
// classification and search into one Engine.
package placefinder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/placefinder/ai"
	"github.com/poiesic/placefinder/ai/openai"
	"github.com/poiesic/placefinder/classify"
	"github.com/poiesic/placefinder/ingestion"
	"github.com/poiesic/placefinder/metrics"
	"github.com/poiesic/placefinder/places"
	"github.com/poiesic/placefinder/search"
	"github.com/poiesic/placefinder/storage"
	"github.com/poiesic/placefinder/storage/badger"
	"github.com/prometheus/client_golang/prometheus"
)

// closeTimeout bounds how long Close waits for searches still enriching and
// for the classification batch in flight.
const closeTimeout = 30 * time.Second

// Engine owns the long-lived components shared by every search: one
// catalog, one provider cache and one classification queue.
type Engine struct {
	backend  *badger.Backend
	catalog  *badger.CatalogRepository
	jobs     *badger.JobRepository
	places   *places.Client
	provider ai.Provider
	dedupe   *ingestion.Deduplicator
	pipeline *ingestion.Pipeline
	queue    *classify.Queue
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// searches tracks every search of every coordinator, including
	// enrichment detached from its consumer.
	searches sync.WaitGroup
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	aiConfig    *ai.Config
	provider    ai.Provider
	inMemory    bool
	placesOpts  []places.Option
	queueConfig classify.Config
	batchSize   int
	registerer  prometheus.Registerer
	logger      *slog.Logger
}

// WithAIConfig sets the classifier service configuration. Its confidence
// threshold also drives the classification queue.
func WithAIConfig(config *ai.Config) EngineOption {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithAIProvider uses provider instead of building one from the AI config.
// The engine takes ownership and closes it.
func WithAIProvider(provider ai.Provider) EngineOption {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps the catalog in memory; the path is ignored.
func WithInMemory() EngineOption {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithPlacesOptions configures the provider client, e.g. places.WithAPIKey.
func WithPlacesOptions(opts ...places.Option) EngineOption {
	return func(o *engineOptions) {
		o.placesOpts = append(o.placesOpts, opts...)
	}
}

// WithClassifyConfig sets the classification batch size and delay. The
// confidence threshold always comes from the AI config.
func WithClassifyConfig(config classify.Config) EngineOption {
	return func(o *engineOptions) {
		o.queueConfig = config
	}
}

// WithEnrichmentBatchSize sets how many candidates are enriched at once.
func WithEnrichmentBatchSize(size int) EngineOption {
	return func(o *engineOptions) {
		o.batchSize = size
	}
}

// WithMetricsRegisterer registers the engine's collectors with reg.
func WithMetricsRegisterer(reg prometheus.Registerer) EngineOption {
	return func(o *engineOptions) {
		o.registerer = reg
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the catalog at filePath and builds every component.
func NewEngine(filePath string, opts ...EngineOption) (*Engine, error) {
	options := &engineOptions{
		aiConfig:    ai.DefaultConfig(),
		queueConfig: classify.DefaultConfig(),
		batchSize:   ingestion.DefaultBatchSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	if options.logger == nil {
		options.logger = slog.Default()
	}
	options.queueConfig.ConfidenceThreshold = options.aiConfig.ConfidenceThreshold

	e := &Engine{
		metrics: metrics.New(options.registerer),
		logger:  options.logger,
	}
	ok := false
	defer func() {
		if !ok {
			e.Close()
		}
	}()

	var err error
	e.backend, err = badger.OpenBackend(filePath, options.inMemory, badger.WithLogger(options.logger))
	if err != nil {
		return nil, err
	}
	if e.catalog, err = badger.NewCatalogRepository(e.backend); err != nil {
		return nil, err
	}
	if e.jobs, err = badger.NewJobRepository(e.backend); err != nil {
		return nil, err
	}

	placesOpts := append([]places.Option{
		places.WithLogger(options.logger),
		places.WithMetrics(e.metrics),
	}, options.placesOpts...)
	if e.places, err = places.NewClient(placesOpts...); err != nil {
		return nil, err
	}

	e.provider = options.provider
	if e.provider == nil {
		if e.provider, err = openai.NewProvider(options.aiConfig); err != nil {
			return nil, err
		}
	}

	e.dedupe, err = ingestion.NewDeduplicator(e.catalog,
		ingestion.WithDedupeLogger(options.logger),
		ingestion.WithDedupeMetrics(e.metrics))
	if err != nil {
		return nil, err
	}
	e.pipeline, err = ingestion.NewPipeline(e.dedupe, e.places,
		ingestion.WithBatchSize(options.batchSize),
		ingestion.WithLogger(options.logger),
		ingestion.WithMetrics(e.metrics))
	if err != nil {
		return nil, err
	}

	e.queue, err = classify.NewQueue(e.catalog, e.jobs, e.provider.Classifier(),
		classify.WithConfig(options.queueConfig),
		classify.WithLogger(options.logger),
		classify.WithMetrics(e.metrics))
	if err != nil {
		return nil, err
	}

	ok = true
	return e, nil
}

// Close stops classification after the batch in flight and releases every
// component. Pending jobs stay persisted for the next Recover.
func (e *Engine) Close() error {
	var errs []error
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	// Enrichment enqueues into the queue and writes the catalog, so it must
	// finish before either is stopped.
	if err := e.waitSearches(ctx); err != nil {
		e.logger.Error("searches still running at close", "err", err)
		errs = append(errs, fmt.Errorf("waiting for searches: %w", err))
	}
	if e.queue != nil {
		if err := e.queue.Stop(ctx); err != nil {
			e.logger.Error("error stopping classification queue", "err", err)
			errs = append(errs, err)
		}
	}
	if e.pipeline != nil {
		e.pipeline.Release()
	}
	if e.places != nil {
		e.places.Close()
	}
	if e.provider != nil {
		if err := e.provider.Close(); err != nil {
			e.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if e.jobs != nil {
		if err := e.jobs.Close(); err != nil {
			e.logger.Error("error closing job repository", "err", err)
			errs = append(errs, err)
		}
	}
	if e.catalog != nil {
		if err := e.catalog.Close(); err != nil {
			e.logger.Error("error closing catalog repository", "err", err)
			errs = append(errs, err)
		}
	}
	if e.backend != nil {
		if err := e.backend.Close(); err != nil {
			e.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) Catalog() storage.CatalogRepository {
	return e.catalog
}

func (e *Engine) Jobs() storage.JobRepository {
	return e.jobs
}

func (e *Engine) Places() *places.Client {
	return e.places
}

func (e *Engine) Queue() *classify.Queue {
	return e.queue
}

func (e *Engine) Metrics() *metrics.Metrics {
	return e.metrics
}

// NewCoordinator creates a search coordinator over the engine's shared
// components. Each client should hold its own coordinator, since a search
// supersedes the previous search of the same coordinator.
func (e *Engine) NewCoordinator(opts ...search.Option) (*search.Coordinator, error) {
	base := []search.Option{
		search.WithBackgroundGroup(&e.searches),
		search.WithExternalSource(e.places, e.dedupe, e.pipeline),
		search.WithClassificationQueue(e.queue),
		search.WithLogger(e.logger),
		search.WithMetrics(e.metrics),
	}
	return search.NewCoordinator(e.catalog, append(base, opts...)...)
}

// waitSearches blocks until every search has finished its enrichment.
func (e *Engine) waitSearches(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.searches.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
