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

package classify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/placefinder/ai"
	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/metrics"
	"github.com/poiesic/placefinder/storage"
	"golang.org/x/sync/errgroup"
)

// Config controls batching and category assignment.
type Config struct {
	// BatchSize is how many jobs are classified concurrently.
	BatchSize int
	// BatchDelay is the pause between batches.
	BatchDelay time.Duration
	// ConfidenceThreshold is the confidence a result must exceed before its
	// category is assigned to the record.
	ConfidenceThreshold float64
}

// DefaultConfig returns batches of 5 one second apart and a 0.8 threshold.
func DefaultConfig() Config {
	return Config{
		BatchSize:           5,
		BatchDelay:          time.Second,
		ConfidenceThreshold: 0.8,
	}
}

func (c Config) validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("%w: batch size %d", ErrInvalidConfig, c.BatchSize)
	}
	if c.BatchDelay < 0 {
		return fmt.Errorf("%w: negative batch delay", ErrInvalidConfig)
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: threshold %v", ErrInvalidConfig, c.ConfidenceThreshold)
	}
	return nil
}

// Status is a snapshot of the queue.
type Status struct {
	QueueLength int
	Processing  bool
}

// Queue classifies catalog records in the background.
// One Queue serves the whole process; all methods are safe for concurrent use.
type Queue struct {
	catalog    storage.CatalogRepository
	jobs       storage.JobRepository
	classifier ai.Classifier
	config     Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	onBatch    func(batch []core.ID)

	mu           sync.Mutex
	pending      []core.ID
	queued       map[core.ID]struct{}
	running      bool
	done         chan struct{}
	stop         chan struct{}
	listeners    map[int]func(Status)
	nextListener int
}

// Option configures a Queue.
type Option func(*Queue) error

// WithConfig replaces the default batching configuration.
func WithConfig(config Config) Option {
	return func(q *Queue) error {
		if err := config.validate(); err != nil {
			return err
		}
		q.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(q *Queue) error {
		if logger == nil {
			logger = slog.Default()
		}
		q.logger = logger
		return nil
	}
}

// WithMetrics reports job outcomes and queue depth to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(q *Queue) error {
		q.metrics = m
		return nil
	}
}

// WithBatchObserver calls fn with the ids of every batch after it finishes.
func WithBatchObserver(fn func(batch []core.ID)) Option {
	return func(q *Queue) error {
		q.onBatch = fn
		return nil
	}
}

// NewQueue creates a stopped queue. Call Start to begin processing.
func NewQueue(catalog storage.CatalogRepository, jobs storage.JobRepository, classifier ai.Classifier, opts ...Option) (*Queue, error) {
	if catalog == nil {
		return nil, ErrCatalogRequired
	}
	if jobs == nil {
		return nil, ErrJobRepositoryRequired
	}
	if classifier == nil {
		return nil, ErrClassifierRequired
	}

	q := &Queue{
		catalog:    catalog,
		jobs:       jobs,
		classifier: classifier,
		config:     DefaultConfig(),
		logger:     slog.Default(),
		queued:     make(map[core.ID]struct{}),
		listeners:  make(map[int]func(Status)),
	}
	for _, opt := range opts {
		if err := opt(q); err != nil {
			return nil, err
		}
	}
	q.logger = q.logger.With("component", "classify-queue")
	return q, nil
}

// Enqueue persists a pending job for each record and queues it. Records
// already queued, in flight or finished are skipped. Failures for single
// ids are joined; the rest are still enqueued.
func (q *Queue) Enqueue(ctx context.Context, ids ...core.ID) error {
	_, err := q.EnqueueBatch(ctx, ids)
	return err
}

// EnqueueBatch is Enqueue for a slice and reports how many ids were queued.
// Listeners are notified once for the whole batch.
func (q *Queue) EnqueueBatch(ctx context.Context, ids []core.ID) (int, error) {
	accepted := make([]core.ID, 0, len(ids))
	var errs []error
	for _, id := range ids {
		ok, err := q.prepare(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", id, err))
			continue
		}
		if ok {
			accepted = append(accepted, id)
		}
	}

	added := q.push(accepted...)
	if added > 0 {
		q.notify()
	}
	return added, errors.Join(errs...)
}

// prepare makes sure id has a pending job. It reports false for records
// that must not be queued.
func (q *Queue) prepare(ctx context.Context, id core.ID) (bool, error) {
	record, err := q.catalog.GetRecord(ctx, id)
	if err != nil {
		return false, err
	}

	switch record.Classification {
	case 0:
		if err := q.catalog.UpdateClassification(ctx, id, storage.ClassificationUpdate{Status: core.ClassificationPending}); err != nil {
			return false, err
		}
	case core.ClassificationPending:
	default:
		q.logger.Debug("record not pending classification, skipping", "id", id, "status", record.Classification)
		return false, nil
	}

	err = q.jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: id})
	if errors.Is(err, storage.ErrDuplicateKey) {
		job, getErr := q.jobs.GetJob(ctx, id)
		if getErr != nil {
			return false, getErr
		}
		return job.Status == core.ClassificationPending, nil
	}
	return err == nil, err
}

// EnqueuePending loads up to limit external records still waiting for
// classification and enqueues them. A limit of 0 loads all of them.
func (q *Queue) EnqueuePending(ctx context.Context, limit int) (int, error) {
	records, err := q.catalog.FindRecords(ctx, storage.RecordQuery{
		Sources:        []core.Source{core.SourceExternal},
		Classification: []core.ClassificationStatus{core.ClassificationPending},
		Limit:          limit,
	})
	if err != nil {
		return 0, err
	}

	ids := make([]core.ID, len(records))
	for i, record := range records {
		ids[i] = record.Id
	}
	return q.EnqueueBatch(ctx, ids)
}

// Requeue starts a new attempt for failed jobs. The failed attempt stays
// stored with its error and is never reverted. The record keeps its failed
// status until the new attempt starts processing.
func (q *Queue) Requeue(ctx context.Context, ids ...core.ID) (int, error) {
	accepted := make([]core.ID, 0, len(ids))
	var errs []error
	for _, id := range ids {
		if err := q.requeueOne(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", id, err))
			continue
		}
		accepted = append(accepted, id)
	}

	added := q.push(accepted...)
	if added > 0 {
		q.notify()
	}
	return added, errors.Join(errs...)
}

func (q *Queue) requeueOne(ctx context.Context, id core.ID) error {
	job, err := q.jobs.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != core.ClassificationFailed {
		return fmt.Errorf("%w: %s", ErrNotFailed, job.Status)
	}
	return q.jobs.SaveJob(ctx, &core.ClassificationJob{RecordId: id, Attempt: job.Attempt + 1})
}

// Recover restores queue state after a restart: jobs left processing are
// failed and pending jobs are queued again. It reports both counts.
func (q *Queue) Recover(ctx context.Context) (requeued, failed int, err error) {
	interrupted, err := q.jobs.ListJobs(ctx, core.ClassificationProcessing)
	if err != nil {
		return 0, 0, err
	}
	for _, job := range interrupted {
		if err := q.fail(ctx, job.RecordId, "interrupted by shutdown"); err != nil {
			return requeued, failed, err
		}
		failed++
	}

	waiting, err := q.jobs.ListJobs(ctx, core.ClassificationPending)
	if err != nil {
		return requeued, failed, err
	}
	ids := make([]core.ID, len(waiting))
	for i, job := range waiting {
		ids[i] = job.RecordId
	}
	requeued = q.push(ids...)
	if requeued > 0 || failed > 0 {
		q.logger.Info("recovered classification jobs", "requeued", requeued, "failed", failed)
		q.notify()
	}
	return requeued, failed, nil
}

// Start launches the worker loop unless it is already running or there is
// nothing to do. It reports whether a loop was started. The loop exits once
// the queue is empty.
func (q *Queue) Start() bool {
	q.mu.Lock()
	if q.running || len(q.pending) == 0 {
		q.mu.Unlock()
		return false
	}
	q.running = true
	q.done = make(chan struct{})
	q.stop = make(chan struct{})
	stop := q.stop
	q.mu.Unlock()

	q.notify()
	go q.loop(stop)
	return true
}

// Stop asks the loop to exit after the batch in flight and waits for it.
// Queued jobs stay pending and are picked up by the next Start.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	select {
	case <-q.stop:
	default:
		close(q.stop)
	}
	done := q.done
	q.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the loop has drained the queue and exited.
func (q *Queue) Wait(ctx context.Context) error {
	q.mu.Lock()
	running, done := q.running, q.done
	q.mu.Unlock()
	if !running {
		return nil
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Status returns the queue length and whether the loop is running.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.statusLocked()
}

func (q *Queue) statusLocked() Status {
	return Status{QueueLength: len(q.pending), Processing: q.running}
}

// Subscribe registers fn to receive a Status after every change.
// The returned function unregisters it.
func (q *Queue) Subscribe(fn func(Status)) (unsubscribe func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	id := q.nextListener
	q.nextListener++
	q.listeners[id] = fn
	return func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.listeners, id)
	}
}

// Clear drops every queued id and reports how many were dropped. Their jobs
// stay pending in storage, so Recover or EnqueuePending can load them again.
func (q *Queue) Clear() int {
	q.mu.Lock()
	n := len(q.pending)
	q.pending = nil
	clear(q.queued)
	q.mu.Unlock()

	q.notify()
	return n
}

// push appends ids not already queued and returns how many were added.
func (q *Queue) push(ids ...core.ID) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	added := 0
	for _, id := range ids {
		if _, ok := q.queued[id]; ok {
			continue
		}
		q.queued[id] = struct{}{}
		q.pending = append(q.pending, id)
		added++
	}
	return added
}

// take removes the next batch. When the queue is empty or stop was
// requested it marks the loop finished and returns nil.
func (q *Queue) take(stop <-chan struct{}) []core.ID {
	q.mu.Lock()
	defer q.mu.Unlock()

	stopping := false
	select {
	case <-stop:
		stopping = true
	default:
	}

	if len(q.pending) == 0 || stopping {
		q.running = false
		close(q.done)
		return nil
	}

	n := min(q.config.BatchSize, len(q.pending))
	batch := make([]core.ID, n)
	copy(batch, q.pending)
	q.pending = q.pending[n:]
	for _, id := range batch {
		delete(q.queued, id)
	}
	return batch
}

func (q *Queue) notify() {
	q.mu.Lock()
	status := q.statusLocked()
	listeners := make([]func(Status), 0, len(q.listeners))
	for _, fn := range q.listeners {
		listeners = append(listeners, fn)
	}
	q.mu.Unlock()

	q.metrics.QueueDepth(status.QueueLength)
	for _, fn := range listeners {
		fn(status)
	}
}

// loop processes batches until the queue drains. Jobs run on a background
// context: once dispatched they are not cancellable.
func (q *Queue) loop(stop <-chan struct{}) {
	ctx := context.Background()
	first := true
	for {
		if !first && q.config.BatchDelay > 0 {
			timer := time.NewTimer(q.config.BatchDelay)
			select {
			case <-timer.C:
			case <-stop:
				timer.Stop()
			}
		}
		first = false

		batch := q.take(stop)
		if batch == nil {
			q.logger.Debug("classification queue drained")
			q.notify()
			return
		}

		var g errgroup.Group
		for _, id := range batch {
			g.Go(func() error {
				return q.process(ctx, id)
			})
		}
		if err := g.Wait(); err != nil {
			q.logger.Error("classification batch had storage errors", "err", err)
		}

		if q.onBatch != nil {
			q.onBatch(batch)
		}
		q.notify()
	}
}

// process runs one job. Classifier failures mark the job failed and return
// nil; only storage errors are returned.
func (q *Queue) process(ctx context.Context, id core.ID) error {
	if _, err := q.jobs.TransitionJob(ctx, id, core.ClassificationProcessing, ""); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			q.logger.Debug("job no longer pending, skipping", "id", id, "err", err)
			return nil
		}
		return err
	}
	if err := q.catalog.UpdateClassification(ctx, id, storage.ClassificationUpdate{Status: core.ClassificationProcessing}); err != nil {
		return errors.Join(err, q.failJob(ctx, id, err.Error()))
	}

	record, err := q.catalog.GetRecord(ctx, id)
	if err != nil {
		return errors.Join(err, q.fail(ctx, id, err.Error()))
	}

	result, err := q.classifier.Classify(ctx, ai.PlaceDataFromRecord(record))
	if err != nil {
		q.logger.Warn("classification failed", "id", id, "name", record.Name, "err", err)
		return q.fail(ctx, id, err.Error())
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "classifier could not categorize place"
		}
		q.logger.Warn("classification unsuccessful", "id", id, "name", record.Name, "reason", msg)
		return q.fail(ctx, id, msg)
	}

	category := ai.NormalizeCategory(result.Category)
	confidence := ai.ClampConfidence(result.Confidence)
	outcome := "completed"
	if confidence > q.config.ConfidenceThreshold {
		if err := q.catalog.AssignCategory(ctx, id, category, result.Description); err != nil {
			return errors.Join(err, q.fail(ctx, id, err.Error()))
		}
		outcome = "assigned"
	} else if result.Description != "" && record.Description == "" {
		if err := q.catalog.AssignCategory(ctx, id, record.Category, result.Description); err != nil {
			return errors.Join(err, q.fail(ctx, id, err.Error()))
		}
	}

	if err := q.catalog.UpdateClassification(ctx, id, storage.ClassificationUpdate{
		Status:     core.ClassificationCompleted,
		Category:   &category,
		Confidence: &confidence,
	}); err != nil {
		return errors.Join(err, q.failJob(ctx, id, err.Error()))
	}
	if _, err := q.jobs.TransitionJob(ctx, id, core.ClassificationCompleted, ""); err != nil {
		return err
	}

	q.metrics.Classification(outcome)
	q.logger.Info("classified place", "id", id, "name", record.Name, "category", category, "confidence", confidence, "assigned", outcome == "assigned")
	return nil
}

// fail marks both the record and its job failed.
func (q *Queue) fail(ctx context.Context, id core.ID, msg string) error {
	err := q.catalog.UpdateClassification(ctx, id, storage.ClassificationUpdate{Status: core.ClassificationFailed})
	if errors.Is(err, core.ErrInvalidTransition) {
		err = nil
	}
	return errors.Join(err, q.failJob(ctx, id, msg))
}

func (q *Queue) failJob(ctx context.Context, id core.ID, msg string) error {
	q.metrics.Classification("failed")
	_, err := q.jobs.TransitionJob(ctx, id, core.ClassificationFailed, msg)
	return err
}
