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

// Package metrics exposes prometheus collectors for the search pipeline.
//
// A nil *Metrics is valid and records nothing, so components can take an
// optional metrics handle without branching at every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "placefinder"

// Metrics holds every collector the pipeline reports to.
type Metrics struct {
	cacheLookups     *prometheus.CounterVec
	providerRequests *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	recordsCreated   prometheus.Counter
	enrichFailures   prometheus.Counter
	classifications  *prometheus.CounterVec
	queueDepth       prometheus.Gauge
	searchUpdates    *prometheus.CounterVec
	staleDropped     prometheus.Counter
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		cacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "places_cache_lookups_total",
				Help:      "Provider response cache lookups by result.",
			},
			[]string{"result"},
		),
		providerRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "places_requests_total",
				Help:      "Provider requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "places_request_duration_seconds",
				Help:      "Provider request latency in seconds.",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"endpoint"},
		),
		recordsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_records_created_total",
			Help:      "Catalog records created from provider candidates.",
		}),
		enrichFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrichment_failures_total",
			Help:      "Candidates skipped because record creation failed.",
		}),
		classifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "classification_jobs_total",
				Help:      "Finished classification jobs by outcome.",
			},
			[]string{"outcome"},
		),
		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "classification_queue_depth",
			Help:      "Jobs waiting in the classification queue.",
		}),
		searchUpdates: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_updates_total",
				Help:      "Search updates delivered by phase.",
			},
			[]string{"phase"},
		),
		staleDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_stale_updates_total",
			Help:      "Updates dropped because a newer search superseded them.",
		}),
	}
}

// CacheLookup records a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ProviderRequest records one network call to the provider.
func (m *Metrics) ProviderRequest(endpoint, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.providerRequests.WithLabelValues(endpoint, outcome).Inc()
	m.providerLatency.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// RecordCreated counts a catalog record created by enrichment.
func (m *Metrics) RecordCreated() {
	if m == nil {
		return
	}
	m.recordsCreated.Inc()
}

// EnrichmentFailed counts a candidate dropped from an enrichment batch.
func (m *Metrics) EnrichmentFailed() {
	if m == nil {
		return
	}
	m.enrichFailures.Inc()
}

// Classification counts a finished classification job.
func (m *Metrics) Classification(outcome string) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(outcome).Inc()
}

// QueueDepth reports how many jobs are waiting.
func (m *Metrics) QueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// SearchUpdate counts an update delivered to a search consumer.
func (m *Metrics) SearchUpdate(phase string) {
	if m == nil {
		return
	}
	m.searchUpdates.WithLabelValues(phase).Inc()
}

// StaleDropped counts an update suppressed by a newer search.
func (m *Metrics) StaleDropped() {
	if m == nil {
		return
	}
	m.staleDropped.Inc()
}
