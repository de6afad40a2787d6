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

package places

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"
)

// Endpoint names a provider search operation.
type Endpoint string

const (
	EndpointTextSearch   Endpoint = "textsearch"
	EndpointNearbySearch Endpoint = "nearbysearch"
	EndpointDetails      Endpoint = "details"
)

const (
	// DefaultBaseURL is the legacy Places web service root.
	DefaultBaseURL = "https://maps.googleapis.com/maps/api/place"

	// MaxRadiusMeters is the largest radius the provider accepts.
	MaxRadiusMeters = 50000

	defaultTimeout     = 15 * time.Second
	defaultMaxAttempts = 2
	defaultRetryDelay  = 250 * time.Millisecond
	maxResponseBytes   = 4 << 20
)

// detailFields limits a details lookup to what enrichment stores.
var detailFields = strings.Join([]string{
	"place_id", "name", "formatted_address", "geometry", "types", "rating",
	"user_ratings_total", "photos", "editorial_summary",
	"formatted_phone_number", "website", "business_status",
}, ",")

// Client talks to the geo-search provider through a shared response cache.
// All methods are safe for concurrent use.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  *http.Client
	cache       *Cache
	ownsCache   bool
	cacheTTL    time.Duration
	flights     singleflight.Group
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      trace.Tracer
}

// Option configures a Client.
type Option func(*Client) error

// WithAPIKey sets the provider key. Without a key every search returns no results.
func WithAPIKey(key string) Option {
	return func(c *Client) error {
		c.apiKey = strings.TrimSpace(key)
		return nil
	}
}

// WithBaseURL points the client at a different service root, e.g. a proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		u, err := url.Parse(baseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base url %q", baseURL)
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithHTTPClient sets the HTTP client used for provider calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.httpClient = hc
		}
		return nil
	}
}

// WithCache shares an existing cache. The caller keeps ownership.
func WithCache(cache *Cache) Option {
	return func(c *Client) error {
		c.cache = cache
		c.ownsCache = false
		return nil
	}
}

// WithCacheTTL sets the TTL of the cache the client creates for itself.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		c.cacheTTL = ttl
		return nil
	}
}

// WithRetry configures retries of transient failures.
// Default is 2 attempts with a 250ms base delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *Client) error {
		if maxAttempts < 1 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = maxAttempts
		c.retryDelay = baseDelay
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics reports cache and request metrics to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// NewClient creates a provider client.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		cacheTTL:    DefaultCacheTTL,
		maxAttempts: defaultMaxAttempts,
		retryDelay:  defaultRetryDelay,
		logger:      slog.Default(),
		tracer:      otel.Tracer("github.com/poiesic/placefinder/places"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.cache == nil {
		cache, err := NewCache(c.cacheTTL, 0)
		if err != nil {
			return nil, err
		}
		c.cache = cache
		c.ownsCache = true
	}
	c.logger = c.logger.With("component", "places")
	return c, nil
}

// Close releases the cache if the client created it.
func (c *Client) Close() {
	if c.ownsCache {
		c.cache.Close()
	}
}

// HasKey reports whether a provider key is configured.
func (c *Client) HasKey() bool {
	return c.apiKey != ""
}

// Fetch performs a provider request through the cache. A hit never touches
// the network; only successful responses are stored. Without an API key the
// result is empty and no request is made. Concurrent identical misses share
// one network call.
func (c *Client) Fetch(ctx context.Context, endpoint Endpoint, params url.Values) ([]core.ExternalCandidate, error) {
	switch endpoint {
	case EndpointTextSearch, EndpointNearbySearch, EndpointDetails:
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownEndpoint, endpoint)
	}

	if !c.HasKey() {
		c.logger.Debug("no api key configured, skipping provider call", "endpoint", endpoint)
		return []core.ExternalCandidate{}, nil
	}

	key := CacheKey(endpoint, params)
	if cached, ok := c.cache.Get(key); ok {
		c.metrics.CacheLookup(true)
		return cached, nil
	}
	c.metrics.CacheLookup(false)

	v, err, shared := c.flights.Do(key, func() (any, error) {
		// A flight that finished between our lookup and now may have filled it.
		if cached, ok := c.cache.Get(key); ok {
			return cached, nil
		}

		var result []core.ExternalCandidate
		err := RetryWithBackoff(ctx, func() error {
			var callErr error
			result, callErr = c.call(ctx, endpoint, params)
			return callErr
		}, isTransient, c.maxAttempts, c.retryDelay)
		if err != nil {
			return nil, err
		}

		c.cache.Set(key, result)
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.logger.Debug("shared in-flight provider request", "endpoint", endpoint)
	}
	return slices.Clone(v.([]core.ExternalCandidate)), nil
}

// TextSearch runs a free-text search biased to center.
func (c *Client) TextSearch(ctx context.Context, query string, center core.Coordinates, radiusMeters float64, placeType string) ([]core.ExternalCandidate, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("location", formatLocation(center))
	params.Set("radius", strconv.Itoa(ClampRadius(radiusMeters)))
	if placeType != "" {
		params.Set("type", placeType)
	}
	return c.Fetch(ctx, EndpointTextSearch, params)
}

// NearbySearch lists places of placeType around center.
func (c *Client) NearbySearch(ctx context.Context, center core.Coordinates, radiusMeters float64, placeType string) ([]core.ExternalCandidate, error) {
	params := url.Values{}
	params.Set("location", formatLocation(center))
	params.Set("radius", strconv.Itoa(ClampRadius(radiusMeters)))
	if placeType != "" {
		params.Set("type", placeType)
	}
	return c.Fetch(ctx, EndpointNearbySearch, params)
}

// Details fetches the full description of one place. It returns nil, nil
// when the provider has nothing for the id or no key is configured.
func (c *Client) Details(ctx context.Context, externalID string) (*core.ExternalCandidate, error) {
	params := url.Values{}
	params.Set("place_id", externalID)
	params.Set("fields", detailFields)

	results, err := c.Fetch(ctx, EndpointDetails, params)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return &results[0], nil
}

// ClampRadius converts a radius in meters into the provider's accepted range.
func ClampRadius(meters float64) int {
	r := int(math.Round(meters))
	if r < 1 {
		return 1
	}
	if r > MaxRadiusMeters {
		return MaxRadiusMeters
	}
	return r
}

// call performs one network request.
func (c *Client) call(ctx context.Context, endpoint Endpoint, params url.Values) (candidates []core.ExternalCandidate, err error) {
	ctx, span := c.tracer.Start(ctx, "places."+string(endpoint),
		trace.WithAttributes(attribute.String("places.endpoint", string(endpoint))))
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = KindOf(err).String()
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.Int("places.results", len(candidates)))
		span.End()
		c.metrics.ProviderRequest(string(endpoint), outcome, time.Since(start))
	}()

	query := url.Values{}
	for k, v := range params {
		query[k] = v
	}
	query.Set("key", c.apiKey)
	reqURL := c.baseURL + "/" + string(endpoint) + "/json?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &ProviderError{Kind: KindInvalidRequest, Endpoint: string(endpoint), Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ProviderError{Kind: KindUnavailable, Endpoint: string(endpoint), Err: redact(err, c.apiKey)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &ProviderError{Kind: KindUnavailable, Endpoint: string(endpoint), Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{
			Kind:     KindUnavailable,
			Endpoint: string(endpoint),
			Status:   resp.Status,
		}
	}

	env, err := decodeStatus(body)
	if err != nil {
		return nil, &ProviderError{Kind: KindUnavailable, Endpoint: string(endpoint), Err: fmt.Errorf("decode response: %w", err)}
	}
	if err := statusError(string(endpoint), env.Status, env.ErrorMessage); err != nil {
		c.logger.Warn("provider returned error status", "endpoint", endpoint, "status", env.Status, "message", env.ErrorMessage)
		return nil, err
	}
	if env.Status == "ZERO_RESULTS" {
		return []core.ExternalCandidate{}, nil
	}

	return c.decodeCandidates(endpoint, body)
}

func (c *Client) decodeCandidates(endpoint Endpoint, body []byte) ([]core.ExternalCandidate, error) {
	if endpoint == EndpointDetails {
		var resp detailsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &ProviderError{Kind: KindUnavailable, Endpoint: string(endpoint), Err: fmt.Errorf("decode details: %w", err)}
		}
		if resp.Result == nil {
			return []core.ExternalCandidate{}, nil
		}
		return []core.ExternalCandidate{c.toCandidate(resp.Result, true)}, nil
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ProviderError{Kind: KindUnavailable, Endpoint: string(endpoint), Err: fmt.Errorf("decode results: %w", err)}
	}
	candidates := make([]core.ExternalCandidate, 0, len(resp.Results))
	for i := range resp.Results {
		if resp.Results[i].PlaceID == "" {
			continue
		}
		candidates = append(candidates, c.toCandidate(&resp.Results[i], false))
	}
	return candidates, nil
}

func formatLocation(c core.Coordinates) string {
	return strconv.FormatFloat(c.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(c.Lng, 'f', 6, 64)
}

// redact strips the API key from transport errors, which embed the URL.
func redact(err error, key string) error {
	var urlErr *url.Error
	if key != "" && errors.As(err, &urlErr) {
		urlErr.URL = strings.ReplaceAll(urlErr.URL, key, "REDACTED")
	}
	return err
}
