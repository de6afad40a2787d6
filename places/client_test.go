package places

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/placefinder/core"
	"github.com/poiesic/placefinder/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchOK = `{
  "status": "OK",
  "results": [
    {
      "place_id": "ChIJ-brew",
      "name": "Brew Lab Coffee",
      "formatted_address": "1 Main St, Urbana, IL",
      "geometry": {"location": {"lat": 40.1106, "lng": -88.2073}},
      "types": ["point_of_interest", "cafe", "food"],
      "rating": 4.6,
      "user_ratings_total": 312,
      "photos": [{"photo_reference": "photo-ref-1", "width": 800, "height": 600}]
    },
    {
      "place_id": "ChIJ-espresso",
      "name": "Espresso Royale",
      "vicinity": "Green St",
      "types": ["cafe"]
    },
    {"name": "no id, dropped"}
  ]
}`

const detailsOK = `{
  "status": "OK",
  "result": {
    "place_id": "ChIJ-brew",
    "name": "Brew Lab Coffee",
    "formatted_address": "1 Main St, Urbana, IL 61801",
    "types": ["cafe", "food"],
    "editorial_summary": {"overview": "Small-batch roaster near campus."},
    "formatted_phone_number": "(217) 555-0100",
    "website": "https://brewlab.example",
    "business_status": "OPERATIONAL"
  }
}`

// fakeProvider serves canned responses and counts requests.
type fakeProvider struct {
	*httptest.Server
	hits     atomic.Int32
	mu       sync.Mutex
	respond  func(w http.ResponseWriter, r *http.Request)
	requests []*url.URL
}

func newFakeProvider(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{respond: respond}
	fp.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fp.hits.Add(1)
		fp.mu.Lock()
		fp.requests = append(fp.requests, r.URL)
		respond := fp.respond
		fp.mu.Unlock()
		respond(w, r)
	}))
	t.Cleanup(fp.Close)
	return fp
}

func (fp *fakeProvider) setResponder(respond func(w http.ResponseWriter, r *http.Request)) {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.respond = respond
}

func staticBody(body string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}
}

func statusBody(status string) func(w http.ResponseWriter, r *http.Request) {
	return staticBody(fmt.Sprintf(`{"status": %q, "error_message": "from test", "results": []}`, status))
}

func newTestClient(t *testing.T, fp *fakeProvider, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithAPIKey("test-key"),
		WithBaseURL(fp.URL),
		WithRetry(1, 0),
	}
	client, err := NewClient(append(base, opts...)...)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

var center = core.Coordinates{Lat: 40.1074, Lng: -88.2272}

func TestFetch_ParsesSearchResults(t *testing.T) {
	fp := newFakeProvider(t, staticBody(searchOK))
	client := newTestClient(t, fp)

	got, err := client.TextSearch(context.Background(), "coffee", center, 8046.7, "")
	require.NoError(t, err)
	require.Len(t, got, 2)

	brew := got[0]
	assert.Equal(t, "ChIJ-brew", brew.ExternalId)
	assert.Equal(t, "1 Main St, Urbana, IL", brew.Address)
	assert.Equal(t, "cafe", brew.PrimaryType)
	assert.Equal(t, 312, brew.RatingsTotal)
	require.NotNil(t, brew.Location)
	assert.Equal(t, 40.1106, brew.Location.Lat)
	assert.Contains(t, brew.PhotoURL, "photo_reference=photo-ref-1")
	assert.Contains(t, brew.PhotoURL, "key=test-key")
	assert.False(t, brew.Detailed)

	assert.Equal(t, "Green St", got[1].Address, "vicinity fills a missing formatted address")
	assert.Nil(t, got[1].Location)

	require.Len(t, fp.requests, 1)
	req := fp.requests[0]
	assert.Equal(t, "/textsearch/json", req.Path)
	assert.Equal(t, "coffee", req.Query().Get("query"))
	assert.Equal(t, "8047", req.Query().Get("radius"))
	assert.Equal(t, "40.107400,-88.227200", req.Query().Get("location"))
	assert.Equal(t, "test-key", req.Query().Get("key"))
}

func TestFetch_StatusMapping(t *testing.T) {
	tests := []struct {
		status   string
		wantErr  error
		wantKind ErrorKind
	}{
		{status: "ZERO_RESULTS"},
		{status: "REQUEST_DENIED", wantErr: ErrDenied, wantKind: KindDenied},
		{status: "OVER_QUERY_LIMIT", wantErr: ErrQuotaExceeded, wantKind: KindQuotaExceeded},
		{status: "INVALID_REQUEST", wantErr: ErrInvalidRequest, wantKind: KindInvalidRequest},
		{status: "UNKNOWN_ERROR", wantErr: ErrUnavailable, wantKind: KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			fp := newFakeProvider(t, statusBody(tt.status))
			client := newTestClient(t, fp)

			got, err := client.NearbySearch(context.Background(), center, 1000, "cafe")
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, got)
				assert.Empty(t, got)
				return
			}

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Equal(t, tt.wantKind, KindOf(err))

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.Status)
			assert.Equal(t, "from test", pe.Message)
		})
	}
}

func TestFetch_HTTPFailureIsUnavailable(t *testing.T) {
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})
	client := newTestClient(t, fp)

	_, err := client.NearbySearch(context.Background(), center, 1000, "")
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestFetch_MalformedBodyIsUnavailable(t *testing.T) {
	fp := newFakeProvider(t, staticBody(`not json`))
	client := newTestClient(t, fp)

	_, err := client.NearbySearch(context.Background(), center, 1000, "")
	assert.Equal(t, KindUnavailable, KindOf(err))
}

func TestFetch_NoAPIKey(t *testing.T) {
	fp := newFakeProvider(t, staticBody(searchOK))
	client, err := NewClient(WithBaseURL(fp.URL))
	require.NoError(t, err)
	defer client.Close()

	got, err := client.TextSearch(context.Background(), "coffee", center, 1000, "")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, int32(0), fp.hits.Load())
}

func TestFetch_UnknownEndpoint(t *testing.T) {
	fp := newFakeProvider(t, staticBody(searchOK))
	client := newTestClient(t, fp)

	_, err := client.Fetch(context.Background(), Endpoint("autocomplete"), url.Values{})
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestFetch_CacheHitSkipsNetwork(t *testing.T) {
	fp := newFakeProvider(t, staticBody(searchOK))
	m := metrics.New(nil)
	client := newTestClient(t, fp, WithMetrics(m))
	ctx := context.Background()

	first, err := client.TextSearch(ctx, "coffee", center, 1000, "")
	require.NoError(t, err)
	second, err := client.TextSearch(ctx, "coffee", center, 1000, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), fp.hits.Load())

	_, err = client.TextSearch(ctx, "tea", center, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fp.hits.Load())
}

func TestFetch_ParamOrderDoesNotMatter(t *testing.T) {
	fp := newFakeProvider(t, staticBody(searchOK))
	client := newTestClient(t, fp)
	ctx := context.Background()

	a := url.Values{}
	a.Set("location", "1,2")
	a.Set("radius", "100")
	b := url.Values{}
	b.Set("radius", "100")
	b.Set("location", "1,2")

	_, err := client.Fetch(ctx, EndpointNearbySearch, a)
	require.NoError(t, err)
	_, err = client.Fetch(ctx, EndpointNearbySearch, b)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fp.hits.Load())
}

func TestFetch_CacheExpires(t *testing.T) {
	fp := newFakeProvider(t, staticBody(searchOK))

	var mu sync.Mutex
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	cache, err := NewCache(5*time.Minute, 0, WithClock(clock))
	require.NoError(t, err)
	defer cache.Close()

	client := newTestClient(t, fp, WithCache(cache))
	ctx := context.Background()

	_, err = client.TextSearch(ctx, "coffee", center, 1000, "")
	require.NoError(t, err)

	mu.Lock()
	now = now.Add(4*time.Minute + 59*time.Second)
	mu.Unlock()
	_, err = client.TextSearch(ctx, "coffee", center, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fp.hits.Load(), "still inside the TTL")

	mu.Lock()
	now = now.Add(time.Second)
	mu.Unlock()
	_, err = client.TextSearch(ctx, "coffee", center, 1000, "")
	require.NoError(t, err)
	assert.Equal(t, int32(2), fp.hits.Load(), "expired at exactly TTL")
}

func TestFetch_FailuresAreNotCached(t *testing.T) {
	fp := newFakeProvider(t, statusBody("OVER_QUERY_LIMIT"))
	client := newTestClient(t, fp)
	ctx := context.Background()

	_, err := client.TextSearch(ctx, "coffee", center, 1000, "")
	require.True(t, errors.Is(err, ErrQuotaExceeded))

	fp.setResponder(staticBody(searchOK))
	got, err := client.TextSearch(ctx, "coffee", center, 1000, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(2), fp.hits.Load())
}

func TestFetch_ConcurrentIdenticalRequestsShareOneCall(t *testing.T) {
	release := make(chan struct{})
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		staticBody(searchOK)(w, r)
	})
	client := newTestClient(t, fp)

	const callers = 10
	var wg sync.WaitGroup
	results := make([][]core.ExternalCandidate, callers)
	errs := make([]error, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = client.TextSearch(context.Background(), "coffee", center, 1000, "")
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Len(t, results[i], 2)
	}
	assert.Equal(t, int32(1), fp.hits.Load())
}

func TestFetch_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	fp := newFakeProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		staticBody(searchOK)(w, r)
	})
	client := newTestClient(t, fp, WithRetry(3, time.Millisecond))

	got, err := client.TextSearch(context.Background(), "coffee", center, 1000, "")
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, int32(3), fp.hits.Load())
}

func TestFetch_DoesNotRetryStatusErrors(t *testing.T) {
	fp := newFakeProvider(t, statusBody("REQUEST_DENIED"))
	client := newTestClient(t, fp, WithRetry(3, time.Millisecond))

	_, err := client.TextSearch(context.Background(), "coffee", center, 1000, "")
	assert.True(t, errors.Is(err, ErrDenied))
	assert.Equal(t, int32(1), fp.hits.Load())
}

func TestDetails(t *testing.T) {
	fp := newFakeProvider(t, staticBody(detailsOK))
	client := newTestClient(t, fp)

	got, err := client.Details(context.Background(), "ChIJ-brew")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Detailed)
	assert.Equal(t, "Small-batch roaster near campus.", got.Summary)
	assert.Equal(t, "(217) 555-0100", got.Phone)
	assert.Equal(t, "OPERATIONAL", got.BusinessStatus)

	req := fp.requests[0]
	assert.Equal(t, "/details/json", req.Path)
	assert.Equal(t, "ChIJ-brew", req.Query().Get("place_id"))
	assert.True(t, strings.Contains(req.Query().Get("fields"), "editorial_summary"))
}

func TestDetails_NoResult(t *testing.T) {
	fp := newFakeProvider(t, staticBody(`{"status": "OK"}`))
	client := newTestClient(t, fp)

	got, err := client.Details(context.Background(), "ChIJ-gone")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClampRadius(t *testing.T) {
	assert.Equal(t, 1, ClampRadius(0))
	assert.Equal(t, 1609, ClampRadius(1609.34))
	assert.Equal(t, MaxRadiusMeters, ClampRadius(80467))
}

func TestCategoryToType(t *testing.T) {
	tests := map[string]string{
		"bars":          "bar",
		"Restaurants":   "restaurant",
		"cafes":         "cafe",
		"Study Spots":   "library",
		"study_spot":    "library",
		"entertainment": "amusement_park",
		"shopping":      "shopping_mall",
		"housing":       "",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, CategoryToType(in), in)
	}
}

func TestNewClient_InvalidOptions(t *testing.T) {
	_, err := NewClient(WithBaseURL("::not a url"))
	assert.Error(t, err)

	_, err = NewClient(WithRetry(0, time.Second))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}
