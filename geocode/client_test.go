package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/travelplanner/tripauth/api"
)

type fakeNominatim struct {
	srv   *httptest.Server
	calls atomic.Int32
}

func newFakeNominatim(t *testing.T, places map[string][2]string) *fakeNominatim {
	t.Helper()
	f := &fakeNominatim{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if r.URL.Path != "/search" || r.URL.Query().Get("format") != "json" || r.URL.Query().Get("limit") != "1" {
			http.Error(w, "bad query", http.StatusBadRequest)
			return
		}
		q := r.URL.Query().Get("q")
		if q == "broken" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		ll, ok := places[q]
		if !ok {
			_, _ = w.Write([]byte(`[]`))
			return
		}
		_, _ = w.Write([]byte(`[{"lat":"` + ll[0] + `","lon":"` + ll[1] + `","display_name":"` + q + `"}]`))
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func newTestClient(t *testing.T, base string, cache Cache) *Client {
	t.Helper()
	c, err := NewClient(Config{BaseURL: base, Concurrency: 2}, cache)
	require.NoError(t, err)
	return c
}

func TestLookupCachesSuccessOnly(t *testing.T) {
	f := newFakeNominatim(t, map[string][2]string{"Louvre": {"48.8606", "2.3376"}})
	cache := NewMemoryCache()
	c := newTestClient(t, f.srv.URL, cache)
	ctx := context.Background()

	p, err := c.Lookup(ctx, "Louvre")
	require.NoError(t, err)
	require.InDelta(t, 48.8606, p.Latitude, 1e-9)
	require.InDelta(t, 2.3376, p.Longitude, 1e-9)

	_, err = c.Lookup(ctx, "  louvre ")
	require.NoError(t, err)
	require.Equal(t, int32(1), f.calls.Load())

	_, err = c.Lookup(ctx, "Atlantis")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = c.Lookup(ctx, "Atlantis")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, int32(3), f.calls.Load())
	require.Equal(t, 1, cache.Len())
}

func TestLookupProviderFailure(t *testing.T) {
	f := newFakeNominatim(t, nil)
	c := newTestClient(t, f.srv.URL, nil)

	_, err := c.Lookup(context.Background(), "broken")
	require.ErrorIs(t, err, ErrLookup)
}

func TestGeocodeAllDropsFailures(t *testing.T) {
	f := newFakeNominatim(t, map[string][2]string{
		"Louvre":       {"48.8606", "2.3376"},
		"Eiffel Tower": {"48.8584", "2.2945"},
	})
	c := newTestClient(t, f.srv.URL, nil)

	got, err := c.GeocodeAll(context.Background(), []string{"Louvre", "Eiffel Tower", "Louvre", "Atlantis", "broken", ""})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Contains(t, got, "Louvre")
	require.Contains(t, got, "Eiffel Tower")
	require.Equal(t, int32(4), f.calls.Load())
}

func TestGeocodeAllCanceled(t *testing.T) {
	f := newFakeNominatim(t, nil)
	c := newTestClient(t, f.srv.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GeocodeAll(ctx, []string{"Louvre"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestLocatePrefersActivityCoordinates(t *testing.T) {
	f := newFakeNominatim(t, map[string][2]string{"Louvre": {"48.8606", "2.3376"}})
	c := newTestClient(t, f.srv.URL, nil)

	lat, lon := 35.0, 139.0
	it := &api.Itinerary{Days: []api.DayPlan{{
		Activities: []api.Activity{
			{Location: "Shrine", Latitude: &lat, Longitude: &lon},
			{Location: "Louvre"},
		},
	}}}

	got, err := c.Locate(context.Background(), it)
	require.NoError(t, err)
	require.Equal(t, Point{Latitude: 35, Longitude: 139}, got["Shrine"])
	require.InDelta(t, 48.8606, got["Louvre"].Latitude, 1e-9)
	require.Equal(t, int32(1), f.calls.Load())
}

func TestRedisCacheSharesResults(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := newFakeNominatim(t, map[string][2]string{"Louvre": {"48.8606", "2.3376"}})
	cache := NewRedisCache(rdb, "test:geo", time.Hour)

	first := newTestClient(t, f.srv.URL, cache)
	_, err := first.Lookup(context.Background(), "Louvre")
	require.NoError(t, err)
	require.True(t, mr.Exists("test:geo:louvre"))

	second := newTestClient(t, f.srv.URL, NewRedisCache(rdb, "test:geo", time.Hour))
	p, err := second.Lookup(context.Background(), "LOUVRE")
	require.NoError(t, err)
	require.InDelta(t, 2.3376, p.Longitude, 1e-9)
	require.Equal(t, int32(1), f.calls.Load())

	mr.FastForward(2 * time.Hour)
	require.False(t, mr.Exists("test:geo:louvre"))
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient(Config{BaseURL: "ftp://example.com"}, nil)
	require.Error(t, err)
}
