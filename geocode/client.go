package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/travelplanner/tripauth/api"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrNotFound is returned when the provider has no match for a name.
	ErrNotFound = errors.New("location not found")
	// ErrLookup wraps transport, status and decoding failures.
	ErrLookup = errors.New("geocode lookup failed")
)

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Config locates the search endpoint.
type Config struct {
	BaseURL     string
	UserAgent   string
	Timeout     time.Duration
	Concurrency int
}

// Client is safe for concurrent use.
type Client struct {
	base        *url.URL
	http        *http.Client
	cache       Cache
	userAgent   string
	concurrency int
	logger      *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient returns a Client. A nil cache gets a MemoryCache.
func NewClient(cfg Config, cache Cache, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, fmt.Errorf("invalid geocoder base url %q", cfg.BaseURL)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "tripauth/1"
	}

	c := &Client{
		base:        base,
		http:        &http.Client{Timeout: cfg.Timeout},
		cache:       cache,
		userAgent:   cfg.UserAgent,
		concurrency: cfg.Concurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type searchResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Lookup resolves name, consulting the cache first. Cache errors are logged and
// treated as misses.
func (c *Client) Lookup(ctx context.Context, name string) (Point, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Point{}, ErrNotFound
	}

	if p, ok, err := c.cache.Get(ctx, name); err != nil {
		c.logger.Warn("geocode cache read failed", zap.String("location", name), zap.Error(err))
	} else if ok {
		return p, nil
	}

	p, err := c.search(ctx, name)
	if err != nil {
		return Point{}, err
	}

	if err := c.cache.Set(ctx, name, p); err != nil {
		c.logger.Warn("geocode cache write failed", zap.String("location", name), zap.Error(err))
	}
	return p, nil
}

func (c *Client) search(ctx context.Context, name string) (Point, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/search"
	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", name)
	q.Set("limit", "1")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Point{}, fmt.Errorf("%w: status %d", ErrLookup, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Point{}, fmt.Errorf("%w: %v", ErrLookup, err)
	}
	if len(results) == 0 {
		return Point{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: lat %q", ErrLookup, results[0].Lat)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: lon %q", ErrLookup, results[0].Lon)
	}
	return Point{Latitude: lat, Longitude: lon}, nil
}

// GeocodeAll resolves the unique names concurrently. Names that fail to resolve are
// left out of the result. The only error returned is ctx's.
func (c *Client) GeocodeAll(ctx context.Context, names []string) (map[string]Point, error) {
	out := make(map[string]Point, len(names))
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(c.concurrency)

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		g.Go(func() error {
			p, err := c.Lookup(ctx, name)
			if err != nil {
				c.logger.Debug("geocode skipped", zap.String("location", name), zap.Error(err))
				return nil
			}
			mu.Lock()
			out[name] = p
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Locate returns a point for every activity location in it. Coordinates carried by
// the activity win; the rest are looked up.
func (c *Client) Locate(ctx context.Context, it *api.Itinerary) (map[string]Point, error) {
	if it == nil {
		return map[string]Point{}, nil
	}

	known := make(map[string]Point)
	var missing []string
	for _, day := range it.Days {
		for _, act := range day.Activities {
			name := strings.TrimSpace(act.Location)
			if name == "" {
				continue
			}
			if act.HasCoordinates() {
				known[name] = Point{Latitude: *act.Latitude, Longitude: *act.Longitude}
			}
		}
	}
	for _, name := range it.Locations() {
		if _, ok := known[name]; !ok {
			missing = append(missing, name)
		}
	}

	resolved, err := c.GeocodeAll(ctx, missing)
	if err != nil {
		return nil, err
	}
	for name, p := range resolved {
		known[name] = p
	}
	return known, nil
}
