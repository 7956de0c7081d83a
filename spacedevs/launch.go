package spacedevs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rgoodwin/spacedash/cache"
)

// LaunchTTL bounds how long a next-launch lookup is reused.
const LaunchTTL = time.Hour

// Launch is the next scheduled launch, as far as the countdown needs it.
type Launch struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Net  string `json:"net"`
}

// LaunchCache answers "what is the next launch" from a mutex-guarded
// in-memory snapshot with a one-hour TTL. A fetch failure yields no result
// rather than an error so the countdown can fall back to a placeholder
// target; concurrent misses share a single upstream fetch.
type LaunchCache struct {
	http    *http.Client
	baseURL string
	ttl     time.Duration

	store *cache.MemCache
	group singleflight.Group
}

type LaunchOption func(*LaunchCache)

func WithLaunchHTTPClient(h *http.Client) LaunchOption {
	return func(lc *LaunchCache) { lc.http = h }
}

func WithLaunchBaseURL(raw string) LaunchOption {
	return func(lc *LaunchCache) { lc.baseURL = strings.TrimSuffix(raw, "/") }
}

func WithLaunchTTL(ttl time.Duration) LaunchOption {
	return func(lc *LaunchCache) { lc.ttl = ttl }
}

// NewLaunchCache creates the in-memory next-launch cache.
func NewLaunchCache(opts ...LaunchOption) *LaunchCache {
	lc := &LaunchCache{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: DefaultBaseURL,
		ttl:     LaunchTTL,
		store:   cache.NewMemCache(),
	}
	for _, o := range opts {
		o(lc)
	}
	return lc
}

// Next returns the next upcoming launch, or ok=false when none is known
// (upstream failure, empty listing, or a snapshot of either).
func (lc *LaunchCache) Next(ctx context.Context) (*Launch, bool) {
	v, err, _ := lc.group.Do("next_launch", func() (any, error) {
		return cache.GetOrFetch(lc.store, "next_launch", lc.ttl, func() (*Launch, error) {
			return lc.fetchNext(ctx)
		})
	})
	if err != nil {
		return nil, false
	}
	launch := v.(*Launch)
	if launch == nil {
		return nil, false
	}
	return launch, true
}

func (lc *LaunchCache) fetchNext(ctx context.Context) (*Launch, error) {
	url := lc.baseURL + "/launch/upcoming/?limit=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := lc.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch next launch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("fetch next launch: status %d: %s", resp.StatusCode, string(b))
	}

	var page struct {
		Results []Launch `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode next launch: %w", err)
	}
	if len(page.Results) == 0 {
		return nil, nil
	}
	return &page.Results[0], nil
}
