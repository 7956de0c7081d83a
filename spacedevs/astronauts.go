// Package spacedevs is the client for the Launch Library (thespacedevs.com)
// endpoints the dashboard uses: the paginated astronaut roster and the
// upcoming launch listing. The roster is mirrored to disk on first fetch and
// treated as permanent until refreshed, since the upstream rate limit makes
// refetching per request a non-starter.
package spacedevs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rgoodwin/spacedash/internal/metrics"
)

// DefaultBaseURL is the development host, which has a relaxed rate limit.
const DefaultBaseURL = "https://lldev.thespacedevs.com/2.2.0"

// ErrRateLimited means the roster fetch hit HTTP 429. It is fatal for the
// fetch: callers need to distinguish "no data" from "blocked by rate limit".
var ErrRateLimited = errors.New("spacedevs api rate limited")

// Astronaut is one roster record, flattened to the fields the dashboard uses.
type Astronaut struct {
	Name        string `json:"name"`
	Nationality string `json:"nationality"`
	Status      struct {
		Name string `json:"name"`
	} `json:"status"`
}

// CountryCount is one entry of the top-countries aggregation.
type CountryCount struct {
	Country  string   `json:"country"`
	Count    int      `json:"count"`
	Active   []string `json:"active"`
	Inactive []string `json:"inactive"`
}

// RosterCache owns the astronaut snapshot: an in-process copy backed by a
// JSON file holding the raw record list with no wrapper, so it never expires
// and acts as a local mirror until explicitly refreshed.
type RosterCache struct {
	http    *http.Client
	baseURL string
	path    string

	mu     sync.Mutex
	loaded []Astronaut
	group  singleflight.Group
}

type RosterOption func(*RosterCache)

func WithRosterHTTPClient(h *http.Client) RosterOption {
	return func(rc *RosterCache) { rc.http = h }
}

func WithRosterBaseURL(raw string) RosterOption {
	return func(rc *RosterCache) { rc.baseURL = strings.TrimSuffix(raw, "/") }
}

// NewRosterCache creates a roster cache persisting to path.
func NewRosterCache(path string, opts ...RosterOption) *RosterCache {
	rc := &RosterCache{
		http:    &http.Client{Timeout: 10 * time.Second},
		baseURL: DefaultBaseURL,
		path:    path,
	}
	for _, o := range opts {
		o(rc)
	}
	return rc
}

// Astronauts returns the full roster, loading the disk mirror or fetching
// every page from upstream on first access. Concurrent first accesses share
// one fetch.
func (rc *RosterCache) Astronauts(ctx context.Context) ([]Astronaut, error) {
	rc.mu.Lock()
	if rc.loaded != nil {
		defer rc.mu.Unlock()
		metrics.CacheHit("astronaut_roster")
		return rc.loaded, nil
	}
	rc.mu.Unlock()

	v, err, _ := rc.group.Do("roster", func() (any, error) {
		if astronauts, ok := rc.readMirror(); ok {
			metrics.CacheHit("astronaut_roster")
			return astronauts, nil
		}
		metrics.CacheMiss("astronaut_roster")

		astronauts, err := rc.fetchAll(ctx)
		if err != nil {
			return nil, err
		}
		if err := rc.writeMirror(astronauts); err != nil {
			return nil, fmt.Errorf("persist roster: %w", err)
		}
		return astronauts, nil
	})
	if err != nil {
		return nil, err
	}

	astronauts := v.([]Astronaut)
	rc.mu.Lock()
	rc.loaded = astronauts
	rc.mu.Unlock()
	return astronauts, nil
}

// Refresh refetches the roster unconditionally, rewrites the mirror and
// replaces the in-process copy. Returns the record count.
func (rc *RosterCache) Refresh(ctx context.Context) (int, error) {
	astronauts, err := rc.fetchAll(ctx)
	if err != nil {
		return 0, err
	}
	if err := rc.writeMirror(astronauts); err != nil {
		return 0, fmt.Errorf("persist roster: %w", err)
	}
	rc.mu.Lock()
	rc.loaded = astronauts
	rc.mu.Unlock()
	return len(astronauts), nil
}

func (rc *RosterCache) readMirror() ([]Astronaut, bool) {
	data, err := os.ReadFile(rc.path)
	if err != nil {
		return nil, false
	}
	var astronauts []Astronaut
	if err := json.Unmarshal(data, &astronauts); err != nil {
		return nil, false
	}
	return astronauts, true
}

func (rc *RosterCache) writeMirror(astronauts []Astronaut) error {
	data, err := json.MarshalIndent(astronauts, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(rc.path, data, 0o600)
}

// fetchAll pages through the listing following the next pointer until
// exhausted. A 429 anywhere aborts the whole fetch with ErrRateLimited.
func (rc *RosterCache) fetchAll(ctx context.Context) ([]Astronaut, error) {
	var astronauts []Astronaut
	url := rc.baseURL + "/astronaut/?limit=100"

	for url != "" {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}

		start := time.Now()
		resp, err := rc.http.Do(req)
		metrics.ObserveUpstream("spacedevs", time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("fetch astronauts: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			_ = resp.Body.Close()
			return nil, ErrRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return nil, fmt.Errorf("fetch astronauts: status %d: %s", resp.StatusCode, string(b))
		}

		var page struct {
			Results []Astronaut `json:"results"`
			Next    string      `json:"next"`
		}
		err = json.NewDecoder(resp.Body).Decode(&page)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("decode astronauts: %w", err)
		}

		astronauts = append(astronauts, page.Results...)
		url = page.Next
	}
	return astronauts, nil
}

// ByCountry returns the names of astronauts whose nationality contains the
// given string, case-insensitively.
func (rc *RosterCache) ByCountry(ctx context.Context, country string) ([]string, error) {
	astronauts, err := rc.Astronauts(ctx)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(country)
	names := []string{}
	for _, a := range astronauts {
		if a.Nationality != "" && strings.Contains(strings.ToLower(a.Nationality), needle) {
			names = append(names, a.Name)
		}
	}
	return names, nil
}

// TopCountries returns the n nationalities with the most astronauts, each
// with its members partitioned into active and inactive by status. Grouping
// keys on the raw-cased nationality string ("American" and "american" count
// separately), unlike the case-insensitive ByCountry search; this mirrors the
// upstream data's observed usage. Ties keep first-seen order.
func (rc *RosterCache) TopCountries(ctx context.Context, n int) ([]CountryCount, error) {
	astronauts, err := rc.Astronauts(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]*CountryCount)
	var order []string
	for _, a := range astronauts {
		if a.Nationality == "" {
			continue
		}
		cc, exists := counts[a.Nationality]
		if !exists {
			cc = &CountryCount{Country: a.Nationality, Active: []string{}, Inactive: []string{}}
			counts[a.Nationality] = cc
			order = append(order, a.Nationality)
		}
		cc.Count++
		if strings.EqualFold(a.Status.Name, "active") {
			cc.Active = append(cc.Active, a.Name)
		} else {
			cc.Inactive = append(cc.Inactive, a.Name)
		}
	}

	result := make([]CountryCount, 0, len(order))
	for _, country := range order {
		result = append(result, *counts[country])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Count > result[j].Count
	})

	if n > 0 && len(result) > n {
		result = result[:n]
	}
	return result, nil
}
