// Package nasa is the client for the NASA open APIs consumed by the
// dashboard: the astronomy picture of the day, the InSight Mars weather
// feed, and the near-Earth object feed. Every fetch goes through a shared
// circuit breaker so a misbehaving upstream cannot burn the rate-limited
// API key on doomed requests.
package nasa

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rgoodwin/spacedash/internal/metrics"
)

const (
	DefaultBaseURL = "https://api.nasa.gov"

	// DemoKey is NASA's public demo credential, used when no key is configured.
	DemoKey = "DEMO_KEY"
)

// ErrUpstream wraps any network or non-2xx failure talking to the API.
var ErrUpstream = errors.New("nasa api request failed")

// StatusError is a non-2xx response. The APOD lookback walk inspects the
// code to tell "no picture that day" (keep walking) from 429 (stop).
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nasa api status %d: %s", e.Code, e.Body)
}

// IsRateLimited reports whether err is an HTTP 429 from the API.
func IsRateLimited(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusTooManyRequests
}

type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
	breaker *gobreaker.CircuitBreaker[[]byte]
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithBaseURL(raw string) Option {
	return func(c *Client) {
		if u, err := url.Parse(raw); err == nil {
			c.baseURL = u
		}
	}
}

// New creates a client. An empty apiKey falls back to the demo key.
func New(apiKey string, opts ...Option) *Client {
	if apiKey == "" {
		apiKey = DemoKey
	}
	u, _ := url.Parse(DefaultBaseURL)
	c := &Client{
		http:    &http.Client{Timeout: 15 * time.Second},
		baseURL: u,
		apiKey:  apiKey,
	}
	for _, o := range opts {
		o(c)
	}
	c.breaker = newBreaker("nasa-api")
	return c
}

func newBreaker(name string) *gobreaker.CircuitBreaker[[]byte] {
	metrics.BreakerState.WithLabelValues(name).Set(0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		// Non-429 4xx responses are expected protocol outcomes (the APOD
		// lookback walks past missing days as 404s) and say nothing about
		// upstream health; only network failures, 429 and 5xx count.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.Code < http.StatusInternalServerError && se.Code != http.StatusTooManyRequests
			}
			return false
		},
		OnStateChange: func(name string, _, to gobreaker.State) {
			metrics.BreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// getJSON performs a breaker-guarded GET of p with the api_key attached and
// decodes the response body into out.
func (c *Client) getJSON(ctx context.Context, p string, q map[string]string, out any) error {
	u := *c.baseURL
	u.Path = path.Join(u.Path, p)
	qq := u.Query()
	qq.Set("api_key", c.apiKey)
	for k, v := range q {
		qq.Set(k, v)
	}
	u.RawQuery = qq.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := c.http.Do(req)
		metrics.ObserveUpstream("nasa", time.Since(start))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		defer resp.Body.Close() //nolint:errcheck

		b, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Code: resp.StatusCode, Body: truncate(string(b), 200)}
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
