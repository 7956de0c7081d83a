package nasa

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rgoodwin/spacedash/cache"
)

const insightFixture = `{
  "sol_keys": ["675", "676"],
  "675": {
    "AT": {"av": -62.3, "mn": -96.9, "mx": -15.9},
    "HWS": {"av": 7.2, "mn": 0.2, "mx": 22.5},
    "PRE": {"av": 750.6, "mn": 722.0, "mx": 768.8}
  },
  "676": {
    "AT": {"av": -5.25}
  }
}`

func newInsightService(t *testing.T, handler http.HandlerFunc) (*InsightService, *int) {
	t.Helper()
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := New("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
	return NewInsightService(client, cache.NewMemCache()), &requests
}

func TestInsightLatestSolValues(t *testing.T) {
	svc, _ := newInsightService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, insightFixture)
	})
	ctx := context.Background()

	if got := svc.LatestSol(ctx); got != "676" {
		t.Errorf("LatestSol = %q, want 676", got)
	}
	if got := svc.TempAvg(ctx); got == nil || *got != -5.25 {
		t.Errorf("TempAvg = %v, want -5.25", got)
	}
	// Sol 676 carries only the average temperature.
	if got := svc.TempMin(ctx); got != nil {
		t.Errorf("TempMin = %v, want nil", *got)
	}
	if got := svc.WindAvg(ctx); got != nil {
		t.Errorf("WindAvg = %v, want nil", *got)
	}
	if got := svc.PressureMax(ctx); got != nil {
		t.Errorf("PressureMax = %v, want nil", *got)
	}

	sols := svc.Sols(ctx)
	if len(sols) != 2 || sols[0] != "675" || sols[1] != "676" {
		t.Errorf("Sols = %v", sols)
	}
}

func TestInsightSnapshotReused(t *testing.T) {
	svc, requests := newInsightService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, insightFixture)
	})
	ctx := context.Background()

	svc.LatestSol(ctx)
	svc.TempAvg(ctx)
	svc.Sols(ctx)

	if *requests != 1 {
		t.Errorf("upstream requests = %d, want 1 within TTL", *requests)
	}
}

func TestInsightUpstreamFailure(t *testing.T) {
	svc, _ := newInsightService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	ctx := context.Background()

	if got := svc.LatestSol(ctx); got != "" {
		t.Errorf("LatestSol = %q, want empty", got)
	}
	if got := svc.TempAvg(ctx); got != nil {
		t.Errorf("TempAvg = %v, want nil", *got)
	}
	if got := svc.Sols(ctx); len(got) != 0 {
		t.Errorf("Sols = %v, want empty", got)
	}
}

func TestInsightRefresh(t *testing.T) {
	svc, requests := newInsightService(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, insightFixture)
	})
	ctx := context.Background()

	if err := svc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	// The refreshed snapshot serves reads without another fetch.
	if got := svc.LatestSol(ctx); got != "676" {
		t.Errorf("LatestSol after refresh = %q", got)
	}
	if *requests != 1 {
		t.Errorf("upstream requests = %d, want 1", *requests)
	}
}

func TestInsightRefreshFailure(t *testing.T) {
	svc, _ := newInsightService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	if err := svc.Refresh(context.Background()); err == nil {
		t.Error("Refresh should surface the upstream failure")
	}
}

func TestLatestSolNumericOrdering(t *testing.T) {
	tests := []struct {
		sols []string
		want string
	}{
		{[]string{"99", "100"}, "100"},
		{[]string{"675", "676", "674"}, "676"},
		{[]string{"7"}, "7"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := latestSol(tt.sols); got != tt.want {
			t.Errorf("latestSol(%v) = %q, want %q", tt.sols, got, tt.want)
		}
	}
}

func TestParseWeatherMalformed(t *testing.T) {
	p := parseWeather([]byte(`not json`))
	if len(p.SolKeys) != 0 || len(p.Sols) != 0 {
		t.Errorf("malformed payload parsed to %+v", p)
	}

	// sol_keys naming a sol with no matching entry is skipped, not fatal.
	p = parseWeather([]byte(`{"sol_keys":["675","999"],"675":{"AT":{"av":1.0}}}`))
	if len(p.Sols) != 1 {
		t.Errorf("sols = %v, want only 675", p.Sols)
	}
	if _, ok := p.Sols["675"]; !ok {
		t.Error("sol 675 missing")
	}
}
