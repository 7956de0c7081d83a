package nasa

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rgoodwin/spacedash/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("test-key", WithBaseURL(srv.URL), WithHTTPClient(srv.Client())), srv
}

func TestAPODForDate(t *testing.T) {
	var gotKey, gotDate string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("api_key")
		gotDate = r.URL.Query().Get("date")
		fmt.Fprint(w, `{"date":"2023-06-01","title":"Nebula","media_type":"image","url":"https://img","hdurl":"https://hd"}`)
	})

	apod, err := client.APODForDate(context.Background(), "2023-06-01")
	if err != nil {
		t.Fatalf("APODForDate: %v", err)
	}
	if gotKey != "test-key" {
		t.Errorf("api_key = %q, want test-key", gotKey)
	}
	if gotDate != "2023-06-01" {
		t.Errorf("date = %q", gotDate)
	}
	if apod.Title != "Nebula" || apod.URL != "https://img" || apod.RawURL != "https://img" {
		t.Errorf("apod = %+v", apod)
	}
}

func TestAPODForDateInvalidDate(t *testing.T) {
	client := New("test-key")
	for _, s := range []string{"06-01-2023", "yesterday", ""} {
		if _, err := client.APODForDate(context.Background(), s); !errors.Is(err, ErrInvalidDate) {
			t.Errorf("APODForDate(%q) error = %v, want ErrInvalidDate", s, err)
		}
	}
}

func TestAPODForDateUpstreamFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	apod, err := client.APODForDate(context.Background(), "2023-06-01")
	if err != nil {
		t.Fatalf("upstream failure should degrade, got err: %v", err)
	}
	if apod != (APOD{}) {
		t.Errorf("apod = %+v, want empty", apod)
	}
}

func TestAPODVideoUsesThumbnail(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"date":"2023-06-01","title":"Clip","media_type":"video","url":"https://youtube/x","thumbnail_url":"https://thumb"}`)
	})

	apod, err := client.APODForDate(context.Background(), "2023-06-01")
	if err != nil {
		t.Fatalf("APODForDate: %v", err)
	}
	if apod.URL != "https://thumb" {
		t.Errorf("url = %q, want thumbnail", apod.URL)
	}
	if apod.RawURL != "https://youtube/x" {
		t.Errorf("raw_url = %q, want original video url", apod.RawURL)
	}
}

var lookbackFrom = time.Date(2023, 6, 10, 12, 0, 0, 0, time.UTC)

func TestAPODLookbackSkipsMissingDays(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		date := r.URL.Query().Get("date")
		if date == "2023-06-10" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"date":%q,"title":"Found","media_type":"image","url":"https://img"}`, date)
	})

	apod := client.APODLookback(context.Background(), lookbackFrom, 3)
	if apod.Date != "2023-06-09" {
		t.Errorf("date = %q, want 2023-06-09", apod.Date)
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2", requests)
	}
}

func TestAPODLookbackStopsOnRateLimit(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	apod := client.APODLookback(context.Background(), lookbackFrom, 10)
	if apod != (APOD{}) {
		t.Errorf("apod = %+v, want empty", apod)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (walk must stop on 429)", requests)
	}
}

func TestAPODLookbackStopsOnAPIError(t *testing.T) {
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"error":{"code":"API_KEY_INVALID","message":"bad key"}}`)
	})

	apod := client.APODLookback(context.Background(), lookbackFrom, 10)
	if apod != (APOD{}) {
		t.Errorf("apod = %+v, want empty", apod)
	}
	if requests != 1 {
		t.Errorf("requests = %d, want 1 (walk must stop on API error)", requests)
	}
}

func TestAPODLookbackExhaustsFullWindow(t *testing.T) {
	// An all-404 window must not open the shared breaker: every day gets its
	// request, and other endpoints on the same client keep working.
	requests := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/insight_weather/" {
			fmt.Fprint(w, `{"sol_keys":["675"],"675":{"AT":{"av":-60.0}}}`)
			return
		}
		requests++
		w.WriteHeader(http.StatusNotFound)
	})

	apod := client.APODLookback(context.Background(), lookbackFrom, 30)
	if apod != (APOD{}) {
		t.Errorf("apod = %+v, want empty", apod)
	}
	if requests != 31 {
		t.Errorf("requests = %d, want 31 (one per day in the window)", requests)
	}

	svc := NewInsightService(client, cache.NewMemCache())
	if err := svc.Refresh(context.Background()); err != nil {
		t.Errorf("healthy endpoint failed after 404 walk: %v", err)
	}
}

func TestIsRateLimited(t *testing.T) {
	if !IsRateLimited(&StatusError{Code: http.StatusTooManyRequests}) {
		t.Error("429 not detected")
	}
	if IsRateLimited(&StatusError{Code: http.StatusNotFound}) {
		t.Error("404 misdetected as rate limit")
	}
	if IsRateLimited(errors.New("boom")) {
		t.Error("plain error misdetected as rate limit")
	}
	wrapped := fmt.Errorf("fetch: %w", &StatusError{Code: http.StatusTooManyRequests})
	if !IsRateLimited(wrapped) {
		t.Error("wrapped 429 not detected")
	}
}
