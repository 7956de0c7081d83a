package spacedevs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func rosterFixture() []Astronaut {
	mk := func(name, nationality, status string) Astronaut {
		a := Astronaut{Name: name, Nationality: nationality}
		a.Status.Name = status
		return a
	}
	return []Astronaut{
		mk("Neil A.", "American", "Retired"),
		mk("Sally R.", "American", "Active"),
		mk("Yuri G.", "Russian", "Deceased"),
		mk("Pedro D.", "Spanish", "Active"),
		mk("Chris H.", "american", "Retired"),
	}
}

func writeMirrorFile(t *testing.T, astronauts []Astronaut) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "astronauts.json")
	data, err := json.Marshal(astronauts)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestAstronautsPaginatesAndMirrors(t *testing.T) {
	requests := 0
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/astronaut/" {
			t.Errorf("path = %q", r.URL.Path)
		}
		switch r.URL.Query().Get("page") {
		case "":
			fmt.Fprintf(w, `{"next":%q,"results":[{"name":"Neil A.","nationality":"American","status":{"name":"Retired"}},{"name":"Sally R.","nationality":"American","status":{"name":"Active"}}]}`,
				srv.URL+"/astronaut/?limit=100&page=2")
		case "2":
			fmt.Fprint(w, `{"next":null,"results":[{"name":"Yuri G.","nationality":"Russian","status":{"name":"Deceased"}}]}`)
		default:
			t.Errorf("unexpected page %q", r.URL.Query().Get("page"))
		}
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "astronauts.json")
	rc := NewRosterCache(path, WithRosterBaseURL(srv.URL), WithRosterHTTPClient(srv.Client()))

	astronauts, err := rc.Astronauts(context.Background())
	if err != nil {
		t.Fatalf("Astronauts: %v", err)
	}
	if len(astronauts) != 3 {
		t.Fatalf("len = %d, want 3", len(astronauts))
	}
	if requests != 2 {
		t.Errorf("requests = %d, want 2 pages", requests)
	}

	// The mirror holds the raw record list with no wrapper object.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("mirror not written: %v", err)
	}
	var mirrored []Astronaut
	if err := json.Unmarshal(data, &mirrored); err != nil {
		t.Fatalf("mirror is not a bare list: %v", err)
	}
	if len(mirrored) != 3 {
		t.Errorf("mirror len = %d, want 3", len(mirrored))
	}

	// Second access is served from memory.
	if _, err := rc.Astronauts(context.Background()); err != nil {
		t.Fatal(err)
	}
	if requests != 2 {
		t.Errorf("requests after second access = %d, want 2", requests)
	}
}

func TestAstronautsUsesMirrorWithoutNetwork(t *testing.T) {
	path := writeMirrorFile(t, rosterFixture())

	// No base URL override: any network attempt would hit the real host and
	// time out, so a fast pass proves the mirror was used.
	rc := NewRosterCache(path, WithRosterHTTPClient(&http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			t.Fatal("unexpected network request with a mirror present")
			return nil, nil
		}),
	}))

	astronauts, err := rc.Astronauts(context.Background())
	if err != nil {
		t.Fatalf("Astronauts: %v", err)
	}
	if len(astronauts) != 5 {
		t.Errorf("len = %d, want 5", len(astronauts))
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestAstronautsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	rc := NewRosterCache(
		filepath.Join(t.TempDir(), "astronauts.json"),
		WithRosterBaseURL(srv.URL),
		WithRosterHTTPClient(srv.Client()),
	)
	if _, err := rc.Astronauts(context.Background()); !errors.Is(err, ErrRateLimited) {
		t.Errorf("error = %v, want ErrRateLimited", err)
	}
}

func TestRefreshReplacesMirror(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		fmt.Fprint(w, `{"next":null,"results":[{"name":"New Crew","nationality":"German","status":{"name":"Active"}}]}`)
	}))
	defer srv.Close()

	path := writeMirrorFile(t, rosterFixture())
	rc := NewRosterCache(path, WithRosterBaseURL(srv.URL), WithRosterHTTPClient(srv.Client()))

	count, err := rc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if count != 1 || requests != 1 {
		t.Errorf("count = %d, requests = %d", count, requests)
	}

	// Both the in-process copy and the mirror now hold the new roster.
	astronauts, err := rc.Astronauts(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(astronauts) != 1 || astronauts[0].Name != "New Crew" {
		t.Errorf("astronauts = %+v", astronauts)
	}
	data, _ := os.ReadFile(path)
	var mirrored []Astronaut
	if err := json.Unmarshal(data, &mirrored); err != nil || len(mirrored) != 1 {
		t.Errorf("mirror = %s", data)
	}
}

func TestByCountry(t *testing.T) {
	rc := NewRosterCache(writeMirrorFile(t, rosterFixture()))

	tests := []struct {
		query string
		want  []string
	}{
		{"american", []string{"Neil A.", "Sally R.", "Chris H."}},
		{"AMER", []string{"Neil A.", "Sally R.", "Chris H."}},
		{"russ", []string{"Yuri G."}},
		{"atlantis", []string{}},
	}

	for _, tt := range tests {
		got, err := rc.ByCountry(context.Background(), tt.query)
		if err != nil {
			t.Fatalf("ByCountry(%q): %v", tt.query, err)
		}
		if len(got) != len(tt.want) {
			t.Errorf("ByCountry(%q) = %v, want %v", tt.query, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ByCountry(%q)[%d] = %q, want %q", tt.query, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTopCountries(t *testing.T) {
	rc := NewRosterCache(writeMirrorFile(t, rosterFixture()))

	top, err := rc.TopCountries(context.Background(), 10)
	if err != nil {
		t.Fatalf("TopCountries: %v", err)
	}

	// Grouping keys on the raw-cased string, so "American" and "american"
	// stay separate; ties keep first-seen order.
	wantCountries := []string{"American", "Russian", "Spanish", "american"}
	if len(top) != len(wantCountries) {
		t.Fatalf("len = %d, want %d: %+v", len(top), len(wantCountries), top)
	}
	for i, want := range wantCountries {
		if top[i].Country != want {
			t.Errorf("top[%d] = %q, want %q", i, top[i].Country, want)
		}
	}

	if top[0].Count != 2 {
		t.Errorf("American count = %d, want 2", top[0].Count)
	}
	if len(top[0].Active) != 1 || top[0].Active[0] != "Sally R." {
		t.Errorf("American active = %v", top[0].Active)
	}
	if len(top[0].Inactive) != 1 || top[0].Inactive[0] != "Neil A." {
		t.Errorf("American inactive = %v", top[0].Inactive)
	}
}

func TestTopCountriesLimit(t *testing.T) {
	rc := NewRosterCache(writeMirrorFile(t, rosterFixture()))

	top, err := rc.TopCountries(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopCountries: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("len = %d, want 2", len(top))
	}
	if top[0].Country != "American" {
		t.Errorf("top[0] = %q, want American", top[0].Country)
	}
}
