// Package routes wires the dashboard's read-only JSON API.
package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/hlog"

	"github.com/rgoodwin/spacedash/astro"
	"github.com/rgoodwin/spacedash/countdown"
	"github.com/rgoodwin/spacedash/internal/jobs"
	"github.com/rgoodwin/spacedash/internal/metrics"
	"github.com/rgoodwin/spacedash/nasa"
	"github.com/rgoodwin/spacedash/spacedevs"
)

type Server struct {
	Router    *chi.Mux
	NASA      *nasa.Client
	Insight   *nasa.InsightService
	Roster    *spacedevs.RosterCache
	Launches  *spacedevs.LaunchCache
	Ephemeris astro.Ephemeris
	Jobs      *asynq.Client

	APODLookbackDays int

	// Now is the clock used by time-dependent handlers; tests pin it.
	Now func() time.Time
}

type ServerOptions struct {
	NASA             *nasa.Client
	Insight          *nasa.InsightService
	Roster           *spacedevs.RosterCache
	Launches         *spacedevs.LaunchCache
	Ephemeris        astro.Ephemeris
	Jobs             *asynq.Client
	APODLookbackDays int
	AllowedOrigins   []string
}

func New(opts ServerOptions) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(httprate.LimitByIP(120, time.Minute))

	s := &Server{
		Router:           r,
		NASA:             opts.NASA,
		Insight:          opts.Insight,
		Roster:           opts.Roster,
		Launches:         opts.Launches,
		Ephemeris:        opts.Ephemeris,
		Jobs:             opts.Jobs,
		APODLookbackDays: opts.APODLookbackDays,
		Now:              time.Now,
	}
	if s.APODLookbackDays <= 0 {
		s.APODLookbackDays = 30
	}
	if s.Ephemeris == nil {
		s.Ephemeris = astro.DisabledEphemeris()
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/apod", s.handleAPOD)
		api.Get("/mars-insight", s.handleMarsInsight)
		api.Get("/countdown", s.handleCountdown)
		api.Get("/moon-phase", s.handleMoonPhase)
		api.Get("/moon-phase/range", s.handleMoonPhaseRange)
		api.Get("/neos", s.handleNeoFeed)
		api.Get("/neos/browse", s.handleNeoBrowse)
		api.Get("/neos/{neoID}", s.handleNeoLookup)
		api.Get("/astronauts", s.handleAstronauts)
		api.Get("/astronauts/top", s.handleTopCountries)
		api.Post("/cache/refresh", s.handleCacheRefresh)
	})

	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleAPOD(w http.ResponseWriter, r *http.Request) {
	if date := r.URL.Query().Get("date"); date != "" {
		apod, err := s.NASA.APODForDate(r.Context(), date)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, apod)
		return
	}
	writeJSON(w, http.StatusOK, s.NASA.APODLookback(r.Context(), s.Now(), s.APODLookbackDays))
}

func (s *Server) handleMarsInsight(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]any{
		"sol": s.Insight.LatestSol(ctx),
		"temp": map[string]any{
			"avg": s.Insight.TempAvg(ctx),
			"min": s.Insight.TempMin(ctx),
			"max": s.Insight.TempMax(ctx),
		},
		"wind": map[string]any{
			"avg": s.Insight.WindAvg(ctx),
			"min": s.Insight.WindMin(ctx),
			"max": s.Insight.WindMax(ctx),
		},
		"pressure": map[string]any{
			"avg": s.Insight.PressureAvg(ctx),
			"min": s.Insight.PressureMin(ctx),
			"max": s.Insight.PressureMax(ctx),
		},
	})
}

func (s *Server) handleCountdown(w http.ResponseWriter, r *http.Request) {
	now := s.Now()

	name := "New Year's Eve"
	target := time.Date(now.Year(), time.December, 31, 23, 59, 59, 0, time.UTC).Format("2006-01-02T15:04:05")
	if launch, ok := s.Launches.Next(r.Context()); ok {
		name, target = launch.Name, launch.Net
	}

	writeJSON(w, http.StatusOK, countdown.Until(name, target, now))
}

func (s *Server) handleMoonPhase(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	date := s.Now().UTC()
	var reading astro.Reading
	if ds := q.Get("date"); ds != "" {
		parsed, err := astro.ParseDate(ds)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		date = parsed
		reading = astro.Calculate(date)
	} else {
		reading = astro.Calculate(date)
	}

	payload := map[string]any{
		"phase":        reading.Phase,
		"illumination": reading.Illumination,
		"age":          reading.Age,
		"next_phase":   reading.NextPhase,
		"days_to_next": reading.DaysToNext,
		"date":         reading.Date,
	}

	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr != "" || lonStr != "" {
		lat, errLat := strconv.ParseFloat(latStr, 64)
		lon, errLon := strconv.ParseFloat(lonStr, 64)
		if errLat != nil || errLon != nil {
			writeError(w, http.StatusBadRequest, "lat and lon must both be valid coordinates")
			return
		}

		// Rise/set is enrichment: engine failures ride along in the payload
		// instead of failing the phase response.
		if rs, err := s.Ephemeris.MoonRiseSet(date, lat, lon); err != nil {
			payload["error"] = err.Error()
		} else {
			payload["rise"] = rs.Rise
			payload["set"] = rs.Set
			payload["location"] = rs.Location
		}
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleMoonPhaseRange(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start := q.Get("start")
	if start == "" {
		writeError(w, http.StatusBadRequest, "start parameter required")
		return
	}

	days := 7
	if d := q.Get("days"); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil || n < 1 || n > 366 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 366")
			return
		}
		days = n
	}

	readings, err := astro.Range(start, days)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleNeoFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	start, err := time.Parse("2006-01-02", q.Get("start"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "start parameter required as YYYY-MM-DD")
		return
	}
	end, err := time.Parse("2006-01-02", q.Get("end"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "end parameter required as YYYY-MM-DD")
		return
	}

	feed, err := s.NASA.NeoFeed(r.Context(), start, end)
	if err != nil {
		s.upstreamError(w, r, "neo feed", err)
		return
	}

	summary := nasa.SummarizeFeed(feed)
	writeJSON(w, http.StatusOK, map[string]any{
		"element_count": summary.ElementCount,
		"closest":       orEmpty(summary.Closest),
		"largest":       orEmpty(summary.Largest),
		"closest_list":  summary.ClosestList,
		"all_neos":      summary.AllNeos,
	})
}

// orEmpty keeps absent records as {} in responses, which the dashboard
// renders as "no data".
func orEmpty[T any](v *T) any {
	if v == nil {
		return struct{}{}
	}
	return v
}

func (s *Server) handleNeoLookup(w http.ResponseWriter, r *http.Request) {
	raw, err := s.NASA.NeoLookup(r.Context(), chi.URLParam(r, "neoID"))
	if err != nil {
		s.upstreamError(w, r, "neo lookup", err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) handleNeoBrowse(w http.ResponseWriter, r *http.Request) {
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "page must be a non-negative integer")
			return
		}
		page = n
	}

	raw, err := s.NASA.NeoBrowse(r.Context(), page)
	if err != nil {
		s.upstreamError(w, r, "neo browse", err)
		return
	}
	writeJSON(w, http.StatusOK, raw)
}

func (s *Server) handleAstronauts(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "country parameter required")
		return
	}

	names, err := s.Roster.ByCountry(r.Context(), country)
	if err != nil {
		s.upstreamError(w, r, "astronaut roster", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"country":    country,
		"count":      len(names),
		"astronauts": names,
	})
}

func (s *Server) handleTopCountries(w http.ResponseWriter, r *http.Request) {
	n := 10
	if p := r.URL.Query().Get("n"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		n = parsed
	}

	top, err := s.Roster.TopCountries(r.Context(), n)
	if err != nil {
		s.upstreamError(w, r, "astronaut roster", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"countries": top})
}

func (s *Server) handleCacheRefresh(w http.ResponseWriter, r *http.Request) {
	if s.Jobs == nil {
		writeError(w, http.StatusServiceUnavailable, "job queue not configured")
		return
	}

	jobID := uuid.NewString()
	payload, _ := json.Marshal(jobs.RefreshPayload{JobID: jobID})

	for _, task := range []string{jobs.TaskRefreshRoster, jobs.TaskRefreshWeather} {
		if _, err := s.Jobs.Enqueue(asynq.NewTask(task, payload), asynq.Queue(jobs.QueueSnapshots), asynq.MaxRetry(3)); err != nil {
			hlog.FromRequest(r).Error().Err(err).Str("task", task).Msg("enqueue refresh failed")
			writeError(w, http.StatusInternalServerError, "could not queue refresh")
			return
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID, "status": "queued"})
}

// upstreamError maps fetch failures onto the API's error contract: 429 when
// an upstream rate limit blocked the fetch, 500 otherwise.
func (s *Server) upstreamError(w http.ResponseWriter, r *http.Request, what string, err error) {
	hlog.FromRequest(r).Error().Err(err).Msg(what + " failed")

	if errors.Is(err, spacedevs.ErrRateLimited) || nasa.IsRateLimited(err) {
		writeError(w, http.StatusTooManyRequests, what+" rate limited, try again later")
		return
	}
	writeError(w, http.StatusInternalServerError, what+" unavailable")
}
