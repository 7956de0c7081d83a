// cmd/worker/main.go
//
// The worker keeps the disk snapshots warm off the request path: it handles
// the refresh tasks enqueued by POST /api/cache/refresh, refetching the
// astronaut roster mirror and the InSight weather snapshot.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/rgoodwin/spacedash/cache"
	"github.com/rgoodwin/spacedash/internal/config"
	"github.com/rgoodwin/spacedash/internal/jobs"
	"github.com/rgoodwin/spacedash/nasa"
	"github.com/rgoodwin/spacedash/spacedevs"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	store, err := cache.NewFileCache(cfg.CacheDir)
	if err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.CacheDir).Msg("cache dir error")
	}

	nasaClient := nasa.New(cfg.NASAAPIKey, nasa.WithBaseURL(cfg.NASABaseURL))
	insight := nasa.NewInsightService(nasaClient, store)
	roster := spacedevs.NewRosterCache(
		filepath.Join(cfg.CacheDir, "astronauts.json"),
		spacedevs.WithRosterBaseURL(cfg.SpaceDevsBaseURL),
	)

	srv := asynq.NewServer(asynq.RedisClientOpt{Addr: cfg.RedisAddr}, asynq.Config{
		Concurrency: 4,
		Queues: map[string]int{
			jobs.QueueSnapshots: 10,
			"default":           5,
		},
	})
	mux := asynq.NewServeMux()

	mux.HandleFunc(jobs.TaskRefreshRoster, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.RefreshPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad roster refresh payload")
			return err
		}

		start := time.Now()
		count, err := roster.Refresh(ctx)
		if err != nil {
			return handleRefreshErr(logger, "roster", p.JobID, start, err)
		}
		logger.Info().Str("job_id", p.JobID).Int("astronauts", count).Dur("took", time.Since(start)).Msg("roster refreshed")
		return nil
	})

	mux.HandleFunc(jobs.TaskRefreshWeather, func(ctx context.Context, t *asynq.Task) error {
		var p jobs.RefreshPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			logger.Error().Err(err).Msg("bad weather refresh payload")
			return err
		}

		start := time.Now()
		if err := insight.Refresh(ctx); err != nil {
			return handleRefreshErr(logger, "weather", p.JobID, start, err)
		}
		logger.Info().Str("job_id", p.JobID).Dur("took", time.Since(start)).Msg("weather snapshot refreshed")
		return nil
	})

	logger.Info().Msg("worker running")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker error")
	}
}

// handleRefreshErr decides retry semantics: rate limits and transient
// upstream failures (network errors, 5xx responses) are worth retrying
// later, anything else is dropped.
func handleRefreshErr(logger zerolog.Logger, what, jobID string, start time.Time, err error) error {
	evt := logger.Error().Err(err).Str("job_id", jobID).Dur("took", time.Since(start))

	if retryable(err) {
		evt.Msgf("%s refresh failed, will retry", what)
		return err
	}
	evt.Msgf("%s refresh failed permanently, dropping job", what)
	return nil
}

func retryable(err error) bool {
	if errors.Is(err, spacedevs.ErrRateLimited) || nasa.IsRateLimited(err) || errors.Is(err, nasa.ErrUpstream) {
		return true
	}
	var se *nasa.StatusError
	return errors.As(err, &se) && se.Code >= http.StatusInternalServerError
}
