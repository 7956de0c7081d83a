// cmd/api/main.go
package main

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/rgoodwin/spacedash/astro"
	"github.com/rgoodwin/spacedash/cache"
	"github.com/rgoodwin/spacedash/internal/config"
	"github.com/rgoodwin/spacedash/internal/http/routes"
	"github.com/rgoodwin/spacedash/nasa"
	"github.com/rgoodwin/spacedash/spacedevs"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}

	// Disk snapshots (weather) live under the cache dir, next to the
	// astronaut roster mirror.
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
	launches := spacedevs.NewLaunchCache(spacedevs.WithLaunchBaseURL(cfg.SpaceDevsBaseURL))

	jobsClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := jobsClient.Close(); err != nil {
			logger.Warn().Err(err).Msg("closing job client")
		}
	}()

	s := routes.New(routes.ServerOptions{
		NASA:             nasaClient,
		Insight:          insight,
		Roster:           roster,
		Launches:         launches,
		Ephemeris:        astro.NewEphemeris(),
		Jobs:             jobsClient,
		APODLookbackDays: cfg.APODLookbackDays,
		AllowedOrigins:   cfg.AllowedOrigins,
	})
	h := hlog.NewHandler(logger)(s.Router)

	logger.Info().Str("port", cfg.Port).Msg("starting spacedash api")
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: h}
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}
