package main

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/timeegg/backend/internal/logger"
	"github.com/timeegg/backend/internal/metrics"
	"github.com/timeegg/backend/internal/router"
	"github.com/timeegg/backend/pkg/config"
	"github.com/timeegg/backend/pkg/firebase"
	"github.com/timeegg/backend/validators"
)

func main() {
	log := logger.New("server")

	db, err := config.InitDB()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize databases")
	}
	defer db.CloseDB()

	cfg := config.Load()

	ctx := context.Background()
	fbApp, err := firebase.InitFirebase(ctx, cfg.FirebaseCredentialsPath, cfg.FirebaseStorageBucket)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize firebase")
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = validators.NewValidator()

	router.SetupMiddleware(e)
	if err := router.SetupRoutes(e, db.Postgres, db.Mongo, fbApp, cfg.GoogleMapsAPIKey, log); err != nil {
		log.Fatal().Err(err).Msg("failed to set up routes")
	}

	// Prometheus scrape endpoint on its own port.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(":"+cfg.MetricsPort, mux); err != nil {
			log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("starting server")
	if err := e.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
