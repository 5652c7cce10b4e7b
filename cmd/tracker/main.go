package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"mania-tracker/internal/config"
	"mania-tracker/internal/constants"
	fxmodules "mania-tracker/internal/fx"
	"mania-tracker/internal/middleware"
	"mania-tracker/internal/server"
	"mania-tracker/internal/tracker"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

func main() {
	fx.New(
		fxmodules.Module,
		fx.Invoke(run),
	).Run()
}

func run(
	lc fx.Lifecycle,
	adminServer *server.AdminServer,
	sched *tracker.Tracker,
	cfg *config.Config,
	db *sql.DB,
	logger zerolog.Logger,
) {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	handler := middleware.RequestID(logger)(c.Handler(adminServer.Handler()))

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:     handler,
		ReadTimeout: constants.RequestTimeout,
	}

	schedCtx, cancelSched := context.WithCancel(context.Background())
	schedDone := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				logger.Info().Str("addr", srv.Addr).Msg("server starting")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			go func() {
				defer close(schedDone)
				if err := sched.Run(schedCtx); err != nil && schedCtx.Err() == nil {
					logger.Error().Err(err).Msg("scheduler exited")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down")
			cancelSched()
			<-schedDone

			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}

			if err := db.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing database connection")
			}
			logger.Info().Msg("stopped gracefully")
			return nil
		},
	})
}
