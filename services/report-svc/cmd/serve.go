package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"farmreport/migrations"
	"farmreport/pkg/database"
	"farmreport/pkg/logger"
	"farmreport/pkg/telemetry"
	reportsvc "farmreport/services/report-svc"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			// Телеметрия
			if cfg.Tracing.Enabled {
				tp, err := telemetry.Init(ctx, telemetry.FromConfig(cfg.Tracing, cfg.App))
				if err != nil {
					logger.Log.Warn("Failed to init telemetry", "error", err)
				} else {
					defer func() {
						if err := tp.Shutdown(context.Background()); err != nil {
							logger.Log.Warn("Failed to shutdown telemetry", "error", err)
						}
					}()
				}
			}

			app, err := reportsvc.Build(ctx, cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			// Миграции служебных таблиц
			if app.DB != nil {
				if err := database.RunMigrations(ctx, app.DB.Pool, &cfg.Database, migrations.FS, "."); err != nil {
					return err
				}
			}

			limiter, err := app.Limiter()
			if err != nil {
				return err
			}

			if !cfg.App.Debug {
				gin.SetMode(gin.ReleaseMode)
			}

			h, err := app.Handler(limiter)
			if err != nil {
				return err
			}

			srv := &http.Server{
				Addr:         cfg.HTTP.Address(),
				Handler:      h.Router(),
				ReadTimeout:  cfg.HTTP.ReadTimeout,
				WriteTimeout: cfg.HTTP.WriteTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting report service",
					"address", srv.Addr,
					"version", cfg.App.Version,
					"database", cfg.Database.Driver,
					"cache", cfg.Cache.Driver,
				)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("Shutting down report service")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
