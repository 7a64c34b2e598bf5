package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/allocai/backend/internal/app"
	"github.com/allocai/backend/internal/db"
)

func serveCmd() *cobra.Command {
	var migrateFirst bool
	var worker bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			if migrateFirst && cfg.DatabaseURL != "" {
				version, err := db.Migrate(cfg.DatabaseURL, db.MigrateUp)
				if err != nil {
					return err
				}
				logger.Info().Uint("version", version).Msg("migrations applied")
			}
			if !cmd.Flags().Changed("worker") {
				worker = cfg.RunWorker
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var background <-chan struct{}
			if worker {
				background = a.StartBackground(ctx)
			} else {
				logger.Info().Msg("job runner disabled in this process")
			}

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           a.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info().Str("port", cfg.Port).Msg("server started")
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
			stop()
			if background != nil {
				<-background
			}
			logger.Info().Msg("server stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply database migrations before serving")
	cmd.Flags().BoolVar(&worker, "worker", true, "run the job runner and cron schedule in this process (default RUN_WORKER)")
	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run only the job runner and cron schedule",
		Long:  "Processes analysis jobs from the shared queue. Use with REDIS_URL so API processes and workers see the same jobs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				if a.Config.RedisURL == "" {
					a.Logger.Warn().Msg("worker without REDIS_URL only sees jobs enqueued by itself")
				}
				<-a.StartBackground(ctx)
				return nil
			})
		},
	}
}
