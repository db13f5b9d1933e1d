package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/clock"
	"github.com/podhaven/adinventory/internal/storage/postgres"
	"github.com/podhaven/adinventory/internal/tenant"
	transporthttp "github.com/podhaven/adinventory/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(cc *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background hold sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cc.ensureConfig()
			if err != nil {
				return err
			}

			pool, err := cc.connect(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			router := tenant.NewRouter(postgres.NewTenantRepository(pool))
			resRepo := postgres.NewReservationRepository(pool)
			resSvc := app.NewReservationService(resRepo, clock.NewSystem(), cc.log,
				app.WithHoldTTL(cfg.HoldTTL()))
			syncSvc := app.NewSyncService(postgres.NewSyncRepository(pool), cc.log,
				app.WithDefaultEpisodeLength(cfg.Inventory.DefaultEpisodeLengthMinutes))
			sweeper := app.NewSweeper(resSvc, router, cc.log, cfg.SweepInterval(), cfg.Sweep.BatchSize)

			mux := http.NewServeMux()
			mux.HandleFunc("/health", transporthttp.HealthHandler)
			mux.Handle("/metrics", promhttp.Handler())

			api := http.NewServeMux()
			api.Handle("/holds", transporthttp.HandleCreateHold(resSvc))
			api.Handle("/holds/", transporthttp.HandleReservation(resSvc))
			api.Handle("/inventory/", transporthttp.HandleGetInventory(resSvc))
			api.Handle("/reconcile", transporthttp.HandleReconcile(syncSvc))
			api.Handle("/", transporthttp.NotFoundHandler())
			mux.Handle("/", transporthttp.WithTenant(router, api))

			handler := transporthttp.RequestLogger(
				transporthttp.CORS(cfg.Server.CORSOrigins, mux),
				cc.log,
			)

			server := &http.Server{
				Addr:    cfg.Server.Bind,
				Handler: handler,
			}

			stopCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sweepCtx, cancelSweep := context.WithCancel(stopCtx)
			defer cancelSweep()
			go sweeper.Run(sweepCtx)

			cc.log.Info().Str("bind", cfg.Server.Bind).Msg("api listening")

			srvErr := make(chan error, 1)
			go func() {
				srvErr <- server.ListenAndServe()
			}()

			select {
			case err := <-srvErr:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-stopCtx.Done():
				cc.log.Info().Msg("shutdown signal received, stopping server")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				cc.log.Error().Err(err).Msg("server shutdown error")
			}
			cc.log.Info().Msg("server stopped")
			return nil
		},
	}
}
