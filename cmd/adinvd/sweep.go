package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/clock"
	"github.com/podhaven/adinventory/internal/storage/postgres"
	"github.com/podhaven/adinventory/internal/tenant"
)

func newSweepCommand(cc *commandContext) *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Release expired holds across all tenants",
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
			svc := app.NewReservationService(postgres.NewReservationRepository(pool), clock.NewSystem(), cc.log,
				app.WithHoldTTL(cfg.HoldTTL()))
			sweeper := app.NewSweeper(svc, router, cc.log, cfg.SweepInterval(), cfg.Sweep.BatchSize)

			if once {
				released := sweeper.SweepAll(cmd.Context())
				cc.log.Info().Int("released", released).Msg("sweep complete")
				return nil
			}

			stopCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			sweeper.Run(stopCtx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "Run a single sweep and exit")
	return cmd
}
