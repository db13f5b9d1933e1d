package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/podhaven/adinventory/internal/app"
	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/storage/postgres"
	"github.com/podhaven/adinventory/internal/tenant"
)

func newReconcileCommand(cc *commandContext) *cobra.Command {
	var (
		tenantID string
		showID   string
		episodes []string
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Synchronize inventory rows with the episode catalog",
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
			svc := app.NewSyncService(postgres.NewSyncRepository(pool), cc.log,
				app.WithDefaultEpisodeLength(cfg.Inventory.DefaultEpisodeLengthMinutes))

			var targets []tenant.Handle
			if tenantID != "" {
				h, err := router.Resolve(cmd.Context(), tenantID)
				if err != nil {
					return fmt.Errorf("resolve tenant %q: %w", tenantID, err)
				}
				targets = []tenant.Handle{h}
			} else {
				targets, err = router.All(cmd.Context())
				if err != nil {
					return fmt.Errorf("list tenants: %w", err)
				}
			}

			sel := domain.EpisodeSelector{ShowID: showID, EpisodeIDs: episodes}
			return reconcileTenants(cmd.Context(), cc.log, svc, targets, sel)
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "Reconcile a single tenant (default: all)")
	cmd.Flags().StringVar(&showID, "show", "", "Limit to one show")
	cmd.Flags().StringSliceVar(&episodes, "episode", nil, "Limit to specific episode IDs")
	return cmd
}

type reconciler interface {
	Reconcile(ctx context.Context, tnt tenant.Handle, sel domain.EpisodeSelector) (app.ReconcileSummary, error)
}

// reconcileTenants walks each tenant partition once. A failing tenant is
// logged and skipped so it never blocks the remaining tenants; the run exits
// non-zero when any tenant failed.
func reconcileTenants(ctx context.Context, log zerolog.Logger, svc reconciler, targets []tenant.Handle, sel domain.EpisodeSelector) error {
	failed := 0
	for _, h := range targets {
		summary, err := svc.Reconcile(ctx, h, sel)
		if err != nil {
			failed++
			log.Error().Str("tenant", h.ID()).Err(err).Msg("reconcile tenant failed")
			continue
		}
		log.Info().
			Str("tenant", h.ID()).
			Int("created", summary.Created).
			Int("updated", summary.Updated).
			Int("skipped", summary.Skipped).
			Int("errors", summary.Errors).
			Msg("reconcile complete")
		for _, f := range summary.Failures {
			log.Warn().
				Str("tenant", h.ID()).
				Str("episode_id", f.EpisodeID).
				Str("reason", f.Reason).
				Msg("episode skipped with error")
		}
	}
	if failed > 0 {
		return fmt.Errorf("reconcile failed for %d of %d tenants", failed, len(targets))
	}
	return nil
}
