package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/podhaven/adinventory/internal/metrics"
	"github.com/podhaven/adinventory/internal/tenant"
)

// TenantSource yields a handle per tenant partition the sweep should visit.
type TenantSource interface {
	All(ctx context.Context) ([]tenant.Handle, error)
}

// Sweeper periodically releases expired holds that nothing reads, so stale
// reservations cannot hold capacity hostage. It is advisory: lazy expiry on
// read remains the primary mechanism and the two never double-release.
type Sweeper struct {
	svc      *ReservationService
	tenants  TenantSource
	log      zerolog.Logger
	interval time.Duration
	batch    int
}

func NewSweeper(svc *ReservationService, tenants TenantSource, log zerolog.Logger, interval time.Duration, batch int) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		svc:      svc,
		tenants:  tenants,
		log:      log,
		interval: interval,
		batch:    batch,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.SweepAll(ctx)
		}
	}
}

// SweepAll walks every tenant partition once. A failing tenant is logged
// and skipped; it never stalls the others.
func (s *Sweeper) SweepAll(ctx context.Context) int {
	handles, err := s.tenants.All(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("sweep: list tenants")
		return 0
	}

	total := 0
	for _, h := range handles {
		n, err := s.sweepTenant(ctx, h)
		if err != nil {
			s.log.Error().Str("tenant", h.ID()).Err(err).Msg("sweep tenant failed")
			continue
		}
		total += n
	}
	if total > 0 {
		s.log.Info().Int("released", total).Msg("sweep released expired holds")
	}
	return total
}

func (s *Sweeper) sweepTenant(ctx context.Context, h tenant.Handle) (int, error) {
	total := 0
	for {
		n, err := s.svc.ExpireDue(ctx, h, s.batch)
		if err != nil {
			return total, err
		}
		total += n
		metrics.SweepReleased.Add(float64(n))
		if n < s.batch {
			return total, nil
		}
	}
}
