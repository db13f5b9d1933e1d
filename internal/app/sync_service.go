package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/metrics"
	"github.com/podhaven/adinventory/internal/tenant"
	"github.com/podhaven/adinventory/internal/threshold"
)

// SyncRepository is the storage surface reconciliation needs. The create and
// recalculate operations are single conditional statements so the
// "untouched rows only" guard cannot race a reservation.
type SyncRepository interface {
	ListEpisodes(ctx context.Context, tnt tenant.Handle, sel domain.EpisodeSelector) ([]domain.Episode, error)
	ThresholdsForShow(ctx context.Context, tnt tenant.Handle, showID string) ([]domain.SpotThreshold, error)
	CreateCalculated(ctx context.Context, tnt tenant.Handle, episodeID, showID string, slots domain.SlotCounts) (bool, error)
	RecalculateIfUnheld(ctx context.Context, tnt tenant.Handle, episodeID string, slots domain.SlotCounts) (bool, error)
}

// ReconcileFailure records one episode that could not be reconciled.
type ReconcileFailure struct {
	EpisodeID string
	Reason    string
}

// ReconcileSummary reports the outcome of one tenant's reconciliation run as
// structured counts rather than progress text.
type ReconcileSummary struct {
	Created  int
	Updated  int
	Skipped  int
	Errors   int
	Failures []ReconcileFailure
}

type SyncService struct {
	repo          SyncRepository
	log           zerolog.Logger
	defaultLength int
}

func NewSyncService(repo SyncRepository, log zerolog.Logger, opts ...SyncServiceOption) *SyncService {
	svc := &SyncService{
		repo:          repo,
		log:           log,
		defaultLength: threshold.DefaultEpisodeLength,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SyncServiceOption func(*SyncService)

// WithDefaultEpisodeLength overrides the length assumed for episodes that
// carry none.
func WithDefaultEpisodeLength(minutes int) SyncServiceOption {
	return func(s *SyncService) {
		if minutes > 0 {
			s.defaultLength = minutes
		}
	}
}

// Reconcile creates missing inventory rows and refreshes threshold-derived
// ones for the selected episodes. Rows with manual overrides or live holds
// are skipped; per-episode failures are counted and the batch continues. An
// unreachable store aborts this tenant only, surfacing as the returned
// error.
func (s *SyncService) Reconcile(ctx context.Context, tnt tenant.Handle, sel domain.EpisodeSelector) (ReconcileSummary, error) {
	var summary ReconcileSummary

	episodes, err := s.repo.ListEpisodes(ctx, tnt, sel)
	if err != nil {
		return ReconcileSummary{}, fmt.Errorf("reconcile tenant %s: %w", tnt.ID(), err)
	}

	thresholdsByShow := make(map[string][]domain.SpotThreshold)

	for _, ep := range episodes {
		thresholds, ok := thresholdsByShow[ep.ShowID]
		if !ok {
			thresholds, err = s.repo.ThresholdsForShow(ctx, tnt, ep.ShowID)
			if err != nil {
				s.fail(&summary, ep.ID, fmt.Errorf("load thresholds: %w", err))
				continue
			}
			thresholdsByShow[ep.ShowID] = thresholds
		}

		length := threshold.LengthOrDefault(ep.LengthMinutes, s.defaultLength)
		slots, err := threshold.Resolve(length, thresholds)
		if err != nil {
			s.fail(&summary, ep.ID, err)
			continue
		}

		created, err := s.repo.CreateCalculated(ctx, tnt, ep.ID, ep.ShowID, slots)
		if err != nil {
			s.fail(&summary, ep.ID, err)
			continue
		}
		if created {
			summary.Created++
			metrics.ReconcileEpisodes.WithLabelValues("created").Inc()
			continue
		}

		updated, err := s.repo.RecalculateIfUnheld(ctx, tnt, ep.ID, slots)
		if err != nil {
			s.fail(&summary, ep.ID, err)
			continue
		}
		if updated {
			summary.Updated++
			metrics.ReconcileEpisodes.WithLabelValues("updated").Inc()
		} else {
			summary.Skipped++
			metrics.ReconcileEpisodes.WithLabelValues("skipped").Inc()
		}
	}

	s.log.Info().
		Str("tenant", tnt.ID()).
		Int("created", summary.Created).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Int("errors", summary.Errors).
		Msg("reconcile finished")
	return summary, nil
}

func (s *SyncService) fail(summary *ReconcileSummary, episodeID string, err error) {
	summary.Errors++
	summary.Failures = append(summary.Failures, ReconcileFailure{EpisodeID: episodeID, Reason: err.Error()})
	metrics.ReconcileEpisodes.WithLabelValues("error").Inc()
	s.log.Warn().Str("episode", episodeID).Err(err).Msg("reconcile episode failed")
}
