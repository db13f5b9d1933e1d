package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/podhaven/adinventory/internal/clock"
	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/metrics"
	"github.com/podhaven/adinventory/internal/tenant"
)

// ReservationRepository is the storage surface the reservation state machine
// needs. Adjust is the only mutation path for inventory counters and must be
// atomic and guarded in the store itself.
type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetInventory(ctx context.Context, tnt tenant.Handle, episodeID string) (domain.EpisodeInventory, error)
	Adjust(ctx context.Context, tnt tenant.Handle, episodeID string, move domain.CounterMove, counts domain.SlotCounts) error
	CreateReservation(ctx context.Context, tnt tenant.Handle, res domain.Reservation) error
	GetReservation(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error)
	MarkApproved(ctx context.Context, tnt tenant.Handle, id string) (bool, error)
	MarkConfirmed(ctx context.Context, tnt tenant.Handle, id, orderID string) (bool, error)
	MarkReleased(ctx context.Context, tnt tenant.Handle, id string, from domain.ReservationStatus) (bool, error)
	MarkExpired(ctx context.Context, tnt tenant.Handle, id string) (bool, error)
	MarkRejected(ctx context.Context, tnt tenant.Handle, id, reason string) (bool, error)
	ListDueReservations(ctx context.Context, tnt tenant.Handle, now time.Time, limit int) ([]domain.Reservation, error)
	ListDueForEpisode(ctx context.Context, tnt tenant.Handle, episodeID string, now time.Time) ([]domain.Reservation, error)
}

type ReservationService struct {
	repo    ReservationRepository
	clock   clock.Clock
	log     zerolog.Logger
	holdTTL time.Duration
}

const defaultHoldTTL = 48 * time.Hour

func NewReservationService(repo ReservationRepository, clk clock.Clock, log zerolog.Logger, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:    repo,
		clock:   clk,
		log:     log,
		holdTTL: defaultHoldTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithHoldTTL overrides the default deadline applied to soft holds created
// without an explicit expires_at.
func WithHoldTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

type CreateHoldInput struct {
	EpisodeID string
	Counts    domain.SlotCounts
	HoldType  domain.HoldType
	ExpiresAt *time.Time
}

// CreateHold claims slots across the requested placement types. Creation and
// the hold are one operation: the reservation is born reserved, with the
// counter move committed in the same transaction. A shortfall on any single
// placement type fails the whole request.
func (s *ReservationService) CreateHold(ctx context.Context, tnt tenant.Handle, in CreateHoldInput) (domain.Reservation, error) {
	if in.EpisodeID == "" {
		return domain.Reservation{}, fmt.Errorf("%w: episode id is required", domain.ErrInvalidInput)
	}
	if !in.HoldType.Valid() {
		return domain.Reservation{}, fmt.Errorf("%w: unknown hold type %q", domain.ErrInvalidInput, in.HoldType)
	}
	if in.Counts.HasNegative() || in.Counts.IsZero() {
		return domain.Reservation{}, fmt.Errorf("%w: slot counts must be positive", domain.ErrInvalidInput)
	}

	now := s.clock.Now()

	var expiresAt *time.Time
	approval := domain.ApprovalApproved
	switch in.HoldType {
	case domain.HoldFirm:
		// Firm holds never expire; they wait on client sign-off instead.
		if in.ExpiresAt != nil {
			return domain.Reservation{}, fmt.Errorf("%w: firm holds do not take a deadline", domain.ErrInvalidInput)
		}
		approval = domain.ApprovalPending
	case domain.HoldSoft:
		deadline := now.Add(s.holdTTL)
		if in.ExpiresAt != nil {
			deadline = in.ExpiresAt.UTC()
		}
		if !deadline.After(now) {
			return domain.Reservation{}, fmt.Errorf("%w: expires_at must be in the future", domain.ErrInvalidInput)
		}
		expiresAt = &deadline
	}

	res := domain.Reservation{
		ID:        newID(),
		EpisodeID: in.EpisodeID,
		Counts:    in.Counts,
		HoldType:  in.HoldType,
		Status:    domain.StatusReserved,
		Approval:  approval,
		ExpiresAt: expiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Adjust(txCtx, tnt, in.EpisodeID, domain.MoveHold, in.Counts); err != nil {
			return err
		}
		return s.repo.CreateReservation(txCtx, tnt, res)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientInventory) {
			metrics.HoldsDenied.Inc()
		}
		return domain.Reservation{}, err
	}

	metrics.HoldsCreated.Inc()
	s.log.Info().
		Str("tenant", tnt.ID()).
		Str("reservation", res.ID).
		Str("episode", in.EpisodeID).
		Str("hold_type", string(in.HoldType)).
		Int("slots", in.Counts.Total()).
		Msg("hold created")
	return res, nil
}

// Get returns the reservation, expiring it first if its deadline has
// elapsed. Stale holds never report as active.
func (s *ReservationService) Get(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error) {
	var out domain.Reservation
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, tnt, id)
		if err != nil {
			return err
		}
		if res.ExpiredBy(s.clock.Now()) {
			if _, err := s.expire(txCtx, tnt, res); err != nil {
				return err
			}
			res.Status = domain.StatusExpired
		}
		out = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}
	return out, nil
}

// Approve records client sign-off on a reserved hold. Approving a hold that
// is already approved is a no-op.
func (s *ReservationService) Approve(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error) {
	return s.transition(ctx, tnt, id, func(txCtx context.Context, res domain.Reservation) (domain.Reservation, error) {
		if res.Approval == domain.ApprovalApproved {
			return res, nil
		}
		ok, err := s.repo.MarkApproved(txCtx, tnt, id)
		if err != nil {
			return domain.Reservation{}, err
		}
		if !ok {
			return domain.Reservation{}, domain.ErrInvalidTransition
		}
		res.Approval = domain.ApprovalApproved
		return res, nil
	})
}

// Reject refuses a reserved hold and returns its slots to availability.
func (s *ReservationService) Reject(ctx context.Context, tnt tenant.Handle, id, reason string) (domain.Reservation, error) {
	return s.transition(ctx, tnt, id, func(txCtx context.Context, res domain.Reservation) (domain.Reservation, error) {
		ok, err := s.repo.MarkRejected(txCtx, tnt, id, reason)
		if err != nil {
			return domain.Reservation{}, err
		}
		if !ok {
			return domain.Reservation{}, domain.ErrInvalidTransition
		}
		if err := s.repo.Adjust(txCtx, tnt, res.EpisodeID, domain.MoveRelease, res.Counts); err != nil {
			return domain.Reservation{}, err
		}
		res.Status = domain.StatusRejected
		res.Approval = domain.ApprovalRejected
		res.RejectReason = reason
		return res, nil
	})
}

// Confirm books a reserved hold against an order. Firm holds must be
// approved first.
func (s *ReservationService) Confirm(ctx context.Context, tnt tenant.Handle, id, orderID string) (domain.Reservation, error) {
	if orderID == "" {
		return domain.Reservation{}, fmt.Errorf("%w: order id is required", domain.ErrInvalidInput)
	}
	return s.transition(ctx, tnt, id, func(txCtx context.Context, res domain.Reservation) (domain.Reservation, error) {
		if res.HoldType == domain.HoldFirm && res.Approval != domain.ApprovalApproved {
			return domain.Reservation{}, domain.ErrApprovalRequired
		}
		ok, err := s.repo.MarkConfirmed(txCtx, tnt, id, orderID)
		if err != nil {
			return domain.Reservation{}, err
		}
		if !ok {
			return domain.Reservation{}, domain.ErrInvalidTransition
		}
		if err := s.repo.Adjust(txCtx, tnt, res.EpisodeID, domain.MoveConfirm, res.Counts); err != nil {
			return domain.Reservation{}, err
		}
		res.Status = domain.StatusConfirmed
		res.OrderID = orderID
		return res, nil
	})
}

// Release frees a hold's slots. Works on reserved holds and, as the
// cancellation path, on confirmed bookings.
func (s *ReservationService) Release(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error) {
	return s.transition(ctx, tnt, id, func(txCtx context.Context, res domain.Reservation) (domain.Reservation, error) {
		move := domain.MoveRelease
		if res.Status == domain.StatusConfirmed {
			move = domain.MoveCancel
		}
		ok, err := s.repo.MarkReleased(txCtx, tnt, id, res.Status)
		if err != nil {
			return domain.Reservation{}, err
		}
		if !ok {
			return domain.Reservation{}, domain.ErrInvalidTransition
		}
		if err := s.repo.Adjust(txCtx, tnt, res.EpisodeID, move, res.Counts); err != nil {
			return domain.Reservation{}, err
		}
		res.Status = domain.StatusReleased
		return res, nil
	})
}

// transition loads the reservation under lock, applies lazy expiry, rejects
// terminal states, then hands off to the event-specific step. Everything
// commits or rolls back together.
func (s *ReservationService) transition(ctx context.Context, tnt tenant.Handle, id string, step func(context.Context, domain.Reservation) (domain.Reservation, error)) (domain.Reservation, error) {
	var out domain.Reservation
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, tnt, id)
		if err != nil {
			return err
		}
		if res.ExpiredBy(s.clock.Now()) {
			if _, err := s.expire(txCtx, tnt, res); err != nil {
				return err
			}
			return domain.ErrInvalidTransition
		}
		if res.Terminal() {
			return domain.ErrInvalidTransition
		}
		out, err = step(txCtx, res)
		return err
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	metrics.Transitions.WithLabelValues(string(out.Status)).Inc()
	out.UpdatedAt = s.clock.Now()
	return out, nil
}

// GetInventory returns the episode's inventory after lazily expiring any
// stale holds touching it, so availability reflects reality on every read.
func (s *ReservationService) GetInventory(ctx context.Context, tnt tenant.Handle, episodeID string) (domain.EpisodeInventory, error) {
	if episodeID == "" {
		return domain.EpisodeInventory{}, fmt.Errorf("%w: episode id is required", domain.ErrInvalidInput)
	}
	var inv domain.EpisodeInventory
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		due, err := s.repo.ListDueForEpisode(txCtx, tnt, episodeID, s.clock.Now())
		if err != nil {
			return err
		}
		for _, res := range due {
			if _, err := s.expire(txCtx, tnt, res); err != nil {
				return err
			}
		}
		inv, err = s.repo.GetInventory(txCtx, tnt, episodeID)
		return err
	})
	if err != nil {
		return domain.EpisodeInventory{}, err
	}
	return inv, nil
}

// ExpireDue releases up to limit overdue holds. Shared by the background
// sweeper and operational tooling; safe to run concurrently with lazy
// expiry because the status swap decides a single winner per reservation.
func (s *ReservationService) ExpireDue(ctx context.Context, tnt tenant.Handle, limit int) (int, error) {
	if limit <= 0 {
		limit = 100
	}
	released := 0
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		due, err := s.repo.ListDueReservations(txCtx, tnt, s.clock.Now(), limit)
		if err != nil {
			return err
		}
		for _, res := range due {
			ok, err := s.expire(txCtx, tnt, res)
			if err != nil {
				return err
			}
			if ok {
				released++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return released, nil
}

// expire performs the expiry transition. Returns false without error when
// another caller already moved the reservation out of reserved, which makes
// concurrent expiry a no-op rather than a double release.
func (s *ReservationService) expire(ctx context.Context, tnt tenant.Handle, res domain.Reservation) (bool, error) {
	ok, err := s.repo.MarkExpired(ctx, tnt, res.ID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := s.repo.Adjust(ctx, tnt, res.EpisodeID, domain.MoveRelease, res.Counts); err != nil {
		return false, err
	}
	metrics.Transitions.WithLabelValues(string(domain.StatusExpired)).Inc()
	s.log.Debug().
		Str("tenant", tnt.ID()).
		Str("reservation", res.ID).
		Str("episode", res.EpisodeID).
		Msg("hold expired")
	return true, nil
}
