package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

// columnPrefix maps placement types to their column name prefix. The set of
// identifiers that can reach SQL is closed here; nothing caller-supplied is
// ever spliced into a statement.
var columnPrefix = map[domain.PlacementType]string{
	domain.PlacementPreRoll:  "pre_roll",
	domain.PlacementMidRoll:  "mid_roll",
	domain.PlacementPostRoll: "post_roll",
}

// moveColumns maps a counter move to its source and destination column
// suffixes.
var moveColumns = map[domain.CounterMove][2]string{
	domain.MoveHold:    {"available", "reserved"},
	domain.MoveRelease: {"reserved", "available"},
	domain.MoveConfirm: {"reserved", "booked"},
	domain.MoveCancel:  {"booked", "available"},
}

const inventoryColumns = `episode_id, show_id,
pre_roll_slots, pre_roll_available, pre_roll_reserved, pre_roll_booked,
mid_roll_slots, mid_roll_available, mid_roll_reserved, mid_roll_booked,
post_roll_slots, post_roll_available, post_roll_reserved, post_roll_booked,
calculated_from_length, created_at, updated_at`

const reservationColumns = `id, episode_id,
pre_roll_count, mid_roll_count, post_roll_count,
hold_type, status, approval_status, expires_at, order_id, reject_reason,
created_at, updated_at`

type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ReservationRepository) GetInventory(ctx context.Context, tnt tenant.Handle, episodeID string) (domain.EpisodeInventory, error) {
	query := `SELECT ` + inventoryColumns + ` FROM episode_inventory WHERE tenant_id = $1 AND episode_id = $2`

	var inv domain.EpisodeInventory
	err := r.queryRow(ctx, query, tnt.ID(), episodeID).Scan(
		&inv.EpisodeID, &inv.ShowID,
		&inv.Slots.PreRoll, &inv.Available.PreRoll, &inv.Reserved.PreRoll, &inv.Booked.PreRoll,
		&inv.Slots.MidRoll, &inv.Available.MidRoll, &inv.Reserved.MidRoll, &inv.Booked.MidRoll,
		&inv.Slots.PostRoll, &inv.Available.PostRoll, &inv.Reserved.PostRoll, &inv.Booked.PostRoll,
		&inv.CalculatedFromLength, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.EpisodeInventory{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.EpisodeInventory{}, domain.ErrNotFound
		}
		return domain.EpisodeInventory{}, fmt.Errorf("get inventory: %w", err)
	}
	return inv, nil
}

// Adjust moves counts between inventory counters in one conditional UPDATE.
// The WHERE clause carries the guard that every source column can cover its
// share, so concurrent adjustments on the same row serialize in the store
// and can never drive a counter negative or split a multi-placement move.
func (r *ReservationRepository) Adjust(ctx context.Context, tnt tenant.Handle, episodeID string, move domain.CounterMove, counts domain.SlotCounts) error {
	cols, ok := moveColumns[move]
	if !ok {
		return fmt.Errorf("%w: unknown counter move %q", domain.ErrInvalidInput, move)
	}
	if counts.HasNegative() {
		return fmt.Errorf("%w: negative slot counts", domain.ErrInvalidInput)
	}
	src, dst := cols[0], cols[1]

	var set, guard []string
	args := []any{tnt.ID(), episodeID}
	for _, p := range domain.PlacementTypes {
		n := counts.Get(p)
		if n == 0 {
			continue
		}
		args = append(args, n)
		idx := len(args)
		prefix := columnPrefix[p]
		set = append(set,
			fmt.Sprintf("%s_%s = %s_%s - $%d", prefix, src, prefix, src, idx),
			fmt.Sprintf("%s_%s = %s_%s + $%d", prefix, dst, prefix, dst, idx),
		)
		guard = append(guard, fmt.Sprintf("%s_%s >= $%d", prefix, src, idx))
	}
	if len(set) == 0 {
		return fmt.Errorf("%w: no slot counts requested", domain.ErrInvalidInput)
	}

	stmt := fmt.Sprintf(
		`UPDATE episode_inventory SET %s, updated_at = NOW() WHERE tenant_id = $1 AND episode_id = $2 AND %s`,
		strings.Join(set, ", "),
		strings.Join(guard, " AND "),
	)

	tag, err := r.exec(ctx, stmt, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("adjust inventory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		exists, err := r.inventoryExists(ctx, tnt, episodeID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrNotFound
		}
		return domain.ErrInsufficientInventory
	}
	return nil
}

func (r *ReservationRepository) inventoryExists(ctx context.Context, tnt tenant.Handle, episodeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM episode_inventory WHERE tenant_id = $1 AND episode_id = $2)`
	var exists bool
	if err := r.queryRow(ctx, query, tnt.ID(), episodeID).Scan(&exists); err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("check inventory: %w", err)
	}
	return exists, nil
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, tnt tenant.Handle, res domain.Reservation) error {
	const stmt = `
INSERT INTO inventory_reservations
(tenant_id, id, episode_id, pre_roll_count, mid_roll_count, post_roll_count,
 hold_type, status, approval_status, expires_at, order_id, reject_reason, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	var orderID any
	if res.OrderID != "" {
		orderID = res.OrderID
	}
	_, err := r.exec(ctx, stmt,
		tnt.ID(),
		res.ID,
		res.EpisodeID,
		res.Counts.PreRoll,
		res.Counts.MidRoll,
		res.Counts.PostRoll,
		res.HoldType,
		res.Status,
		res.Approval,
		res.ExpiresAt,
		orderID,
		res.RejectReason,
		res.CreatedAt,
		res.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM inventory_reservations WHERE tenant_id = $1 AND id = $2`
	return r.scanReservation(r.queryRow(ctx, query, tnt.ID(), id))
}

// GetReservationForUpdate locks the reservation row for the enclosing
// transaction so status decisions and counter moves commit together.
func (r *ReservationRepository) GetReservationForUpdate(ctx context.Context, tnt tenant.Handle, id string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM inventory_reservations WHERE tenant_id = $1 AND id = $2 FOR UPDATE`
	return r.scanReservation(r.queryRow(ctx, query, tnt.ID(), id))
}

func (r *ReservationRepository) scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res       domain.Reservation
		expiresAt *time.Time
		orderID   *string
	)
	err := row.Scan(
		&res.ID, &res.EpisodeID,
		&res.Counts.PreRoll, &res.Counts.MidRoll, &res.Counts.PostRoll,
		&res.HoldType, &res.Status, &res.Approval, &expiresAt, &orderID, &res.RejectReason,
		&res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	res.ExpiresAt = expiresAt
	if orderID != nil {
		res.OrderID = *orderID
	}
	return res, nil
}

// MarkApproved flips a pending firm hold to approved. Returns false when the
// reservation is no longer a pending reserved hold.
func (r *ReservationRepository) MarkApproved(ctx context.Context, tnt tenant.Handle, id string) (bool, error) {
	const stmt = `
UPDATE inventory_reservations SET approval_status = 'approved', updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND status = 'reserved' AND approval_status = 'pending'`
	return r.markExec(ctx, stmt, tnt.ID(), id)
}

// MarkConfirmed transitions reserved -> confirmed, recording the order
// linkage. The status predicate is the compare-and-swap: a concurrent
// transition leaves zero rows affected.
func (r *ReservationRepository) MarkConfirmed(ctx context.Context, tnt tenant.Handle, id, orderID string) (bool, error) {
	const stmt = `
UPDATE inventory_reservations SET status = 'confirmed', order_id = $3, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND status = 'reserved'`
	return r.markExec(ctx, stmt, tnt.ID(), id, orderID)
}

// MarkReleased transitions from the given state to released. Used for both
// the reserved release path and confirmed cancellation.
func (r *ReservationRepository) MarkReleased(ctx context.Context, tnt tenant.Handle, id string, from domain.ReservationStatus) (bool, error) {
	const stmt = `
UPDATE inventory_reservations SET status = 'released', updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND status = $3`
	return r.markExec(ctx, stmt, tnt.ID(), id, from)
}

func (r *ReservationRepository) MarkExpired(ctx context.Context, tnt tenant.Handle, id string) (bool, error) {
	const stmt = `
UPDATE inventory_reservations SET status = 'expired', updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND status = 'reserved'`
	return r.markExec(ctx, stmt, tnt.ID(), id)
}

func (r *ReservationRepository) MarkRejected(ctx context.Context, tnt tenant.Handle, id, reason string) (bool, error) {
	const stmt = `
UPDATE inventory_reservations SET status = 'rejected', approval_status = 'rejected', reject_reason = $3, updated_at = NOW()
WHERE tenant_id = $1 AND id = $2 AND status = 'reserved'`
	return r.markExec(ctx, stmt, tnt.ID(), id, reason)
}

func (r *ReservationRepository) markExec(ctx context.Context, stmt string, args ...any) (bool, error) {
	tag, err := r.exec(ctx, stmt, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("update reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListDueReservations returns reserved holds whose deadline has elapsed,
// locking them for the enclosing transaction. SKIP LOCKED keeps concurrent
// sweeps and lazy expiry from blocking each other.
func (r *ReservationRepository) ListDueReservations(ctx context.Context, tnt tenant.Handle, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM inventory_reservations
WHERE tenant_id = $1 AND status = 'reserved' AND expires_at IS NOT NULL AND expires_at <= $2
ORDER BY expires_at
LIMIT $3
FOR UPDATE SKIP LOCKED`
	return r.listReservations(ctx, query, tnt.ID(), now, limit)
}

// ListDueForEpisode is the lazy-expiry variant scoped to one episode.
func (r *ReservationRepository) ListDueForEpisode(ctx context.Context, tnt tenant.Handle, episodeID string, now time.Time) ([]domain.Reservation, error) {
	query := `
SELECT ` + reservationColumns + `
FROM inventory_reservations
WHERE tenant_id = $1 AND episode_id = $2 AND status = 'reserved' AND expires_at IS NOT NULL AND expires_at <= $3
FOR UPDATE SKIP LOCKED`
	return r.listReservations(ctx, query, tnt.ID(), episodeID, now)
}

func (r *ReservationRepository) listReservations(ctx context.Context, query string, args ...any) ([]domain.Reservation, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate reservations: %w", rows.Err())
	}
	return out, nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
