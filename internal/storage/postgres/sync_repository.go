package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/tenant"
)

type SyncRepository struct {
	pool *pgxpool.Pool
}

func NewSyncRepository(pool *pgxpool.Pool) *SyncRepository {
	return &SyncRepository{pool: pool}
}

// ListEpisodes returns scheduled episodes matching the selector within the
// tenant partition.
func (r *SyncRepository) ListEpisodes(ctx context.Context, tnt tenant.Handle, sel domain.EpisodeSelector) ([]domain.Episode, error) {
	query := `
SELECT id, show_id, title, length_minutes, status, scheduled_at
FROM episodes
WHERE tenant_id = $1 AND status = 'scheduled'`
	args := []any{tnt.ID()}

	if sel.ShowID != "" {
		args = append(args, sel.ShowID)
		query += fmt.Sprintf(" AND show_id = $%d", len(args))
	}
	if len(sel.EpisodeIDs) > 0 {
		args = append(args, sel.EpisodeIDs)
		query += fmt.Sprintf(" AND id = ANY($%d)", len(args))
	}
	query += " ORDER BY scheduled_at"

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []domain.Episode
	for rows.Next() {
		var ep domain.Episode
		if err := rows.Scan(&ep.ID, &ep.ShowID, &ep.Title, &ep.LengthMinutes, &ep.Status, &ep.ScheduledAt); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		episodes = append(episodes, ep)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate episodes: %w", rows.Err())
	}
	return episodes, nil
}

// ThresholdsForShow returns the show's thresholds in declared order, falling
// back to the tenant's organization-wide defaults (rows without a show).
func (r *SyncRepository) ThresholdsForShow(ctx context.Context, tnt tenant.Handle, showID string) ([]domain.SpotThreshold, error) {
	const showQuery = `
SELECT min_length, max_length, pre_roll, mid_roll, post_roll
FROM spot_thresholds
WHERE tenant_id = $1 AND show_id = $2
ORDER BY position`

	thresholds, err := r.listThresholds(ctx, showQuery, tnt.ID(), showID)
	if err != nil {
		return nil, err
	}
	if len(thresholds) > 0 {
		return thresholds, nil
	}

	const defaultQuery = `
SELECT min_length, max_length, pre_roll, mid_roll, post_roll
FROM spot_thresholds
WHERE tenant_id = $1 AND show_id IS NULL
ORDER BY position`
	return r.listThresholds(ctx, defaultQuery, tnt.ID())
}

func (r *SyncRepository) listThresholds(ctx context.Context, query string, args ...any) ([]domain.SpotThreshold, error) {
	rows, err := r.query(ctx, query, args...)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list thresholds: %w", err)
	}
	defer rows.Close()

	var out []domain.SpotThreshold
	for rows.Next() {
		var t domain.SpotThreshold
		if err := rows.Scan(&t.MinLength, &t.MaxLength, &t.Counts.PreRoll, &t.Counts.MidRoll, &t.Counts.PostRoll); err != nil {
			return nil, fmt.Errorf("scan threshold: %w", err)
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate thresholds: %w", rows.Err())
	}
	return out, nil
}

// CreateCalculated inserts a fresh inventory row with full availability.
// Returns false when the row already exists; a racing insert is not an
// error.
func (r *SyncRepository) CreateCalculated(ctx context.Context, tnt tenant.Handle, episodeID, showID string, slots domain.SlotCounts) (bool, error) {
	const stmt = `
INSERT INTO episode_inventory
(tenant_id, episode_id, show_id,
 pre_roll_slots, pre_roll_available, pre_roll_reserved, pre_roll_booked,
 mid_roll_slots, mid_roll_available, mid_roll_reserved, mid_roll_booked,
 post_roll_slots, post_roll_available, post_roll_reserved, post_roll_booked,
 calculated_from_length)
VALUES ($1, $2, $3, $4, $4, 0, 0, $5, $5, 0, 0, $6, $6, 0, 0, TRUE)
ON CONFLICT (tenant_id, episode_id) DO NOTHING`

	tag, err := r.exec(ctx, stmt, tnt.ID(), episodeID, showID, slots.PreRoll, slots.MidRoll, slots.PostRoll)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		if isForeignKeyViolation(err) {
			return false, domain.ErrNotFound
		}
		return false, fmt.Errorf("create inventory: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// RecalculateIfUnheld overwrites slots and availability from freshly
// resolved thresholds. The WHERE clause is the destructive-write guard: the
// row must be threshold-derived and carry no reserved or booked slots, and
// the statement only fires when the counts actually change, which makes a
// repeat run report zero updates. Guard and write are one statement, so a
// reservation can never race in between them.
func (r *SyncRepository) RecalculateIfUnheld(ctx context.Context, tnt tenant.Handle, episodeID string, slots domain.SlotCounts) (bool, error) {
	const stmt = `
UPDATE episode_inventory SET
 pre_roll_slots = $3, pre_roll_available = $3,
 mid_roll_slots = $4, mid_roll_available = $4,
 post_roll_slots = $5, post_roll_available = $5,
 updated_at = NOW()
WHERE tenant_id = $1 AND episode_id = $2
  AND calculated_from_length
  AND pre_roll_reserved = 0 AND pre_roll_booked = 0
  AND mid_roll_reserved = 0 AND mid_roll_booked = 0
  AND post_roll_reserved = 0 AND post_roll_booked = 0
  AND (pre_roll_slots IS DISTINCT FROM $3
    OR mid_roll_slots IS DISTINCT FROM $4
    OR post_roll_slots IS DISTINCT FROM $5)`

	tag, err := r.exec(ctx, stmt, tnt.ID(), episodeID, slots.PreRoll, slots.MidRoll, slots.PostRoll)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("recalculate inventory: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SyncRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *SyncRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}
