package postgres_test

import (
	"context"
	"testing"

	"github.com/podhaven/adinventory/internal/domain"
	"github.com/podhaven/adinventory/internal/storage/postgres"
	"github.com/podhaven/adinventory/internal/testutil"
)

func TestSyncRepository_ListEpisodes(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	testutil.InsertTenant(t, ctx, pool, "acme")
	testutil.InsertTenant(t, ctx, pool, "globex")

	length := 45
	ep1 := testutil.InsertEpisode(t, ctx, pool, "acme", "show-1", &length)
	ep2 := testutil.InsertEpisode(t, ctx, pool, "acme", "show-2", nil)
	testutil.InsertEpisode(t, ctx, pool, "globex", "show-1", &length)

	repo := postgres.NewSyncRepository(pool)
	acme := handleFor(t, "acme")

	all, err := repo.ListEpisodes(ctx, acme, domain.EpisodeSelector{})
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 episodes for tenant, got %d", len(all))
	}

	byShow, err := repo.ListEpisodes(ctx, acme, domain.EpisodeSelector{ShowID: "show-1"})
	if err != nil {
		t.Fatalf("list by show: %v", err)
	}
	if len(byShow) != 1 || byShow[0].ID != ep1 {
		t.Fatalf("expected only show-1 episode, got %+v", byShow)
	}

	byID, err := repo.ListEpisodes(ctx, acme, domain.EpisodeSelector{EpisodeIDs: []string{ep2}})
	if err != nil {
		t.Fatalf("list by id: %v", err)
	}
	if len(byID) != 1 || byID[0].ID != ep2 {
		t.Fatalf("expected only selected episode, got %+v", byID)
	}
	if byID[0].LengthMinutes != nil {
		t.Fatal("expected nil length for unmeasured episode")
	}
}

func TestSyncRepository_ThresholdsForShow(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	testutil.InsertTenant(t, ctx, pool, "acme")
	testutil.InsertThreshold(t, ctx, pool, "acme", "", 0, domain.SpotThreshold{
		MinLength: 0, MaxLength: 1000, Counts: domain.SlotCounts{PreRoll: 1, MidRoll: 1, PostRoll: 1},
	})
	testutil.InsertThreshold(t, ctx, pool, "acme", "show-1", 0, domain.SpotThreshold{
		MinLength: 0, MaxLength: 30, Counts: domain.SlotCounts{PreRoll: 1, MidRoll: 1},
	})
	testutil.InsertThreshold(t, ctx, pool, "acme", "show-1", 1, domain.SpotThreshold{
		MinLength: 31, MaxLength: 90, Counts: domain.SlotCounts{PreRoll: 1, MidRoll: 2, PostRoll: 1},
	})

	repo := postgres.NewSyncRepository(pool)
	acme := handleFor(t, "acme")

	ths, err := repo.ThresholdsForShow(ctx, acme, "show-1")
	if err != nil {
		t.Fatalf("thresholds for show: %v", err)
	}
	if len(ths) != 2 {
		t.Fatalf("expected 2 show thresholds, got %d", len(ths))
	}
	if ths[0].MaxLength != 30 || ths[1].MaxLength != 90 {
		t.Fatalf("expected declared order, got %+v", ths)
	}

	fallback, err := repo.ThresholdsForShow(ctx, acme, "show-without-rules")
	if err != nil {
		t.Fatalf("fallback thresholds: %v", err)
	}
	if len(fallback) != 1 || fallback[0].MaxLength != 1000 {
		t.Fatalf("expected tenant-wide fallback, got %+v", fallback)
	}
}

func TestSyncRepository_CreateAndRecalculate(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()
	testutil.ApplyMigrations(t, ctx, pool)
	testutil.TruncateAll(t, ctx, pool)

	testutil.InsertTenant(t, ctx, pool, "acme")
	length := 45
	episodeID := testutil.InsertEpisode(t, ctx, pool, "acme", "show-1", &length)

	syncRepo := postgres.NewSyncRepository(pool)
	resRepo := postgres.NewReservationRepository(pool)
	acme := handleFor(t, "acme")

	created, err := syncRepo.CreateCalculated(ctx, acme, episodeID, "show-1", domain.SlotCounts{PreRoll: 1, MidRoll: 2, PostRoll: 1})
	if err != nil {
		t.Fatalf("create calculated: %v", err)
	}
	if !created {
		t.Fatal("expected first create to insert")
	}

	created, err = syncRepo.CreateCalculated(ctx, acme, episodeID, "show-1", domain.SlotCounts{PreRoll: 9})
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if created {
		t.Fatal("repeat create must not overwrite the existing row")
	}

	t.Run("same counts is a no-op", func(t *testing.T) {
		updated, err := syncRepo.RecalculateIfUnheld(ctx, acme, episodeID, domain.SlotCounts{PreRoll: 1, MidRoll: 2, PostRoll: 1})
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if updated {
			t.Fatal("unchanged counts should not report an update")
		}
	})

	t.Run("new counts rewrite an unheld row", func(t *testing.T) {
		updated, err := syncRepo.RecalculateIfUnheld(ctx, acme, episodeID, domain.SlotCounts{PreRoll: 2, MidRoll: 3, PostRoll: 1})
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if !updated {
			t.Fatal("expected changed counts to update the row")
		}
		inv, err := resRepo.GetInventory(ctx, acme, episodeID)
		if err != nil {
			t.Fatalf("get inventory: %v", err)
		}
		if inv.Slots.MidRoll != 3 || inv.Available.MidRoll != 3 {
			t.Fatalf("expected rewritten availability, got %+v", inv)
		}
	})

	t.Run("live hold blocks recalculation", func(t *testing.T) {
		if err := resRepo.Adjust(ctx, acme, episodeID, domain.MoveHold, domain.SlotCounts{MidRoll: 1}); err != nil {
			t.Fatalf("hold: %v", err)
		}
		updated, err := syncRepo.RecalculateIfUnheld(ctx, acme, episodeID, domain.SlotCounts{PreRoll: 1, MidRoll: 1, PostRoll: 1})
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if updated {
			t.Fatal("a row with reserved slots must not be rewritten")
		}
		inv, err := resRepo.GetInventory(ctx, acme, episodeID)
		if err != nil {
			t.Fatalf("get inventory: %v", err)
		}
		if inv.Reserved.MidRoll != 1 || inv.Slots.MidRoll != 3 {
			t.Fatalf("expected held row untouched, got %+v", inv)
		}
	})

	t.Run("booked slots block recalculation", func(t *testing.T) {
		// Move the held slot on to booked, leaving reserved back at zero.
		if err := resRepo.Adjust(ctx, acme, episodeID, domain.MoveConfirm, domain.SlotCounts{MidRoll: 1}); err != nil {
			t.Fatalf("confirm: %v", err)
		}
		updated, err := syncRepo.RecalculateIfUnheld(ctx, acme, episodeID, domain.SlotCounts{PreRoll: 5, MidRoll: 5, PostRoll: 5})
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if updated {
			t.Fatal("a row with booked slots must not be rewritten")
		}
		inv, err := resRepo.GetInventory(ctx, acme, episodeID)
		if err != nil {
			t.Fatalf("get inventory: %v", err)
		}
		if inv.Booked.MidRoll != 1 || inv.Reserved.MidRoll != 0 || inv.Slots.MidRoll != 3 {
			t.Fatalf("expected booked row untouched, got %+v", inv)
		}
	})

	t.Run("manual rows are never rewritten", func(t *testing.T) {
		manualEp := testutil.InsertEpisode(t, ctx, pool, "acme", "show-1", &length)
		testutil.InsertInventory(t, ctx, pool, "acme", manualEp, "show-1", domain.SlotCounts{PreRoll: 7}, false)

		updated, err := syncRepo.RecalculateIfUnheld(ctx, acme, manualEp, domain.SlotCounts{PreRoll: 1})
		if err != nil {
			t.Fatalf("recalculate: %v", err)
		}
		if updated {
			t.Fatal("manually managed inventory must not be rewritten")
		}
	})
}
