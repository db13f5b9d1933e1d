package domain

import (
	"fmt"
	"time"
)

// EpisodeInventory is the per-episode slot ledger for one tenant partition.
// CalculatedFromLength marks rows derived from thresholds; manually
// overridden rows are never touched by reconciliation.
type EpisodeInventory struct {
	EpisodeID            string
	ShowID               string
	Slots                SlotCounts
	Available            SlotCounts
	Reserved             SlotCounts
	Booked               SlotCounts
	CalculatedFromLength bool
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// CheckInvariant verifies available + reserved + booked == slots for every
// placement type.
func (inv EpisodeInventory) CheckInvariant() error {
	for _, p := range PlacementTypes {
		sum := inv.Available.Get(p) + inv.Reserved.Get(p) + inv.Booked.Get(p)
		if sum != inv.Slots.Get(p) {
			return fmt.Errorf("inventory invariant broken for %s: available %d + reserved %d + booked %d != slots %d",
				p, inv.Available.Get(p), inv.Reserved.Get(p), inv.Booked.Get(p), inv.Slots.Get(p))
		}
	}
	return nil
}

// Episode is read-only scheduling metadata owned by an external system.
type Episode struct {
	ID            string
	ShowID        string
	Title         string
	LengthMinutes *int
	Status        string
	ScheduledAt   time.Time
}

// EpisodeSelector narrows a reconciliation run. Zero value selects every
// scheduled episode in the tenant partition.
type EpisodeSelector struct {
	ShowID     string
	EpisodeIDs []string
}
