package domain

// PlacementType identifies a category of ad slot within an episode.
type PlacementType string

const (
	PlacementPreRoll  PlacementType = "pre_roll"
	PlacementMidRoll  PlacementType = "mid_roll"
	PlacementPostRoll PlacementType = "post_roll"
)

// PlacementTypes lists every placement type in canonical order.
var PlacementTypes = []PlacementType{PlacementPreRoll, PlacementMidRoll, PlacementPostRoll}

// SlotCounts carries one count per placement type.
type SlotCounts struct {
	PreRoll  int
	MidRoll  int
	PostRoll int
}

func (c SlotCounts) Get(p PlacementType) int {
	switch p {
	case PlacementPreRoll:
		return c.PreRoll
	case PlacementMidRoll:
		return c.MidRoll
	case PlacementPostRoll:
		return c.PostRoll
	}
	return 0
}

func (c *SlotCounts) Set(p PlacementType, n int) {
	switch p {
	case PlacementPreRoll:
		c.PreRoll = n
	case PlacementMidRoll:
		c.MidRoll = n
	case PlacementPostRoll:
		c.PostRoll = n
	}
}

func (c SlotCounts) Total() int {
	return c.PreRoll + c.MidRoll + c.PostRoll
}

func (c SlotCounts) IsZero() bool {
	return c.PreRoll == 0 && c.MidRoll == 0 && c.PostRoll == 0
}

func (c SlotCounts) HasNegative() bool {
	return c.PreRoll < 0 || c.MidRoll < 0 || c.PostRoll < 0
}

func (c SlotCounts) Add(o SlotCounts) SlotCounts {
	return SlotCounts{
		PreRoll:  c.PreRoll + o.PreRoll,
		MidRoll:  c.MidRoll + o.MidRoll,
		PostRoll: c.PostRoll + o.PostRoll,
	}
}

// CounterMove names a legal movement of counts between inventory columns.
// Every mutation of an inventory row is one of these moves, so the
// per-placement sum available + reserved + booked == slots is preserved
// by construction.
type CounterMove string

const (
	MoveHold    CounterMove = "hold"    // available -> reserved
	MoveRelease CounterMove = "release" // reserved -> available
	MoveConfirm CounterMove = "confirm" // reserved -> booked
	MoveCancel  CounterMove = "cancel"  // booked -> available
)
