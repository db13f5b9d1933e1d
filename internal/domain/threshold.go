package domain

// SpotThreshold maps an episode-length range (inclusive, in minutes) to slot
// counts per placement type. Thresholds are kept in declared order; ranges
// may overlap and the first match wins.
type SpotThreshold struct {
	MinLength int
	MaxLength int
	Counts    SlotCounts
}

func (t SpotThreshold) Matches(lengthMinutes int) bool {
	return lengthMinutes >= t.MinLength && lengthMinutes <= t.MaxLength
}
