// Package threshold derives slot counts per placement type from an episode
// length and a show's configured thresholds.
package threshold

import (
	"fmt"

	"github.com/podhaven/adinventory/internal/domain"
)

// DefaultEpisodeLength is assumed when an episode carries no length.
const DefaultEpisodeLength = 30

// DefaultCounts applies when no threshold matches, including the empty list.
var DefaultCounts = domain.SlotCounts{PreRoll: 1, MidRoll: 2, PostRoll: 1}

// Resolve picks the first threshold whose range contains lengthMinutes.
// Declared order is precedence: overlapping ranges resolve to the earliest
// one, never to a numeric tie-break. Pure and deterministic.
func Resolve(lengthMinutes int, thresholds []domain.SpotThreshold) (domain.SlotCounts, error) {
	if lengthMinutes < 0 {
		return domain.SlotCounts{}, fmt.Errorf("%w: negative episode length %d", domain.ErrInvalidInput, lengthMinutes)
	}
	for _, t := range thresholds {
		if t.Matches(lengthMinutes) {
			return t.Counts, nil
		}
	}
	return DefaultCounts, nil
}

// LengthOrDefault substitutes defaultLength (or DefaultEpisodeLength when
// defaultLength is not positive) for a missing episode length.
func LengthOrDefault(lengthMinutes *int, defaultLength int) int {
	if lengthMinutes != nil {
		return *lengthMinutes
	}
	if defaultLength > 0 {
		return defaultLength
	}
	return DefaultEpisodeLength
}
