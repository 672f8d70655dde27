package panel

import (
	"time"

	"github.com/louisbranch/rewind/internal/domain/age"
)

// MeanLineupAgeYears averages a lineup's ages at an instant, in fractional
// years. It returns nil unless every member's birth date is known; coarse
// precisions contribute the midpoint of their uncertainty window.
func MeanLineupAgeYears(births []age.Instant, at time.Time) *float64 {
	if len(births) == 0 {
		return nil
	}
	var total float64
	for _, birth := range births {
		span, err := age.Between(birth, at, age.UnitDays)
		if err != nil {
			return nil
		}
		days := float64(span.Min+span.Max) / 2
		total += days / 365.25
	}
	mean := total / float64(len(births))
	return &mean
}
