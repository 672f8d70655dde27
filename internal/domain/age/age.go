// Package age computes calendar-aware elapsed time against reference
// instants of varying precision.
//
// A birth date known only to the day, month, or year is an interval, not a
// point. Durations against such references come back as a [min, max] span
// over the interval instead of a single falsely precise value; the span
// collapses to one value whenever the requested unit cannot tell the two
// bounds apart.
package age

import (
	"time"

	"github.com/louisbranch/rewind/internal/platform/errors"
)

// Precision states how much of a reference instant is actually known.
type Precision string

const (
	// PrecisionExact means the full timestamp is known.
	PrecisionExact Precision = "exact"
	// PrecisionDay means the calendar day is known, time of day is not.
	PrecisionDay Precision = "day"
	// PrecisionMonth means only year and month are known.
	PrecisionMonth Precision = "month"
	// PrecisionYear means only the year is known.
	PrecisionYear Precision = "year"
	// PrecisionUnknown means no usable reference instant exists.
	PrecisionUnknown Precision = "unknown"
)

// ParsePrecision validates a precision label.
func ParsePrecision(raw string) (Precision, error) {
	switch Precision(raw) {
	case PrecisionExact, PrecisionDay, PrecisionMonth, PrecisionYear, PrecisionUnknown:
		return Precision(raw), nil
	}
	return "", errors.WithMetadata(errors.CodeBioInvalidPrecision, "invalid birth date precision", map[string]string{"precision": raw})
}

// Instant is a reference point in time qualified by its precision.
type Instant struct {
	Time      time.Time
	Precision Precision
}

// Bounds returns the half-open [earliest, latest) window the instant could
// fall in. Exact instants collapse to a zero-width window.
func (in Instant) Bounds() (time.Time, time.Time, error) {
	if in.Precision == PrecisionUnknown || in.Time.IsZero() {
		return time.Time{}, time.Time{}, errors.New(errors.CodeBirthDateUnknown, "reference instant is unknown")
	}
	t := in.Time.UTC()
	switch in.Precision {
	case PrecisionExact:
		return t, t, nil
	case PrecisionDay:
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1), nil
	case PrecisionMonth:
		start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	case PrecisionYear:
		start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(1, 0, 0), nil
	}
	return time.Time{}, time.Time{}, errors.WithMetadata(errors.CodeBioInvalidPrecision, "invalid birth date precision", map[string]string{"precision": string(in.Precision)})
}

// Unit selects the granularity of a duration.
type Unit string

const (
	UnitYears   Unit = "years"
	UnitMonths  Unit = "months"
	UnitDays    Unit = "days"
	UnitSeconds Unit = "seconds"
)

// ParseUnit validates a duration unit label.
func ParseUnit(raw string) (Unit, error) {
	switch Unit(raw) {
	case UnitYears, UnitMonths, UnitDays, UnitSeconds:
		return Unit(raw), nil
	}
	return "", errors.WithMetadata(errors.CodeDurationBadUnit, "invalid duration unit", map[string]string{"unit": raw})
}

// Span is an elapsed-time answer in whole units. Min equals Max when the
// reference precision leaves no ambiguity at this unit.
type Span struct {
	Unit Unit  `json:"unit"`
	Min  int64 `json:"min"`
	Max  int64 `json:"max"`
}

// Exact reports whether the span is a single value.
func (s Span) Exact() bool { return s.Min == s.Max }

// Between computes the whole-unit elapsed time from a reference instant to
// a target. Coarse references yield a span covering every instant the
// reference could have been: the minimum assumes the latest possible
// reference, the maximum the earliest.
func Between(ref Instant, target time.Time, unit Unit) (Span, error) {
	switch unit {
	case UnitYears, UnitMonths, UnitDays, UnitSeconds:
	default:
		return Span{}, errors.WithMetadata(errors.CodeDurationBadUnit, "invalid duration unit", map[string]string{"unit": string(unit)})
	}
	if target.IsZero() {
		return Span{}, errors.New(errors.CodeDurationInvalidRef, "target instant is required")
	}
	earliest, latest, err := ref.Bounds()
	if err != nil {
		return Span{}, err
	}
	target = target.UTC()

	span := Span{
		Unit: unit,
		Min:  elapsed(latest, target, unit),
		Max:  elapsed(earliest, target, unit),
	}
	return span, nil
}

// elapsed counts whole units from one instant to another, signed.
func elapsed(from, to time.Time, unit Unit) int64 {
	if from.After(to) {
		return -elapsed(to, from, unit)
	}
	switch unit {
	case UnitSeconds:
		return int64(to.Sub(from) / time.Second)
	case UnitDays:
		return int64(to.Sub(from) / (24 * time.Hour))
	case UnitMonths:
		return wholeMonths(from, to)
	case UnitYears:
		return wholeMonths(from, to) / 12
	}
	return 0
}

// wholeMonths counts completed calendar months from one instant to a later
// one. Anniversaries landing past the end of a month clamp to its last day,
// so a Jan 31 reference completes its first month on the last day of
// February.
func wholeMonths(from, to time.Time) int64 {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if anniversary(from, months).After(to) {
		months--
	}
	return int64(months)
}

// anniversary adds whole months to an instant with month-end clamping.
func anniversary(t time.Time, months int) time.Time {
	first := time.Date(t.Year(), t.Month()+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	day := t.Day()
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

// daysIn returns the number of days in a month.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
