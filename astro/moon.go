// Package astro implements the moon phase model used by the dashboard:
// Julian Day conversion, a synodic-month phase calculation with a simple
// geometric illumination approximation, and moon rise/set times backed by an
// optional ephemeris engine. Phase calculations are pure and never touch the
// network; the only failure mode is an unparseable input date.
package astro

import (
	"errors"
	"math"
	"time"
)

const (
	// SynodicMonth is the mean period between successive new moons, in days.
	SynodicMonth = 29.530588853

	// Reference new moon near 2000-01-06. A well-known epoch keeps the
	// simple model accurate to within a few hours.
	newMoonEpochJD = 2451550.1
)

// Phase names, in cycle order.
const (
	PhaseNew            = "New Moon"
	PhaseWaxingCrescent = "Waxing Crescent"
	PhaseFirstQuarter   = "First Quarter"
	PhaseWaxingGibbous  = "Waxing Gibbous"
	PhaseFull           = "Full Moon"
	PhaseWaningGibbous  = "Waning Gibbous"
	PhaseLastQuarter    = "Last Quarter"
	PhaseWaningCrescent = "Waning Crescent"
)

// ErrInvalidDate is returned for date strings that are not ISO-8601
// (YYYY-MM-DD, optionally with a time component).
var ErrInvalidDate = errors.New("invalid date format, use YYYY-MM-DD")

// Reading is the moon phase information for a single instant.
type Reading struct {
	Phase        string  `json:"phase"`
	Illumination float64 `json:"illumination"`
	Age          float64 `json:"age"`
	NextPhase    string  `json:"next_phase"`
	DaysToNext   float64 `json:"days_to_next"`
	Date         string  `json:"date"`
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate parses an ISO-8601 date or date-time string. Strings without an
// explicit zone are interpreted as UTC.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}

// Calculate computes the moon phase reading for the given instant.
func Calculate(date time.Time) Reading {
	jd := JulianDay(date)

	// Fraction of the synodic cycle in [0, 1). math.Mod keeps the sign of
	// the dividend, so dates before the epoch need the extra wrap.
	phase := math.Mod((jd-newMoonEpochJD)/SynodicMonth, 1.0)
	if phase < 0 {
		phase++
	}

	age := phase * SynodicMonth
	illumination := (1.0 - math.Cos(2.0*math.Pi*phase)) / 2.0 * 100.0

	var name, next string
	var nextBoundary float64
	switch {
	case phase < 0.25:
		name = PhaseNew
		if phase > 0.02 {
			name = PhaseWaxingCrescent
		}
		next, nextBoundary = PhaseFirstQuarter, 0.25
	case phase < 0.50:
		name = PhaseFirstQuarter
		if phase > 0.27 {
			name = PhaseWaxingGibbous
		}
		next, nextBoundary = PhaseFull, 0.50
	case phase < 0.75:
		name = PhaseFull
		if phase > 0.52 {
			name = PhaseWaningGibbous
		}
		next, nextBoundary = PhaseLastQuarter, 0.75
	default:
		name = PhaseWaningCrescent
		if phase >= 0.98 {
			name = PhaseNew
		}
		next, nextBoundary = PhaseNew, 1.0
	}

	daysToNext := (nextBoundary - phase) * SynodicMonth
	if daysToNext < 0 {
		daysToNext += SynodicMonth
	}

	return Reading{
		Phase:        name,
		Illumination: round1(illumination),
		Age:          round1(age),
		NextPhase:    next,
		DaysToNext:   round1(daysToNext),
		Date:         ToUTC(date).Format(time.RFC3339),
	}
}

// Current returns the reading for the current system time.
func Current() Reading {
	return Calculate(time.Now())
}

// ForDate returns the reading for an ISO date string.
func ForDate(dateStr string) (Reading, error) {
	t, err := ParseDate(dateStr)
	if err != nil {
		return Reading{}, err
	}
	return Calculate(t), nil
}

// Range returns one reading per day for `days` consecutive calendar days
// starting at the given date.
func Range(startDate string, days int) ([]Reading, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return nil, err
	}
	readings := make([]Reading, 0, days)
	for i := 0; i < days; i++ {
		readings = append(readings, Calculate(start.AddDate(0, 0, i)))
	}
	return readings, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
