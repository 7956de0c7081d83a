package astro

import (
	"math"
	"time"
)

// ToUTC normalizes a timestamp to UTC. Timestamps parsed without an explicit
// zone are already attached to UTC by ParseDate, so this is a plain conversion.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// JulianDay computes the Julian Day for a Gregorian calendar date, including
// the fractional day from the time of day (Meeus, Astronomical Algorithms ch. 7).
func JulianDay(t time.Time) float64 {
	t = ToUTC(t)

	y := t.Year()
	m := int(t.Month())
	d := t.Day()

	fracDay := (float64(t.Hour()) +
		(float64(t.Minute())+
			(float64(t.Second())+float64(t.Nanosecond())/1e9)/60.0)/60.0) / 24.0

	if m <= 2 {
		y--
		m += 12
	}

	a := y / 100
	b := 2 - a + a/4

	return math.Floor(365.25*float64(y+4716)) +
		math.Floor(30.6001*float64(m+1)) +
		float64(d) + float64(b) - 1524.5 + fracDay
}
