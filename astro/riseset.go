package astro

import (
	"errors"
	"fmt"
	"time"

	"github.com/sixdouglas/suncalc"
)

// ErrEngineUnavailable is returned when no ephemeris engine is configured.
var ErrEngineUnavailable = errors.New("ephemeris engine not available")

// Location is a geographic coordinate echoed back with rise/set results.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// RiseSet holds the first moon rise and set within a UTC calendar day. Either
// time may be nil at extreme latitudes where the moon stays up or down all day.
type RiseSet struct {
	Rise     *time.Time `json:"rise"`
	Set      *time.Time `json:"set"`
	Location Location   `json:"location"`
}

// Ephemeris computes moon rise/set times for a date and location. Rise/set is
// best-effort enrichment of phase data, so implementations return errors
// instead of panicking and callers degrade to a phase-only response.
type Ephemeris interface {
	MoonRiseSet(date time.Time, lat, lon float64) (RiseSet, error)
}

type suncalcEphemeris struct{}

func (suncalcEphemeris) MoonRiseSet(date time.Time, lat, lon float64) (rs RiseSet, err error) {
	// The engine is treated as an external collaborator; any panic inside it
	// degrades to an error result instead of taking down the request.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rise/set calculation failed: %v", r)
		}
	}()

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	times := suncalc.GetMoonTimes(day, lat, lon, true)

	rs.Location = Location{Lat: lat, Lon: lon}
	if !times.Rise.IsZero() {
		rise := times.Rise.UTC()
		rs.Rise = &rise
	}
	if !times.Set.IsZero() {
		set := times.Set.UTC()
		rs.Set = &set
	}
	return rs, nil
}

type disabledEphemeris struct{}

func (disabledEphemeris) MoonRiseSet(time.Time, float64, float64) (RiseSet, error) {
	return RiseSet{}, ErrEngineUnavailable
}

// NewEphemeris probes the suncalc-backed engine with a fixed reference date
// and falls back to the disabled implementation if the probe fails, so the
// capability is decided once at startup.
func NewEphemeris() Ephemeris {
	eng := suncalcEphemeris{}
	probe := time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)
	if _, err := eng.MoonRiseSet(probe, 51.477, 0); err != nil {
		return disabledEphemeris{}
	}
	return eng
}

// DisabledEphemeris returns the stub implementation that always reports the
// engine as unavailable.
func DisabledEphemeris() Ephemeris {
	return disabledEphemeris{}
}
