package nasa

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"time"

	"github.com/rgoodwin/spacedash/cache"
)

const (
	insightCacheKey = "insight_weather"

	// InsightTTL bounds how long a weather snapshot is reused before the
	// feed is fetched again.
	InsightTTL = 10 * time.Minute
)

// Sensor is one InSight instrument reading for a sol: average, minimum and
// maximum. Fields are nil when the instrument has no data for that sol.
type Sensor struct {
	Avg *float64 `json:"av"`
	Min *float64 `json:"mn"`
	Max *float64 `json:"mx"`
}

// SolWeather is the per-sol weather record: atmospheric temperature (AT),
// horizontal wind speed (HWS) and pressure (PRE).
type SolWeather struct {
	Temp     *Sensor `json:"AT"`
	Wind     *Sensor `json:"HWS"`
	Pressure *Sensor `json:"PRE"`
}

// weatherPayload is the internal representation of the feed: always keyed by
// sol string, with the upstream's sol_keys list carried alongside.
type weatherPayload struct {
	SolKeys []string
	Sols    map[string]SolWeather
}

func parseWeather(raw json.RawMessage) weatherPayload {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return weatherPayload{}
	}

	var p weatherPayload
	if keys, ok := fields["sol_keys"]; ok {
		_ = json.Unmarshal(keys, &p.SolKeys)
	}
	p.Sols = make(map[string]SolWeather, len(p.SolKeys))
	for _, sol := range p.SolKeys {
		entry, ok := fields[sol]
		if !ok {
			continue
		}
		var sw SolWeather
		if err := json.Unmarshal(entry, &sw); err == nil {
			p.Sols[sol] = sw
		}
	}
	return p
}

// InsightService serves Mars weather readings from a disk-persisted snapshot
// of the InSight feed, refetching at most once per TTL window.
type InsightService struct {
	client *Client
	store  cache.Store
	ttl    time.Duration
}

// NewInsightService wires the weather cache to a client and snapshot store.
func NewInsightService(client *Client, store cache.Store) *InsightService {
	return &InsightService{client: client, store: store, ttl: InsightTTL}
}

func (s *InsightService) fetch(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	err := s.client.getJSON(ctx, "/insight_weather/", map[string]string{
		"feedtype": "json",
		"ver":      "1.0",
	}, &raw)
	return raw, err
}

// payload returns the current weather data. Any fetch or parse failure
// degrades to an empty payload: downstream getters then report "no data" for
// every field, which the dashboard treats as benign.
func (s *InsightService) payload(ctx context.Context) weatherPayload {
	raw, err := cache.GetOrFetch(s.store, insightCacheKey, s.ttl, func() (json.RawMessage, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return weatherPayload{}
	}
	return parseWeather(raw)
}

// Refresh fetches the feed unconditionally and rewrites the snapshot.
func (s *InsightService) Refresh(ctx context.Context) error {
	raw, err := s.fetch(ctx)
	if err != nil {
		return err
	}
	return s.store.Write(insightCacheKey, raw)
}

// Sols returns the sol keys present in the feed.
func (s *InsightService) Sols(ctx context.Context) []string {
	return s.payload(ctx).SolKeys
}

// LatestSol returns the most recent sol, or "" when the feed is empty. Sols
// are compared numerically; the upstream keys are decimal strings.
func (s *InsightService) LatestSol(ctx context.Context) string {
	return latestSol(s.payload(ctx).SolKeys)
}

func latestSol(sols []string) string {
	if len(sols) == 0 {
		return ""
	}
	sorted := append([]string(nil), sols...)
	sort.Slice(sorted, func(i, j int) bool {
		a, errA := strconv.Atoi(sorted[i])
		b, errB := strconv.Atoi(sorted[j])
		if errA != nil || errB != nil {
			return sorted[i] < sorted[j]
		}
		return a < b
	})
	return sorted[len(sorted)-1]
}

// latest resolves the weather record for the most recent sol through the
// sol-keyed map; there is no flat "latest" shortcut in the payload.
func (s *InsightService) latest(ctx context.Context) (SolWeather, bool) {
	p := s.payload(ctx)
	sol := latestSol(p.SolKeys)
	if sol == "" {
		return SolWeather{}, false
	}
	sw, ok := p.Sols[sol]
	return sw, ok
}

func (s *InsightService) value(ctx context.Context, pick func(SolWeather) *Sensor, field func(Sensor) *float64) *float64 {
	sw, ok := s.latest(ctx)
	if !ok {
		return nil
	}
	sensor := pick(sw)
	if sensor == nil {
		return nil
	}
	return field(*sensor)
}

func (s *InsightService) TempAvg(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Temp }, func(se Sensor) *float64 { return se.Avg })
}

func (s *InsightService) TempMin(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Temp }, func(se Sensor) *float64 { return se.Min })
}

func (s *InsightService) TempMax(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Temp }, func(se Sensor) *float64 { return se.Max })
}

func (s *InsightService) WindAvg(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Wind }, func(se Sensor) *float64 { return se.Avg })
}

func (s *InsightService) WindMin(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Wind }, func(se Sensor) *float64 { return se.Min })
}

func (s *InsightService) WindMax(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Wind }, func(se Sensor) *float64 { return se.Max })
}

func (s *InsightService) PressureAvg(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Pressure }, func(se Sensor) *float64 { return se.Avg })
}

func (s *InsightService) PressureMin(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Pressure }, func(se Sensor) *float64 { return se.Min })
}

func (s *InsightService) PressureMax(ctx context.Context) *float64 {
	return s.value(ctx, func(sw SolWeather) *Sensor { return sw.Pressure }, func(se Sensor) *float64 { return se.Max })
}
