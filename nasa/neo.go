package nasa

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"
)

// NeoMaxWindowDays is the widest date window the NEO feed accepts.
const NeoMaxWindowDays = 7

// ClampWindow bounds a requested feed window to what the API accepts: an end
// before the start collapses to the start, and a window wider than the 7-day
// maximum is cut down to start+7d.
func ClampWindow(start, end time.Time) (time.Time, time.Time) {
	if end.Before(start) {
		end = start
	}
	if max := start.AddDate(0, 0, NeoMaxWindowDays); end.After(max) {
		end = max
	}
	return start, end
}

// flexFloat decodes a numeric field that upstream serializes inconsistently
// (bare number or quoted string). An unparsable value becomes nil instead of
// aborting the record.
type flexFloat struct {
	value *float64
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		f.value = &v
	}
	return nil
}

// Feed is the decoded NEO feed for a date window.
type Feed struct {
	ElementCount     int                    `json:"element_count"`
	NearEarthObjects map[string][]neoObject `json:"near_earth_objects"`
}

type neoObject struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	EstimatedDiameter struct {
		Meters struct {
			EstimatedDiameterMax flexFloat `json:"estimated_diameter_max"`
		} `json:"meters"`
	} `json:"estimated_diameter"`
	CloseApproachData []struct {
		CloseApproachDate string `json:"close_approach_date"`
		MissDistance      struct {
			Kilometers flexFloat `json:"kilometers"`
		} `json:"miss_distance"`
		RelativeVelocity struct {
			KilometersPerSecond flexFloat `json:"kilometers_per_second"`
		} `json:"relative_velocity"`
	} `json:"close_approach_data"`
}

// NeoRecord is a flattened near-Earth object: id, name and the first close
// approach's date, miss distance and relative velocity. Numeric fields are
// nil when the upstream value was absent or unparsable.
type NeoRecord struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	CloseDate      string   `json:"close_date"`
	MissDistanceKM *float64 `json:"miss_distance_km"`
	VelocityKMS    *float64 `json:"velocity_km_s"`
}

// LargestRecord identifies the object with the biggest estimated diameter.
type LargestRecord struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	MaxDiameterM float64 `json:"max_diameter_m"`
}

// Summary is the compact dashboard view of a feed window.
type Summary struct {
	ElementCount int            `json:"element_count"`
	Closest      *NeoRecord     `json:"closest"`
	Largest      *LargestRecord `json:"largest"`
	ClosestList  []NeoRecord    `json:"closest_list"`
	AllNeos      []NeoRecord    `json:"all_neos"`
}

// NeoFeed fetches the feed for a clamped date window.
func (c *Client) NeoFeed(ctx context.Context, start, end time.Time) (Feed, error) {
	start, end = ClampWindow(start, end)
	var feed Feed
	err := c.getJSON(ctx, "/neo/rest/v1/feed", map[string]string{
		"start_date": start.Format("2006-01-02"),
		"end_date":   end.Format("2006-01-02"),
	}, &feed)
	return feed, err
}

// NeoLookup fetches a single object by id, passed through unsummarized.
func (c *Client) NeoLookup(ctx context.Context, id string) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.getJSON(ctx, "/neo/rest/v1/neo/"+id, nil, &raw)
	return raw, err
}

// NeoBrowse fetches one page of the paginated catalog, passed through.
func (c *Client) NeoBrowse(ctx context.Context, page int) (json.RawMessage, error) {
	var raw json.RawMessage
	err := c.getJSON(ctx, "/neo/rest/v1/neo/browse", map[string]string{
		"page": strconv.Itoa(page),
	}, &raw)
	return raw, err
}

// SummarizeFeed flattens the date-keyed feed into ordered records and tracks
// the single closest approach (minimum miss distance) and largest object
// (maximum estimated diameter). Dates are visited in ascending order so ties
// deterministically keep the first-seen record. ClosestList holds up to five
// records with a known miss distance, nearest first.
func SummarizeFeed(feed Feed) Summary {
	summary := Summary{
		ElementCount: feed.ElementCount,
		ClosestList:  []NeoRecord{},
		AllNeos:      []NeoRecord{},
	}

	dates := make([]string, 0, len(feed.NearEarthObjects))
	for date := range feed.NearEarthObjects {
		dates = append(dates, date)
	}
	sort.Strings(dates)

	var withDistance []NeoRecord
	for _, date := range dates {
		for _, obj := range feed.NearEarthObjects[date] {
			record := NeoRecord{ID: obj.ID, Name: obj.Name}
			if len(obj.CloseApproachData) > 0 {
				first := obj.CloseApproachData[0]
				record.CloseDate = first.CloseApproachDate
				record.MissDistanceKM = first.MissDistance.Kilometers.value
				record.VelocityKMS = first.RelativeVelocity.KilometersPerSecond.value
			}
			summary.AllNeos = append(summary.AllNeos, record)

			if diam := obj.EstimatedDiameter.Meters.EstimatedDiameterMax.value; diam != nil {
				if summary.Largest == nil || *diam > summary.Largest.MaxDiameterM {
					summary.Largest = &LargestRecord{ID: obj.ID, Name: obj.Name, MaxDiameterM: *diam}
				}
			}

			if record.MissDistanceKM != nil {
				if summary.Closest == nil || *record.MissDistanceKM < *summary.Closest.MissDistanceKM {
					closest := record
					summary.Closest = &closest
				}
				withDistance = append(withDistance, record)
			}
		}
	}

	sort.SliceStable(withDistance, func(i, j int) bool {
		return *withDistance[i].MissDistanceKM < *withDistance[j].MissDistanceKM
	})
	if len(withDistance) > 5 {
		withDistance = withDistance[:5]
	}
	summary.ClosestList = append(summary.ClosestList, withDistance...)

	return summary
}
