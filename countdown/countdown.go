// Package countdown computes the time remaining until a launch target.
package countdown

import (
	"time"
)

// Result is the time remaining until a target, broken into display units.
// All fields are zero when the target has passed or could not be parsed: a
// dashboard timer shows 0d 0h 0m 0s, never a negative value or an error.
type Result struct {
	TargetName string `json:"target_name"`
	TargetDate string `json:"target_date"`
	Days       int    `json:"days"`
	Hours      int    `json:"hours"`
	Minutes    int    `json:"minutes"`
	Seconds    int    `json:"seconds"`
}

var targetLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Until computes the countdown from now to the target timestamp. Targets
// without an explicit zone are interpreted as UTC.
func Until(targetName, targetDate string, now time.Time) Result {
	result := Result{TargetName: targetName, TargetDate: targetDate}

	var target time.Time
	var err error
	for _, layout := range targetLayouts {
		if target, err = time.Parse(layout, targetDate); err == nil {
			break
		}
	}
	if err != nil {
		return result
	}

	total := int(target.UTC().Sub(now.UTC()).Seconds())
	if total < 0 {
		return result
	}

	result.Days = total / (24 * 3600)
	remaining := total % (24 * 3600)
	result.Hours = remaining / 3600
	result.Minutes = (remaining % 3600) / 60
	result.Seconds = remaining % 60
	return result
}
