package domain

import (
	"strings"
	"time"
)

// DateLayout is the layout of the dates in a configured interval.
const DateLayout = "2006-01-02"

// TimeWindow is the analysis window. End is nil for an open-ended window.
type TimeWindow struct {
	Start time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the window, both bounds inclusive.
func (w TimeWindow) Contains(t time.Time) bool {
	if t.Before(w.Start) {
		return false
	}
	return w.End == nil || !t.After(*w.End)
}

// ResolveWindow computes the analysis window. A non-empty interval
// ("YYYY-MM-DD,YYYY-MM-DD") always takes precedence over days.
func ResolveWindow(now time.Time, days int, interval string) (TimeWindow, error) {
	if strings.TrimSpace(interval) != "" {
		parts := strings.Split(interval, ",")
		if len(parts) != 2 {
			return TimeWindow{}, ConfigurationError("date range %q must contain exactly two dates", interval)
		}
		start, err := time.Parse(DateLayout, strings.TrimSpace(parts[0]))
		if err != nil {
			return TimeWindow{}, ConfigurationError("invalid start date in %q: %w", interval, err)
		}
		end, err := time.Parse(DateLayout, strings.TrimSpace(parts[1]))
		if err != nil {
			return TimeWindow{}, ConfigurationError("invalid end date in %q: %w", interval, err)
		}
		if start.After(end) {
			return TimeWindow{}, ConfigurationError("date range %q starts after it ends", interval)
		}
		return TimeWindow{Start: start, End: &end}, nil
	}
	if days <= 0 {
		return TimeWindow{}, ConfigurationError("either a positive day count or a date range is required")
	}
	return TimeWindow{Start: now.Add(-time.Duration(days) * 24 * time.Hour)}, nil
}
