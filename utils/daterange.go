package utils

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"p9e.in/genfuel/models"
)

const dateOnly = "2006-01-02"

// DateRange is an inclusive createdAt window. A nil range means all history.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t lies inside the window, bounds included.
func (r *DateRange) Contains(t time.Time) bool {
	if r == nil {
		return true
	}
	return !t.Before(r.Start) && !t.After(r.End)
}

// ParseDateRange reads startDate and endDate from query values. The filter
// only applies when both are present; a lone bound is ignored. A date-only
// endDate covers the whole day.
func ParseDateRange(q url.Values) (*DateRange, error) {
	rawStart := strings.TrimSpace(q.Get("startDate"))
	rawEnd := strings.TrimSpace(q.Get("endDate"))
	if rawStart == "" || rawEnd == "" {
		return nil, nil
	}
	start, err := models.ParseTimestamp(rawStart)
	if err != nil {
		return nil, fmt.Errorf("invalid startDate: %w", err)
	}
	end, err := models.ParseTimestamp(rawEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid endDate: %w", err)
	}
	// A bare date ends at the last instant of that day.
	if _, err := time.Parse(dateOnly, rawEnd); err == nil {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("endDate must not be before startDate")
	}
	return &DateRange{Start: start, End: end}, nil
}
