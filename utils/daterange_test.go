package utils

import (
	"net/url"
	"testing"
	"time"
)

func TestParseDateRange(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantNil bool
		wantErr bool
	}{
		{"no bounds", "", true, false},
		{"start only", "startDate=2025-01-01", true, false},
		{"end only", "endDate=2025-01-31", true, false},
		{"both", "startDate=2025-01-01&endDate=2025-01-31T23:59:59Z", false, false},
		{"bad start", "startDate=jan&endDate=2025-01-31", false, true},
		{"reversed", "startDate=2025-02-01&endDate=2025-01-01", false, true},
		{"date-only end", "startDate=2025-01-01&endDate=2025-01-31", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			r, err := ParseDateRange(q)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDateRange() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if (r == nil) != tt.wantNil {
				t.Fatalf("ParseDateRange() = %v, wantNil %v", r, tt.wantNil)
			}
		})
	}
}

func TestParseDateRangeDateOnlyEndCoversDay(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantEnd time.Time
	}{
		{"date only", "startDate=2025-01-01&endDate=2025-01-31", time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC)},
		{"explicit time kept", "startDate=2025-01-01&endDate=2025-01-31T12:00:00Z", time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)},
		{"same day", "startDate=2025-01-31&endDate=2025-01-31", time.Date(2025, 1, 31, 23, 59, 59, 999999999, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := url.ParseQuery(tt.query)
			r, err := ParseDateRange(q)
			if err != nil {
				t.Fatalf("ParseDateRange: %v", err)
			}
			if !r.End.Equal(tt.wantEnd) {
				t.Errorf("end = %v, want %v", r.End, tt.wantEnd)
			}
		})
	}

	q, _ := url.ParseQuery("startDate=2025-01-01&endDate=2025-01-31")
	r, _ := ParseDateRange(q)
	if !r.Contains(time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)) {
		t.Error("midday on the end date must be inside the range")
	}
	if r.Contains(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Error("the next day must be outside the range")
	}
}

func TestDateRangeContainsIsInclusive(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	r := &DateRange{Start: start, End: end}
	if !r.Contains(start) || !r.Contains(end) {
		t.Error("bounds must be inside the range")
	}
	if r.Contains(end.Add(time.Nanosecond)) {
		t.Error("instant after end must be outside")
	}
	var all *DateRange
	if !all.Contains(time.Time{}) {
		t.Error("nil range contains everything")
	}
}
