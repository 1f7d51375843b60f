package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order by ParseTimestamp. Layouts without a
// zone are read as UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999", // microseconds, no zone
	"2006-01-02T15:04:05.000",    // milliseconds, no zone
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",           // datetime-local form inputs
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339 and the shorter forms browsers submit.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// JSONTime wraps time.Time so request bodies may use any layout
// ParseTimestamp understands.
type JSONTime time.Time

// UnmarshalJSON parses a quoted timestamp; null leaves the zero time.
func (jt *JSONTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		*jt = JSONTime(time.Time{})
		return nil
	}
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return fmt.Errorf("JSONTime.UnmarshalJSON: %w", err)
	}
	*jt = JSONTime(t)
	return nil
}

// MarshalJSON always emits full RFC3339 ("…Z").
func (jt JSONTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(jt).UTC().Format(time.RFC3339))
}

// Time returns the wrapped value.
func (jt JSONTime) Time() time.Time {
	return time.Time(jt)
}

// IsZero reports whether no timestamp was supplied.
func (jt JSONTime) IsZero() bool {
	return time.Time(jt).IsZero()
}
