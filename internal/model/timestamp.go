package model

import (
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the canonical text form of a naive timestamp.
const TimestampLayout = "2006-01-02T15:04:05"

// GeneratedAtLayout carries microseconds for batch generation times.
const GeneratedAtLayout = "2006-01-02T15:04:05.000000"

var requestLayouts = []string{
	TimestampLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// FormatTimestamp renders t in the canonical layout.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampLayout)
}

// ParseTimestamp accepts the canonical layout, a few common variants and
// RFC 3339. Zoned values are converted to UTC; naive ones are taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for _, layout := range requestLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
