package marketdata

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"hft-multifactor/internal/config"
)

// TimeLayout is the wall-clock layout written to position files.
const TimeLayout = "2006-01-02 15:04:05.000"

// parseLayouts lists accepted wall-clock layouts. Naive strings are UTC.
var parseLayouts = []string{
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
	"20060102 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime converts a timestamp string to Unix milliseconds. Integer
// strings are taken as milliseconds.
func ParseTime(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return ms, nil
	}
	for _, layout := range parseLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognised timestamp %q", s)
}

// FormatTime renders Unix milliseconds with TimeLayout in UTC.
func FormatTime(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(TimeLayout)
}

// toMillis converts an integer timestamp in unit to milliseconds.
func toMillis(v int64, unit string) int64 {
	switch unit {
	case config.TimeUnitSeconds:
		return v * 1000
	case config.TimeUnitMillis:
		return v
	case config.TimeUnitMicros:
		return v / 1000
	default:
		return v / 1_000_000
	}
}
