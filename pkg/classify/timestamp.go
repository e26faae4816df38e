package classify

import (
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/umputun/livedash/pkg/domain"
)

// Timestamp finds the first parseable time among fields, then among common time field names
func Timestamp(rec domain.Record, fields ...string) (time.Time, bool) {
	for _, group := range [][]string{fields, fallbackTimeFields} {
		for _, name := range group {
			v, ok := rec.Value(name)
			if !ok {
				continue
			}
			if ts, ok := ParseTime(v); ok {
				return ts, true
			}
		}
	}
	return time.Time{}, false
}

// ParseTime converts a field value into UTC time. It accepts time.Time, date strings in
// any layout dateparse understands, numeric epoch seconds or milliseconds, and
// {seconds, nanoseconds} maps as produced by document stores.
func ParseTime(v any) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		if val.IsZero() {
			return time.Time{}, false
		}
		return val.UTC(), true
	case *time.Time:
		if val == nil {
			return time.Time{}, false
		}
		return ParseTime(*val)
	case string:
		s := strings.TrimSpace(val)
		if s == "" {
			return time.Time{}, false
		}
		return parseTimeString(s)
	case float64:
		return fromEpoch(val)
	case int64:
		return fromEpoch(float64(val))
	case int:
		return fromEpoch(float64(val))
	case map[string]any:
		secs, ok := val["seconds"]
		if !ok {
			secs, ok = val["_seconds"]
		}
		if !ok {
			return time.Time{}, false
		}
		s, ok := secs.(float64)
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := val["nanoseconds"].(float64)
		return time.Unix(int64(s), int64(nanos)).UTC(), true
	}
	return time.Time{}, false
}

// compact ISO-8601 layouts, digit-only dates must not be read as epoch numbers
var basicLayouts = []string{"20060102T150405Z07:00", "20060102T150405Z0700", "20060102T150405", "20060102"}

// parseTimeString reads 10 and 13 digit strings as epoch seconds and millis,
// everything else as a date layout first and a fractional epoch last
func parseTimeString(s string) (time.Time, bool) {
	if isDigits(s) && (len(s) == 10 || len(s) == 13) {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return fromEpoch(float64(n))
	}

	for _, layout := range basicLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}

	if ts, err := dateparse.ParseIn(s, time.UTC); err == nil {
		return ts.UTC(), true
	}

	if strings.Contains(s, ".") {
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return fromEpoch(n)
		}
	}
	return time.Time{}, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// fromEpoch treats values above 1e11 as milliseconds
func fromEpoch(n float64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1e11 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}
