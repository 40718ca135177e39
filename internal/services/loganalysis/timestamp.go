package loganalysis

import (
	"strings"
	"time"
)

const (
	layoutSeconds = "2006-01-02 15:04:05"
	layoutMillis  = "2006-01-02 15:04:05,000"
)

// genericLayouts are tried, in order, for free-form date-time fragments.
// Numeric dates without a leading year are month first.
var genericLayouts = []string{
	time.RFC3339,
	layoutSeconds,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	layoutMillis,
	"2006/01/02 15:04:05",
	"01/02/2006 15:04:05",
	"01-02-2006 15:04:05",
	"2006 01 02 15:04:05",
	"01 02 2006 15:04:05",
	"Jan 2 2006 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// timeOnlyLayouts resolve to the clock time on the analysis day
var timeOnlyLayouts = []string{
	"15:04:05",
	"15:04:05.000",
	"15:04:05,000",
}

// ExtractTimestamp returns the timestamp embedded in line, or now if none can be parsed
func ExtractTimestamp(line string, now time.Time) time.Time {
	ts, _, _ := parseTimestamp(line, now)
	return ts
}

// SplitTimestamp returns the embedded timestamp (or now) and the line with a leading
// timestamp prefix removed. Only a bracketed or fixed-width prefix is removed; timestamps
// found further into the line leave the message untouched.
func SplitTimestamp(line string, now time.Time) (time.Time, string) {
	ts, msg, _ := splitTimestamp(line, now)
	return ts, msg
}

func splitTimestamp(line string, now time.Time) (time.Time, string, bool) {
	trimmed := strings.TrimSpace(line)
	ts, prefixLen, ok := parseTimestamp(trimmed, now)
	if prefixLen > 0 {
		if msg := strings.TrimSpace(trimmed[prefixLen:]); msg != "" {
			return ts, msg, ok
		}
	}
	return ts, trimmed, ok
}

// parseTimestamp runs the extraction chain. prefixLen is the number of leading bytes
// that held the timestamp, or 0 when it came from inside the line; ok is false when
// the result is the now fallback.
func parseTimestamp(line string, now time.Time) (ts time.Time, prefixLen int, ok bool) {
	// 1. Bracketed prefix: [yyyy-MM-dd HH:mm:ss] or [yyyy-MM-dd HH:mm:ss,fff]
	if strings.HasPrefix(line, "[") {
		if end := strings.Index(line, "]"); end > 0 {
			inner := line[1:end]
			if t, err := time.ParseInLocation(layoutSeconds, inner, time.Local); err == nil {
				return t, end + 1, true
			}
			if len(inner) >= 23 {
				if t, err := time.ParseInLocation(layoutMillis, inner[:23], time.Local); err == nil {
					return t, end + 1, true
				}
			}
			if t, ok := parseGeneric(inner, now); ok {
				return t, end + 1, true
			}
		}
	}

	// 2. Fixed-width prefix
	if len(line) >= 23 {
		if t, err := time.ParseInLocation(layoutMillis, line[:23], time.Local); err == nil {
			return t, 23, true
		}
		if t, err := time.ParseInLocation(layoutSeconds, line[:19], time.Local); err == nil {
			return t, 19, true
		}
	}

	words := strings.Fields(line)

	// 3. Adjacent word pairs with brackets removed and hyphens as spaces,
	// e.g. "2024-01-01 10:00:00" inside the line reads as "2024 01 01 10:00:00"
	for i := 0; i+1 < len(words); i++ {
		pair := strings.ReplaceAll(stripChars(words[i]+" "+words[i+1], "[]"), "-", " ")
		if t, ok := parseGeneric(pair, now); ok {
			return t, 0, true
		}
	}

	// 4. Single words
	for _, word := range words {
		if t, ok := parseGeneric(stripChars(word, "[],"), now); ok {
			return t, 0, true
		}
	}

	return now, 0, false
}

func parseGeneric(value string, now time.Time) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range genericLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			return t, true
		}
	}
	for _, layout := range timeOnlyLayouts {
		if t, err := time.ParseInLocation(layout, value, time.Local); err == nil {
			day := now.In(time.Local)
			return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.Local), true
		}
	}
	return time.Time{}, false
}

func stripChars(s, chars string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}
