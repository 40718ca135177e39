package common

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the yyyy-MM-dd form used for filter dates and messages
const DateLayout = "2006-01-02"

// ParseFilterDate parses a yyyy-MM-dd date in local time. "" and "today" mean today.
func ParseFilterDate(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(strings.ToLower(value))
	switch value {
	case "", "today":
		return StartOfDay(now), nil
	case "yesterday":
		return StartOfDay(now).AddDate(0, 0, -1), nil
	}

	t, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (expected yyyy-MM-dd): %w", value, err)
	}
	return t, nil
}

// StartOfDay truncates t to local midnight
func StartOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// BeforeDay reports whether t falls on a calendar day before day (both in local time)
func BeforeDay(t, day time.Time) bool {
	return StartOfDay(t).Before(StartOfDay(day))
}
