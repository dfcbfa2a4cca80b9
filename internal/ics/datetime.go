package ics

import (
	"errors"
	"strings"
	"time"
)

const (
	layoutUTC      = "20060102T150405Z"
	layoutDateTime = "20060102T150405"
	layoutDate     = "20060102"
)

var errEmptyTime = errors.New("empty time value")

// DecodeDateTime decodes an ICS DATE or DATE-TIME value into an absolute
// instant. It accepts the UTC form (20260220T083000Z), the floating local
// form (20260220T083000, read as UTC since TZID is not supported) and the
// date-only form (20260220, UTC midnight). The boolean is false when the
// value cannot be decoded.
func DecodeDateTime(v string) (time.Time, bool) {
	t, err := parseICSTime(v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errEmptyTime
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse(layoutUTC, v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.Parse(layoutDateTime, v)
	}

	// Date-only (all-day), e.g., 20250101
	return time.Parse(layoutDate, v)
}
