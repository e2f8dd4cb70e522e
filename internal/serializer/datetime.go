// Package serializer maps storage rows to the JSON shapes the API returns
// and validates the datetime strings clients send in.
//
// Everything here is a pure function: no I/O, no logging, no clock.
package serializer

import (
	"errors"
	"strings"
	"time"
)

// ISOLayout renders instants the way browsers do with Date.toISOString():
// always UTC, always milliseconds, always a trailing "Z".
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrInvalidDatetime is returned by ParseDatetime for any string that does
// not describe a real calendar instant.
var ErrInvalidDatetime = errors.New("invalid datetime")

// acceptedLayouts is tried in order. Layouts without a zone are read as UTC.
//
// RFC 3339 comes first because it is what every well-behaved client sends;
// the rest cover date-only and zone-less strings that users type by hand.
var acceptedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-01",
	"2006",
	"2006/01/02 15:04:05",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
}

// ParseDatetime parses s into a UTC instant.
//
// It exists to keep corrupt rows out of storage: a string that fails here
// must never be written, otherwise it would be persisted as a zero or
// sentinel time.
func ParseDatetime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrInvalidDatetime
	}

	for _, layout := range acceptedLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, ErrInvalidDatetime
}

// IsValidDatetime reports whether s parses into a valid instant.
func IsValidDatetime(s string) bool {
	_, err := ParseDatetime(s)
	return err == nil
}

// FormatISO renders t in ISOLayout.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// formatNullable returns nil for a nil or zero time so the JSON field is
// emitted as null rather than dropped.
func formatNullable(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := FormatISO(*t)
	return &s
}
