package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CompactLayout is the sortable token embedded in archive file names.
	CompactLayout = "20060102T150405Z"
	// CanonicalLayout is the ISO-8601 instant used on the wire.
	CanonicalLayout = "2006-01-02T15:04:05.000Z"
)

// Timestamp is a UTC instant with millisecond precision.
// It serializes to the canonical wire form and derives the compact token on demand.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC and truncates it to milliseconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Millisecond)}
}

// Now returns the current instant as a Timestamp.
func Now() Timestamp {
	return NewTimestamp(time.Now())
}

// Compact returns the YYYYMMDDThhmmssZ token for the instant.
func (ts Timestamp) Compact() string {
	return FormatCompact(ts.Time)
}

// String returns the canonical representation.
func (ts Timestamp) String() string {
	return FormatCanonical(ts.Time)
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + FormatCanonical(ts.Time) + `"`), nil
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	t, err := ParseCanonical(s)
	if err != nil {
		return err
	}
	*ts = NewTimestamp(t)
	return nil
}

// FormatCompact renders t as YYYYMMDDThhmmssZ in UTC.
func FormatCompact(t time.Time) string {
	return t.UTC().Format(CompactLayout)
}

// ParseCompact parses a YYYYMMDDThhmmssZ token.
func ParseCompact(s string) (time.Time, error) {
	t, err := time.Parse(CompactLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp from %s: %w", s, err)
	}
	return t.UTC(), nil
}

// FormatCanonical renders t as an ISO-8601 UTC instant with milliseconds.
func FormatCanonical(t time.Time) string {
	return t.UTC().Format(CanonicalLayout)
}

// ParseCanonical accepts any RFC 3339 instant and normalizes it to UTC.
func ParseCanonical(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp from %s: %w", s, err)
	}
	return t.UTC(), nil
}
