package models

import (
	"fmt"
	"time"
)

// HourSlot is a single calendar hour, stored as hours since the Unix epoch
// of the wall clock it was built from. Zones are not normalized.
type HourSlot int64

// NewHourSlot truncates t to its hour using t's own wall clock.
func NewHourSlot(t time.Time) HourSlot {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC)
	return HourSlot(wall.Unix() / 3600)
}

// ParseHourSlot parses the "YYYY-MM-DD HH" form produced by String.
func ParseHourSlot(s string) (HourSlot, error) {
	t, err := time.ParseInLocation(HourLayout, s, time.UTC)
	if err != nil {
		return 0, fmt.Errorf("parse hour slot %q: %w", s, err)
	}
	return NewHourSlot(t), nil
}

func (h HourSlot) Time() time.Time {
	return time.Unix(int64(h)*3600, 0).UTC()
}

func (h HourSlot) Next() HourSlot {
	return h + 1
}

// Day returns the calendar day in YYYY-MM-DD form.
func (h HourSlot) Day() string {
	return h.Time().Format(DayLayout)
}

func (h HourSlot) String() string {
	return h.Time().Format(HourLayout)
}

func (h HourSlot) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HourSlot) UnmarshalText(text []byte) error {
	parsed, err := ParseHourSlot(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}
