package lease

import (
	"iter"
	"strings"
	"time"

	"leasemarket/internal/models"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC3339,
}

// Period is a half-open range of hour slots [Start, End).
type Period struct {
	Start models.HourSlot
	End   models.HourSlot
}

// ExpandPeriod maps raw from/to timestamps onto hour slots. The start is
// truncated to its hour; the hour containing `to` is always included.
func ExpandPeriod(from, to string) (Period, error) {
	fromTime, err := parseTime(from)
	if err != nil {
		return Period{}, &InvalidRangeError{From: from, To: to, Reason: "cannot parse time_from"}
	}
	toTime, err := parseTime(to)
	if err != nil {
		return Period{}, &InvalidRangeError{From: from, To: to, Reason: "cannot parse time_to"}
	}
	if !fromTime.Before(toTime) {
		return Period{}, &InvalidRangeError{From: from, To: to, Reason: "time_from must precede time_to"}
	}

	// The exclusive end sits one minute past the hour of `to`, which
	// rounds up to the next slot: the hour of `to` is always requested.
	period := Period{
		Start: models.NewHourSlot(fromTime),
		End:   models.NewHourSlot(toTime).Next(),
	}
	// Slots follow the wall clock of each input, so differing offsets can
	// invert a range that is ordered as instants.
	if period.Len() == 0 {
		return Period{}, &InvalidRangeError{From: from, To: to, Reason: "time_to falls before time_from on the wall clock"}
	}
	return period, nil
}

// dayStart is the first slot of the calendar day holding h.
func dayStart(h models.HourSlot) models.HourSlot {
	d := int64(h) / 24
	if int64(h)%24 < 0 {
		d--
	}
	return models.HourSlot(d * 24)
}

// Days yields the period split at midnight: the first slot of each day
// piece and the number of requested hours in it, in chronological order.
func (p Period) Days() iter.Seq2[models.HourSlot, int] {
	return func(yield func(models.HourSlot, int) bool) {
		for h := p.Start; h < p.End; {
			next := min(dayStart(h)+24, p.End)
			if !yield(h, int(next-h)) {
				return
			}
			h = next
		}
	}
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	var lastErr error
	for _, layout := range timeLayouts {
		t, err := time.Parse(layout, raw)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// All yields every slot of the period in chronological order.
func (p Period) All() iter.Seq[models.HourSlot] {
	return func(yield func(models.HourSlot) bool) {
		for h := p.Start; h < p.End; h = h.Next() {
			if !yield(h) {
				return
			}
		}
	}
}

func (p Period) Slots() []models.HourSlot {
	slots := make([]models.HourSlot, 0, p.Len())
	for h := range p.All() {
		slots = append(slots, h)
	}
	return slots
}

func (p Period) Len() int {
	if p.End <= p.Start {
		return 0
	}
	return int(p.End - p.Start)
}

func (p Period) StartDay() string {
	return p.Start.Day()
}

// EndDay is the day of the last slot in the period.
func (p Period) EndDay() string {
	if p.End <= p.Start {
		return p.Start.Day()
	}
	return (p.End - 1).Day()
}
