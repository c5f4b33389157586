package lease

import (
	"iter"
	"slices"

	"leasemarket/internal/models"
)

// FindBusyHours returns the requested hours that cannot be granted, in the
// order they are yielded. A privileged requester only collides with
// privileged owners.
func FindBusyHours(requested iter.Seq[models.HourSlot], index []Occupancy, privileged bool) []models.HourSlot {
	var busy []models.HourSlot
	for h := range requested {
		for _, occ := range index {
			if !occ.Holds(h) {
				continue
			}
			if !privileged || occ.Privileged {
				busy = append(busy, h)
				break
			}
		}
	}
	return busy
}

// BusyHoursIn is FindBusyHours over a whole period. It walks the held
// hours instead of the requested ones, so its cost does not grow with the
// length of the period.
func BusyHoursIn(period Period, index []Occupancy, privileged bool) []models.HourSlot {
	var busy []models.HourSlot
	for _, occ := range index {
		if privileged && !occ.Privileged {
			continue
		}
		for h := range occ.Hours {
			if h >= period.Start && h < period.End {
				busy = append(busy, h)
			}
		}
	}
	slices.Sort(busy)
	return slices.Compact(busy)
}
