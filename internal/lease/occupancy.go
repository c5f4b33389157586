package lease

import "leasemarket/internal/models"

// Occupancy is the projection of one existing contract onto its hours.
type Occupancy struct {
	ContractID int64
	Privileged bool
	Hours      map[models.HourSlot]struct{}
}

func (o Occupancy) Holds(h models.HourSlot) bool {
	_, ok := o.Hours[h]
	return ok
}

// BuildOccupancy projects contracts without filtering them.
func BuildOccupancy(contracts []models.Contract) []Occupancy {
	index := make([]Occupancy, 0, len(contracts))
	for _, c := range contracts {
		hours := make(map[models.HourSlot]struct{}, len(c.Hours))
		for _, h := range c.Hours {
			hours[h] = struct{}{}
		}
		index = append(index, Occupancy{
			ContractID: c.ID,
			Privileged: c.Requester.IsVIP,
			Hours:      hours,
		})
	}
	return index
}
