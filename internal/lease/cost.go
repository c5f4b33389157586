package lease

import "leasemarket/internal/models"

// BillableHours sums hours per day clamped to maxHours.
func BillableHours(period Period, maxHours int) int {
	total := 0
	for _, count := range HoursByDay(period) {
		total += min(count, maxHours)
	}
	return total
}

// Price is billable hours times the resource rate.
func Price(period Period, resource models.Resource, maxHours int) float64 {
	rate := resource.HourlyRate
	if rate < 0 {
		rate = 0
	}
	return float64(BillableHours(period, maxHours)) * rate
}
