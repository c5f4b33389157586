package lease

// HoursByDay counts requested hours per calendar day.
func HoursByDay(period Period) map[string]int {
	days := make(map[string]int)
	for first, n := range period.Days() {
		days[first.Day()] += n
	}
	return days
}

// CheckDailyCap rejects the period when any single day asks for more than
// maxHours, reporting the earliest such day. Only the requested hours are
// counted; hours the requester already holds on that day are not added.
func CheckDailyCap(period Period, maxHours int) error {
	for first, n := range period.Days() {
		if n > maxHours {
			return &DailyCapExceededError{Cap: maxHours, Day: first.Day(), Hours: n}
		}
	}
	return nil
}
