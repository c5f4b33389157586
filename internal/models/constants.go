package models

const (
	// MaxDailyHours максимальное количество часов работы ресурса в сутки
	MaxDailyHours = 16

	// DefaultLockTTL время жизни блокировки ресурса на время операции аренды
	DefaultLockTTL = 10 // секунд

	// DayLayout формат календарного дня
	DayLayout = "2006-01-02"

	// HourLayout формат часового слота
	HourLayout = "2006-01-02 15"
)
