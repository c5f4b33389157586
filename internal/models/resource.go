package models

// Resource is the bookable entity ("slave").
type Resource struct {
	ID         int64   `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	HourlyRate float64 `json:"hourly_rate" yaml:"hourly_rate"`
}
