package models

// Requester is the party renting a resource ("master").
type Requester struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	IsVIP bool   `json:"is_vip" yaml:"is_vip"`
}
