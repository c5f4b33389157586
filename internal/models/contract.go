package models

import "time"

// Contract is an accepted, priced lease. Hours are unique and chronological.
type Contract struct {
	ID        int64      `json:"id"`
	Requester Requester  `json:"requester"`
	Resource  Resource   `json:"resource"`
	Price     float64    `json:"price"`
	Hours     []HourSlot `json:"hours"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c *Contract) HourCount() int {
	return len(c.Hours)
}

// LeaseRequest asks to rent ResourceID for RequesterID between TimeFrom and TimeTo.
type LeaseRequest struct {
	RequesterID int64  `json:"requester_id"`
	ResourceID  int64  `json:"resource_id"`
	TimeFrom    string `json:"time_from"`
	TimeTo      string `json:"time_to"`
}

// LeaseResponse holds either a contract or a non-empty list of errors.
type LeaseResponse struct {
	Contract *Contract `json:"contract,omitempty"`
	Errors   []string  `json:"errors,omitempty"`
}

func (r *LeaseResponse) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

func (r *LeaseResponse) OK() bool {
	return r.Contract != nil && len(r.Errors) == 0
}
