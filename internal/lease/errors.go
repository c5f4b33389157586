package lease

import (
	"errors"
	"fmt"
	"strings"

	"leasemarket/internal/domain"
	"leasemarket/internal/models"
)

// InvalidRangeError reports a malformed or inverted time range.
type InvalidRangeError struct {
	From   string
	To     string
	Reason string
}

func (e *InvalidRangeError) Error() string {
	return fmt.Sprintf("invalid lease range %q - %q: %s", e.From, e.To, e.Reason)
}

// NotFoundError reports an unknown requester or resource id.
type NotFoundError struct {
	Entity string
	ID     int64
	Err    error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s #%d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err == nil {
		return domain.ErrNotFound
	}
	return e.Err
}

// ResourceBusyError lists requested hours already held by other contracts.
type ResourceBusyError struct {
	ResourceID   int64
	ResourceName string
	BusyHours    []models.HourSlot
}

func (e *ResourceBusyError) Error() string {
	hours := make([]string, len(e.BusyHours))
	for i, h := range e.BusyHours {
		hours[i] = h.String()
	}
	return fmt.Sprintf("Resource #%d \"%s\" is busy. Busy hours: %s", e.ResourceID, e.ResourceName, strings.Join(hours, ", "))
}

// DailyCapExceededError reports a day with more requested hours than the cap allows.
type DailyCapExceededError struct {
	Cap   int
	Day   string
	Hours int
}

func (e *DailyCapExceededError) Error() string {
	return fmt.Sprintf("Resources cannot work more than %d hours per day.", e.Cap)
}

// IsRejection reports whether err is a business rejection (busy hours or
// daily cap) rather than a malformed request or a store failure.
func IsRejection(err error) bool {
	var busy *ResourceBusyError
	var capErr *DailyCapExceededError
	return errors.As(err, &busy) || errors.As(err, &capErr)
}
