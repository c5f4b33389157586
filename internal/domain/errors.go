package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by ContractWriter when the hours were taken after the snapshot.
	ErrConflict = errors.New("hours already leased")
	ErrLocked   = errors.New("resource is locked by another operation")
)
