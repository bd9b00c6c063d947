package store

import "errors"

var (
	ErrInvalidInput     = errors.New("invalid ticket input")
	ErrStationNotFound  = errors.New("station not found")
	ErrTicketNotFound   = errors.New("ticket not found")
	ErrInvalidState     = errors.New("invalid ticket state")
	ErrCapacityExceeded = errors.New("station at capacity")
	ErrCrossTierReorder = errors.New("reorder crosses priority tiers")
	ErrNoOpReorder      = errors.New("ticket already at queue boundary")
	ErrTimeout          = errors.New("journal timeout")
)
