package models

import "time"

// DispatchEvent is an append-only audit record; it is never mutated once
// recorded.
type DispatchEvent struct {
	EventID    string    `json:"event_id"`
	TicketID   string    `json:"ticket_id"`
	StationID  string    `json:"station_id"`
	Type       string    `json:"type"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status,omitempty"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	EventTicketEnqueued  = "ticket.enqueued"
	EventTicketStarted   = "ticket.started"
	EventTicketCompleted = "ticket.completed"
	EventTicketNoShow    = "ticket.no_show"
	EventTicketReordered = "ticket.reordered"
)
