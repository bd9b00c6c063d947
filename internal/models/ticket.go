package models

import "time"

type Ticket struct {
	TicketID             string     `json:"ticket_id"`
	TokenNumber          int        `json:"token_number"`
	CustomerName         string     `json:"customer_name"`
	Phone                string     `json:"phone"`
	StationID            string     `json:"station_id"`
	Priority             string     `json:"priority"`
	Status               string     `json:"status"`
	ArrivalTime          time.Time  `json:"arrival_time"`
	Position             int        `json:"position,omitempty"`
	EstimatedWaitMinutes int        `json:"estimated_wait_minutes"`
	Notes                string     `json:"notes,omitempty"`
	RequestID            string     `json:"request_id,omitempty"`
	StartedAt            *time.Time `json:"started_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

const (
	StatusWaiting   = "waiting"
	StatusInService = "in_service"
	StatusCompleted = "completed"
	StatusNoShow    = "no_show"
)

const (
	PriorityNormal    = "normal"
	PriorityUrgent    = "urgent"
	PriorityEmergency = "emergency"
)

// PriorityRank orders tiers for scheduling; a higher rank is served first.
var PriorityRank = map[string]int{
	PriorityNormal:    0,
	PriorityUrgent:    1,
	PriorityEmergency: 2,
}

func ValidPriority(priority string) bool {
	_, ok := PriorityRank[priority]
	return ok
}

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)
