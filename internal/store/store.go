package store

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/registry"

	"github.com/google/uuid"
)

type CreateTicketInput struct {
	RequestID    string
	CustomerName string
	Phone        string
	StationID    string
	Priority     string
	Notes        string
	ArrivalTime  time.Time
}

// Store is the authoritative in-memory state: all tickets, the per-station
// waiting order and in-service sets, the dispatcher-wide token counter, and
// the dispatch-event history. Writes are serialized per station by the
// coordinator; the internal lock keeps cross-station reads consistent.
type Store struct {
	registry *registry.Registry

	mu        sync.RWMutex
	tickets   map[string]*models.Ticket
	waiting   map[string][]string
	inService map[string][]string
	requests  map[string]string
	events    []models.DispatchEvent
	tokenSeq  int
}

func New(reg *registry.Registry) *Store {
	return &Store{
		registry:  reg,
		tickets:   make(map[string]*models.Ticket),
		waiting:   make(map[string][]string),
		inService: make(map[string][]string),
		requests:  make(map[string]string),
	}
}

// NewTicket validates the input and constructs a waiting ticket with a
// fresh id and the next token number. The ticket is not stored yet; the
// coordinator calls Put once the journal write (if any) has succeeded.
func (s *Store) NewTicket(input CreateTicketInput) (models.Ticket, error) {
	name := strings.TrimSpace(input.CustomerName)
	phone := strings.TrimSpace(input.Phone)
	stationID := strings.TrimSpace(input.StationID)
	priority := strings.TrimSpace(input.Priority)

	if name == "" {
		return models.Ticket{}, fmt.Errorf("%w: customer_name is required", ErrInvalidInput)
	}
	if phone == "" {
		return models.Ticket{}, fmt.Errorf("%w: phone is required", ErrInvalidInput)
	}
	if stationID == "" {
		return models.Ticket{}, fmt.Errorf("%w: station_id is required", ErrInvalidInput)
	}
	if _, ok := s.registry.Get(stationID); !ok {
		return models.Ticket{}, ErrStationNotFound
	}
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !models.ValidPriority(priority) {
		return models.Ticket{}, fmt.Errorf("%w: unknown priority %q", ErrInvalidInput, priority)
	}

	arrival := input.ArrivalTime
	if arrival.IsZero() {
		arrival = time.Now().UTC()
	}

	s.mu.Lock()
	s.tokenSeq++
	token := s.tokenSeq
	s.mu.Unlock()

	return models.Ticket{
		TicketID:     uuid.NewString(),
		TokenNumber:  token,
		CustomerName: name,
		Phone:        phone,
		StationID:    stationID,
		Priority:     priority,
		Status:       models.StatusWaiting,
		ArrivalTime:  arrival,
		Notes:        strings.TrimSpace(input.Notes),
		RequestID:    strings.TrimSpace(input.RequestID),
	}, nil
}

func (s *Store) Put(ticket models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := ticket
	s.tickets[ticket.TicketID] = &copied
	if ticket.RequestID != "" {
		s.requests[ticket.RequestID] = ticket.TicketID
	}
}

func (s *Store) Ticket(ticketID string) (models.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, false
	}
	return *ticket, true
}

// TicketByRequestID supports idempotent enqueue: a repeated request id
// resolves to the ticket it originally created.
func (s *Store) TicketByRequestID(requestID string) (models.Ticket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ticketID, ok := s.requests[requestID]
	if !ok {
		return models.Ticket{}, false
	}
	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, false
	}
	return *ticket, true
}

func (s *Store) WaitingIDs(stationID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.waiting[stationID]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// WaitingTickets returns copies of a station's waiting tickets in queue
// order.
func (s *Store) WaitingTickets(stationID string) []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.waiting[stationID]
	out := make([]models.Ticket, 0, len(ids))
	for _, id := range ids {
		if ticket, ok := s.tickets[id]; ok {
			out = append(out, *ticket)
		}
	}
	return out
}

// SetWaitingOrder replaces a station's waiting order and renumbers
// positions contiguously from 1.
func (s *Store) SetWaitingOrder(stationID string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	replaced := make([]string, len(ids))
	copy(replaced, ids)
	s.waiting[stationID] = replaced
	for i, id := range replaced {
		if ticket, ok := s.tickets[id]; ok {
			ticket.Position = i + 1
		}
	}
}

func (s *Store) InServiceTickets(stationID string) []models.Ticket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.inService[stationID]
	out := make([]models.Ticket, 0, len(ids))
	for _, id := range ids {
		if ticket, ok := s.tickets[id]; ok {
			out = append(out, *ticket)
		}
	}
	return out
}

func (s *Store) InServiceCount(stationID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.inService[stationID])
}

func (s *Store) SetEstimate(ticketID string, minutes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket, ok := s.tickets[ticketID]; ok {
		ticket.EstimatedWaitMinutes = minutes
	}
}

// ApplyTransition mutates a ticket's status according to the transition
// table and maintains the in-service membership. Waiting-order upkeep is
// the scheduler's job. This is the only path that changes a status.
func (s *Store) ApplyTransition(ticketID, action string, occurredAt time.Time) (models.Ticket, error) {
	target, ok := TargetStatus(action)
	if !ok {
		return models.Ticket{}, fmt.Errorf("%w: unknown action %q", ErrInvalidState, action)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ticket, ok := s.tickets[ticketID]
	if !ok {
		return models.Ticket{}, ErrTicketNotFound
	}
	if !ValidTransition(action, ticket.Status) {
		return models.Ticket{}, fmt.Errorf("%w: %s -> %s", ErrInvalidState, ticket.Status, target)
	}

	from := ticket.Status
	at := occurredAt.UTC()
	switch target {
	case models.StatusInService:
		ticket.StartedAt = &at
		s.inService[ticket.StationID] = append(s.inService[ticket.StationID], ticket.TicketID)
	case models.StatusCompleted:
		ticket.CompletedAt = &at
	}
	if from == models.StatusInService {
		s.inService[ticket.StationID] = removeID(s.inService[ticket.StationID], ticket.TicketID)
	}
	// Every transition leaves the waiting order; position and estimate are
	// waiting-only fields.
	ticket.Position = 0
	ticket.EstimatedWaitMinutes = 0
	ticket.Status = target
	return *ticket, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			out = append(out, candidate)
		}
	}
	return out
}

func (s *Store) AppendEvent(event models.DispatchEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

// Events lists dispatch events in append order, newest last. Empty
// stationID matches all stations; zero after matches everything.
func (s *Store) Events(stationID string, after time.Time, limit int) []models.DispatchEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 100
	}
	out := make([]models.DispatchEvent, 0, limit)
	for _, event := range s.events {
		if stationID != "" && event.StationID != stationID {
			continue
		}
		if !after.IsZero() && !event.CreatedAt.After(after) {
			continue
		}
		out = append(out, event)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Seed loads tickets recovered from the journal. Waiting tickets are not
// ordered here; the coordinator re-inserts them through the scheduler so
// the comparator is reapplied.
func (s *Store) Seed(tickets []models.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ticket := range tickets {
		copied := ticket
		copied.Position = 0
		copied.EstimatedWaitMinutes = 0
		s.tickets[copied.TicketID] = &copied
		if copied.RequestID != "" {
			s.requests[copied.RequestID] = copied.TicketID
		}
		if copied.Status == models.StatusInService {
			s.inService[copied.StationID] = append(s.inService[copied.StationID], copied.TicketID)
		}
		if copied.TokenNumber > s.tokenSeq {
			s.tokenSeq = copied.TokenNumber
		}
	}
}
