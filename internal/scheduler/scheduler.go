package scheduler

import (
	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/store"
)

// Scheduler maintains the ordering invariant of each station's waiting
// list: priority tier descending, arrival time ascending, token number as
// the deterministic tie-break.
type Scheduler struct {
	store *store.Store
}

func New(st *store.Store) *Scheduler {
	return &Scheduler{store: st}
}

// before reports whether a outranks b in the waiting order.
func before(a, b models.Ticket) bool {
	if models.PriorityRank[a.Priority] != models.PriorityRank[b.Priority] {
		return models.PriorityRank[a.Priority] > models.PriorityRank[b.Priority]
	}
	if !a.ArrivalTime.Equal(b.ArrivalTime) {
		return a.ArrivalTime.Before(b.ArrivalTime)
	}
	return a.TokenNumber < b.TokenNumber
}

// Insert splices a ticket into its sorted slot and renumbers the station's
// positions from 1.
func (s *Scheduler) Insert(stationID, ticketID string) error {
	ticket, ok := s.store.Ticket(ticketID)
	if !ok {
		return store.ErrTicketNotFound
	}
	current := s.store.WaitingTickets(stationID)
	idx := len(current)
	for i, existing := range current {
		if before(ticket, existing) {
			idx = i
			break
		}
	}
	ids := make([]string, 0, len(current)+1)
	for _, existing := range current[:idx] {
		ids = append(ids, existing.TicketID)
	}
	ids = append(ids, ticketID)
	for _, existing := range current[idx:] {
		ids = append(ids, existing.TicketID)
	}
	s.store.SetWaitingOrder(stationID, ids)
	return nil
}

// Remove drops a ticket from the waiting order and renumbers the rest.
func (s *Scheduler) Remove(stationID, ticketID string) error {
	current := s.store.WaitingIDs(stationID)
	ids := make([]string, 0, len(current))
	found := false
	for _, id := range current {
		if id == ticketID {
			found = true
			continue
		}
		ids = append(ids, id)
	}
	if !found {
		return store.ErrTicketNotFound
	}
	s.store.SetWaitingOrder(stationID, ids)
	return nil
}

// PlanReorder computes the waiting order after swapping the ticket with
// its neighbor, without applying it. Swaps are confined to a single
// priority tier: pushing a ticket past one of a different tier would
// silently break the ordering invariant, so it is rejected instead.
func (s *Scheduler) PlanReorder(stationID, ticketID, direction string) ([]string, error) {
	current := s.store.WaitingTickets(stationID)
	idx := -1
	for i, ticket := range current {
		if ticket.TicketID == ticketID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, store.ErrTicketNotFound
	}

	neighbor := idx - 1
	if direction == models.DirectionDown {
		neighbor = idx + 1
	}
	if neighbor < 0 || neighbor >= len(current) {
		return nil, store.ErrNoOpReorder
	}
	if current[idx].Priority != current[neighbor].Priority {
		return nil, store.ErrCrossTierReorder
	}

	ids := make([]string, len(current))
	for i, ticket := range current {
		ids[i] = ticket.TicketID
	}
	ids[idx], ids[neighbor] = ids[neighbor], ids[idx]
	return ids, nil
}

// Reorder applies PlanReorder's result.
func (s *Scheduler) Reorder(stationID, ticketID, direction string) error {
	ids, err := s.PlanReorder(stationID, ticketID, direction)
	if err != nil {
		return err
	}
	s.store.SetWaitingOrder(stationID, ids)
	return nil
}
