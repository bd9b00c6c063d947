package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"deskflow/dispatch-service/internal/estimate"
	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/registry"
	"deskflow/dispatch-service/internal/scheduler"
	"deskflow/dispatch-service/internal/store"

	"github.com/google/uuid"
)

// Journal is the optional durability collaborator: an append-only event
// log plus the ticket's post-transition state. Append runs inside the
// station critical section before any in-memory mutation, so a failed or
// timed-out write leaves the station untouched.
type Journal interface {
	AppendEvent(ctx context.Context, event models.DispatchEvent, ticket models.Ticket) error
	LoadActiveTickets(ctx context.Context) ([]models.Ticket, error)
}

// EventSink receives every recorded dispatch event after the mutation has
// been applied. Sinks must not block.
type EventSink interface {
	DispatchEvent(event models.DispatchEvent, ticket models.Ticket)
}

type EnqueueInput struct {
	RequestID    string
	CustomerName string
	Phone        string
	StationID    string
	Priority     string
	Notes        string
	Actor        string
}

type StationSnapshot struct {
	Station       models.Station  `json:"station"`
	Waiting       []models.Ticket `json:"waiting"`
	InService     []models.Ticket `json:"in_service"`
	CapacityUsed  int             `json:"capacity_used"`
	CapacityTotal int             `json:"capacity_total"`
}

type Options struct {
	Journal      Journal
	Sinks        []EventSink
	DefaultActor string
}

// Coordinator is the sole mutation gateway. Writes are serialized per
// station; operations on different stations proceed in parallel.
type Coordinator struct {
	registry  *registry.Registry
	store     *store.Store
	scheduler *scheduler.Scheduler
	estimator *estimate.Estimator
	journal   Journal
	sinks     []EventSink
	actor     string

	mu       sync.Mutex
	stations map[string]*sync.RWMutex
}

func New(reg *registry.Registry, st *store.Store, sch *scheduler.Scheduler, est *estimate.Estimator, options Options) *Coordinator {
	actor := options.DefaultActor
	if actor == "" {
		actor = "system"
	}
	return &Coordinator{
		registry:  reg,
		store:     st,
		scheduler: sch,
		estimator: est,
		journal:   options.Journal,
		sinks:     options.Sinks,
		actor:     actor,
		stations:  make(map[string]*sync.RWMutex),
	}
}

func (c *Coordinator) stationLock(stationID string) *sync.RWMutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	lock, ok := c.stations[stationID]
	if !ok {
		lock = &sync.RWMutex{}
		c.stations[stationID] = lock
	}
	return lock
}

// Restore reloads active tickets from the journal: in-service tickets keep
// their slots, waiting tickets go back through the scheduler so the
// comparator is reapplied, and all estimates are recomputed. Manual
// reorder offsets are not reconstructed.
func (c *Coordinator) Restore(ctx context.Context) error {
	if c.journal == nil {
		return nil
	}
	tickets, err := c.journal.LoadActiveTickets(ctx)
	if err != nil {
		return fmt.Errorf("load active tickets: %w", err)
	}
	c.store.Seed(tickets)
	for _, ticket := range tickets {
		if ticket.Status != models.StatusWaiting {
			continue
		}
		if err := c.scheduler.Insert(ticket.StationID, ticket.TicketID); err != nil {
			return fmt.Errorf("reinsert ticket %s: %w", ticket.TicketID, err)
		}
	}
	for _, station := range c.registry.List() {
		if err := c.estimator.RecomputeStation(station.StationID); err != nil {
			return err
		}
	}
	return nil
}

func (c *Coordinator) Enqueue(ctx context.Context, input EnqueueInput) (models.Ticket, error) {
	stationID := strings.TrimSpace(input.StationID)
	if _, ok := c.registry.Get(stationID); !ok {
		return models.Ticket{}, store.ErrStationNotFound
	}

	lock := c.stationLock(stationID)
	lock.Lock()
	defer lock.Unlock()

	if requestID := strings.TrimSpace(input.RequestID); requestID != "" {
		if existing, ok := c.store.TicketByRequestID(requestID); ok {
			return existing, nil
		}
	}

	ticket, err := c.store.NewTicket(store.CreateTicketInput{
		RequestID:    input.RequestID,
		CustomerName: input.CustomerName,
		Phone:        input.Phone,
		StationID:    stationID,
		Priority:     input.Priority,
		Notes:        input.Notes,
	})
	if err != nil {
		return models.Ticket{}, err
	}

	event := c.newEvent(ticket, models.EventTicketEnqueued, "", models.StatusWaiting, input.Actor)
	if err := c.journalAppend(ctx, event, ticket); err != nil {
		return models.Ticket{}, err
	}

	c.store.Put(ticket)
	if err := c.scheduler.Insert(stationID, ticket.TicketID); err != nil {
		return models.Ticket{}, err
	}
	if err := c.estimator.RecomputeStation(stationID); err != nil {
		return models.Ticket{}, err
	}

	updated, _ := c.store.Ticket(ticket.TicketID)
	c.record(event, updated)
	return updated, nil
}

func (c *Coordinator) StartService(ctx context.Context, ticketID, actor string) (models.Ticket, error) {
	return c.transition(ctx, ticketID, store.ActionStart, models.EventTicketStarted, actor)
}

func (c *Coordinator) CompleteService(ctx context.Context, ticketID, actor string) (models.Ticket, error) {
	return c.transition(ctx, ticketID, store.ActionComplete, models.EventTicketCompleted, actor)
}

func (c *Coordinator) MarkNoShow(ctx context.Context, ticketID, actor string) (models.Ticket, error) {
	return c.transition(ctx, ticketID, store.ActionNoShow, models.EventTicketNoShow, actor)
}

func (c *Coordinator) transition(ctx context.Context, ticketID, action, eventType, actor string) (models.Ticket, error) {
	ticket, ok := c.store.Ticket(ticketID)
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}

	lock := c.stationLock(ticket.StationID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the station lock; the ticket may have moved since the
	// lookup above.
	ticket, ok = c.store.Ticket(ticketID)
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if !store.ValidTransition(action, ticket.Status) {
		target, _ := store.TargetStatus(action)
		return models.Ticket{}, fmt.Errorf("%w: %s -> %s", store.ErrInvalidState, ticket.Status, target)
	}

	station, ok := c.registry.Get(ticket.StationID)
	if !ok {
		return models.Ticket{}, store.ErrStationNotFound
	}
	if action == store.ActionStart && c.store.InServiceCount(ticket.StationID) >= station.Capacity {
		return models.Ticket{}, store.ErrCapacityExceeded
	}

	wasWaiting := ticket.Status == models.StatusWaiting
	target, _ := store.TargetStatus(action)
	event := c.newEvent(ticket, eventType, ticket.Status, target, actor)

	journaled := ticket
	journaled.Status = target
	journaled.Position = 0
	journaled.EstimatedWaitMinutes = 0
	if err := c.journalAppend(ctx, event, journaled); err != nil {
		return models.Ticket{}, err
	}

	updated, err := c.store.ApplyTransition(ticketID, action, event.CreatedAt)
	if err != nil {
		return models.Ticket{}, err
	}
	if wasWaiting {
		if err := c.scheduler.Remove(ticket.StationID, ticketID); err != nil {
			return models.Ticket{}, err
		}
	}
	if err := c.estimator.RecomputeStation(ticket.StationID); err != nil {
		return models.Ticket{}, err
	}

	c.record(event, updated)
	return updated, nil
}

func (c *Coordinator) Reorder(ctx context.Context, ticketID, direction, actor string) (models.Ticket, error) {
	if direction != models.DirectionUp && direction != models.DirectionDown {
		return models.Ticket{}, fmt.Errorf("%w: direction must be %q or %q", store.ErrInvalidInput, models.DirectionUp, models.DirectionDown)
	}

	ticket, ok := c.store.Ticket(ticketID)
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}

	lock := c.stationLock(ticket.StationID)
	lock.Lock()
	defer lock.Unlock()

	ticket, ok = c.store.Ticket(ticketID)
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	if ticket.Status != models.StatusWaiting {
		return models.Ticket{}, fmt.Errorf("%w: only waiting tickets can be reordered", store.ErrInvalidState)
	}

	ids, err := c.scheduler.PlanReorder(ticket.StationID, ticketID, direction)
	if err != nil {
		return models.Ticket{}, err
	}

	event := c.newEvent(ticket, models.EventTicketReordered, models.StatusWaiting, models.StatusWaiting, actor)
	if err := c.journalAppend(ctx, event, ticket); err != nil {
		return models.Ticket{}, err
	}

	c.store.SetWaitingOrder(ticket.StationID, ids)
	if err := c.estimator.RecomputeStation(ticket.StationID); err != nil {
		return models.Ticket{}, err
	}

	updated, _ := c.store.Ticket(ticketID)
	c.record(event, updated)
	return updated, nil
}

func (c *Coordinator) SnapshotStation(stationID string) (StationSnapshot, error) {
	station, ok := c.registry.Get(stationID)
	if !ok {
		return StationSnapshot{}, store.ErrStationNotFound
	}

	lock := c.stationLock(stationID)
	lock.RLock()
	defer lock.RUnlock()

	inService := c.store.InServiceTickets(stationID)
	return StationSnapshot{
		Station:       station,
		Waiting:       c.store.WaitingTickets(stationID),
		InService:     inService,
		CapacityUsed:  len(inService),
		CapacityTotal: station.Capacity,
	}, nil
}

func (c *Coordinator) GetTicket(ticketID string) (models.Ticket, error) {
	ticket, ok := c.store.Ticket(ticketID)
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (c *Coordinator) ListEvents(stationID string, after time.Time, limit int) ([]models.DispatchEvent, error) {
	if stationID != "" {
		if _, ok := c.registry.Get(stationID); !ok {
			return nil, store.ErrStationNotFound
		}
	}
	return c.store.Events(stationID, after, limit), nil
}

func (c *Coordinator) ListStations() []models.Station {
	return c.registry.List()
}

func (c *Coordinator) newEvent(ticket models.Ticket, eventType, from, to, actor string) models.DispatchEvent {
	if strings.TrimSpace(actor) == "" {
		actor = c.actor
	}
	return models.DispatchEvent{
		EventID:    uuid.NewString(),
		TicketID:   ticket.TicketID,
		StationID:  ticket.StationID,
		Type:       eventType,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		CreatedAt:  time.Now().UTC(),
	}
}

func (c *Coordinator) journalAppend(ctx context.Context, event models.DispatchEvent, ticket models.Ticket) error {
	if c.journal == nil {
		return nil
	}
	if err := c.journal.AppendEvent(ctx, event, ticket); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("journal append: %w", store.ErrTimeout)
		}
		return fmt.Errorf("journal append: %w", err)
	}
	return nil
}

func (c *Coordinator) record(event models.DispatchEvent, ticket models.Ticket) {
	c.store.AppendEvent(event)
	for _, sink := range c.sinks {
		sink.DispatchEvent(event, ticket)
	}
}
