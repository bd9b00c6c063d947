package estimate

import (
	"errors"
	"testing"
	"time"

	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/registry"
	"deskflow/dispatch-service/internal/scheduler"
	"deskflow/dispatch-service/internal/store"
)

func setup(t *testing.T) (*store.Store, *scheduler.Scheduler, *Estimator) {
	t.Helper()
	reg, err := registry.New([]models.Station{
		{StationID: "desk-1", Name: "Desk 1", Capacity: 2, AvgServiceMinutes: 20},
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	st := store.New(reg)
	return st, scheduler.New(st), New(reg, st)
}

func enqueue(t *testing.T, st *store.Store, sch *scheduler.Scheduler, name string, arrival time.Time) models.Ticket {
	t.Helper()
	ticket, err := st.NewTicket(store.CreateTicketInput{
		CustomerName: name,
		Phone:        "12345678",
		StationID:    "desk-1",
		ArrivalTime:  arrival,
	})
	if err != nil {
		t.Fatalf("new ticket: %v", err)
	}
	st.Put(ticket)
	if err := sch.Insert("desk-1", ticket.TicketID); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return ticket
}

func estimates(t *testing.T, st *store.Store) []int {
	t.Helper()
	var out []int
	for _, ticket := range st.WaitingTickets("desk-1") {
		out = append(out, ticket.EstimatedWaitMinutes)
	}
	return out
}

func TestRecomputeStation(t *testing.T) {
	st, sch, est := setup(t)
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	// Five waiting tickets, capacity 2, 20 minutes per service:
	// estimates floor(k/2)*20 for k = 0..4.
	for i := 0; i < 5; i++ {
		enqueue(t, st, sch, "guest", base.Add(time.Duration(i)*time.Minute))
	}
	if err := est.RecomputeStation("desk-1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	want := []int{0, 0, 20, 20, 40}
	got := estimates(t, st)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("estimates %v, want %v", got, want)
		}
	}
}

func TestRecomputeCountsInService(t *testing.T) {
	st, sch, est := setup(t)
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	busy1 := enqueue(t, st, sch, "busy1", base)
	busy2 := enqueue(t, st, sch, "busy2", base.Add(time.Minute))
	enqueue(t, st, sch, "waiter", base.Add(2*time.Minute))

	for _, ticket := range []models.Ticket{busy1, busy2} {
		if _, err := st.ApplyTransition(ticket.TicketID, store.ActionStart, base); err != nil {
			t.Fatalf("start: %v", err)
		}
		if err := sch.Remove("desk-1", ticket.TicketID); err != nil {
			t.Fatalf("remove: %v", err)
		}
	}
	if err := est.RecomputeStation("desk-1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}

	// Two in service ahead of the only waiting ticket: floor(2/2)*20.
	got := estimates(t, st)
	if len(got) != 1 || got[0] != 20 {
		t.Fatalf("estimates %v, want [20]", got)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	st, sch, est := setup(t)
	base := time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		enqueue(t, st, sch, "guest", base.Add(time.Duration(i)*time.Minute))
	}
	if err := est.RecomputeStation("desk-1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	first := estimates(t, st)
	if err := est.RecomputeStation("desk-1"); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	second := estimates(t, st)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("recompute not idempotent: %v then %v", first, second)
		}
	}
}

func TestRecomputeUnknownStation(t *testing.T) {
	_, _, est := setup(t)
	if err := est.RecomputeStation("desk-9"); !errors.Is(err, store.ErrStationNotFound) {
		t.Fatalf("expected ErrStationNotFound, got %v", err)
	}
}
