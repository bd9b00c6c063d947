package estimate

import (
	"deskflow/dispatch-service/internal/registry"
	"deskflow/dispatch-service/internal/store"
)

// Estimator derives estimated_wait_minutes for every waiting ticket of a
// station. With capacity C parallel slots each taking roughly D minutes,
// a ticket with k tickets ahead of it (waiting before it plus everyone in
// service) waits about floor(k/C)*D minutes.
type Estimator struct {
	registry *registry.Registry
	store    *store.Store
}

func New(reg *registry.Registry, st *store.Store) *Estimator {
	return &Estimator{registry: reg, store: st}
}

// RecomputeStation refreshes every waiting estimate of one station. It is
// a full recompute on purpose: rerunning it over an unchanged list is
// idempotent, so the estimates can never drift from the queue state.
func (e *Estimator) RecomputeStation(stationID string) error {
	station, ok := e.registry.Get(stationID)
	if !ok {
		return store.ErrStationNotFound
	}
	busy := e.store.InServiceCount(stationID)
	for i, ticket := range e.store.WaitingTickets(stationID) {
		ahead := i + busy
		minutes := ahead / station.Capacity * station.AvgServiceMinutes
		if minutes < 0 {
			minutes = 0
		}
		e.store.SetEstimate(ticket.TicketID, minutes)
	}
	return nil
}
