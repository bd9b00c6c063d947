package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"deskflow/dispatch-service/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Journal persists the append-only dispatch event log together with the
// current ticket state, keyed by ticket_id and indexed on
// (station_id, status) so the waiting lists can be rebuilt on restart.
type Journal struct {
	pool *pgxpool.Pool
}

func NewJournal(pool *pgxpool.Pool) *Journal {
	return &Journal{pool: pool}
}

func (j *Journal) Setup(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS dispatch_events (
  event_id UUID PRIMARY KEY,
  ticket_id UUID NOT NULL,
  station_id TEXT NOT NULL,
  event_type TEXT NOT NULL,
  from_status TEXT NOT NULL DEFAULT '',
  to_status TEXT NOT NULL DEFAULT '',
  actor TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_dispatch_events_station_created ON dispatch_events(station_id, created_at)`,
		`
CREATE TABLE IF NOT EXISTS tickets (
  ticket_id UUID PRIMARY KEY,
  token_number BIGINT NOT NULL,
  customer_name TEXT NOT NULL,
  phone TEXT NOT NULL,
  station_id TEXT NOT NULL,
  priority TEXT NOT NULL,
  status TEXT NOT NULL,
  arrival_time TIMESTAMPTZ NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  request_id TEXT NOT NULL DEFAULT '',
  started_at TIMESTAMPTZ NULL,
  completed_at TIMESTAMPTZ NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_tickets_station_status ON tickets(station_id, status)`,
	}
	for _, q := range stmts {
		if _, err := j.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// AppendEvent writes the event and upserts the ticket's post-transition
// state in one transaction.
func (j *Journal) AppendEvent(ctx context.Context, event models.DispatchEvent, ticket models.Ticket) error {
	tx, err := j.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO dispatch_events (event_id, ticket_id, station_id, event_type, from_status, to_status, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, event.EventID, event.TicketID, event.StationID, event.Type, event.FromStatus, event.ToStatus, event.Actor, event.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO tickets (ticket_id, token_number, customer_name, phone, station_id, priority, status, arrival_time, notes, request_id, started_at, completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (ticket_id) DO UPDATE SET
		  status = EXCLUDED.status,
		  started_at = EXCLUDED.started_at,
		  completed_at = EXCLUDED.completed_at
	`, ticket.TicketID, ticket.TokenNumber, ticket.CustomerName, ticket.Phone, ticket.StationID, ticket.Priority, ticket.Status, ticket.ArrivalTime.UTC(), ticket.Notes, ticket.RequestID, nullableTime(ticket.StartedAt), nullableTime(ticket.CompletedAt))
	if err != nil {
		return fmt.Errorf("upsert ticket: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// LoadActiveTickets returns waiting and in-service tickets in arrival
// order; terminal tickets stay in the table for audit only.
func (j *Journal) LoadActiveTickets(ctx context.Context) ([]models.Ticket, error) {
	rows, err := j.pool.Query(ctx, `
		SELECT ticket_id, token_number, customer_name, phone, station_id, priority, status, arrival_time, notes, request_id, started_at, completed_at
		FROM tickets
		WHERE status IN ($1, $2)
		ORDER BY arrival_time ASC, token_number ASC
	`, models.StatusWaiting, models.StatusInService)
	if err != nil {
		return nil, fmt.Errorf("select active tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		var startedAt, completedAt sql.NullTime
		if err := rows.Scan(&ticket.TicketID, &ticket.TokenNumber, &ticket.CustomerName, &ticket.Phone, &ticket.StationID, &ticket.Priority, &ticket.Status, &ticket.ArrivalTime, &ticket.Notes, &ticket.RequestID, &startedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan ticket: %w", err)
		}
		ticket.StartedAt = nullTimePtr(startedAt)
		ticket.CompletedAt = nullTimePtr(completedAt)
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return tickets, nil
}

func nullableTime(value *time.Time) interface{} {
	if value == nil {
		return nil
	}
	return value.UTC()
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
