package events

import (
	"encoding/json"
	"fmt"
	"log"

	"deskflow/dispatch-service/internal/models"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "dispatch.events."

type envelope struct {
	Event  models.DispatchEvent `json:"event"`
	Ticket models.Ticket        `json:"ticket"`
}

// Publisher pushes dispatch events to NATS, one subject per station.
// Delivery is best effort; a publish failure is logged and never fails
// the dispatch operation that produced the event.
type Publisher struct {
	conn *nats.Conn
}

func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

func (p *Publisher) DispatchEvent(event models.DispatchEvent, ticket models.Ticket) {
	payload, err := json.Marshal(envelope{Event: event, Ticket: ticket})
	if err != nil {
		log.Printf("marshal dispatch event %s: %v", event.EventID, err)
		return
	}
	if err := p.conn.Publish(subjectPrefix+event.StationID, payload); err != nil {
		log.Printf("publish dispatch event %s: %v", event.EventID, err)
	}
}

func (p *Publisher) Close() {
	p.conn.Close()
}
