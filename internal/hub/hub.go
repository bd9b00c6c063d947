package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"deskflow/dispatch-service/internal/models"
)

// Subscription filters events by station; an empty StationID receives
// every station.
type Subscription struct {
	StationID string
}

type Client struct {
	ID           string
	Send         chan []byte
	Subscription Subscription
}

// Hub fans dispatch events out to connected realtime clients. Slow
// clients drop messages instead of blocking the dispatcher.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type SubscribeMessage struct {
	Action    string `json:"action"`
	StationID string `json:"station_id"`
}

type eventEnvelope struct {
	Type      string               `json:"type"`
	Event     models.DispatchEvent `json:"event"`
	Ticket    models.Ticket        `json:"ticket"`
	CreatedAt time.Time            `json:"created_at"`
}

func New() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) UpdateSubscription(client *Client, sub Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Subscription = sub
}

func (h *Hub) Broadcast(payload []byte, stationID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.Subscription.StationID != "" && client.Subscription.StationID != stationID {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop message for client %s", client.ID)
		}
	}
}

// DispatchEvent implements the coordinator's event sink.
func (h *Hub) DispatchEvent(event models.DispatchEvent, ticket models.Ticket) {
	payload, err := json.Marshal(eventEnvelope{
		Type:      event.Type,
		Event:     event,
		Ticket:    ticket,
		CreatedAt: event.CreatedAt,
	})
	if err != nil {
		log.Printf("marshal hub event %s: %v", event.EventID, err)
		return
	}
	h.Broadcast(payload, event.StationID)
}

func ParseSubscribe(data []byte) (SubscribeMessage, bool) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return SubscribeMessage{}, false
	}
	if msg.Action != "subscribe" && msg.Action != "unsubscribe" {
		return SubscribeMessage{}, false
	}
	return msg, true
}
