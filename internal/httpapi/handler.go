package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"deskflow/dispatch-service/internal/dispatch"
	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/store"

	"github.com/google/uuid"
)

// Dispatcher is the coordinator surface the handler depends on.
type Dispatcher interface {
	Enqueue(ctx context.Context, input dispatch.EnqueueInput) (models.Ticket, error)
	StartService(ctx context.Context, ticketID, actor string) (models.Ticket, error)
	CompleteService(ctx context.Context, ticketID, actor string) (models.Ticket, error)
	MarkNoShow(ctx context.Context, ticketID, actor string) (models.Ticket, error)
	Reorder(ctx context.Context, ticketID, direction, actor string) (models.Ticket, error)
	SnapshotStation(stationID string) (dispatch.StationSnapshot, error)
	GetTicket(ticketID string) (models.Ticket, error)
	ListEvents(stationID string, after time.Time, limit int) ([]models.DispatchEvent, error)
	ListStations() []models.Station
}

type Handler struct {
	dispatcher Dispatcher
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher}
}

type enqueueRequest struct {
	RequestID    string `json:"request_id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	StationID    string `json:"station_id"`
	Priority     string `json:"priority"`
	Notes        string `json:"notes"`
	Actor        string `json:"actor"`
}

type actionRequest struct {
	Actor     string `json:"actor"`
	Direction string `json:"direction"`
}

type errorResponse struct {
	Error responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleEnqueue)
	mux.HandleFunc("/api/tickets/", h.handleTicketSubtree)
	mux.HandleFunc("/api/stations", h.handleStations)
	mux.HandleFunc("/api/stations/", h.handleStationSnapshot)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req enqueueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.StationID = strings.TrimSpace(req.StationID)
	req.Priority = strings.TrimSpace(req.Priority)

	if req.CustomerName == "" || req.Phone == "" || req.StationID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "customer_name, phone, and station_id are required")
		return
	}
	if !isValidPhone(req.Phone) {
		writeError(w, http.StatusBadRequest, "invalid_request", "phone must be 8-16 digits")
		return
	}
	if req.RequestID != "" && !isValidUUID(req.RequestID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "request_id must be a UUID when provided")
		return
	}

	ticket, err := h.dispatcher.Enqueue(r.Context(), dispatch.EnqueueInput{
		RequestID:    req.RequestID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		StationID:    req.StationID,
		Priority:     req.Priority,
		Notes:        req.Notes,
		Actor:        req.Actor,
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions":
		h.handleTicketAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	ticket, err := h.dispatcher.GetTicket(ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isValidUUID(ticketID) {
		writeError(w, http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	var req actionRequest
	if r.ContentLength != 0 {
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
			return
		}
	}
	req.Actor = strings.TrimSpace(req.Actor)
	req.Direction = strings.TrimSpace(req.Direction)

	var ticket models.Ticket
	var err error
	switch action {
	case "start":
		ticket, err = h.dispatcher.StartService(r.Context(), ticketID, req.Actor)
	case "complete":
		ticket, err = h.dispatcher.CompleteService(r.Context(), ticketID, req.Actor)
	case "no-show":
		ticket, err = h.dispatcher.MarkNoShow(r.Context(), ticketID, req.Actor)
	case "reorder":
		if req.Direction == "" {
			writeError(w, http.StatusBadRequest, "invalid_request", "direction is required")
			return
		}
		ticket, err = h.dispatcher.Reorder(r.Context(), ticketID, req.Direction, req.Actor)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleStations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, h.dispatcher.ListStations())
}

func (h *Handler) handleStationSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/stations/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[1] != "snapshot" || parts[0] == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	snapshot, err := h.dispatcher.SnapshotStation(parts[0])
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stationID := strings.TrimSpace(r.URL.Query().Get("station_id"))

	var after time.Time
	if afterRaw := strings.TrimSpace(r.URL.Query().Get("after")); afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.dispatcher.ListEvents(stationID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, store.ErrStationNotFound):
		return http.StatusNotFound, "station_not_found", "station not found"
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, store.ErrCapacityExceeded):
		return http.StatusConflict, "capacity_exceeded", "station is at capacity"
	case errors.Is(err, store.ErrCrossTierReorder):
		return http.StatusConflict, "cross_tier_reorder", "reorder may not cross priority tiers"
	case errors.Is(err, store.ErrNoOpReorder):
		return http.StatusConflict, "reorder_boundary", "ticket is already at the queue boundary"
	case errors.Is(err, store.ErrTimeout):
		return http.StatusGatewayTimeout, "journal_timeout", "journal write timed out"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
