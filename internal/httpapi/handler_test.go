package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"deskflow/dispatch-service/internal/dispatch"
	"deskflow/dispatch-service/internal/models"
	"deskflow/dispatch-service/internal/store"
)

type fakeDispatcher struct {
	enqueue         func(ctx context.Context, input dispatch.EnqueueInput) (models.Ticket, error)
	startService    func(ctx context.Context, ticketID, actor string) (models.Ticket, error)
	completeService func(ctx context.Context, ticketID, actor string) (models.Ticket, error)
	markNoShow      func(ctx context.Context, ticketID, actor string) (models.Ticket, error)
	reorder         func(ctx context.Context, ticketID, direction, actor string) (models.Ticket, error)
	snapshotStation func(stationID string) (dispatch.StationSnapshot, error)
	getTicket       func(ticketID string) (models.Ticket, error)
	listEvents      func(stationID string, after time.Time, limit int) ([]models.DispatchEvent, error)
	listStations    func() []models.Station
}

func (f *fakeDispatcher) Enqueue(ctx context.Context, input dispatch.EnqueueInput) (models.Ticket, error) {
	return f.enqueue(ctx, input)
}

func (f *fakeDispatcher) StartService(ctx context.Context, ticketID, actor string) (models.Ticket, error) {
	return f.startService(ctx, ticketID, actor)
}

func (f *fakeDispatcher) CompleteService(ctx context.Context, ticketID, actor string) (models.Ticket, error) {
	return f.completeService(ctx, ticketID, actor)
}

func (f *fakeDispatcher) MarkNoShow(ctx context.Context, ticketID, actor string) (models.Ticket, error) {
	return f.markNoShow(ctx, ticketID, actor)
}

func (f *fakeDispatcher) Reorder(ctx context.Context, ticketID, direction, actor string) (models.Ticket, error) {
	return f.reorder(ctx, ticketID, direction, actor)
}

func (f *fakeDispatcher) SnapshotStation(stationID string) (dispatch.StationSnapshot, error) {
	return f.snapshotStation(stationID)
}

func (f *fakeDispatcher) GetTicket(ticketID string) (models.Ticket, error) {
	return f.getTicket(ticketID)
}

func (f *fakeDispatcher) ListEvents(stationID string, after time.Time, limit int) ([]models.DispatchEvent, error) {
	return f.listEvents(stationID, after, limit)
}

func (f *fakeDispatcher) ListStations() []models.Station {
	return f.listStations()
}

const ticketID = "5f0e8f84-9c67-4f5d-8d51-0a62edc1f3aa"

func do(t *testing.T, fake *fakeDispatcher, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	recorder := httptest.NewRecorder()
	NewHandler(fake).Routes().ServeHTTP(recorder, req)
	return recorder
}

func errorCode(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(recorder.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error.Code
}

func TestEnqueueSuccess(t *testing.T) {
	var captured dispatch.EnqueueInput
	fake := &fakeDispatcher{
		enqueue: func(ctx context.Context, input dispatch.EnqueueInput) (models.Ticket, error) {
			captured = input
			return models.Ticket{TicketID: ticketID, TokenNumber: 7, Status: models.StatusWaiting, Position: 1}, nil
		},
	}

	recorder := do(t, fake, http.MethodPost, "/api/tickets",
		`{"customer_name":" Ada ","phone":"12345678","station_id":"desk-1","priority":"urgent"}`)

	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", recorder.Code, recorder.Body.String())
	}
	if captured.CustomerName != "Ada" || captured.StationID != "desk-1" || captured.Priority != "urgent" {
		t.Fatalf("unexpected input: %+v", captured)
	}

	var ticket models.Ticket
	if err := json.Unmarshal(recorder.Body.Bytes(), &ticket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ticket.TicketID != ticketID || ticket.TokenNumber != 7 {
		t.Fatalf("unexpected ticket: %+v", ticket)
	}
}

func TestEnqueueValidation(t *testing.T) {
	fake := &fakeDispatcher{
		enqueue: func(ctx context.Context, input dispatch.EnqueueInput) (models.Ticket, error) {
			t.Fatal("dispatcher should not be called")
			return models.Ticket{}, nil
		},
	}

	cases := []struct {
		name string
		body string
		code string
	}{
		{"bad json", `{`, "invalid_json"},
		{"missing name", `{"phone":"12345678","station_id":"desk-1"}`, "invalid_request"},
		{"missing phone", `{"customer_name":"Ada","station_id":"desk-1"}`, "invalid_request"},
		{"short phone", `{"customer_name":"Ada","phone":"123","station_id":"desk-1"}`, "invalid_request"},
		{"alpha phone", `{"customer_name":"Ada","phone":"12345abc","station_id":"desk-1"}`, "invalid_request"},
		{"bad request id", `{"customer_name":"Ada","phone":"12345678","station_id":"desk-1","request_id":"nope"}`, "invalid_request"},
		{"unknown field", `{"customer_name":"Ada","phone":"12345678","station_id":"desk-1","extra":true}`, "invalid_json"},
	}

	for _, tt := range cases {
		recorder := do(t, fake, http.MethodPost, "/api/tickets", tt.body)
		if recorder.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d, want 400", tt.name, recorder.Code)
		}
		if got := errorCode(t, recorder); got != tt.code {
			t.Fatalf("%s: code=%q, want %q", tt.name, got, tt.code)
		}
	}
}

func TestEnqueueMethodNotAllowed(t *testing.T) {
	fake := &fakeDispatcher{}
	recorder := do(t, fake, http.MethodGet, "/api/tickets", "")
	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d, want 405", recorder.Code)
	}
}

func TestTicketActions(t *testing.T) {
	cases := []struct {
		action string
		wire   func(f *fakeDispatcher, called *string)
	}{
		{"start", func(f *fakeDispatcher, called *string) {
			f.startService = func(ctx context.Context, id, actor string) (models.Ticket, error) {
				*called = "start:" + id + ":" + actor
				return models.Ticket{TicketID: id}, nil
			}
		}},
		{"complete", func(f *fakeDispatcher, called *string) {
			f.completeService = func(ctx context.Context, id, actor string) (models.Ticket, error) {
				*called = "complete:" + id + ":" + actor
				return models.Ticket{TicketID: id}, nil
			}
		}},
		{"no-show", func(f *fakeDispatcher, called *string) {
			f.markNoShow = func(ctx context.Context, id, actor string) (models.Ticket, error) {
				*called = "no-show:" + id + ":" + actor
				return models.Ticket{TicketID: id}, nil
			}
		}},
	}

	for _, tt := range cases {
		fake := &fakeDispatcher{}
		var called string
		tt.wire(fake, &called)

		recorder := do(t, fake, http.MethodPost, "/api/tickets/"+ticketID+"/actions/"+tt.action, `{"actor":"clerk-1"}`)
		if recorder.Code != http.StatusOK {
			t.Fatalf("%s: status=%d body=%s", tt.action, recorder.Code, recorder.Body.String())
		}
		want := tt.action + ":" + ticketID + ":clerk-1"
		if called != want {
			t.Fatalf("called=%q, want %q", called, want)
		}
	}
}

func TestReorderRequiresDirection(t *testing.T) {
	fake := &fakeDispatcher{
		reorder: func(ctx context.Context, id, direction, actor string) (models.Ticket, error) {
			t.Fatal("dispatcher should not be called")
			return models.Ticket{}, nil
		},
	}

	recorder := do(t, fake, http.MethodPost, "/api/tickets/"+ticketID+"/actions/reorder", `{"actor":"clerk-1"}`)
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", recorder.Code)
	}
	if got := errorCode(t, recorder); got != "invalid_request" {
		t.Fatalf("code=%q, want invalid_request", got)
	}
}

func TestActionUnknownPath(t *testing.T) {
	fake := &fakeDispatcher{}
	recorder := do(t, fake, http.MethodPost, "/api/tickets/"+ticketID+"/actions/recall", "")
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", recorder.Code)
	}
}

func TestActionBadTicketID(t *testing.T) {
	fake := &fakeDispatcher{}
	recorder := do(t, fake, http.MethodPost, "/api/tickets/not-a-uuid/actions/start", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", recorder.Code)
	}
}

func TestGetTicket(t *testing.T) {
	fake := &fakeDispatcher{
		getTicket: func(id string) (models.Ticket, error) {
			return models.Ticket{TicketID: id, Status: models.StatusWaiting}, nil
		},
	}
	recorder := do(t, fake, http.MethodGet, "/api/tickets/"+ticketID, "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d", recorder.Code)
	}
}

func TestStationSnapshot(t *testing.T) {
	fake := &fakeDispatcher{
		snapshotStation: func(stationID string) (dispatch.StationSnapshot, error) {
			if stationID != "desk-1" {
				t.Fatalf("stationID=%q, want desk-1", stationID)
			}
			return dispatch.StationSnapshot{
				Station:       models.Station{StationID: "desk-1", Capacity: 2},
				CapacityTotal: 2,
			}, nil
		},
	}

	recorder := do(t, fake, http.MethodGet, "/api/stations/desk-1/snapshot", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", recorder.Code, recorder.Body.String())
	}

	var snapshot dispatch.StationSnapshot
	if err := json.Unmarshal(recorder.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if snapshot.Station.StationID != "desk-1" || snapshot.CapacityTotal != 2 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestEventsQueryParsing(t *testing.T) {
	var gotStation string
	var gotAfter time.Time
	var gotLimit int
	fake := &fakeDispatcher{
		listEvents: func(stationID string, after time.Time, limit int) ([]models.DispatchEvent, error) {
			gotStation, gotAfter, gotLimit = stationID, after, limit
			return nil, nil
		},
	}

	recorder := do(t, fake, http.MethodGet, "/api/events?station_id=desk-1&after=2026-02-03T09:00:00Z&limit=5", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d", recorder.Code)
	}
	if gotStation != "desk-1" || gotLimit != 5 {
		t.Fatalf("station=%q limit=%d", gotStation, gotLimit)
	}
	if !gotAfter.Equal(time.Date(2026, 2, 3, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("after=%v", gotAfter)
	}

	recorder = do(t, fake, http.MethodGet, "/api/events?after=yesterday", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad after: status=%d, want 400", recorder.Code)
	}
	recorder = do(t, fake, http.MethodGet, "/api/events?limit=0", "")
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("bad limit: status=%d, want 400", recorder.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{store.ErrInvalidInput, http.StatusBadRequest, "invalid_request"},
		{store.ErrStationNotFound, http.StatusNotFound, "station_not_found"},
		{store.ErrTicketNotFound, http.StatusNotFound, "ticket_not_found"},
		{store.ErrInvalidState, http.StatusConflict, "invalid_state"},
		{store.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
		{store.ErrCrossTierReorder, http.StatusConflict, "cross_tier_reorder"},
		{store.ErrNoOpReorder, http.StatusConflict, "reorder_boundary"},
		{store.ErrTimeout, http.StatusGatewayTimeout, "journal_timeout"},
	}

	for _, tt := range cases {
		fake := &fakeDispatcher{
			startService: func(ctx context.Context, id, actor string) (models.Ticket, error) {
				return models.Ticket{}, tt.err
			},
		}
		recorder := do(t, fake, http.MethodPost, "/api/tickets/"+ticketID+"/actions/start", `{}`)
		if recorder.Code != tt.status {
			t.Fatalf("%v: status=%d, want %d", tt.err, recorder.Code, tt.status)
		}
		if got := errorCode(t, recorder); got != tt.code {
			t.Fatalf("%v: code=%q, want %q", tt.err, got, tt.code)
		}
	}
}

func TestListStations(t *testing.T) {
	fake := &fakeDispatcher{
		listStations: func() []models.Station {
			return []models.Station{{StationID: "desk-1"}, {StationID: "desk-2"}}
		},
	}
	recorder := do(t, fake, http.MethodGet, "/api/stations", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d", recorder.Code)
	}

	var stations []models.Station
	if err := json.Unmarshal(recorder.Body.Bytes(), &stations); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stations) != 2 {
		t.Fatalf("expected 2 stations, got %d", len(stations))
	}
}

func TestHealthz(t *testing.T) {
	fake := &fakeDispatcher{}
	recorder := do(t, fake, http.MethodGet, "/healthz", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status=%d", recorder.Code)
	}
}
