package tracking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
)

type fakeReader struct {
	orders     map[string]*models.Order
	history    map[string][]models.StatusChange
	historyErr error
}

func (f *fakeReader) GetOrder(_ context.Context, id string) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, models.ErrOrderNotFound)
	}
	c := *o
	return &c, nil
}

func (f *fakeReader) StatusHistory(_ context.Context, id string) ([]models.StatusChange, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.history[id], nil
}

func newReader() (*fakeReader, *models.Order) {
	order := &models.Order{
		ID:        uuid.NewString(),
		TableName: "T4",
		Status:    models.StatusPending,
		Items: []models.OrderItem{
			{Name: "Soup", Station: models.StationKitchen, Quantity: 1},
			{Name: "Beer", Station: models.StationBar, Quantity: 1},
		},
		CompletedStations: models.NewStationSet(models.StationBar),
	}
	return &fakeReader{
		orders: map[string]*models.Order{order.ID: order},
		history: map[string][]models.StatusChange{
			order.ID: {{OrderID: order.ID, Status: models.StatusPending, ChangedBy: "system"}},
		},
	}, order
}

func tracker() context.Context {
	return auth.WithActor(context.Background(), &auth.Actor{ID: "w1", Role: auth.RoleWaiter})
}

func TestGetOrderStatus(t *testing.T) {
	reader, order := newReader()
	svc := NewService(reader, logger.NewWithWriter("test", io.Discard))

	got, err := svc.GetOrderStatus(tracker(), order.ID)
	if err != nil {
		t.Fatalf("GetOrderStatus: %v", err)
	}
	if got.CurrentStatus != models.StatusPending || got.TableName != "T4" {
		t.Fatalf("response = %+v", got)
	}
	if got.PendingStations != models.NewStationSet(models.StationKitchen) {
		t.Fatalf("pending = %s, want {kitchen}", got.PendingStations)
	}

	tests := []struct {
		name    string
		ctx     context.Context
		id      string
		wantErr error
	}{
		{"anonymous", context.Background(), order.ID, models.ErrUnauthorized},
		{"malformed", tracker(), "42", models.ErrInvalidInput},
		{"unknown", tracker(), uuid.NewString(), models.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.GetOrderStatus(tt.ctx, tt.id); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGetOrderHistory(t *testing.T) {
	reader, order := newReader()
	svc := NewService(reader, logger.NewWithWriter("test", io.Discard))

	history, err := svc.GetOrderHistory(tracker(), order.ID)
	if err != nil {
		t.Fatalf("GetOrderHistory: %v", err)
	}
	if len(history) != 1 || history[0].Status != models.StatusPending {
		t.Fatalf("history = %+v", history)
	}

	if _, err := svc.GetOrderHistory(tracker(), uuid.NewString()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown order: err = %v", err)
	}

	reader.historyErr = errors.New("connection reset")
	if _, err := svc.GetOrderHistory(tracker(), order.ID); err == nil {
		t.Fatal("expected store error")
	}
}

func TestHandler(t *testing.T) {
	reader, order := newReader()
	log := logger.NewWithWriter("test", io.Discard)
	mux := http.NewServeMux()
	NewHandler(NewService(reader, log), log).RegisterRoutes(mux)
	h := auth.Middleware(auth.HeaderAuthenticator{}, nil)(mux)

	tests := []struct {
		path string
		want int
	}{
		{"/orders/" + order.ID, http.StatusOK},
		{"/orders/" + order.ID + "/history", http.StatusOK},
		{"/orders/" + uuid.NewString(), http.StatusNotFound},
		{"/orders/nope/history", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(auth.HeaderActorID, "k1")
			req.Header.Set(auth.HeaderActorRole, "kitchen")
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("code = %d, want %d, body = %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/orders/"+order.ID, nil)
	req.Header.Set(auth.HeaderActorID, "k1")
	req.Header.Set(auth.HeaderActorRole, "kitchen")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["current_status"] != "Pending" {
		t.Fatalf("body = %v", body)
	}
	pending, _ := body["pending_stations"].([]any)
	if len(pending) != 1 || pending[0] != "kitchen" {
		t.Fatalf("pending_stations = %v", body["pending_stations"])
	}
}
