package billing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"restaurant-orders/internal/auth"
	"restaurant-orders/internal/database/memory"
	"restaurant-orders/internal/events"
	"restaurant-orders/internal/logger"
	"restaurant-orders/internal/models"
	"restaurant-orders/internal/server"
)

var taxRate = decimal.RequireFromString("0.10")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type fixture struct {
	store    *memory.Store
	recorder *events.Recorder
	service  *Service
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    memory.New(),
		recorder: &events.Recorder{},
		clock:    time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC),
	}
	// distinct created_at per order keeps bill ordering deterministic
	f.store.SetClock(func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	})
	f.service = NewService(f.store, taxRate, f.recorder, logger.NewWithWriter("test", io.Discard))
	return f
}

func (f *fixture) order(t *testing.T, table string, status models.OrderStatus, subtotal string) *models.Order {
	t.Helper()
	o := &models.Order{
		ID:        uuid.NewString(),
		TableName: table,
		Status:    status,
		Subtotal:  dec(subtotal),
		Items: []models.OrderItem{{
			Name:      "Dish",
			Station:   models.StationKitchen,
			UnitPrice: dec(subtotal),
			Quantity:  1,
		}},
	}
	o.ApplyDiscount(decimal.Zero, nil)
	if err := f.store.InsertOrder(context.Background(), o); err != nil {
		t.Fatalf("InsertOrder: %v", err)
	}
	return o
}

func as(role auth.Role) context.Context {
	return auth.WithActor(context.Background(), &auth.Actor{ID: string(role) + "-1", Role: role})
}

func TestBuildBill(t *testing.T) {
	a := &models.Order{ID: "a", Subtotal: dec("120"), Items: []models.OrderItem{{Name: "A"}}}
	b := &models.Order{ID: "b", Subtotal: dec("80"), Items: []models.OrderItem{{Name: "B"}, {Name: "C"}}}
	a.ApplyDiscount(dec("10"), nil)
	b.ApplyDiscount(dec("10"), nil)

	bill := BuildBill("T1", []*models.Order{a, b}, taxRate)

	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"subtotal", bill.Subtotal, "200"},
		{"discount", bill.DiscountAmount, "20"},
		{"after discount", bill.TotalAfterDiscount, "180"},
		{"tax", bill.Tax, "18"},
		{"total", bill.Total, "198"},
		{"pct", bill.DiscountPercentage, "10"},
	}
	for _, c := range checks {
		if !c.got.Equal(dec(c.want)) {
			t.Errorf("%s = %s, want %s", c.name, c.got, c.want)
		}
	}
	if len(bill.Items) != 3 || bill.Items[0].Name != "A" || bill.Items[2].Name != "C" {
		t.Errorf("items = %+v", bill.Items)
	}
	if len(bill.OrderIDs) != 2 || bill.OrderIDs[0] != "a" {
		t.Errorf("order ids = %v", bill.OrderIDs)
	}
}

func TestBuildBill_RoundsTax(t *testing.T) {
	o := &models.Order{ID: "a", Subtotal: dec("10.05")}
	o.ApplyDiscount(decimal.Zero, nil)

	bill := BuildBill("T1", []*models.Order{o}, dec("0.075"))

	if !bill.Tax.Equal(dec("0.75")) || !bill.Total.Equal(dec("10.80")) {
		t.Fatalf("tax = %s total = %s", bill.Tax, bill.Total)
	}
}

func TestTableBill(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T1"})
	first := f.order(t, "T1", models.StatusServing, "30")
	f.order(t, "T1", models.StatusPending, "20")
	f.order(t, "T1", models.StatusPaid, "99")

	bill, err := f.service.TableBill(as(auth.RoleCashier), "T1")
	if err != nil {
		t.Fatalf("TableBill: %v", err)
	}
	if len(bill.OrderIDs) != 2 || bill.OrderIDs[0] != first.ID {
		t.Fatalf("order ids = %v", bill.OrderIDs)
	}
	if !bill.Total.Equal(dec("55")) {
		t.Fatalf("total = %s, want 55", bill.Total)
	}

	if _, err := f.service.TableBill(as(auth.RoleCashier), "T9"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("no open bill: err = %v", err)
	}
	if _, err := f.service.TableBill(as(auth.RoleKitchen), "T1"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("kitchen: err = %v", err)
	}
}

// lockFreeStore fails any attempt to take order row locks
type lockFreeStore struct {
	*memory.Store
}

func (lockFreeStore) LockOpenOrdersByTable(context.Context, string) ([]*models.Order, error) {
	return nil, errors.New("row locks taken on a read path")
}

func (lockFreeStore) LockOrder(context.Context, string) (*models.Order, error) {
	return nil, errors.New("row locks taken on a read path")
}

func TestTableBill_TakesNoRowLocks(t *testing.T) {
	f := newFixture(t)
	f.order(t, "T1", models.StatusServing, "30")
	svc := NewService(lockFreeStore{f.store}, taxRate, f.recorder, logger.NewWithWriter("test", io.Discard))

	bill, err := svc.TableBill(as(auth.RoleCashier), "T1")
	if err != nil {
		t.Fatalf("TableBill: %v", err)
	}
	if !bill.Total.Equal(dec("33")) {
		t.Fatalf("total = %s, want 33", bill.Total)
	}
}

func TestSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t)
	f.order(t, "T1", models.StatusServing, "10")

	if _, err := f.service.ClearTable(as(auth.RoleCashier), "T1"); err != nil {
		t.Fatalf("ClearTable: %v", err)
	}
	if _, err := f.service.ClearTable(as(auth.RoleKitchen), "T1"); err == nil {
		t.Fatal("expected forbidden")
	}

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Name() != "billing.ClearTable" || ended[0].Status().Code == codes.Error {
		t.Fatalf("first span = %s %v", ended[0].Name(), ended[0].Status())
	}
	if ended[1].Status().Code != codes.Error {
		t.Fatalf("rejected call span status = %v", ended[1].Status())
	}
}

func TestOverview(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T2", SortOrder: 2})
	f.store.AddTable(models.Table{Name: "T1", SortOrder: 1})
	f.store.AddTable(models.Table{Name: "A1", SortOrder: 2})
	f.order(t, "T1", models.StatusPending, "10")
	f.order(t, "Bar-1", models.StatusServing, "8")
	f.order(t, "Takeaway-1", models.StatusPending, "5")
	f.order(t, "Bar-1", models.StatusPending, "4")

	views, err := f.service.Overview(as(auth.RoleCashier))
	if err != nil {
		t.Fatalf("Overview: %v", err)
	}

	wantNames := []string{"T1", "A1", "T2", "Bar-1", "Takeaway-1"}
	if len(views) != len(wantNames) {
		t.Fatalf("got %d views, want %d", len(views), len(wantNames))
	}
	for i, name := range wantNames {
		if views[i].Name != name {
			t.Fatalf("views[%d] = %q, want %q", i, views[i].Name, name)
		}
	}
	if views[0].Bill == nil || views[1].Bill != nil {
		t.Fatal("only tables with open orders carry a bill")
	}
	if views[3].Table != nil || len(views[3].Bill.OrderIDs) != 2 {
		t.Fatalf("virtual bar entry = %+v", views[3])
	}
}

func TestClearTable(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T1", Status: models.TableBilling})
	cooking := f.order(t, "T1", models.StatusCooking, "10")
	serving := f.order(t, "T1", models.StatusServing, "15")

	cleared, err := f.service.ClearTable(as(auth.RoleCashier), "T1")
	if err != nil {
		t.Fatalf("ClearTable: %v", err)
	}
	if len(cleared.OrderIDs) != 2 || cleared.ClearedBy != "cashier-1" {
		t.Fatalf("cleared = %+v", cleared)
	}

	ctx := context.Background()
	got, _ := f.store.GetOrder(ctx, cooking.ID)
	if got.Status != models.StatusPaid || got.PaidFromStatus != models.StatusCooking {
		t.Fatalf("cooking order = %s from %s", got.Status, got.PaidFromStatus)
	}
	got, _ = f.store.GetOrder(ctx, serving.ID)
	if got.PaidFromStatus != models.StatusServing {
		t.Fatalf("serving order paid from %s", got.PaidFromStatus)
	}

	table, _ := f.store.TableByName("T1")
	if table.Status != models.TableAvailable {
		t.Fatalf("table status = %s", table.Status)
	}
	if f.recorder.Count(events.TableCleared) != 1 {
		t.Fatalf("events = %v", f.recorder.Types())
	}
	if _, err := f.service.TableBill(as(auth.RoleCashier), "T1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("bill after clear: err = %v", err)
	}
}

func TestClearTable_VirtualAndMissing(t *testing.T) {
	f := newFixture(t)
	f.order(t, "Bar-3", models.StatusServing, "7")

	cleared, err := f.service.ClearTable(as(auth.RoleCashier), "Bar-3")
	if err != nil {
		t.Fatalf("ClearTable(Bar-3): %v", err)
	}
	if len(cleared.OrderIDs) != 1 {
		t.Fatalf("cleared = %+v", cleared)
	}

	if _, err := f.service.ClearTable(as(auth.RoleCashier), "Nowhere"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing: err = %v", err)
	}
	if _, err := f.service.ClearTable(as(auth.RoleWaiter), "Bar-3"); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("waiter: err = %v", err)
	}
	if _, err := f.service.ClearTable(context.Background(), "Bar-3"); !errors.Is(err, models.ErrUnauthorized) {
		t.Fatalf("anonymous: err = %v", err)
	}
}

func TestClearTable_EmptyTableRowSucceeds(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T5", Status: models.TableOccupied})

	cleared, err := f.service.ClearTable(as(auth.RoleCashier), "T5")
	if err != nil {
		t.Fatalf("ClearTable: %v", err)
	}
	if len(cleared.OrderIDs) != 0 {
		t.Fatalf("cleared = %+v", cleared)
	}
	table, _ := f.store.TableByName("T5")
	if table.Status != models.TableAvailable {
		t.Fatalf("table status = %s", table.Status)
	}
}

func TestUndoPayment(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T1", Status: models.TableOccupied})
	o := f.order(t, "T1", models.StatusCooking, "10")

	if _, err := f.service.UndoPayment(as(auth.RoleAdmin), o.ID); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("undo unpaid: err = %v", err)
	}

	if _, err := f.service.ClearTable(as(auth.RoleCashier), "T1"); err != nil {
		t.Fatalf("ClearTable: %v", err)
	}
	f.recorder.Reset()

	if _, err := f.service.UndoPayment(as(auth.RoleCashier), o.ID); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("cashier undo: err = %v", err)
	}

	got, err := f.service.UndoPayment(as(auth.RoleAdmin), o.ID)
	if err != nil {
		t.Fatalf("UndoPayment: %v", err)
	}
	if got.Status != models.StatusCooking || got.PaidFromStatus != "" {
		t.Fatalf("restored = %s from %q", got.Status, got.PaidFromStatus)
	}

	table, _ := f.store.TableByName("T1")
	if table.Status != models.TableAvailable {
		t.Fatalf("undo must not touch the table, status = %s", table.Status)
	}
	if f.recorder.Count(events.OrderStatusUpdate) != 1 {
		t.Fatalf("events = %v", f.recorder.Types())
	}

	if _, err := f.service.UndoPayment(as(auth.RoleAdmin), "bogus"); !errors.Is(err, models.ErrInvalidInput) {
		t.Fatalf("bogus id: err = %v", err)
	}
	if _, err := f.service.UndoPayment(as(auth.RoleAdmin), uuid.NewString()); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("unknown id: err = %v", err)
	}
}

func TestUndoPayment_DefaultsToServing(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, "T1", models.StatusPaid, "10")

	got, err := f.service.UndoPayment(as(auth.RoleAdmin), o.ID)
	if err != nil {
		t.Fatalf("UndoPayment: %v", err)
	}
	if got.Status != models.StatusServing {
		t.Fatalf("status = %s, want Serving", got.Status)
	}
}

func TestRequestBill(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T1", Status: models.TableOccupied})

	table, err := f.service.RequestBill(as(auth.RoleCashier), "T1")
	if err != nil {
		t.Fatalf("RequestBill: %v", err)
	}
	if table.Status != models.TableBilling {
		t.Fatalf("status = %s", table.Status)
	}
	stored, _ := f.store.TableByName("T1")
	if stored.Status != models.TableBilling {
		t.Fatalf("stored status = %s", stored.Status)
	}
	if f.recorder.Count(events.TableStatusUpdate) != 1 {
		t.Fatalf("events = %v", f.recorder.Types())
	}

	if _, err := f.service.RequestBill(as(auth.RoleCashier), "Bar-1"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("virtual table: err = %v", err)
	}
}

func TestApplyDiscount(t *testing.T) {
	f := newFixture(t)
	a := f.order(t, "T1", models.StatusPending, "120")
	b := f.order(t, "T1", models.StatusServing, "80")

	bill, err := f.service.ApplyDiscount(as(auth.RoleCashier), models.ApplyDiscountRequest{
		TableName:          "T1",
		DiscountPercentage: dec("10"),
	})
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if !bill.DiscountAmount.Equal(dec("20")) || !bill.TotalAfterDiscount.Equal(dec("180")) {
		t.Fatalf("bill = %s / %s", bill.DiscountAmount, bill.TotalAfterDiscount)
	}

	ctx := context.Background()
	for _, id := range []string{a.ID, b.ID} {
		o, _ := f.store.GetOrder(ctx, id)
		if o.DiscountBy == nil || *o.DiscountBy != "cashier-1" || !o.DiscountPercentage.Equal(dec("10")) {
			t.Fatalf("order %s discount = %s by %v", id, o.DiscountPercentage, o.DiscountBy)
		}
	}

	// a second discount replaces the first rather than stacking
	bill, err = f.service.ApplyDiscount(as(auth.RoleCashier), models.ApplyDiscountRequest{
		TableName:          "T1",
		DiscountPercentage: dec("50"),
	})
	if err != nil {
		t.Fatalf("ApplyDiscount: %v", err)
	}
	if !bill.TotalAfterDiscount.Equal(dec("100")) {
		t.Fatalf("after 50%%: %s", bill.TotalAfterDiscount)
	}
	if f.recorder.Count(events.DiscountApplied) != 2 {
		t.Fatalf("events = %v", f.recorder.Types())
	}
}

func TestApplyDiscount_Errors(t *testing.T) {
	f := newFixture(t)
	f.order(t, "T1", models.StatusPending, "10")

	tests := []struct {
		name    string
		ctx     context.Context
		req     models.ApplyDiscountRequest
		wantErr error
	}{
		{"anonymous", context.Background(), models.ApplyDiscountRequest{TableName: "T1", DiscountPercentage: dec("10")}, models.ErrUnauthorized},
		{"kitchen", as(auth.RoleKitchen), models.ApplyDiscountRequest{TableName: "T1", DiscountPercentage: dec("10")}, models.ErrForbidden},
		{"waiter", as(auth.RoleWaiter), models.ApplyDiscountRequest{TableName: "T1", DiscountPercentage: dec("10")}, models.ErrForbidden},
		{"over 100", as(auth.RoleCashier), models.ApplyDiscountRequest{TableName: "T1", DiscountPercentage: dec("100.5")}, models.ErrInvalidDiscount},
		{"three decimals", as(auth.RoleCashier), models.ApplyDiscountRequest{TableName: "T1", DiscountPercentage: dec("12.345")}, models.ErrInvalidDiscount},
		{"negative", as(auth.RoleCashier), models.ApplyDiscountRequest{TableName: "T1", DiscountPercentage: dec("-1")}, models.ErrInvalidInput},
		{"no table", as(auth.RoleCashier), models.ApplyDiscountRequest{DiscountPercentage: dec("10")}, models.ErrInvalidInput},
		{"no open orders", as(auth.RoleCashier), models.ApplyDiscountRequest{TableName: "T2", DiscountPercentage: dec("10")}, models.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.ApplyDiscount(tt.ctx, tt.req); !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestHandler_Routes(t *testing.T) {
	f := newFixture(t)
	f.store.AddTable(models.Table{Name: "T1", Status: models.TableOccupied})
	o := f.order(t, "T1", models.StatusServing, "40")
	log := logger.NewWithWriter("test", io.Discard)

	mux := http.NewServeMux()
	NewHandler(f.service, log).RegisterRoutes(mux)
	h := auth.Middleware(auth.HeaderAuthenticator{}, func(w http.ResponseWriter, r *http.Request, err error) {
		server.WriteError(w, r, log, err)
	})(mux)

	tests := []struct {
		method string
		path   string
		body   string
		role   string
		want   int
	}{
		{http.MethodGet, "/tables", "", "cashier", http.StatusOK},
		{http.MethodGet, "/tables", "", "waiter", http.StatusForbidden},
		{http.MethodGet, "/tables", "", "", http.StatusUnauthorized},
		{http.MethodGet, "/tables/T1/bill", "", "cashier", http.StatusOK},
		{http.MethodGet, "/tables/T9/bill", "", "cashier", http.StatusNotFound},
		{http.MethodPost, "/tables/apply-discount", `{"table_name":"T1","discount_percentage":"10"}`, "waiter", http.StatusForbidden},
		{http.MethodPost, "/tables/apply-discount", `{"table_name":"T1","discount_percentage":"10"}`, "cashier", http.StatusOK},
		{http.MethodPost, "/tables/request-bill", `{"table_name":"T1"}`, "cashier", http.StatusOK},
		{http.MethodPost, "/tables/clear", `{"table_name":"T1"}`, "waiter", http.StatusForbidden},
		{http.MethodPost, "/tables/clear", `{"table_name":"T1"}`, "kitchen", http.StatusForbidden},
		{http.MethodPost, "/tables/clear", `{"table_name":"T1"}`, "cashier", http.StatusOK},
		{http.MethodPost, "/orders/" + o.ID + "/undo-payment", "", "admin", http.StatusOK},
		{http.MethodPost, "/orders/" + o.ID + "/undo-payment", "", "admin", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			if tt.role != "" {
				req.Header.Set(auth.HeaderActorID, tt.role+"-1")
				req.Header.Set(auth.HeaderActorRole, tt.role)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("code = %d, want %d, body = %s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}
