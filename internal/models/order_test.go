package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDiscountAmount(t *testing.T) {
	tests := []struct {
		subtotal, pct, want string
	}{
		{"200", "10", "20"},
		{"200", "0", "0"},
		{"200", "100", "200"},
		{"10.01", "50", "5.01"},
		{"0.05", "10", "0.01"},
		{"33.33", "33.33", "11.11"},
	}
	for _, tt := range tests {
		got := DiscountAmount(d(tt.subtotal), d(tt.pct))
		if !got.Equal(d(tt.want)) {
			t.Errorf("DiscountAmount(%s, %s) = %s, want %s", tt.subtotal, tt.pct, got, tt.want)
		}
	}
}

func TestValidDiscount(t *testing.T) {
	for _, s := range []string{"0", "0.5", "12.35", "12.300", "100"} {
		if !ValidDiscount(d(s)) {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []string{"-0.01", "100.01", "12.345", "0.001"} {
		if ValidDiscount(d(s)) {
			t.Errorf("%s should be invalid", s)
		}
	}
}

func TestOrder_ApplyDiscount(t *testing.T) {
	o := &Order{Subtotal: d("200")}
	by := "w1"

	o.ApplyDiscount(d("10"), &by)
	if !o.DiscountAmount.Equal(d("20")) || !o.Total.Equal(d("180")) || *o.DiscountBy != "w1" {
		t.Fatalf("after 10%%: %s / %s", o.DiscountAmount, o.Total)
	}

	o.ApplyDiscount(decimal.Zero, nil)
	if !o.Total.Equal(d("200")) || o.DiscountBy != nil {
		t.Fatalf("after reset: %s / %v", o.Total, o.DiscountBy)
	}
}

func TestOrder_Stations(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{Name: "Soup", Station: StationKitchen},
		{Name: "Beer", Station: StationBar},
		{Name: "Bread", Station: StationKitchen},
	}}

	if o.RequiredStations() != NewStationSet(StationKitchen, StationBar) {
		t.Fatalf("required = %s", o.RequiredStations())
	}
	if len(o.ItemsFor(StationKitchen)) != 2 || len(o.ItemsFor(StationBar)) != 1 {
		t.Fatal("ItemsFor")
	}

	o.CompletedStations = NewStationSet(StationKitchen)
	if o.AllStationsDone() {
		t.Fatal("bar still pending")
	}
	o.CompletedStations = o.CompletedStations.Add(StationBar)
	if !o.AllStationsDone() {
		t.Fatal("all stations reported")
	}
}

func TestOrderItem_LineTotal(t *testing.T) {
	item := OrderItem{UnitPrice: d("4.25"), Quantity: 3}
	if !item.LineTotal().Equal(d("12.75")) {
		t.Fatalf("line total = %s", item.LineTotal())
	}
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrEmptyCart, "invalid_input"},
		{ValidationError{Field: "x"}, "invalid_input"},
		{ErrActorRequired, "unauthorized"},
		{ErrForbidden, "forbidden"},
		{ErrOrderNotFound, "not_found"},
		{&ItemOutOfStockError{ItemID: 1}, "out_of_stock"},
		{ErrInvalidTransition, "conflict"},
		{errors.New("boom"), "internal"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := ErrorCode(tt.err); got != tt.want {
			t.Errorf("ErrorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestParseOrderStatus(t *testing.T) {
	if s, err := ParseOrderStatus("Serving"); err != nil || s != StatusServing {
		t.Fatalf("Serving: %v %v", s, err)
	}
	if _, err := ParseOrderStatus("serving"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("lower case: err = %v", err)
	}
	if StatusCooking.Rank() != StatusPreparing.Rank() || StatusPending.Rank() >= StatusPaid.Rank() {
		t.Fatal("Rank ordering")
	}
}
