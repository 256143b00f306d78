package domain

import (
	"testing"
)

func TestOrderStatus_Transitions(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		ok       bool
	}{
		{OrderStatusPending, OrderStatusProcessing, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusProcessing, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusShipped, OrderStatusCancelled, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusProcessing, false},
		{OrderStatusShipped, OrderStatusShipped, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.ok {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.ok)
			}
			err := tt.from.CheckTransition(tt.to)
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && !IsReason(err, ReasonIllegalTransition) {
				t.Errorf("expected illegal transition, got %v", err)
			}
		})
	}

	if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
		t.Error("delivered and cancelled should be terminal")
	}
	if OrderStatusPending.IsTerminal() {
		t.Error("pending should not be terminal")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if s, err := ParseOrderStatus(" Shipped "); err != nil || s != OrderStatusShipped {
		t.Errorf("ParseOrderStatus() = %q, %v", s, err)
	}
	if _, err := ParseOrderStatus("lost"); !IsCode(err, EINVALID) {
		t.Errorf("expected EINVALID, got %v", err)
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := map[string]PaymentMethod{
		"":       PaymentMethodCOD,
		"COD":    PaymentMethodCOD,
		"card":   PaymentMethodCard,
		"stripe": PaymentMethodCard,
	}
	for in, want := range tests {
		got, err := ParsePaymentMethod(in)
		if err != nil || got != want {
			t.Errorf("ParsePaymentMethod(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParsePaymentMethod("cheque"); !IsValidationError(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}

func TestOrder_Totals(t *testing.T) {
	o := &Order{Items: []OrderItem{
		{ProductID: "p1", Size: "1kg", Quantity: 2, UnitPrice: price("5")},
		{ProductID: "p2", Size: "5kg", Quantity: 1, UnitPrice: price("22.50")},
		{ProductID: "p1", Size: "1kg", Quantity: 1, UnitPrice: price("5")},
	}}

	if !o.ItemsTotal().Equal(price("37.50")) {
		t.Errorf("ItemsTotal() = %s", o.ItemsTotal())
	}
	if o.ItemCount() != 4 {
		t.Errorf("ItemCount() = %d", o.ItemCount())
	}

	dec := o.StockDecrements()
	if len(dec) != 2 {
		t.Fatalf("StockDecrements() = %+v", dec)
	}
	if dec[0].ProductID != "p1" || dec[0].Quantity != 3 {
		t.Errorf("first decrement = %+v, want p1 x3", dec[0])
	}
}

func TestAddressPatch_Apply(t *testing.T) {
	a := &Address{FirstName: "Asha", City: "Pune", IsDefault: true}
	off := false
	AddressPatch{City: "Nashik", IsDefault: &off}.Apply(a)

	if a.FirstName != "Asha" || a.City != "Nashik" || a.IsDefault {
		t.Errorf("Apply() = %+v", a)
	}
	if a.Snapshot().City != "Nashik" {
		t.Error("Snapshot should copy city")
	}
}
