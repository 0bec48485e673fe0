package enums

import "testing"

func TestParseOutboxEventType(t *testing.T) {
	got, err := ParseOutboxEventType("order_created")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != EventOrderCreated {
		t.Fatalf("expected %q got %q", EventOrderCreated, got)
	}
	if _, err := ParseOutboxEventType("order_teleported"); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestOutboxAggregateTypeIsValid(t *testing.T) {
	if !AggregateOrder.IsValid() {
		t.Fatal("expected order aggregate to be valid")
	}
	if OutboxAggregateType("vendor_order").IsValid() {
		t.Fatal("expected unknown aggregate to be invalid")
	}
	if _, err := ParseOutboxAggregateType("seller_stock"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
