package stripe

import "testing"

func TestParseEvent(t *testing.T) {
	raw := []byte(`{
		"id": "evt_123",
		"type": "customer.subscription.updated",
		"data": { "object": { "id": "sub_1", "customer": "cus_1", "status": "active", "current_period_end": 1750000000 } }
	}`)

	event, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if event.ID != "evt_123" || event.Type != EventSubscriptionUpdated {
		t.Fatalf("unexpected envelope: %+v", event)
	}

	change, err := event.SubscriptionChange()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if change.SubscriptionID != "sub_1" || change.CustomerID != "cus_1" {
		t.Fatalf("unexpected ids: %+v", change)
	}
	if !change.Active || change.PeriodEnd != 1750000000 {
		t.Fatalf("unexpected lifecycle fields: %+v", change)
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	if _, err := ParseEvent([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid json")
	}
	if _, err := ParseEvent([]byte(`{"id":"evt_1","data":{"object":{}}}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
}

func TestEventIsKnown(t *testing.T) {
	for _, typ := range []string{
		EventCheckoutCompleted,
		EventSubscriptionUpdated,
		EventSubscriptionDeleted,
		EventPaymentSucceeded,
		EventPaymentFailed,
	} {
		if !(&Event{Type: typ}).IsKnown() {
			t.Fatalf("expected %q to be known", typ)
		}
	}
	if (&Event{Type: "customer.created"}).IsKnown() {
		t.Fatal("expected unrelated event type to be unknown")
	}
}

func TestCheckoutCompleted(t *testing.T) {
	raw := []byte(`{
		"id": "evt_123",
		"type": "checkout.session.completed",
		"data": { "object": { "customer": "cus_1", "subscription": "sub_1", "metadata": { "userId": "42" } } }
	}`)

	event, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	session, err := event.CheckoutCompleted()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.UserID != 42 || session.CustomerID != "cus_1" || session.SubscriptionID != "sub_1" {
		t.Fatalf("unexpected session: %+v", session)
	}
}

func TestCheckoutCompleted_Rejects(t *testing.T) {
	noUser := &Event{Type: EventCheckoutCompleted, Data: []byte(`{"customer":"cus_1","metadata":{}}`)}
	if _, err := noUser.CheckoutCompleted(); err == nil {
		t.Fatal("expected error for missing userId metadata")
	}

	badUser := &Event{Type: EventCheckoutCompleted, Data: []byte(`{"customer":"cus_1","metadata":{"userId":"zero"}}`)}
	if _, err := badUser.CheckoutCompleted(); err == nil {
		t.Fatal("expected error for non-numeric userId")
	}

	noCustomer := &Event{Type: EventCheckoutCompleted, Data: []byte(`{"metadata":{"userId":"42"}}`)}
	if _, err := noCustomer.CheckoutCompleted(); err == nil {
		t.Fatal("expected error for missing customer")
	}
}

func TestPaymentEvent(t *testing.T) {
	event := &Event{
		Type: EventPaymentFailed,
		Data: []byte(`{"id":"in_1","customer":"cus_1","subscription":"sub_1"}`),
	}
	payment, err := event.PaymentEvent()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payment.InvoiceID != "in_1" || payment.CustomerID != "cus_1" || payment.SubscriptionID != "sub_1" {
		t.Fatalf("unexpected payment event: %+v", payment)
	}
}
