package stripe

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

// Webhook event types the reconciler understands. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventPaymentSucceeded    = "invoice.payment_succeeded"
	EventPaymentFailed       = "invoice.payment_failed"
)

// Event is a parsed webhook envelope. Data holds the raw provider object and
// is decoded per event type by the accessors below.
type Event struct {
	ID   string
	Type string
	Data json.RawMessage
}

type eventEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// CheckoutCompleted carries the session fields needed to establish the
// subscription-to-user mapping.
type CheckoutCompleted struct {
	UserID         uint
	CustomerID     string
	SubscriptionID string
}

// SubscriptionChange carries the lifecycle fields of an updated or deleted
// subscription.
type SubscriptionChange struct {
	SubscriptionID string
	CustomerID     string
	Active         bool
	PeriodEnd      int64
}

// PaymentEvent carries the references on a provider invoice payment event.
type PaymentEvent struct {
	CustomerID     string
	SubscriptionID string
	InvoiceID      string
}

// ParseEvent decodes a webhook payload into its envelope. Callers must have
// verified the signature against the same raw bytes first.
func ParseEvent(raw []byte) (*Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	if strings.TrimSpace(env.Type) == "" {
		return nil, errors.New("webhook event has no type")
	}
	return &Event{
		ID:   env.ID,
		Type: env.Type,
		Data: env.Data.Object,
	}, nil
}

// IsKnown reports whether the reconciler has a handler for this event type.
func (e *Event) IsKnown() bool {
	switch e.Type {
	case EventCheckoutCompleted, EventSubscriptionUpdated, EventSubscriptionDeleted,
		EventPaymentSucceeded, EventPaymentFailed:
		return true
	default:
		return false
	}
}

// CheckoutCompleted decodes the session object of a checkout.session.completed
// event. The local user id travels in the session metadata.
func (e *Event) CheckoutCompleted() (*CheckoutCompleted, error) {
	var obj struct {
		Customer     string `json:"customer"`
		Subscription string `json:"subscription"`
		Metadata     struct {
			UserID string `json:"userId"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(e.Data, &obj); err != nil {
		return nil, err
	}

	userID, err := strconv.ParseUint(strings.TrimSpace(obj.Metadata.UserID), 10, 32)
	if err != nil || userID == 0 {
		return nil, errors.New("checkout session has no usable userId metadata")
	}
	if obj.Customer == "" {
		return nil, errors.New("checkout session has no customer")
	}
	return &CheckoutCompleted{
		UserID:         uint(userID),
		CustomerID:     obj.Customer,
		SubscriptionID: obj.Subscription,
	}, nil
}

// SubscriptionChange decodes the subscription object of an updated/deleted
// event.
func (e *Event) SubscriptionChange() (*SubscriptionChange, error) {
	var obj struct {
		ID               string `json:"id"`
		Customer         string `json:"customer"`
		Status           string `json:"status"`
		CurrentPeriodEnd int64  `json:"current_period_end"`
	}
	if err := json.Unmarshal(e.Data, &obj); err != nil {
		return nil, err
	}
	if obj.Customer == "" {
		return nil, errors.New("subscription event has no customer")
	}
	return &SubscriptionChange{
		SubscriptionID: obj.ID,
		CustomerID:     obj.Customer,
		Active:         obj.Status == "active",
		PeriodEnd:      obj.CurrentPeriodEnd,
	}, nil
}

// PaymentEvent decodes the invoice object of a payment succeeded/failed event.
func (e *Event) PaymentEvent() (*PaymentEvent, error) {
	var obj struct {
		ID           string `json:"id"`
		Customer     string `json:"customer"`
		Subscription string `json:"subscription"`
	}
	if err := json.Unmarshal(e.Data, &obj); err != nil {
		return nil, err
	}
	return &PaymentEvent{
		CustomerID:     obj.Customer,
		SubscriptionID: obj.Subscription,
		InvoiceID:      obj.ID,
	}, nil
}
