package stripe

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/invobee/invobee/app/models"
	"github.com/invobee/invobee/internal/pkg/entitlements"
	"gorm.io/gorm"
)

// ErrUnknownUser means a webhook referenced a provider customer with no
// local mapping. The transport boundary logs and drops such events; the
// platform will not re-deliver indefinitely and there is no local actor to
// notify.
var ErrUnknownUser = errors.New("no local user mapped to provider customer")

// Placeholder renewal horizon applied on checkout completion; the first
// subscription.updated event overwrites it with the provider's true period
// end.
const checkoutRenewalHorizon = 30 * 24 * time.Hour

// WebhookEventInput is the normalized input for webhook event persistence.
type WebhookEventInput struct {
	ProviderEventID string
	EventType       string
	PayloadJSON     string
	SignatureValid  bool
}

// Reconciler applies payment-platform lifecycle events to the local
// entitlement record. All writes are idempotent "set to X" updates, so
// re-delivered events converge to the same state.
type Reconciler struct {
	repo   Repository
	client *Client
	now    func() time.Time

	// Invoked after an entitlement write, e.g. to drop cached status.
	OnEntitlementChange func(userID uint)
}

func NewReconciler(repo Repository, client *Client) *Reconciler {
	return &Reconciler{
		repo:   repo,
		client: client,
		now:    time.Now,
	}
}

// NewReconcilerFromDB creates a reconciler from a GORM DB handle.
func NewReconcilerFromDB(db *gorm.DB, client *Client) *Reconciler {
	return NewReconciler(NewRepository(db), client)
}

// HandleEvent dispatches one parsed webhook event. Unknown event types are
// acknowledged without effect.
func (r *Reconciler) HandleEvent(ctx context.Context, event *Event) error {
	switch event.Type {
	case EventCheckoutCompleted:
		return r.handleCheckoutCompleted(event)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		change, err := event.SubscriptionChange()
		if err != nil {
			return err
		}
		if event.Type == EventSubscriptionDeleted {
			change.Active = false
			change.PeriodEnd = 0
		}
		return r.applySubscriptionChange(change)
	case EventPaymentSucceeded:
		return r.handlePaymentSucceeded(ctx, event)
	case EventPaymentFailed:
		return r.handlePaymentFailed(event)
	default:
		log.Printf("Unhandled event type: %s", event.Type)
		return nil
	}
}

func (r *Reconciler) handleCheckoutCompleted(event *Event) error {
	session, err := event.CheckoutCompleted()
	if err != nil {
		return err
	}

	if err := r.repo.UpsertMapping(&models.SubscriptionMapping{
		UserID:                 session.UserID,
		Provider:               models.PaymentProviderStripe,
		ProviderCustomerID:     session.CustomerID,
		ProviderSubscriptionID: session.SubscriptionID,
	}); err != nil {
		return err
	}

	renewal := r.now().Add(checkoutRenewalHorizon)
	return r.setEntitlement(session.UserID, entitlements.PlanPaid, &renewal)
}

func (r *Reconciler) applySubscriptionChange(change *SubscriptionChange) error {
	mapping, err := r.resolveCustomer(change.CustomerID)
	if err != nil {
		return err
	}

	plan := entitlements.PlanFree
	var renewal *time.Time
	if change.Active {
		plan = entitlements.PlanPaid
	}
	if change.Active && change.PeriodEnd > 0 {
		t := time.Unix(change.PeriodEnd, 0)
		renewal = &t
	}
	return r.setEntitlement(mapping.UserID, plan, renewal)
}

// handlePaymentSucceeded re-reads the subscription from the provider and
// reapplies it, since the payment event itself does not carry period data.
func (r *Reconciler) handlePaymentSucceeded(ctx context.Context, event *Event) error {
	payment, err := event.PaymentEvent()
	if err != nil {
		return err
	}
	if payment.SubscriptionID == "" {
		return nil
	}

	sub, err := r.client.RetrieveSubscription(ctx, payment.SubscriptionID)
	if err != nil {
		return err
	}
	return r.applySubscriptionChange(&SubscriptionChange{
		SubscriptionID: sub.ID,
		CustomerID:     sub.Customer,
		Active:         sub.Status == "active",
		PeriodEnd:      sub.CurrentPeriodEnd,
	})
}

// handlePaymentFailed leaves the plan untouched (entitlement only flips on an
// explicit subscription event) and records an audit entry.
func (r *Reconciler) handlePaymentFailed(event *Event) error {
	payment, err := event.PaymentEvent()
	if err != nil {
		return err
	}

	mapping, err := r.resolveCustomer(payment.CustomerID)
	if err != nil {
		return err
	}
	return r.repo.AppendBotLog(&models.BotLog{
		UserID:  mapping.UserID,
		LogType: models.BotLogPaymentFailed,
		Message: fmt.Sprintf("Payment failed for invoice %s", payment.InvoiceID),
	})
}

func (r *Reconciler) resolveCustomer(customerID string) (*models.SubscriptionMapping, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, ErrUnknownUser
	}
	mapping, err := r.repo.GetMappingByCustomerID(customerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownUser
		}
		return nil, err
	}
	return mapping, nil
}

func (r *Reconciler) setEntitlement(userID uint, plan string, renewal *time.Time) error {
	entitlement, err := r.repo.GetOrCreateEntitlement(userID)
	if err != nil {
		return err
	}
	entitlement.Plan = plan
	entitlement.RenewalDate = renewal
	if err := r.repo.SaveEntitlement(entitlement); err != nil {
		return err
	}
	if r.OnEntitlementChange != nil {
		r.OnEntitlementChange(userID)
	}
	return nil
}

// SubscriptionStatus is the read surface consumed by the UI layer.
type SubscriptionStatus struct {
	Plan        string     `json:"subscription_status"`
	RenewalDate *time.Time `json:"renewal_date,omitempty"`
	IsActive    bool       `json:"is_active"`
}

// SubscriptionStatus reports the user's current entitlement.
func (r *Reconciler) SubscriptionStatus(userID uint) (*SubscriptionStatus, error) {
	entitlement, err := r.repo.GetOrCreateEntitlement(userID)
	if err != nil {
		return nil, err
	}
	return &SubscriptionStatus{
		Plan:        entitlement.Plan,
		RenewalDate: entitlement.RenewalDate,
		IsActive:    entitlement.Plan == entitlements.PlanPaid,
	}, nil
}

// CancelSubscription flags the user's provider subscription to end at the
// close of the current billing period. The entitlement itself only changes
// when the provider later delivers the subscription event.
func (r *Reconciler) CancelSubscription(ctx context.Context, userID uint) error {
	mapping, err := r.repo.GetMappingByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.New("subscription not found")
		}
		return err
	}
	if mapping.ProviderSubscriptionID == "" {
		return errors.New("subscription not found")
	}
	return r.client.CancelAtPeriodEnd(ctx, mapping.ProviderSubscriptionID)
}

// RecordWebhookEvent persists webhook payloads idempotently. Deliveries
// without an event id are deduplicated by payload hash.
func (r *Reconciler) RecordWebhookEvent(in WebhookEventInput) (bool, *models.WebhookEvent, error) {
	eventID := strings.TrimSpace(in.ProviderEventID)
	if eventID == "" {
		sum := sha256.Sum256([]byte(in.PayloadJSON))
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	event := &models.WebhookEvent{
		Provider:        models.PaymentProviderStripe,
		ProviderEventID: eventID,
		EventType:       strings.TrimSpace(in.EventType),
		PayloadJSON:     in.PayloadJSON,
		SignatureValid:  in.SignatureValid,
	}
	return r.repo.CreateWebhookEventIfNotExists(event)
}

// MarkWebhookProcessed marks an event as processed and stores an optional error.
func (r *Reconciler) MarkWebhookProcessed(webhookEventID uint, processingErr error) error {
	if webhookEventID == 0 {
		return errors.New("webhook_event_id is required")
	}
	errMsg := ""
	if processingErr != nil {
		errMsg = processingErr.Error()
	}
	return r.repo.MarkWebhookProcessed(webhookEventID, errMsg)
}
