package controllers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/invobee/invobee/app/repository"
	"github.com/invobee/invobee/internal/pkg/database"
	"github.com/invobee/invobee/internal/pkg/entitlements"
	"github.com/invobee/invobee/internal/pkg/env"
	"github.com/invobee/invobee/internal/pkg/middleware"
	"github.com/invobee/invobee/internal/pkg/stripe"
)

func newReconciler() *stripe.Reconciler {
	reconciler := stripe.NewReconcilerFromDB(database.GetDB(), stripe.NewClientFromEnv())
	reconciler.OnEntitlementChange = entitlements.InvalidatePlanCache
	return reconciler
}

// HandleCreateCheckout creates a hosted checkout session for upgrading to
// the paid plan.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if entitlements.IsPaid(entitlements.PlanForUser(database.GetDB(), userID)) {
		return jsonError(c, fiber.StatusBadRequest, "User already has an active subscription")
	}

	user, err := repository.GetGlobalRepositories().User.GetByID(userID)
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	session, err := stripe.NewClientFromEnv().CreateCheckoutSession(ctx, userID, user.Email)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"sessionId": session.ID,
		"url":       session.URL,
	})
}

// HandleSubscriptionStatus reports the local entitlement state.
func HandleSubscriptionStatus(c *fiber.Ctx) error {
	status, err := newReconciler().SubscriptionStatus(middleware.UserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(status)
}

// HandleSubscriptionCancel flags the provider subscription to end at the
// close of the billing period.
func HandleSubscriptionCancel(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	if !entitlements.IsPaid(entitlements.PlanForUser(database.GetDB(), userID)) {
		return jsonError(c, fiber.StatusBadRequest, "No active subscription to cancel")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := newReconciler().CancelSubscription(ctx, userID); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"message": "Subscription will be canceled at the end of the current billing period",
	})
}

// HandleStripeWebhook ingests payment-platform events. The signature is
// verified against the raw, undecoded body before any JSON parsing, and
// every delivery is recorded idempotently so re-deliveries are acknowledged
// without reprocessing.
func HandleStripeWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)
	signature := c.Get("Stripe-Signature")
	secret := env.GetEnv("STRIPE_WEBHOOK_SECRET", "")

	reconciler := newReconciler()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if !stripe.VerifyWebhookSignature(rawBody, signature, secret, stripe.DefaultSignatureTolerance) {
		_, stored, err := reconciler.RecordWebhookEvent(stripe.WebhookEventInput{
			PayloadJSON:    string(rawBody),
			SignatureValid: false,
		})
		if err == nil && stored != nil {
			_ = reconciler.MarkWebhookProcessed(stored.ID, errors.New("invalid webhook signature"))
		}
		return jsonError(c, fiber.StatusUnauthorized, "invalid_signature")
	}

	event, err := stripe.ParseEvent(rawBody)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid_payload")
	}

	created, stored, err := reconciler.RecordWebhookEvent(stripe.WebhookEventInput{
		ProviderEventID: event.ID,
		EventType:       event.Type,
		PayloadJSON:     string(rawBody),
		SignatureValid:  true,
	})
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "webhook_persist_failed")
	}
	if !created {
		return c.JSON(fiber.Map{"ok": true, "duplicate": true})
	}
	if !event.IsKnown() {
		_ = reconciler.MarkWebhookProcessed(stored.ID, nil)
		return c.JSON(fiber.Map{"ok": true, "ignored": true})
	}

	handleErr := reconciler.HandleEvent(ctx, event)
	_ = reconciler.MarkWebhookProcessed(stored.ID, handleErr)
	if handleErr != nil {
		if errors.Is(handleErr, stripe.ErrUnknownUser) {
			// Dropped on purpose: the platform will not re-deliver forever
			// and there is no local user to act for.
			log.Printf("webhook %s references unmapped customer: %v", event.Type, handleErr)
			return c.JSON(fiber.Map{"ok": true, "ignored": true})
		}
		return jsonError(c, fiber.StatusInternalServerError, "event_processing_failed")
	}

	return c.JSON(fiber.Map{"ok": true})
}
