package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/invobee/invobee/app/controllers"
	"github.com/invobee/invobee/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	// Webhook endpoint stays outside the auth group: the payment platform
	// authenticates with its signature over the raw body, not a bearer token.
	api.Post("/subscription/webhook", controllers.HandleStripeWebhook)

	authed := api.Group("/", middleware.RequireAuth)

	// Invoices
	authed.Post("/invoices/create", controllers.HandleInvoiceCreate)
	authed.Get("/invoices", controllers.HandleInvoiceList)
	authed.Get("/invoices/:id", controllers.HandleInvoiceGet)
	authed.Delete("/invoices/:id", controllers.HandleInvoiceDelete)
	authed.Post("/invoices/:id/send-whatsapp", controllers.HandleInvoiceSendWhatsApp)
	authed.Post("/invoices/:id/send-reminder", controllers.HandleInvoiceSendReminder)

	// QuickBooks integration
	authed.Post("/quickbooks/sync/:invoiceId", middleware.RequirePaidPlan, controllers.HandleQuickBooksSync)
	authed.Get("/quickbooks/status", controllers.HandleQuickBooksStatus)
	authed.Post("/quickbooks/connect", middleware.RequirePaidPlan, controllers.HandleQuickBooksConnect)
	authed.Delete("/quickbooks/disconnect", controllers.HandleQuickBooksDisconnect)
	authed.Get("/quickbooks/sync-history", controllers.HandleQuickBooksSyncHistory)

	// Subscription
	authed.Post("/subscription/create-checkout", controllers.HandleCreateCheckout)
	authed.Get("/subscription/status", controllers.HandleSubscriptionStatus)
	authed.Post("/subscription/cancel", controllers.HandleSubscriptionCancel)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
