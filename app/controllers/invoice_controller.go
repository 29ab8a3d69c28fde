package controllers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/invobee/invobee/app/models"
	"github.com/invobee/invobee/app/repository"
	"github.com/invobee/invobee/internal/pkg/database"
	"github.com/invobee/invobee/internal/pkg/entitlements"
	"github.com/invobee/invobee/internal/pkg/middleware"
	"github.com/invobee/invobee/internal/pkg/whatsapp"
)

type createInvoiceRequest struct {
	CustomerName string  `json:"customer_name"`
	Total        float64 `json:"total"`
	DueAt        string  `json:"due_at"`
}

type sendWhatsAppRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// HandleInvoiceCreate creates an invoice for the authenticated user,
// enforcing the free-plan cap.
func HandleInvoiceCreate(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	var req createInvoiceRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	repo := repository.GetGlobalRepositories().Invoice
	plan := entitlements.PlanForUser(database.GetDB(), userID)
	if limit := entitlements.InvoiceLimit(plan); limit >= 0 {
		count, err := repo.CountByUserID(userID)
		if err != nil {
			return jsonError(c, fiber.StatusInternalServerError, "could not count invoices")
		}
		if count >= int64(limit) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":         "Free plan limit reached. Upgrade to Pro for unlimited invoices.",
				"limit_reached": true,
			})
		}
	}

	var dueAt *time.Time
	if req.DueAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.DueAt)
		if err != nil {
			return jsonError(c, fiber.StatusBadRequest, "due_at must be RFC3339")
		}
		dueAt = &parsed
	}

	invoice := models.NewInvoice(userID, req.CustomerName, req.Total, dueAt)
	if err := invoice.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	if err := repo.Create(invoice); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Invoice created successfully",
		"invoice": invoice,
	})
}

// HandleInvoiceList lists the user's invoices with pagination and an
// optional sync-status filter.
func HandleInvoiceList(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	repo := repository.GetGlobalRepositories().Invoice
	invoices, err := repo.GetByUserID(userID, c.Query("status"), (page-1)*limit, limit)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	total, err := repo.CountByUserID(userID)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	pages := total / int64(limit)
	if total%int64(limit) != 0 {
		pages++
	}
	return c.JSON(fiber.Map{
		"invoices": invoices,
		"pagination": fiber.Map{
			"page":  page,
			"limit": limit,
			"total": total,
			"pages": pages,
		},
	})
}

// HandleInvoiceGet returns one invoice scoped to its owner.
func HandleInvoiceGet(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	invoiceID, err := c.ParamsInt("id")
	if err != nil || invoiceID < 1 {
		return jsonError(c, fiber.StatusBadRequest, "invalid invoice id")
	}

	invoice, err := repository.GetGlobalRepositories().Invoice.GetByUserAndID(userID, uint(invoiceID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Invoice not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}
	return c.JSON(fiber.Map{"invoice": invoice})
}

// HandleInvoiceDelete removes an invoice scoped to its owner.
func HandleInvoiceDelete(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	invoiceID, err := c.ParamsInt("id")
	if err != nil || invoiceID < 1 {
		return jsonError(c, fiber.StatusBadRequest, "invalid invoice id")
	}

	if err := repository.GetGlobalRepositories().Invoice.Delete(userID, uint(invoiceID)); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"message": "Invoice deleted successfully"})
}

// HandleInvoiceSendWhatsApp sends the invoice message through the messaging
// gateway and records the send in the audit log.
func HandleInvoiceSendWhatsApp(c *fiber.Ctx) error {
	return sendInvoiceMessage(c, false)
}

// HandleInvoiceSendReminder sends the payment reminder variant.
func HandleInvoiceSendReminder(c *fiber.Ctx) error {
	return sendInvoiceMessage(c, true)
}

func sendInvoiceMessage(c *fiber.Ctx, reminder bool) error {
	userID := middleware.UserID(c)
	invoiceID, err := c.ParamsInt("id")
	if err != nil || invoiceID < 1 {
		return jsonError(c, fiber.StatusBadRequest, "invalid invoice id")
	}

	var req sendWhatsAppRequest
	if err := c.BodyParser(&req); err != nil || req.PhoneNumber == "" {
		return jsonError(c, fiber.StatusBadRequest, "Phone number is required")
	}

	invoice, err := repository.GetGlobalRepositories().Invoice.GetByUserAndID(userID, uint(invoiceID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Invoice not found")
		}
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}

	svc := whatsapp.NewServiceFromEnv()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var result *whatsapp.SendResult
	if reminder {
		result, err = svc.SendPaymentReminder(ctx, req.PhoneNumber, invoice)
	} else {
		result, err = svc.SendInvoiceMessage(ctx, req.PhoneNumber, invoice)
	}
	if err != nil {
		var deliveryErr *whatsapp.DeliveryError
		if errors.As(err, &deliveryErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Failed to send WhatsApp message",
				"details": deliveryErr.Detail,
			})
		}
		return jsonError(c, fiber.StatusInternalServerError, err.Error())
	}

	_ = database.GetDB().Create(&models.BotLog{
		UserID:  userID,
		LogType: models.BotLogWhatsAppSend,
		Message: fmt.Sprintf("Invoice %s sent to %s", invoice.InvoiceNumber, req.PhoneNumber),
	}).Error

	return c.JSON(fiber.Map{
		"message":             "Invoice sent via WhatsApp successfully",
		"invoice_id":          invoice.ID,
		"phone_number":        req.PhoneNumber,
		"whatsapp_message_id": result.MessageID,
	})
}
