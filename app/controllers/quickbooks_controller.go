package controllers

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/invobee/invobee/internal/pkg/middleware"
	"github.com/invobee/invobee/internal/pkg/quickbooks"
)

type connectQuickBooksRequest struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// HandleQuickBooksSync exports one invoice to QuickBooks.
func HandleQuickBooksSync(c *fiber.Ctx) error {
	userID := middleware.UserID(c)
	invoiceID, err := c.ParamsInt("invoiceId")
	if err != nil || invoiceID < 1 {
		return jsonError(c, fiber.StatusBadRequest, "invalid invoice id")
	}

	_, syncSvc := quickBooksServices()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := syncSvc.SyncInvoice(ctx, userID, uint(invoiceID))
	if err != nil {
		switch {
		case errors.Is(err, quickbooks.ErrInvoiceNotFound):
			return jsonError(c, fiber.StatusNotFound, "Invoice not found")
		case errors.Is(err, quickbooks.ErrAlreadySynced):
			return jsonError(c, fiber.StatusBadRequest, "Invoice is already synced to QuickBooks")
		}
		var remoteErr *quickbooks.RemoteError
		if errors.As(err, &remoteErr) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Failed to sync invoice to QuickBooks",
				"details": remoteErr.Detail,
			})
		}
		return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
	}

	return c.JSON(fiber.Map{
		"message":       "Invoice synced to QuickBooks successfully",
		"quickbooks_id": result.QuickBooksID,
	})
}

// HandleQuickBooksStatus reports the connection state without any network call.
func HandleQuickBooksStatus(c *fiber.Ctx) error {
	tokens, _ := quickBooksServices()
	status, err := tokens.ConnectionStatus(middleware.UserID(c))
	if err != nil {
		return jsonError(c, fiber.StatusInternalServerError, "Internal server error")
	}
	return c.JSON(status)
}

// HandleQuickBooksConnect stores the OAuth tokens handed back by the
// provider's consent flow.
func HandleQuickBooksConnect(c *fiber.Ctx) error {
	var req connectQuickBooksRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.AccessToken == "" || req.RefreshToken == "" {
		return jsonError(c, fiber.StatusBadRequest, "Missing required OAuth tokens")
	}

	tokens, _ := quickBooksServices()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tokens.Connect(ctx, middleware.UserID(c), req.AccessToken, req.RefreshToken, req.ExpiresIn); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"message": "QuickBooks connected successfully"})
}

// HandleQuickBooksDisconnect deletes the stored credential.
func HandleQuickBooksDisconnect(c *fiber.Ctx) error {
	tokens, _ := quickBooksServices()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := tokens.Disconnect(ctx, middleware.UserID(c)); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{"message": "QuickBooks disconnected successfully"})
}

// HandleQuickBooksSyncHistory lists the sync ledger joined with invoice
// summaries, newest first.
func HandleQuickBooksSyncHistory(c *fiber.Ctx) error {
	_, syncSvc := quickBooksServices()
	records, err := syncSvc.SyncHistory(middleware.UserID(c), c.QueryInt("page", 1), c.QueryInt("limit", 10))
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	history := make([]fiber.Map, 0, len(records))
	for _, record := range records {
		entry := fiber.Map{
			"id":         record.ID,
			"invoice_id": record.InvoiceID,
			"status":     record.Status,
			"message":    record.Message,
			"created_at": record.CreatedAt,
		}
		if record.Invoice != nil {
			entry["invoice"] = fiber.Map{
				"invoice_number": record.Invoice.InvoiceNumber,
				"customer_name":  record.Invoice.CustomerName,
				"total":          record.Invoice.Total,
			}
		}
		history = append(history, entry)
	}
	return c.JSON(fiber.Map{"sync_history": history})
}
