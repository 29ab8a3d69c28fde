package controllers

import (
	"sync"

	"github.com/gofiber/fiber/v2"

	"github.com/invobee/invobee/internal/pkg/database"
	"github.com/invobee/invobee/internal/pkg/quickbooks"
)

// QuickBooks services are singletons: the sync service holds the per-invoice
// in-flight locks and the token manager holds the per-user refresh group, so
// per-request construction would defeat both.
var (
	qbOnce   sync.Once
	qbTokens *quickbooks.TokenManager
	qbSync   *quickbooks.SyncService
)

func quickBooksServices() (*quickbooks.TokenManager, *quickbooks.SyncService) {
	qbOnce.Do(func() {
		repo := quickbooks.NewRepository(database.GetDB())
		client := quickbooks.NewClientFromEnv()
		qbTokens = quickbooks.NewTokenManager(repo, client)
		qbSync = quickbooks.NewSyncService(repo, qbTokens, client)
	})
	return qbTokens, qbSync
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"error": message})
}
