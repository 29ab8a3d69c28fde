package middleware

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/invobee/invobee/internal/pkg/database"
	"github.com/invobee/invobee/internal/pkg/entitlements"
	"github.com/invobee/invobee/internal/pkg/env"
)

// Locals key under which the authenticated user id is stored.
const KeyUserID = "user_id"

// RequireAuth validates the bearer token issued by the auth provider and
// stores the user id in the request locals. Returns JSON 401 on failure.
func RequireAuth(c *fiber.Ctx) error {
	header := c.Get(fiber.HeaderAuthorization)
	if !strings.HasPrefix(header, "Bearer ") {
		return unauthorized(c, "missing bearer token")
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

	secret := env.GetEnv("AUTH_JWT_SECRET", "")
	if secret == "" {
		return unauthorized(c, "auth is not configured")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return unauthorized(c, "invalid or expired token")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil {
		return unauthorized(c, "invalid token subject")
	}
	userID, err := strconv.ParseUint(subject, 10, 32)
	if err != nil || userID == 0 {
		return unauthorized(c, "invalid token subject")
	}

	c.Locals(KeyUserID, uint(userID))
	return c.Next()
}

// RequirePaidPlan gates premium features behind an active paid entitlement.
func RequirePaidPlan(c *fiber.Ctx) error {
	userID, ok := c.Locals(KeyUserID).(uint)
	if !ok {
		return unauthorized(c, "login required")
	}

	plan := entitlements.PlanForUser(database.GetDB(), userID)
	if !entitlements.IsPaid(plan) {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": entitlements.ErrNoEntitlement.Error(),
		})
	}
	return c.Next()
}

// UserID extracts the authenticated user id set by RequireAuth.
func UserID(c *fiber.Ctx) uint {
	if id, ok := c.Locals(KeyUserID).(uint); ok {
		return id
	}
	return 0
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}
