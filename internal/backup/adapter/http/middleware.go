package http

import (
	"context"
	"strings"

	"transit-console/internal/backup/adapter/security"
	"transit-console/internal/shared/contextkeys"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*security.OperatorClaims, error)
}

// SuperOperatorMiddleware admits only requests whose token carries role and
// puts the operator into the request context.
func SuperOperatorMiddleware(tokens TokenValidator, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := extractToken(c)
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		claims, err := tokens.ValidateToken(c.UserContext(), token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid token",
			})
		}
		if !claims.HasRole(role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "Insufficient permissions",
			})
		}

		ctx := context.WithValue(c.UserContext(), contextkeys.OperatorIDKey, claims.OperatorID())
		ctx = context.WithValue(ctx, contextkeys.OperatorRoleKey, claims.Role)
		c.SetUserContext(ctx)
		c.Locals("operator_id", claims.OperatorID())
		return c.Next()
	}
}

// RequestID assigns X-Request-ID and copies it into the request context.
func RequestID() []fiber.Handler {
	return []fiber.Handler{
		requestid.New(requestid.Config{
			Header:    fiber.HeaderXRequestID,
			Generator: uuid.NewString,
		}),
		func(c *fiber.Ctx) error {
			if id := c.GetRespHeader(fiber.HeaderXRequestID); id != "" {
				c.SetUserContext(context.WithValue(c.UserContext(), contextkeys.RequestIDKey, id))
			}
			return c.Next()
		},
	}
}

// extractToken reads the bearer header, falling back to the token query
// parameter browsers use for websocket upgrades.
func extractToken(c *fiber.Ctx) string {
	if auth := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}
