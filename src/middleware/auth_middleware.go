package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/Udit004/alumni-networking-sub003/src/lib"
	"github.com/Udit004/alumni-networking-sub003/src/models"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// UserReader loads the authenticated user's profile
type UserReader interface {
	ReadUser(ctx context.Context, id string) (*models.User, error)
}

// ProtectRoute returns a middleware that checks for a valid JWT token,
// loads the user and attaches it to the request as "user"
func ProtectRoute(secret string, users UserReader) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get(fiber.HeaderAuthorization)
		if authHeader == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Not authorized, no token",
			})
		}

		token, ok := strings.CutPrefix(authHeader, "Bearer ")
		if !ok || token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Not authorized, invalid token format",
			})
		}

		userID, err := lib.VerifyJWT(token, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "Not authorized, invalid token",
			})
		}

		user, err := users.ReadUser(c.UserContext(), userID)
		if err != nil {
			if errors.Is(err, lib.ErrUserNotFound) {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"success": false,
					"message": "User not found",
				})
			}
			lib.Log().Error("Failed to load authenticated user", zap.String("user_id", userID), zap.Error(err))
			return lib.ErrorResponse(c, lib.Transient("failed to load user", err))
		}

		c.Locals("user", *user)
		return c.Next()
	}
}

// CurrentUser returns the user attached by ProtectRoute
func CurrentUser(c *fiber.Ctx) models.User {
	return c.Locals("user").(models.User)
}
