package lib

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// MessageResponse returns a map with a message key for API responses
func MessageResponse(message string) fiber.Map {
	return fiber.Map{
		"message": message,
	}
}

// ErrorResponse writes err with the status it maps to
func ErrorResponse(c *fiber.Ctx, err error) error {
	status := StatusCode(err)
	message := err.Error()
	var be *BaseError
	if errors.As(err, &be) {
		message = be.Message
	}
	if status == fiber.StatusInternalServerError {
		message = "Server error"
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}

// GenerateJWT signs a token for the given user ID
func GenerateJWT(userID, secret string, ttl time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"userId": userID,
		"exp":    time.Now().Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// VerifyJWT verifies and decodes a token, returning the user ID claim
func VerifyJWT(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}

	userID, ok := claims["userId"].(string)
	if !ok || userID == "" {
		return "", fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	return userID, nil
}
