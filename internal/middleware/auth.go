// Package middleware provides authentication and authorization middleware for the application.
package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken   = errors.New("authorization token required")
	errInvalidFormat  = errors.New("invalid authorization header format")
	errInvalidToken   = errors.New("invalid or expired token")
	errMissingSubject = errors.New("invalid token structure - missing subject")
)

// bearerToken extracts the token from "Authorization: Bearer <token>", falling back to
// the ?token= query parameter which browsers use for websocket upgrades.
func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" {
			return token, nil
		}
		return "", errMissingToken
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errInvalidFormat
	}
	return parts[1], nil
}

// ParseSubject validates an HMAC-signed JWT and returns its "sub" claim.
func ParseSubject(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", errMissingSubject
	}
	return sub, nil
}

func setUser(c *fiber.Ctx, userID string) {
	c.Locals("userID", userID)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, userID))
}

// RequireAuth rejects requests without a valid bearer token and stores the
// token subject in c.Locals("userID").
func RequireAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "UNAUTHORIZED",
			})
		}

		sub, err := ParseSubject(tokenString, secret)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": err.Error(),
				"code":  "UNAUTHORIZED",
			})
		}

		setUser(c, sub)
		return c.Next()
	}
}

// OptionalAuth identifies the caller when a token is present but lets anonymous
// requests through. A token that is present but invalid is still rejected.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, err := bearerToken(c)
		if errors.Is(err, errMissingToken) {
			return c.Next()
		}
		if err == nil {
			var sub string
			sub, err = ParseSubject(tokenString, secret)
			if err == nil {
				setUser(c, sub)
				return c.Next()
			}
		}
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": err.Error(),
			"code":  "UNAUTHORIZED",
		})
	}
}

// Auth picks RequireAuth or OptionalAuth depending on deployment configuration.
func Auth(secret string, required bool) fiber.Handler {
	if required {
		return RequireAuth(secret)
	}
	return OptionalAuth(secret)
}

// UserID returns the authenticated caller id, or "" for anonymous requests.
func UserID(c *fiber.Ctx) string {
	uid, _ := c.Locals("userID").(string)
	return uid
}
