package middleware

import (
	"context"
	"strings"

	"github.com/biodoia/multiorch/pkg/auth"
	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
)

// ContextKey tipo per le chiavi del context
type ContextKey string

const (
	// UserIDKey chiave per l'ID utente nel context
	UserIDKey ContextKey = "user_id"
	// UserEmailKey chiave per l'email utente nel context
	UserEmailKey ContextKey = "user_email"
)

// AuthConfig configurazione del middleware di autenticazione
type AuthConfig struct {
	JWTManager *auth.JWTManager
}

// Auth middleware per autenticazione JWT (Bearer)
func Auth(config AuthConfig) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Authentication required",
			})
		}

		token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		claims, err := config.JWTManager.ValidateToken(token)
		if err != nil {
			log.Debug().Err(err).Str("request_id", GetRequestID(c)).Msg("JWT validation failed")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		// Inietta informazioni utente nel context
		ctx := context.WithValue(c.Context(), UserIDKey, claims.Identity())
		ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
		c.SetContext(ctx)

		return c.Next()
	}
}

// GetUserID estrae l'ID utente dal context. Restituisce "" se
// l'autenticazione è disabilitata.
func GetUserID(c fiber.Ctx) string {
	userID, _ := c.Context().Value(UserIDKey).(string)
	return userID
}
