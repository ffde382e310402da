package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// JWTMiddleware admits requests carrying an access token issued by this
// service. The token's user_id and id are stored in locals.
func JWTMiddleware(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		token := bearerFromHeader(c.Get("Authorization"))
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing bearer token")
		}

		claims, err := verifyToken(key, token)
		if err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, err.Error())
		}
		if claims.UserID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "token has no user")
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("token_id", claims.ID)
		return c.Next()
	}
}

func bearerFromHeader(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
