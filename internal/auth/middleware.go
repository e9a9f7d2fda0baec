package auth

import "github.com/gofiber/fiber/v2"

const HeaderAPIKey = "X-API-Key"

// APIKeyMiddleware rejects requests without a valid X-API-Key header.
func APIKeyMiddleware(a *Authenticator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !a.Validate(c.Context(), c.Get(HeaderAPIKey)) {
			return fiber.NewError(fiber.StatusForbidden, "Invalid or missing API key. Set X-API-Key header.")
		}
		return c.Next()
	}
}
