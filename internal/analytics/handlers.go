package analytics

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/emissions", authMiddleware, list(func(ctx context.Context) (any, error) { return svc.Emissions(ctx) }))
	r.Get("/alerts", authMiddleware, list(func(ctx context.Context) (any, error) { return svc.Alerts(ctx) }))
	r.Get("/chat-history", authMiddleware, list(func(ctx context.Context) (any, error) { return svc.ChatHistory(ctx) }))
	r.Get("/summary", authMiddleware, list(func(ctx context.Context) (any, error) { return svc.Summary(ctx) }))
}

func list(fetch func(context.Context) (any, error)) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := fetch(c.Context())
		if errors.Is(err, ErrNoDatabase) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error(), "data": []any{}})
		}
		if err != nil {
			log.Error().Err(err).Str("path", c.Path()).Msg("analytics query failed")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error", "data": []any{}})
		}
		return c.JSON(fiber.Map{"data": data})
	}
}
