package chat

import (
	"errors"

	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/metrics"

	"github.com/gofiber/fiber/v2"
)

type Snapshotter interface {
	Snapshot() fleet.Snapshot
}

type askRequest struct {
	Query   string `json:"query"`
	Message string `json:"message"`
}

func RegisterRoutes(r fiber.Router, svc *Service, store Snapshotter) {
	r.Post("/", func(c *fiber.Ctx) error {
		var req askRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		query := req.Query
		if query == "" {
			query = req.Message
		}

		ans, err := svc.Ask(c.UserContext(), query, store.Snapshot())
		metrics.ChatRequests.WithLabelValues(Outcome(err)).Inc()
		switch {
		case errors.Is(err, ErrEmptyQuery):
			return c.Status(fiber.StatusBadRequest).JSON(ans)
		case err != nil && !errors.Is(err, ErrBlocked):
			return c.Status(fiber.StatusBadGateway).JSON(ans)
		}
		return c.JSON(ans)
	})
}

// Outcome labels a chat result for metrics.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBlocked):
		return "blocked"
	case errors.Is(err, ErrEmptyQuery):
		return "empty"
	default:
		return "error"
	}
}
