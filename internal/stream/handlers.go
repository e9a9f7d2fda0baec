package stream

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

func RegisterRoutes(r fiber.Router, hub *Hub, store Snapshotter, asker Asker, cfg SessionConfig) {
	r.Get("/ws", websocket.New(func(c *websocket.Conn) {
		session := NewSession(uuid.NewString(), c, hub, store, asker, cfg)
		session.Run(context.Background())
	}))
}
