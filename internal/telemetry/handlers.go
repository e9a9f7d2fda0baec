package telemetry

import (
	"bytes"
	"encoding/json"
	"time"

	"backend-pathgreen/internal/fleet"

	"github.com/gofiber/fiber/v2"
)

type ingestResponse struct {
	Accepted int `json:"accepted"`
	Dropped  int `json:"dropped"`
}

// RegisterRoutes mounts POST / for external samples. The body is either one
// sample or an array of them.
func RegisterRoutes(r fiber.Router, queue *IngestQueue, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		samples, err := decodeSamples(c.Body())
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if len(samples) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "at least one sample required")
		}
		for _, s := range samples {
			if s.VehicleID == "" {
				return fiber.NewError(fiber.StatusBadRequest, "vehicle_id required")
			}
		}

		var res ingestResponse
		now := time.Now().UTC()
		for _, s := range samples {
			if s.Timestamp.IsZero() {
				s.Timestamp = now
			}
			if queue.Push(s) {
				res.Accepted++
			} else {
				res.Dropped++
			}
		}
		if res.Accepted == 0 {
			return c.Status(fiber.StatusServiceUnavailable).JSON(res)
		}
		return c.Status(fiber.StatusAccepted).JSON(res)
	})
}

func decodeSamples(body []byte) ([]fleet.Sample, error) {
	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var samples []fleet.Sample
		if err := json.Unmarshal(body, &samples); err != nil {
			return nil, err
		}
		return samples, nil
	}
	var s fleet.Sample
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return []fleet.Sample{s}, nil
}
