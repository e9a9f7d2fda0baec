package telemetry

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-pathgreen/internal/fleet"

	"github.com/gofiber/fiber/v2"
)

func newIngestApp(q *IngestQueue) *fiber.App {
	app := fiber.New()
	RegisterRoutes(app.Group("/telemetry"), q, func(c *fiber.Ctx) error { return c.Next() })
	return app
}

func postTelemetry(t *testing.T, app *fiber.App, body []byte) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/telemetry", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	return resp
}

func TestTelemetryHandlersSingleSample(t *testing.T) {
	q := NewIngestQueue(4)
	app := newIngestApp(q)

	body, _ := json.Marshal(fleet.Sample{VehicleID: "TRK-900", Latitude: 12.9, Longitude: 77.6, SpeedKmh: 30})
	resp := postTelemetry(t, app, body)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	got := q.Poll(t0)
	if len(got) != 1 || got[0].Timestamp.IsZero() {
		t.Fatalf("expected one stamped sample, got %+v", got)
	}
}

func TestTelemetryHandlersBatch(t *testing.T) {
	q := NewIngestQueue(2)
	app := newIngestApp(q)

	body, _ := json.Marshal([]fleet.Sample{
		{VehicleID: "TRK-1", Timestamp: t0},
		{VehicleID: "TRK-2", Timestamp: t0},
		{VehicleID: "TRK-3", Timestamp: t0},
	})
	resp := postTelemetry(t, app, body)
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}
	var res ingestResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if res.Accepted != 2 || res.Dropped != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	resp = postTelemetry(t, app, []byte(`{"vehicle_id":"TRK-4"}`))
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the queue is full, got %d", resp.StatusCode)
	}
}

func TestTelemetryHandlersBadRequest(t *testing.T) {
	app := newIngestApp(NewIngestQueue(2))

	for _, body := range []string{`{`, `[]`, `{"speed_kmh":10}`, `[{"vehicle_id":"TRK-1"},{}]`} {
		resp := postTelemetry(t, app, []byte(body))
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
	}
}
