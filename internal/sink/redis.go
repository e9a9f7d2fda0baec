package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"backend-pathgreen/internal/fleet"

	"github.com/redis/go-redis/v9"
)

const (
	GeoKey           = "fleet:geo"
	TelemetryChannel = "fleet:telemetry"
	AlertsChannel    = "fleet:alerts"
	AlertsKey        = "fleet:alerts:recent"
)

// Redis mirrors the latest state per vehicle for external dashboards and
// publishes every record and alert on pubsub channels.
type Redis struct {
	client    *redis.Client
	stateTTL  time.Duration
	alertKeep int64
}

func NewRedis(client *redis.Client, stateTTL time.Duration, alertKeep int) *Redis {
	if stateTTL <= 0 {
		stateTTL = 30 * time.Second
	}
	if alertKeep <= 0 {
		alertKeep = fleet.DefaultAlertCapacity
	}
	return &Redis{client: client, stateTTL: stateTTL, alertKeep: int64(alertKeep)}
}

func (r *Redis) Name() string { return "redis" }

func StateKey(vehicleID string) string {
	return fmt.Sprintf("vehicle:%s:state", vehicleID)
}

func (r *Redis) WriteRecords(ctx context.Context, recs []fleet.EmissionRecord) error {
	pipe := r.client.Pipeline()
	for _, rec := range recs {
		payload, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal record: %w", err)
		}
		key := StateKey(rec.VehicleID)
		pipe.HSet(ctx, key, map[string]any{
			"vehicle_id":        rec.VehicleID,
			"lat":               rec.Latitude,
			"lng":               rec.Longitude,
			"speed_kmh":         rec.SpeedKmh,
			"co2_grams":         rec.CO2Grams,
			"cumulative_co2_kg": rec.CumulativeCO2Kg,
			"status":            string(rec.Status),
			"timestamp":         rec.Timestamp.UnixMilli(),
		})
		pipe.Expire(ctx, key, r.stateTTL)
		pipe.GeoAdd(ctx, GeoKey, &redis.GeoLocation{
			Name:      rec.VehicleID,
			Longitude: rec.Longitude,
			Latitude:  rec.Latitude,
		})
		pipe.Publish(ctx, TelemetryChannel, payload)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}

func (r *Redis) WriteAlerts(ctx context.Context, alerts []fleet.Alert) error {
	pipe := r.client.Pipeline()
	for _, a := range alerts {
		payload, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal alert: %w", err)
		}
		pipe.LPush(ctx, AlertsKey, payload)
		pipe.Publish(ctx, AlertsChannel, payload)
	}
	pipe.LTrim(ctx, AlertsKey, 0, r.alertKeep-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis pipeline failed: %w", err)
	}
	return nil
}
