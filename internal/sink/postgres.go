package sink

import (
	"context"
	"encoding/json"
	"fmt"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/db"
	"backend-pathgreen/internal/fleet"

	"github.com/jackc/pgx/v5"
)

var emissionColumns = []string{
	"vehicle_id",
	"recorded_at",
	"latitude",
	"longitude",
	"speed_kmh",
	"load_kg",
	"co2_grams",
	"co2_rate_g_per_km",
	"cumulative_co2_kg",
	"fuel_efficiency_km_l",
	"status",
}

// Postgres writes the emission log, alert history and chat history tables
// created by cmd/migrate.
type Postgres struct {
	db db.Querier
}

func NewPostgres(q db.Querier) *Postgres {
	return &Postgres{db: q}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) WriteRecords(ctx context.Context, recs []fleet.EmissionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	rows := make([][]any, len(recs))
	for i, r := range recs {
		rows[i] = []any{
			r.VehicleID,
			r.Timestamp,
			r.Latitude,
			r.Longitude,
			r.SpeedKmh,
			r.LoadKg,
			r.CO2Grams,
			r.CO2RateGPerKm,
			r.CumulativeCO2Kg,
			r.FuelEfficiencyKmL,
			string(r.Status),
		}
	}

	_, err := p.db.CopyFrom(ctx, pgx.Identifier{"emission_logs"}, emissionColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("copy %d emission rows: %w", len(recs), err)
	}
	return nil
}

func (p *Postgres) WriteAlerts(ctx context.Context, alerts []fleet.Alert) error {
	for _, a := range alerts {
		_, err := p.db.Exec(ctx, `
			INSERT INTO vehicle_alerts
				(alert_id, vehicle_id, alert_type, severity, message, latitude, longitude, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (alert_id) DO NOTHING
		`, a.AlertID, a.VehicleID, string(a.AlertType), string(a.Severity), a.Message, a.Latitude, a.Longitude, a.Timestamp)
		if err != nil {
			return fmt.Errorf("insert alert %s: %w", a.AlertID, err)
		}
	}
	return nil
}

func (p *Postgres) WriteChats(ctx context.Context, entries []chat.Entry) error {
	for _, e := range entries {
		fleetContext, err := json.Marshal(e.FleetSummary)
		if err != nil {
			return err
		}
		_, err = p.db.Exec(ctx, `
			INSERT INTO chat_history
				(message_id, user_query, ai_response, citations, fleet_context, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (message_id) DO NOTHING
		`, e.MessageID, e.Query, e.Response, e.Citations, string(fleetContext), e.Timestamp)
		if err != nil {
			return fmt.Errorf("insert chat %s: %w", e.MessageID, err)
		}
	}
	return nil
}
