// Command migrate creates the tables written by the Postgres sink and read
// by the analytics endpoints. Every statement is idempotent.
package main

import (
	"context"
	"fmt"
	"os"

	"backend-pathgreen/internal/config"
	"backend-pathgreen/internal/db"
	"backend-pathgreen/internal/logging"

	"github.com/rs/zerolog/log"
)

type step struct {
	label string
	sql   string
}

var schema = []step{
	{
		label: "emission_logs table",
		sql: `
			CREATE TABLE IF NOT EXISTS emission_logs (
				id                   BIGSERIAL        PRIMARY KEY,
				vehicle_id           TEXT             NOT NULL,
				recorded_at          TIMESTAMPTZ      NOT NULL,
				latitude             DOUBLE PRECISION NOT NULL,
				longitude            DOUBLE PRECISION NOT NULL,
				speed_kmh            DOUBLE PRECISION NOT NULL DEFAULT 0,
				load_kg              DOUBLE PRECISION NOT NULL DEFAULT 0,
				co2_grams            DOUBLE PRECISION NOT NULL DEFAULT 0,
				co2_rate_g_per_km    DOUBLE PRECISION NOT NULL DEFAULT 0,
				cumulative_co2_kg    DOUBLE PRECISION NOT NULL DEFAULT 0,
				fuel_efficiency_km_l DOUBLE PRECISION NOT NULL DEFAULT 0,
				status               TEXT             NOT NULL,
				CONSTRAINT chk_emission_status CHECK (
					status IN ('MOVING', 'IDLE', 'WARNING', 'CRITICAL')
				)
			);`,
	},
	{
		label: "vehicle_alerts table",
		sql: `
			CREATE TABLE IF NOT EXISTS vehicle_alerts (
				id         BIGSERIAL        PRIMARY KEY,
				alert_id   UUID             NOT NULL UNIQUE,
				vehicle_id TEXT             NOT NULL,
				alert_type TEXT             NOT NULL,
				severity   TEXT             NOT NULL,
				message    TEXT             NOT NULL DEFAULT '',
				latitude   DOUBLE PRECISION,
				longitude  DOUBLE PRECISION,
				created_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
				CONSTRAINT chk_alert_type CHECK (
					alert_type IN ('HIGH_EMISSION', 'HIGH_IDLE', 'EMISSION_SPIKE')
				),
				CONSTRAINT chk_severity CHECK (
					severity IN ('INFO', 'WARNING', 'CRITICAL')
				)
			);`,
	},
	{
		label: "chat_history table",
		sql: `
			CREATE TABLE IF NOT EXISTS chat_history (
				id            BIGSERIAL   PRIMARY KEY,
				message_id    UUID        NOT NULL UNIQUE,
				user_query    TEXT        NOT NULL,
				ai_response   TEXT        NOT NULL,
				citations     TEXT[]      NOT NULL DEFAULT '{}',
				fleet_context JSONB,
				created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);`,
	},
	{
		label: "idx_emission_vehicle_time",
		sql: `CREATE INDEX IF NOT EXISTS idx_emission_vehicle_time
			  ON emission_logs (vehicle_id, recorded_at DESC);`,
	},
	{
		label: "idx_emission_time",
		sql: `CREATE INDEX IF NOT EXISTS idx_emission_time
			  ON emission_logs (recorded_at DESC);`,
	},
	{
		label: "idx_alerts_vehicle",
		sql: `CREATE INDEX IF NOT EXISTS idx_alerts_vehicle
			  ON vehicle_alerts (vehicle_id, created_at DESC);`,
	},
	{
		label: "idx_chat_time",
		sql: `CREATE INDEX IF NOT EXISTS idx_chat_time
			  ON chat_history (created_at DESC);`,
	},
}

var tables = []string{"emission_logs", "vehicle_alerts", "chat_history"}

// Migrate applies the schema in order and then checks every table exists.
func Migrate(ctx context.Context, q db.Querier) error {
	for _, s := range schema {
		if _, err := q.Exec(ctx, s.sql); err != nil {
			return fmt.Errorf("%s: %w", s.label, err)
		}
		log.Info().Str("step", s.label).Msg("applied")
	}

	for _, table := range tables {
		var exists bool
		err := q.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.tables
				WHERE table_name = $1
			)
		`, table).Scan(&exists)
		if err != nil {
			return fmt.Errorf("verify %s: %w", table, err)
		}
		if !exists {
			return fmt.Errorf("table %s was not created", table)
		}
	}
	return nil
}

func run(cfg config.Config) error {
	if cfg.PostgresURL == "" {
		return fmt.Errorf("POSTGRES_URL is not set")
	}
	pool, err := db.ConnectPostgres(cfg)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	return Migrate(context.Background(), pool)
}

func main() {
	cfg := config.Load()
	logging.Setup(cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg); err != nil {
		log.Error().Err(err).Msg("migration failed")
		os.Exit(1)
	}
	log.Info().Int("tables", len(tables)).Msg("database initialised")
}
