package analytics

import (
	"context"
	"errors"

	"backend-pathgreen/internal/db"
)

const (
	EmissionLimit = 100
	AlertLimit    = 50
	ChatLimit     = 20
)

var ErrNoDatabase = errors.New("database not connected")

// Service pages the most recent rows written by the postgres sink.
type Service struct {
	db db.Querier
}

func NewService(q db.Querier) *Service {
	return &Service{db: q}
}

func (s *Service) Emissions(ctx context.Context) ([]EmissionLog, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `
		SELECT vehicle_id, co2_grams, cumulative_co2_kg, status, recorded_at
		FROM emission_logs
		ORDER BY recorded_at DESC
		LIMIT $1
	`, EmissionLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []EmissionLog{}
	for rows.Next() {
		var l EmissionLog
		if err := rows.Scan(&l.VehicleID, &l.CO2Grams, &l.CumulativeCO2Kg, &l.Status, &l.RecordedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) Alerts(ctx context.Context) ([]AlertLog, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `
		SELECT alert_id, vehicle_id, alert_type, severity, message, created_at
		FROM vehicle_alerts
		ORDER BY created_at DESC
		LIMIT $1
	`, AlertLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []AlertLog{}
	for rows.Next() {
		var l AlertLog
		if err := rows.Scan(&l.AlertID, &l.VehicleID, &l.AlertType, &l.Severity, &l.Message, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) ChatHistory(ctx context.Context) ([]ChatLog, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `
		SELECT user_query, ai_response, created_at
		FROM chat_history
		ORDER BY created_at DESC
		LIMIT $1
	`, ChatLimit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := []ChatLog{}
	for rows.Next() {
		var l ChatLog
		if err := rows.Scan(&l.UserQuery, &l.AIResponse, &l.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *Service) Summary(ctx context.Context) ([]VehicleSummary, error) {
	if s.db == nil {
		return nil, ErrNoDatabase
	}
	rows, err := s.db.Query(ctx, `
		SELECT vehicle_id, COUNT(*), COALESCE(MAX(cumulative_co2_kg),0),
		       COALESCE(AVG(NULLIF(co2_rate_g_per_km,0)),0), MAX(recorded_at)
		FROM emission_logs
		GROUP BY vehicle_id
		ORDER BY vehicle_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []VehicleSummary{}
	for rows.Next() {
		var v VehicleSummary
		if err := rows.Scan(&v.VehicleID, &v.Readings, &v.CumulativeCO2Kg, &v.AvgRateGPerKm, &v.LastSeen); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
