package analytics

import "time"

type EmissionLog struct {
	VehicleID       string    `json:"vehicle_id"`
	CO2Grams        float64   `json:"co2_grams"`
	CumulativeCO2Kg float64   `json:"cumulative_co2_kg"`
	Status          string    `json:"status"`
	RecordedAt      time.Time `json:"recorded_at"`
}

type AlertLog struct {
	AlertID   string    `json:"alert_id"`
	VehicleID string    `json:"vehicle_id"`
	AlertType string    `json:"alert_type"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

type ChatLog struct {
	UserQuery  string    `json:"user_query"`
	AIResponse string    `json:"ai_response"`
	CreatedAt  time.Time `json:"created_at"`
}

// VehicleSummary aggregates the logged readings of one vehicle.
type VehicleSummary struct {
	VehicleID       string    `json:"vehicle_id"`
	Readings        int64     `json:"readings"`
	CumulativeCO2Kg float64   `json:"cumulative_co2_kg"`
	AvgRateGPerKm   float64   `json:"avg_rate_g_per_km"`
	LastSeen        time.Time `json:"last_seen"`
}
