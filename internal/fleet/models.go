package fleet

import "time"

type Status string

const (
	StatusMoving   Status = "MOVING"
	StatusIdle     Status = "IDLE"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

type AlertType string

const (
	AlertHighIdle      AlertType = "HIGH_IDLE"
	AlertEmissionSpike AlertType = "EMISSION_SPIKE"
	AlertHighEmission  AlertType = "HIGH_EMISSION"
)

// Sample is one raw telemetry reading for a vehicle.
type Sample struct {
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	SpeedKmh  float64   `json:"speed_kmh"`
	LoadKg    float64   `json:"load_kg"`
}

// Violation is the compliance condition a vehicle is currently in.
// The zero value means the vehicle is compliant.
type Violation struct {
	Type     AlertType `json:"type,omitempty"`
	Severity Severity  `json:"severity,omitempty"`
}

func (v Violation) Active() bool {
	return v.Type != ""
}

// EmissionRecord is the latest derived state of one vehicle.
type EmissionRecord struct {
	VehicleID         string    `json:"vehicle_id"`
	Timestamp         time.Time `json:"timestamp"`
	Latitude          float64   `json:"latitude"`
	Longitude         float64   `json:"longitude"`
	SpeedKmh          float64   `json:"speed_kmh"`
	LoadKg            float64   `json:"load_kg"`
	CO2Grams          float64   `json:"co2_grams"`
	CO2RateGPerKm     float64   `json:"co2_rate_g_per_km"`
	CumulativeCO2Kg   float64   `json:"cumulative_co2_kg"`
	FuelEfficiencyKmL float64   `json:"fuel_efficiency_km_l"`
	Status            Status    `json:"status"`
	IdleSeconds       float64   `json:"idle_seconds"`
	IdleSince         time.Time `json:"idle_since"`
	Violation         Violation `json:"violation"`
	AlertType         AlertType `json:"alert_type,omitempty"`
	AlertSeverity     Severity  `json:"alert_severity"`
	AlertMessage      string    `json:"alert_message,omitempty"`
}

type Alert struct {
	AlertID   string    `json:"alert_id"`
	VehicleID string    `json:"vehicle_id"`
	Timestamp time.Time `json:"timestamp"`
	AlertType AlertType `json:"alert_type"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
}

// Snapshot is a point-in-time copy of the whole fleet state.
type Snapshot struct {
	Version  uint64           `json:"version"`
	TakenAt  time.Time        `json:"taken_at"`
	Vehicles []EmissionRecord `json:"vehicles"`
	Alerts   []Alert          `json:"alerts"`
}

// Vehicle returns the record for id, if present.
func (s Snapshot) Vehicle(id string) (EmissionRecord, bool) {
	for _, v := range s.Vehicles {
		if v.VehicleID == id {
			return v, true
		}
	}
	return EmissionRecord{}, false
}
