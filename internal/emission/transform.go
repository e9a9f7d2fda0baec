package emission

import (
	"errors"
	"fmt"
	"math"
	"time"

	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/shared/geo"

	"github.com/google/uuid"
)

var (
	ErrMalformedSample = errors.New("malformed telemetry sample")
	ErrOutOfOrder      = errors.New("out-of-order telemetry sample")
)

type Transformer struct {
	cfg   Config
	newID func() string
}

func NewTransformer(cfg Config) *Transformer {
	return &Transformer{cfg: cfg, newID: uuid.NewString}
}

func (t *Transformer) Config() Config {
	return t.cfg
}

// Apply derives the next record for sample.VehicleID from its previous record
// (nil for the first sample). The returned alert is non-nil only when the
// vehicle's violation changed to a new active condition on this tick.
func (t *Transformer) Apply(sample fleet.Sample, prev *fleet.EmissionRecord) (fleet.EmissionRecord, *fleet.Alert, error) {
	if err := validate(sample); err != nil {
		return fleet.EmissionRecord{}, nil, err
	}
	if prev != nil {
		if prev.VehicleID != sample.VehicleID {
			return fleet.EmissionRecord{}, nil, fmt.Errorf("%w: previous record belongs to %s", ErrMalformedSample, prev.VehicleID)
		}
		if !sample.Timestamp.After(prev.Timestamp) {
			return fleet.EmissionRecord{}, nil, fmt.Errorf("%w: %s at %s, last %s", ErrOutOfOrder,
				sample.VehicleID, sample.Timestamp.Format(time.RFC3339Nano), prev.Timestamp.Format(time.RFC3339Nano))
		}
	}

	dt := t.cfg.NominalInterval
	if prev != nil {
		dt = sample.Timestamp.Sub(prev.Timestamp)
	}
	if t.cfg.MaxTickGap > 0 && dt > t.cfg.MaxTickGap {
		dt = t.cfg.MaxTickGap
	}

	rec := fleet.EmissionRecord{
		VehicleID:     sample.VehicleID,
		Timestamp:     sample.Timestamp,
		Latitude:      sample.Latitude,
		Longitude:     sample.Longitude,
		SpeedKmh:      sample.SpeedKmh,
		LoadKg:        sample.LoadKg,
		AlertSeverity: fleet.SeverityInfo,
	}

	if t.stationary(sample.SpeedKmh) {
		charged := dt
		if t.cfg.IdleChargeCap > 0 && charged > t.cfg.IdleChargeCap {
			charged = t.cfg.IdleChargeCap
		}
		rec.CO2Grams = t.cfg.IdleGPerSecond * charged.Seconds()

		rec.IdleSince = sample.Timestamp
		if prev != nil && !prev.IdleSince.IsZero() {
			rec.IdleSince = prev.IdleSince
		}
		rec.IdleSeconds = sample.Timestamp.Sub(rec.IdleSince).Seconds()
	} else {
		rec.CO2RateGPerKm = t.Rate(sample.SpeedKmh, sample.LoadKg)
		distanceKm := sample.SpeedKmh * dt.Hours()
		rec.CO2Grams = rec.CO2RateGPerKm * distanceKm
		if rec.CO2RateGPerKm > 0 {
			rec.FuelEfficiencyKmL = t.cfg.DieselGPerLitre / rec.CO2RateGPerKm
		}
	}

	if prev != nil {
		rec.CumulativeCO2Kg = prev.CumulativeCO2Kg
	}
	rec.CumulativeCO2Kg += rec.CO2Grams / 1000

	rec.Status, rec.Violation = t.classify(rec)

	var prevViolation fleet.Violation
	if prev != nil {
		prevViolation = prev.Violation
	}
	if !rec.Violation.Active() || rec.Violation == prevViolation {
		return rec, nil, nil
	}

	alert := fleet.Alert{
		AlertID:   t.newID(),
		VehicleID: rec.VehicleID,
		Timestamp: rec.Timestamp,
		AlertType: rec.Violation.Type,
		Severity:  rec.Violation.Severity,
		Message:   t.message(rec),
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
	}
	rec.AlertType = alert.AlertType
	rec.AlertSeverity = alert.Severity
	rec.AlertMessage = alert.Message
	return rec, &alert, nil
}

// Rate returns the CO2 rate in g/km for a moving vehicle.
func (t *Transformer) Rate(speedKmh, loadKg float64) float64 {
	base := t.cfg.BaseGPerKm + loadKg/1000*t.cfg.LoadPenaltyGPerTonne
	return base * t.speedMultiplier(speedKmh)
}

func (t *Transformer) speedMultiplier(speedKmh float64) float64 {
	switch {
	case speedKmh < t.cfg.OptimalMinKmh:
		return 1 + t.cfg.LowSpeedPenaltyPct/100
	case speedKmh > t.cfg.OptimalMaxKmh:
		steps := math.Ceil((speedKmh - t.cfg.OptimalMaxKmh) / 10)
		return 1 + steps*t.cfg.HighSpeedPenaltyPct/100
	default:
		return 1
	}
}

func (t *Transformer) stationary(speedKmh float64) bool {
	return speedKmh < t.cfg.StationaryKmh
}

// classify is ordered by precedence; the first matching condition wins.
func (t *Transformer) classify(rec fleet.EmissionRecord) (fleet.Status, fleet.Violation) {
	idle := time.Duration(rec.IdleSeconds * float64(time.Second))
	switch {
	case t.overCeiling(rec):
		return fleet.StatusCritical, fleet.Violation{Type: fleet.AlertHighEmission, Severity: fleet.SeverityCritical}
	case t.cfg.IdleCritical > 0 && idle >= t.cfg.IdleCritical:
		return fleet.StatusCritical, fleet.Violation{Type: fleet.AlertHighIdle, Severity: fleet.SeverityCritical}
	case t.cfg.IdleWarning > 0 && idle >= t.cfg.IdleWarning:
		return fleet.StatusWarning, fleet.Violation{Type: fleet.AlertHighIdle, Severity: fleet.SeverityWarning}
	case !t.stationary(rec.SpeedKmh) && t.cfg.SpikeGPerKm > 0 && rec.CO2RateGPerKm > t.cfg.SpikeGPerKm:
		return fleet.StatusWarning, fleet.Violation{Type: fleet.AlertEmissionSpike, Severity: fleet.SeverityWarning}
	case t.stationary(rec.SpeedKmh):
		return fleet.StatusIdle, fleet.Violation{}
	default:
		return fleet.StatusMoving, fleet.Violation{}
	}
}

func (t *Transformer) overCeiling(rec fleet.EmissionRecord) bool {
	if t.cfg.CumulativeCeilingKg > 0 && rec.CumulativeCO2Kg > t.cfg.CumulativeCeilingKg {
		return true
	}
	return t.cfg.InstantCeilingG > 0 && rec.CO2Grams > t.cfg.InstantCeilingG
}

func (t *Transformer) message(rec fleet.EmissionRecord) string {
	idle := int(rec.IdleSeconds)
	switch rec.Violation {
	case fleet.Violation{Type: fleet.AlertHighIdle, Severity: fleet.SeverityCritical}:
		return fmt.Sprintf("%s has been idling for %ds. BS-VI Section 4.2.1 limits metro zone idling to 90s. Estimated waste: %.1fg CO₂",
			rec.VehicleID, idle, rec.IdleSeconds*t.cfg.IdleGPerSecond)
	case fleet.Violation{Type: fleet.AlertHighIdle, Severity: fleet.SeverityWarning}:
		return fmt.Sprintf("%s idling for %ds. Approaching BS-VI idle limit.", rec.VehicleID, idle)
	case fleet.Violation{Type: fleet.AlertEmissionSpike, Severity: fleet.SeverityWarning}:
		return fmt.Sprintf("%s emission rate %.1fg/km exceeds optimal threshold. Consider reducing speed or load.",
			rec.VehicleID, rec.CO2RateGPerKm)
	}
	if t.cfg.CumulativeCeilingKg > 0 && rec.CumulativeCO2Kg > t.cfg.CumulativeCeilingKg {
		return fmt.Sprintf("%s cumulative emissions %.1fkg CO₂ exceed the %.1fkg ceiling.",
			rec.VehicleID, rec.CumulativeCO2Kg, t.cfg.CumulativeCeilingKg)
	}
	return fmt.Sprintf("%s emitted %.1fg CO₂ in one reading, above the %.1fg ceiling.",
		rec.VehicleID, rec.CO2Grams, t.cfg.InstantCeilingG)
}

func validate(s fleet.Sample) error {
	switch {
	case s.VehicleID == "":
		return fmt.Errorf("%w: empty vehicle id", ErrMalformedSample)
	case s.Timestamp.IsZero():
		return fmt.Errorf("%w: %s has no timestamp", ErrMalformedSample, s.VehicleID)
	case !geo.ValidCoordinate(s.Latitude, s.Longitude):
		return fmt.Errorf("%w: %s coordinates %v,%v", ErrMalformedSample, s.VehicleID, s.Latitude, s.Longitude)
	case !finite(s.SpeedKmh) || s.SpeedKmh < 0:
		return fmt.Errorf("%w: %s speed %v", ErrMalformedSample, s.VehicleID, s.SpeedKmh)
	case !finite(s.LoadKg) || s.LoadKg < 0:
		return fmt.Errorf("%w: %s load %v", ErrMalformedSample, s.VehicleID, s.LoadKg)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
