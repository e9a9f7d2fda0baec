package emission

import "time"

// Config holds the emission curve and the compliance thresholds. Every value
// is tunable; DefaultConfig mirrors the BS-VI heavy diesel figures used by
// the fleet dashboards.
type Config struct {
	BaseGPerKm           float64
	LoadPenaltyGPerTonne float64
	OptimalMinKmh        float64
	OptimalMaxKmh        float64

	// LowSpeedPenaltyPct applies once below OptimalMinKmh.
	LowSpeedPenaltyPct float64

	// HighSpeedPenaltyPct applies per started 10 km/h above OptimalMaxKmh.
	HighSpeedPenaltyPct float64

	StationaryKmh   float64
	IdleGPerSecond  float64
	IdleChargeCap   time.Duration
	NominalInterval time.Duration
	MaxTickGap      time.Duration
	DieselGPerLitre float64

	IdleWarning time.Duration

	// IdleCritical of zero disables the idle CRITICAL level.
	IdleCritical time.Duration

	SpikeGPerKm         float64
	CumulativeCeilingKg float64
	InstantCeilingG     float64
}

func DefaultConfig() Config {
	return Config{
		BaseGPerKm:           650,
		LoadPenaltyGPerTonne: 25,
		OptimalMinKmh:        40,
		OptimalMaxKmh:        70,
		LowSpeedPenaltyPct:   30,
		HighSpeedPenaltyPct:  8,
		StationaryKmh:        1,
		IdleGPerSecond:       8.5,
		IdleChargeCap:        10 * time.Second,
		NominalInterval:      500 * time.Millisecond,
		MaxTickGap:           5 * time.Second,
		DieselGPerLitre:      2640,
		IdleWarning:          60 * time.Second,
		IdleCritical:         120 * time.Second,
		SpikeGPerKm:          900,
		CumulativeCeilingKg:  250,
		InstantCeilingG:      500,
	}
}
