package telemetry

import (
	"math/rand"
	"time"

	"backend-pathgreen/internal/fleet"
	"backend-pathgreen/internal/shared/geo"
)

type ReplayConfig struct {
	Vehicles []string
	Routes   []Route
	Seed     int64

	SpeedMinKmh float64
	SpeedMaxKmh float64
	SpeedJitter float64

	// IdleProbability is the per-poll chance that a moving vehicle stops.
	IdleProbability float64
	IdleMin         time.Duration
	IdleMax         time.Duration

	// ScriptedIdle vehicles never move; they exercise the idle alerts.
	ScriptedIdle []string

	LoadMinKg        float64
	LoadMaxKg        float64
	LoadChangeChance float64
}

func DefaultReplayConfig(seed int64) ReplayConfig {
	return ReplayConfig{
		Vehicles:         DefaultVehicles,
		Routes:           BangaloreRoutes,
		Seed:             seed,
		SpeedMinKmh:      20,
		SpeedMaxKmh:      70,
		SpeedJitter:      5,
		IdleProbability:  0.05,
		IdleMin:          30 * time.Second,
		IdleMax:          180 * time.Second,
		ScriptedIdle:     []string{"TRK-104"},
		LoadMinKg:        800,
		LoadMaxKg:        2500,
		LoadChangeChance: 0.02,
	}
}

type replayVehicle struct {
	id        string
	route     Route
	waypoint  int
	progress  float64
	speed     float64
	load      float64
	idleUntil time.Time
	scripted  bool
	lastPoll  time.Time
}

// RouteReplay drives every configured vehicle around its route. The same
// seed and poll times always produce the same samples.
type RouteReplay struct {
	cfg      ReplayConfig
	rng      *rand.Rand
	vehicles []*replayVehicle
}

func NewRouteReplay(cfg ReplayConfig) *RouteReplay {
	if len(cfg.Routes) == 0 {
		cfg.Routes = BangaloreRoutes
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	scripted := make(map[string]bool, len(cfg.ScriptedIdle))
	for _, id := range cfg.ScriptedIdle {
		scripted[id] = true
	}

	vehicles := make([]*replayVehicle, 0, len(cfg.Vehicles))
	for i, id := range cfg.Vehicles {
		v := &replayVehicle{
			id:       id,
			route:    cfg.Routes[i%len(cfg.Routes)],
			load:     uniform(rng, cfg.LoadMinKg, cfg.LoadMaxKg),
			scripted: scripted[id],
		}
		if !v.scripted {
			v.speed = uniform(rng, cfg.SpeedMinKmh, cfg.SpeedMaxKmh)
		}
		vehicles = append(vehicles, v)
	}
	return &RouteReplay{cfg: cfg, rng: rng, vehicles: vehicles}
}

func (r *RouteReplay) Poll(now time.Time) []fleet.Sample {
	samples := make([]fleet.Sample, 0, len(r.vehicles))
	for _, v := range r.vehicles {
		if !v.lastPoll.IsZero() && !now.After(v.lastPoll) {
			continue
		}
		elapsed := time.Duration(0)
		if !v.lastPoll.IsZero() {
			elapsed = now.Sub(v.lastPoll)
		}
		v.lastPoll = now
		r.advance(v, now, elapsed)

		lat, lng := v.position()
		samples = append(samples, fleet.Sample{
			VehicleID: v.id,
			Timestamp: now,
			Latitude:  lat,
			Longitude: lng,
			SpeedKmh:  v.speed,
			LoadKg:    v.load,
		})
	}
	return samples
}

func (r *RouteReplay) advance(v *replayVehicle, now time.Time, elapsed time.Duration) {
	if r.rng.Float64() < r.cfg.LoadChangeChance {
		v.load = uniform(r.rng, r.cfg.LoadMinKg, r.cfg.LoadMaxKg)
	}
	if v.scripted {
		v.speed = 0
		return
	}

	if now.Before(v.idleUntil) {
		v.speed = 0
		return
	}
	if v.speed == 0 {
		v.speed = uniform(r.rng, r.cfg.SpeedMinKmh, r.cfg.SpeedMaxKmh)
	}
	if r.rng.Float64() < r.cfg.IdleProbability {
		span := r.cfg.IdleMax - r.cfg.IdleMin
		idle := r.cfg.IdleMin
		if span > 0 {
			idle += time.Duration(r.rng.Int63n(int64(span)))
		}
		v.idleUntil = now.Add(idle)
		v.speed = 0
		return
	}

	v.speed += uniform(r.rng, -r.cfg.SpeedJitter, r.cfg.SpeedJitter)
	v.speed = clamp(v.speed, r.cfg.SpeedMinKmh, r.cfg.SpeedMaxKmh)

	km := v.speed * elapsed.Hours()
	for hops := 0; km > 0 && hops <= len(v.route.Waypoints); {
		from, to := v.segment()
		length := geo.HaversineKm(from[0], from[1], to[0], to[1])
		if length == 0 {
			v.next()
			hops++
			continue
		}
		hops = 0
		left := (1 - v.progress) * length
		if km < left {
			v.progress += km / length
			return
		}
		km -= left
		v.next()
	}
}

func (v *replayVehicle) segment() ([2]float64, [2]float64) {
	wps := v.route.Waypoints
	return wps[v.waypoint], wps[(v.waypoint+1)%len(wps)]
}

func (v *replayVehicle) next() {
	v.progress = 0
	v.waypoint = (v.waypoint + 1) % len(v.route.Waypoints)
}

func (v *replayVehicle) position() (float64, float64) {
	from, to := v.segment()
	return geo.Interpolate(from[0], from[1], to[0], to[1], v.progress)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
