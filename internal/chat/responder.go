package chat

import (
	"context"
	"fmt"
	"strings"

	"backend-pathgreen/internal/fleet"
)

// Prompt is everything a responder gets for one query.
type Prompt struct {
	Query        string
	FleetSummary []string
	Context      string
	Snapshot     fleet.Snapshot
}

type Responder interface {
	Respond(ctx context.Context, p Prompt) (string, error)
}

// OfflineResponder answers from the fleet snapshot and retrieved regulation
// text without calling a language model.
type OfflineResponder struct{}

func (OfflineResponder) Respond(ctx context.Context, p Prompt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Fleet has %d vehicles.", len(p.Snapshot.Vehicles))

	counts := map[fleet.Status]int{}
	var totalKg float64
	for _, v := range p.Snapshot.Vehicles {
		counts[v.Status]++
		totalKg += v.CumulativeCO2Kg
	}
	if n := counts[fleet.StatusCritical]; n > 0 {
		fmt.Fprintf(&b, " ⚠️ %d vehicle(s) in CRITICAL status.", n)
	}
	if n := counts[fleet.StatusWarning]; n > 0 {
		fmt.Fprintf(&b, " %d vehicle(s) in WARNING status.", n)
	}
	fmt.Fprintf(&b, " Total emitted so far: %.2f kg CO₂.", totalKg)

	if id := mentionedVehicle(p.Query, p.Snapshot); id != "" {
		v, _ := p.Snapshot.Vehicle(id)
		fmt.Fprintf(&b, "\n\n%s is %s at %.1f km/h, %.1f g/km, %.2f kg CO₂ total.",
			v.VehicleID, v.Status, v.SpeedKmh, v.CO2RateGPerKm, v.CumulativeCO2Kg)
	}

	if len(p.Snapshot.Alerts) > 0 {
		latest := p.Snapshot.Alerts[0]
		fmt.Fprintf(&b, "\n\nLatest alert: %s", latest.Message)
	}

	if p.Context != "" {
		fmt.Fprintf(&b, "\n\nRelevant regulation:\n%s", firstSection(p.Context))
	}
	return b.String(), nil
}

// FleetSummary renders one line per vehicle for prompt context.
func FleetSummary(snap fleet.Snapshot) []string {
	lines := make([]string, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		lines = append(lines, fmt.Sprintf("%s: %s at (%.4f, %.4f), CO₂=%.0fg",
			v.VehicleID, v.Status, v.Latitude, v.Longitude, v.CO2Grams))
	}
	return lines
}

func mentionedVehicle(query string, snap fleet.Snapshot) string {
	upper := strings.ToUpper(query)
	for _, v := range snap.Vehicles {
		if strings.Contains(upper, strings.ToUpper(v.VehicleID)) {
			return v.VehicleID
		}
	}
	return ""
}

func firstSection(context string) string {
	first, _, _ := strings.Cut(context, "\n\n---\n\n")
	return first
}
