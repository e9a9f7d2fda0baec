package telemetry

import (
	"time"

	"backend-pathgreen/internal/fleet"
)

// Source yields the samples that became available since the previous poll.
// Poll is only ever called from the producer goroutine.
type Source interface {
	Poll(now time.Time) []fleet.Sample
}

// Route is a closed loop of waypoints a replayed vehicle drives around.
type Route struct {
	Name      string
	Waypoints [][2]float64
}

var BangaloreRoutes = []Route{
	{
		Name: "Electronic City Loop",
		Waypoints: [][2]float64{
			{12.8399, 77.6770},
			{12.8506, 77.6593},
			{12.8731, 77.6197},
			{12.9062, 77.5857},
			{12.9352, 77.6245},
		},
	},
	{
		Name: "Whitefield Express",
		Waypoints: [][2]float64{
			{12.9698, 77.7500},
			{12.9591, 77.7010},
			{12.9352, 77.6245},
			{12.9279, 77.5806},
			{12.9719, 77.5942},
		},
	},
	{
		Name: "Airport Cargo",
		Waypoints: [][2]float64{
			{13.1986, 77.7066},
			{13.0358, 77.5970},
			{12.9719, 77.5942},
			{12.9352, 77.6245},
			{12.9591, 77.7010},
		},
	},
	{
		Name: "Peenya Industrial",
		Waypoints: [][2]float64{
			{13.0285, 77.5192},
			{12.9914, 77.5520},
			{12.9716, 77.5946},
			{12.9279, 77.5806},
			{12.9062, 77.5857},
		},
	},
}

var DefaultVehicles = []string{"TRK-101", "TRK-102", "TRK-103", "TRK-104", "TRK-105"}
