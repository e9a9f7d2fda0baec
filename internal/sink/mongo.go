package sink

import (
	"context"
	"fmt"
	"time"

	"backend-pathgreen/internal/chat"
	"backend-pathgreen/internal/fleet"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Inserter is the part of *mongo.Collection the archive uses.
type Inserter interface {
	InsertMany(ctx context.Context, documents []interface{}, opts ...*options.InsertManyOptions) (*mongo.InsertManyResult, error)
}

type recordDoc struct {
	VehicleID         string    `bson:"vehicle_id"`
	Timestamp         time.Time `bson:"timestamp"`
	Latitude          float64   `bson:"latitude"`
	Longitude         float64   `bson:"longitude"`
	SpeedKmh          float64   `bson:"speed_kmh"`
	LoadKg            float64   `bson:"load_kg"`
	CO2Grams          float64   `bson:"co2_grams"`
	CO2RateGPerKm     float64   `bson:"co2_rate_g_per_km"`
	CumulativeCO2Kg   float64   `bson:"cumulative_co2_kg"`
	FuelEfficiencyKmL float64   `bson:"fuel_efficiency_km_l"`
	Status            string    `bson:"status"`
	IdleSeconds       float64   `bson:"idle_seconds"`
}

type alertDoc struct {
	AlertID   string    `bson:"_id"`
	VehicleID string    `bson:"vehicle_id"`
	Timestamp time.Time `bson:"timestamp"`
	AlertType string    `bson:"alert_type"`
	Severity  string    `bson:"severity"`
	Message   string    `bson:"message"`
	Latitude  float64   `bson:"latitude"`
	Longitude float64   `bson:"longitude"`
}

type chatDoc struct {
	MessageID    string    `bson:"_id"`
	Query        string    `bson:"query"`
	Response     string    `bson:"response"`
	Citations    []string  `bson:"citations"`
	FleetSummary []string  `bson:"fleet_summary"`
	Timestamp    time.Time `bson:"timestamp"`
}

// Mongo archives every record, alert and chat as documents.
type Mongo struct {
	records Inserter
	alerts  Inserter
	chats   Inserter
}

func NewMongo(database *mongo.Database) *Mongo {
	return &Mongo{
		records: database.Collection("emission_archive"),
		alerts:  database.Collection("alert_archive"),
		chats:   database.Collection("chat_archive"),
	}
}

func (m *Mongo) Name() string { return "mongo" }

func (m *Mongo) WriteRecords(ctx context.Context, recs []fleet.EmissionRecord) error {
	docs := make([]interface{}, 0, len(recs))
	for _, r := range recs {
		docs = append(docs, recordDoc{
			VehicleID:         r.VehicleID,
			Timestamp:         r.Timestamp,
			Latitude:          r.Latitude,
			Longitude:         r.Longitude,
			SpeedKmh:          r.SpeedKmh,
			LoadKg:            r.LoadKg,
			CO2Grams:          r.CO2Grams,
			CO2RateGPerKm:     r.CO2RateGPerKm,
			CumulativeCO2Kg:   r.CumulativeCO2Kg,
			FuelEfficiencyKmL: r.FuelEfficiencyKmL,
			Status:            string(r.Status),
			IdleSeconds:       r.IdleSeconds,
		})
	}
	return insert(ctx, m.records, "records", docs)
}

func (m *Mongo) WriteAlerts(ctx context.Context, alerts []fleet.Alert) error {
	docs := make([]interface{}, 0, len(alerts))
	for _, a := range alerts {
		docs = append(docs, alertDoc{
			AlertID:   a.AlertID,
			VehicleID: a.VehicleID,
			Timestamp: a.Timestamp,
			AlertType: string(a.AlertType),
			Severity:  string(a.Severity),
			Message:   a.Message,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
		})
	}
	return insert(ctx, m.alerts, "alerts", docs)
}

func (m *Mongo) WriteChats(ctx context.Context, entries []chat.Entry) error {
	docs := make([]interface{}, 0, len(entries))
	for _, e := range entries {
		docs = append(docs, chatDoc{
			MessageID:    e.MessageID,
			Query:        e.Query,
			Response:     e.Response,
			Citations:    e.Citations,
			FleetSummary: e.FleetSummary,
			Timestamp:    e.Timestamp,
		})
	}
	return insert(ctx, m.chats, "chats", docs)
}

func insert(ctx context.Context, coll Inserter, kind string, docs []interface{}) error {
	if len(docs) == 0 {
		return nil
	}
	// unordered so one duplicate id does not stop the rest of the batch
	_, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("archive %d %s: %w", len(docs), kind, err)
	}
	return nil
}
