package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backend-pathgreen/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrMongoNotConfigured = errors.New("mongo uri not provided")

// ConnectMongo returns the archive database, or ErrMongoNotConfigured when
// MONGO_URI is empty.
func ConnectMongo(cfg config.Config) (*mongo.Database, error) {
	if cfg.MongoURI == "" {
		return nil, ErrMongoNotConfigured
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client.Database(cfg.MongoDatabase), nil
}
