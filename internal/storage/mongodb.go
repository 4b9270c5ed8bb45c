package storage

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"chatbridge/config"
)

const defaultMongoDatabase = "chatbridge"

func openMongoDB(ctx context.Context, cfg config.MongoDBConfig) (*DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("MongoDB URL is required")
	}
	dbName := cfg.Database
	if dbName == "" {
		dbName = defaultMongoDatabase
	}

	opts := options.Client().ApplyURI(cfg.URL).SetAppName(appName).SetConnectTimeout(connectTimeout)
	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pctx, cancel := pingContext(ctx)
	defer cancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &DB{Backend: TypeMongoDB, Mongo: client.Database(dbName), mongoClient: client}, nil
}
