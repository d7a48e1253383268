package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const pingTimeout = 3 * time.Second

// ConnectMongoDB opens the cart store and verifies the primary is reachable.
// The client is disconnected again when the ping fails.
func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("artvista-storefront").
		SetRetryWrites(true).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxConnIdleTime(2*time.Minute).
		SetMaxPoolSize(32))
	if err != nil {
		return nil, fmt.Errorf("connect cart store: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping cart store %q: %w", database, err)
	}

	return client.Database(database), nil
}
