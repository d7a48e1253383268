package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/firstcodebyte/artvista-canvas-commerce/internal/cart/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// abandoned carts expire after 90 days
const cartTTL = 90 * 24 * time.Hour

type MongoRepository struct {
	collection *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{collection: db.Collection("carts")}
}

func (m *MongoRepository) GetCart(ctx context.Context, userID string) (*domain.Snapshot, error) {
	var snapshot domain.Snapshot

	err := m.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&snapshot)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &snapshot, nil
}

func (m *MongoRepository) SaveCart(ctx context.Context, snapshot *domain.Snapshot) error {
	if snapshot.UpdatedAt.IsZero() {
		snapshot.UpdatedAt = time.Now().UTC()
	}
	items := snapshot.Items
	if items == nil {
		items = []domain.CartItem{}
	}

	filter := bson.M{"user_id": snapshot.UserID}
	update := bson.M{
		"$set": bson.M{
			"items":      items,
			"updated_at": snapshot.UpdatedAt,
		},
		"$setOnInsert": bson.M{"created_at": snapshot.UpdatedAt},
	}

	if _, err := m.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true)); err != nil {
		return fmt.Errorf("failed to upsert cart: %w", err)
	}
	return nil
}

// DeleteCart is idempotent: a missing cart is not an error.
func (m *MongoRepository) DeleteCart(ctx context.Context, userID string) error {
	if _, err := m.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}
	return nil
}

func (m *MongoRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(cartTTL.Seconds())),
		},
	}

	if _, err := m.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
