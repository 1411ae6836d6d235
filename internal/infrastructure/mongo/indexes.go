package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes は起動時に必要なインデックスを作成する。既存のものはそのまま。
func EnsureIndexes(ctx context.Context, db *mongo.Database, c Collections) error {
	specs := map[string][]mongo.IndexModel{
		c.Cafes: {
			{Keys: bson.D{{Key: "name", Value: 1}}},
			{Keys: bson.D{
				{Key: "rating.average", Value: -1},
				{Key: "rating.count", Value: -1},
				{Key: "createdAt", Value: 1},
			}},
			{Keys: bson.D{{Key: "ownerId", Value: 1}}},
		},
		c.Ratings: {
			{Keys: bson.D{{Key: "cafeId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		c.Credentials: {
			{
				Keys: bson.D{{Key: "email", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"passwordHash": bson.M{"$exists": true}}),
			},
			{
				Keys: bson.D{{Key: "provider", Value: 1}, {Key: "subject", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"provider": bson.M{"$exists": true}}),
			},
		},
		c.HelpfulVotes: {
			{
				Keys:    bson.D{{Key: "ratingId", Value: 1}, {Key: "voterId", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}

	for collection, models := range specs {
		if collection == "" {
			continue
		}
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
