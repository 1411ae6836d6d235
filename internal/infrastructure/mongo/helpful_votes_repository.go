package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// HelpfulVoteRepository は評価ごと・投票者ごとの Helpful 投票を保存する。
type HelpfulVoteRepository struct {
	collection *mongo.Collection
}

// NewHelpfulVoteRepository は投票コレクションを束縛したリポジトリを生成する。
func NewHelpfulVoteRepository(db *mongo.Database, collectionName string) *HelpfulVoteRepository {
	return &HelpfulVoteRepository{collection: db.Collection(collectionName)}
}

// Upsert は投票状態を望む状態に揃え、状態が変わったときだけ true を返す。
// 同時の upsert が一意インデックスに衝突した場合は、既に投票済みとして変化なしを返す。
func (r *HelpfulVoteRepository) Upsert(ctx context.Context, ratingID, voterID primitive.ObjectID, desiredState bool) (bool, error) {
	filter := bson.M{"ratingId": ratingID, "voterId": voterID}

	if !desiredState {
		result, err := r.collection.DeleteOne(ctx, filter)
		if err != nil {
			return false, err
		}
		return result.DeletedCount > 0, nil
	}

	update := bson.M{"$setOnInsert": bson.M{"createdAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if mongo.IsDuplicateKeyError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return result.UpsertedCount > 0, nil
}
