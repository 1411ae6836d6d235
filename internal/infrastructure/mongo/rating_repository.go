package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// RatingRepository は評価の保存とカフェ集計の更新を MongoDB のトランザクションで扱う。
type RatingRepository struct {
	client  *mongo.Client
	ratings *mongo.Collection
	cafes   *mongo.Collection
	votes   *HelpfulVoteRepository
}

// NewRatingRepository は評価・カフェ・Helpful 投票のコレクションを束縛したリポジトリを構築する。
// トランザクションを使うため client はレプリカセットに接続されている必要がある。
func NewRatingRepository(client *mongo.Client, db *mongo.Database, ratingCollection, cafeCollection, helpfulCollection string) *RatingRepository {
	return &RatingRepository{
		client:  client,
		ratings: db.Collection(ratingCollection),
		cafes:   db.Collection(cafeCollection),
		votes:   NewHelpfulVoteRepository(db, helpfulCollection),
	}
}

// NewID は保存前に評価 ID を採番する。画像パスに使うため先に決める。
func (r *RatingRepository) NewID() string {
	return primitive.NewObjectID().Hex()
}

// CreateWithAggregate は評価の挿入とカフェ集計の読み取り・再計算・書き戻しを 1 トランザクションで行う。
// 同じカフェへの同時書き込みは書き込み競合となり、ドライバがトランザクションごと再試行する。
func (r *RatingRepository) CreateWithAggregate(ctx context.Context, rating *domain.Rating, opts application.AggregateOptions) (*domain.RatingAggregate, error) {
	ratingID, err := primitive.ObjectIDFromHex(rating.ID)
	if err != nil {
		return nil, fmt.Errorf("invalid rating id: %w", err)
	}
	cafeID, err := primitive.ObjectIDFromHex(strings.TrimSpace(rating.CafeID))
	if err != nil {
		return nil, application.ErrCafeNotFound
	}

	doc := RatingDocument{
		ID:         ratingID,
		CafeID:     cafeID,
		UserID:     rating.UserID,
		UserName:   rating.UserName,
		UserAvatar: rating.UserAvatar,
		Rating:     rating.Stars,
		Comment:    rating.Comment,
		Tags:       nonNil(rating.Tags),
		Images:     nonNil(rating.Images),
		Helpful:    0,
		CreatedAt:  rating.CreatedAt,
		UpdatedAt:  rating.UpdatedAt,
	}

	session, err := r.client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		if _, err := r.ratings.InsertOne(sc, doc); err != nil {
			return nil, err
		}

		var cafe struct {
			Rating RatingAggregateDocument `bson:"rating"`
		}
		findOpts := options.FindOne().SetProjection(bson.M{"rating": 1})
		err := r.cafes.FindOne(sc, bson.M{"_id": cafeID}, findOpts).Decode(&cafe)
		if errors.Is(err, mongo.ErrNoDocuments) {
			if opts.AllowOrphan {
				return nil, nil
			}
			return nil, application.ErrCafeNotFound
		}
		if err != nil {
			return nil, err
		}

		next, err := aggregateFromDocument(cafe.Rating).Apply(rating.Stars)
		if err != nil {
			return nil, err
		}
		update := bson.M{"$set": bson.M{
			"rating":    aggregateToDocument(next),
			"updatedAt": time.Now().UTC(),
		}}
		if _, err := r.cafes.UpdateOne(sc, bson.M{"_id": cafeID}, update); err != nil {
			return nil, err
		}
		return &next, nil
	}, txnOpts)
	if err != nil {
		return nil, err
	}

	agg, _ := result.(*domain.RatingAggregate)
	return agg, nil
}

// FindByCafe は新しい順に評価を返す。
func (r *RatingRepository) FindByCafe(ctx context.Context, cafeID string, limit int) ([]domain.Rating, error) {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(cafeID))
	if err != nil {
		return []domain.Rating{}, nil
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.ratings.Find(ctx, bson.M{"cafeId": objectID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ratings := make([]domain.Rating, 0)
	for cursor.Next(ctx) {
		var doc RatingDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ratings = append(ratings, mapRatingDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return ratings, nil
}

// IncrementHelpful は Helpful 投票のトグルを記録し、実際に変化があった場合のみカウンタを増減する。
// 投票の記録とカウンタ更新は 1 トランザクションで行い、片方だけ残ることはない。
func (r *RatingRepository) IncrementHelpful(ctx context.Context, ratingID, voterID string, inc bool) (int, error) {
	ratingObjID, err := primitive.ObjectIDFromHex(strings.TrimSpace(ratingID))
	if err != nil {
		return 0, application.ErrRatingNotFound
	}
	voterObjID, err := primitive.ObjectIDFromHex(strings.TrimSpace(voterID))
	if err != nil {
		return 0, err
	}

	session, err := r.client.StartSession()
	if err != nil {
		return 0, err
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())

	result, err := session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		var current RatingDocument
		if err := r.ratings.FindOne(sc, bson.M{"_id": ratingObjID}).Decode(&current); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return 0, application.ErrRatingNotFound
			}
			return 0, err
		}

		changed, err := r.votes.Upsert(sc, ratingObjID, voterObjID, inc)
		if err != nil {
			return 0, err
		}
		if !changed {
			return current.Helpful, nil
		}

		delta := 1
		if !inc {
			delta = -1
		}
		var updated RatingDocument
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		if err := r.ratings.FindOneAndUpdate(sc, bson.M{"_id": ratingObjID}, bson.M{"$inc": bson.M{"helpful": delta}}, opts).Decode(&updated); err != nil {
			return 0, err
		}
		return updated.Helpful, nil
	}, txnOpts)
	if err != nil {
		return 0, err
	}

	helpful, _ := result.(int)
	return helpful, nil
}

// StarCounts は保存済み評価を星ごとに集計する。集計の再構築に使う。
func (r *RatingRepository) StarCounts(ctx context.Context, cafeID string) (map[int]int, error) {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(cafeID))
	if err != nil {
		return nil, fmt.Errorf("invalid cafe id: %w", err)
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"cafeId": objectID}}},
		{{Key: "$group", Value: bson.M{
			"_id":   "$rating",
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.ratings.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	counts := make(map[int]int)
	for cursor.Next(ctx) {
		var row struct {
			Stars int `bson:"_id"`
			Count int `bson:"count"`
		}
		if err := cursor.Decode(&row); err != nil {
			return nil, err
		}
		counts[row.Stars] = row.Count
	}
	return counts, cursor.Err()
}

func mapRatingDocument(doc RatingDocument) domain.Rating {
	return domain.Rating{
		ID:         doc.ID.Hex(),
		CafeID:     doc.CafeID.Hex(),
		UserID:     doc.UserID,
		UserName:   doc.UserName,
		UserAvatar: doc.UserAvatar,
		Stars:      doc.Rating,
		Comment:    doc.Comment,
		Tags:       nonNil(doc.Tags),
		Images:     nonNil(doc.Images),
		Helpful:    doc.Helpful,
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}
