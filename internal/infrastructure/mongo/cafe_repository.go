package mongo

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// prefixSentinel は BMP 私用領域の最大コードポイント。接頭辞の後ろに付けると、
// その接頭辞で始まるすべての文字列の上限になる。
const prefixSentinel = "\uf8ff"

// CafeRepository は公開向け Cafe 参照の Mongo 実装。
type CafeRepository struct {
	collection *mongo.Collection
}

// NewCafeRepository は MongoDB コレクションを束縛した CafeRepository を生成する。
func NewCafeRepository(db *mongo.Database, collectionName string) *CafeRepository {
	return &CafeRepository{collection: db.Collection(collectionName)}
}

// FindByID は ID に一致するカフェを 1 件返す。
func (r *CafeRepository) FindByID(ctx context.Context, id string) (*domain.Cafe, error) {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return nil, application.ErrCafeNotFound
	}
	var doc CafeDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, application.ErrCafeNotFound
		}
		return nil, err
	}
	cafe := mapCafeDocument(doc)
	return &cafe, nil
}

// FindByNamePrefix は name ∈ [prefix, prefix+sentinel) の範囲検索。大文字小文字は区別する。
func (r *CafeRepository) FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Cafe, error) {
	filter := bson.M{"name": bson.M{"$gte": prefix, "$lt": prefix + prefixSentinel}}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

// FindTopRated は評価平均の降順。
func (r *CafeRepository) FindTopRated(ctx context.Context, limit int) ([]domain.Cafe, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "rating.average", Value: -1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

// FindPopular は平均・件数の降順、同点は登録の古い順、最後に _id で確定させる。
func (r *CafeRepository) FindPopular(ctx context.Context, limit int) ([]domain.Cafe, error) {
	opts := options.Find().
		SetSort(bson.D{
			{Key: "rating.average", Value: -1},
			{Key: "rating.count", Value: -1},
			{Key: "createdAt", Value: 1},
			{Key: "_id", Value: 1},
		}).
		SetLimit(int64(limit))
	return r.find(ctx, bson.M{}, opts)
}

func (r *CafeRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Cafe, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	cafes := make([]domain.Cafe, 0)
	for cursor.Next(ctx) {
		var doc CafeDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		cafes = append(cafes, mapCafeDocument(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return cafes, nil
}

func mapCafeDocument(doc CafeDocument) domain.Cafe {
	return domain.Cafe{
		ID:          doc.ID.Hex(),
		Name:        doc.Name,
		Description: doc.Description,
		Location:    doc.Location,
		Tags:        nonNil(doc.Tags),
		Menu: domain.Menu{
			Drinks:   nonNil(doc.Menu.Drinks),
			Food:     nonNil(doc.Menu.Food),
			Specials: nonNil(doc.Menu.Specials),
		},
		Contact: domain.Contact{
			Phone:     doc.Contact.Phone,
			Website:   doc.Contact.Website,
			Instagram: doc.Contact.Instagram,
		},
		Images:    nonNil(doc.Images),
		Rating:    aggregateFromDocument(doc.Rating),
		OwnerID:   doc.OwnerID,
		CreatedAt: timeOrZero(doc.CreatedAt),
		UpdatedAt: timeOrZero(doc.UpdatedAt),
	}
}
