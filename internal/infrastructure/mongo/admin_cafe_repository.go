package mongo

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sngm3741/cafe-club/api/internal/admin/application"
	admindomain "github.com/sngm3741/cafe-club/api/internal/admin/domain"
	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// AdminCafeRepository は管理者向け Cafe 集約の Mongo 実装。
type AdminCafeRepository struct {
	collection *mongo.Collection
}

// NewAdminCafeRepository は MongoDB コレクションを束縛した AdminCafeRepository を生成する。
func NewAdminCafeRepository(db *mongo.Database, collection string) *AdminCafeRepository {
	return &AdminCafeRepository{collection: db.Collection(collection)}
}

// Find はキーワードとオーナーで絞り込んだ管理者用のカフェ一覧を返す。
func (r *AdminCafeRepository) Find(ctx context.Context, filter application.CafeFilter, paging application.Paging) ([]admindomain.Cafe, error) {
	clauses := make([]bson.M, 0)
	if filter.OwnerID != "" {
		clauses = append(clauses, bson.M{"ownerId": filter.OwnerID})
	}
	if filter.Keyword != "" {
		regex := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Keyword), Options: "i"}
		clauses = append(clauses, bson.M{"$or": bson.A{
			bson.M{"name": regex},
			bson.M{"location": regex},
		}})
	}
	mongoFilter := bson.M{}
	if len(clauses) == 1 {
		mongoFilter = clauses[0]
	} else if len(clauses) > 1 {
		mongoFilter["$and"] = clauses
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = paging.Limit
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	opts.SetLimit(int64(limit))
	if paging.Page > 1 {
		opts.SetSkip(int64((paging.Page - 1) * limit))
	}

	cursor, err := r.collection.Find(ctx, mongoFilter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	cafes := make([]admindomain.Cafe, 0)
	for cursor.Next(ctx) {
		var doc CafeDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		cafe, err := mapAdminCafe(doc)
		if err != nil {
			return nil, err
		}
		cafes = append(cafes, cafe)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return cafes, nil
}

// FindByID は 16 進 ObjectID を受け取り単一カフェを VO 化して返す。
func (r *AdminCafeRepository) FindByID(ctx context.Context, id string) (*admindomain.Cafe, error) {
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
	cafe, err := mapAdminCafe(doc)
	if err != nil {
		return nil, err
	}
	return &cafe, nil
}

func (r *AdminCafeRepository) NewID() string {
	return primitive.NewObjectID().Hex()
}

// Create はゼロ集計を含めてカフェを新規作成する。
func (r *AdminCafeRepository) Create(ctx context.Context, cafe *admindomain.Cafe) error {
	objectID, err := primitive.ObjectIDFromHex(cafe.ID)
	if err != nil {
		return err
	}
	createdAt := cafe.CreatedAt
	updatedAt := cafe.UpdatedAt
	doc := CafeDocument{
		ID:          objectID,
		Name:        cafe.Name.String(),
		Description: cafe.Description,
		Location:    cafe.Location.String(),
		Tags:        cafe.Tags.Strings(),
		Menu:        menuToDocument(cafe.Menu),
		Contact:     contactToDocument(cafe.Contact),
		Images:      cafe.Images.Strings(),
		Rating:      aggregateToDocument(cafe.Rating),
		OwnerID:     cafe.OwnerID,
		CreatedAt:   &createdAt,
		UpdatedAt:   &updatedAt,
	}
	_, err = r.collection.InsertOne(ctx, doc)
	return err
}

// Update は説明的なフィールドのみを $set する。rating は書き換えない。
func (r *AdminCafeRepository) Update(ctx context.Context, cafe *admindomain.Cafe) error {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(cafe.ID))
	if err != nil {
		return application.ErrCafeNotFound
	}
	updatedAt := cafe.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	update := bson.M{"$set": bson.M{
		"name":        cafe.Name.String(),
		"description": cafe.Description,
		"location":    cafe.Location.String(),
		"tags":        cafe.Tags.Strings(),
		"menu":        menuToDocument(cafe.Menu),
		"contact":     contactToDocument(cafe.Contact),
		"updatedAt":   updatedAt,
	}}
	result, err := r.collection.UpdateByID(ctx, objectID, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return application.ErrCafeNotFound
	}
	return nil
}

// ListIDs は全カフェの ID を返す。集計の定期照合で使う。
func (r *AdminCafeRepository) ListIDs(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	ids := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		ids = append(ids, doc.ID.Hex())
	}
	return ids, cursor.Err()
}

// ReplaceAggregate は再構築した集計で rating を丸ごと置き換える。
// 読み取り後に評価が確定していれば rating.count がずれるので、件数一致を条件に更新する。
func (r *AdminCafeRepository) ReplaceAggregate(ctx context.Context, id string, expectedCount int, agg publicdomain.RatingAggregate) error {
	objectID, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return application.ErrCafeNotFound
	}
	filter := bson.M{"_id": objectID, "rating.count": expectedCount}
	if expectedCount == 0 {
		// 集計未作成の旧ドキュメントも 0 件として扱う。
		filter = bson.M{"_id": objectID, "$or": bson.A{
			bson.M{"rating.count": 0},
			bson.M{"rating.count": bson.M{"$exists": false}},
		}}
	}
	update := bson.M{"$set": bson.M{
		"rating":    aggregateToDocument(agg),
		"updatedAt": time.Now().UTC(),
	}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	exists, err := r.collection.CountDocuments(ctx, bson.M{"_id": objectID}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if exists == 0 {
		return application.ErrCafeNotFound
	}
	return application.ErrAggregateChanged
}

// mapAdminCafe は Mongo ドキュメントを Admin ドメインの Cafe に変換する。
// 保存済みデータは名前と場所以外を寛容に扱う。
func mapAdminCafe(doc CafeDocument) (admindomain.Cafe, error) {
	name, err := admindomain.NewCafeName(doc.Name)
	if err != nil {
		return admindomain.Cafe{}, err
	}
	location, _ := admindomain.NewLocation(doc.Location)
	tags, err := admindomain.NewTagList(doc.Tags)
	if err != nil {
		tags = nil
	}
	menu, err := admindomain.NewMenu(doc.Menu.Drinks, doc.Menu.Food, doc.Menu.Specials)
	if err != nil {
		return admindomain.Cafe{}, err
	}
	photos, err := admindomain.NewPhotoURLList(doc.Images, 0)
	if err != nil {
		return admindomain.Cafe{}, err
	}

	return admindomain.Cafe{
		ID:          doc.ID.Hex(),
		Name:        name,
		Description: doc.Description,
		Location:    location,
		Tags:        tags,
		Menu:        menu,
		Contact: admindomain.Contact{
			Phone:     admindomain.Phone(doc.Contact.Phone),
			Website:   admindomain.URL(doc.Contact.Website),
			Instagram: admindomain.InstagramHandle(doc.Contact.Instagram),
		},
		Images:    photos,
		Rating:    aggregateFromDocument(doc.Rating),
		OwnerID:   doc.OwnerID,
		CreatedAt: timeOrZero(doc.CreatedAt),
		UpdatedAt: timeOrZero(doc.UpdatedAt),
	}, nil
}

func menuToDocument(menu admindomain.Menu) MenuDocument {
	return MenuDocument{
		Drinks:   menu.Drinks.Strings(),
		Food:     menu.Food.Strings(),
		Specials: menu.Specials.Strings(),
	}
}

func contactToDocument(contact admindomain.Contact) ContactDocument {
	return ContactDocument{
		Phone:     contact.Phone.String(),
		Website:   contact.Website.String(),
		Instagram: contact.Instagram.String(),
	}
}
