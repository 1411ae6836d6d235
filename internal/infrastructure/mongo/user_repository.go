package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// UserRepository はプリンシパル ID をキーにユーザードキュメントを保存する。
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Database, collectionName string) *UserRepository {
	return &UserRepository{collection: db.Collection(collectionName)}
}

// Create は新規ユーザードキュメントを書き込む。stats は 0 で初期化される。
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	doc := UserDocument{
		ID:       user.ID,
		Email:    user.Email,
		Name:     user.Name,
		Username: user.Username,
		Type:     string(user.Type),
		Bio:      user.Bio,
		Avatar:   user.Avatar,
		Provider: user.Provider,
		Stats: UserStatsDocument{
			Reviews:   user.Stats.Reviews,
			Followers: user.Stats.Followers,
			Following: user.Stats.Following,
		},
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	}
	_, err := r.collection.InsertOne(ctx, doc)
	return err
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var doc UserDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, application.ErrUserNotFound
		}
		return nil, err
	}
	user := mapUserDocument(doc)
	return &user, nil
}

// TouchLastLogin は lastLogin だけを更新する。
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"lastLogin": at}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return application.ErrUserNotFound
	}
	return nil
}

func mapUserDocument(doc UserDocument) domain.User {
	accountType, err := domain.ParseAccountType(doc.Type)
	if err != nil {
		accountType = domain.AccountTypeNormal
	}
	return domain.User{
		ID:       doc.ID,
		Email:    doc.Email,
		Name:     doc.Name,
		Username: doc.Username,
		Type:     accountType,
		Bio:      doc.Bio,
		Avatar:   doc.Avatar,
		Provider: doc.Provider,
		Stats: domain.UserStats{
			Reviews:   doc.Stats.Reviews,
			Followers: doc.Stats.Followers,
			Following: doc.Stats.Following,
		},
		CreatedAt: doc.CreatedAt,
		LastLogin: doc.LastLogin,
	}
}
