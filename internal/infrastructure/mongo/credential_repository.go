package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// CredentialRepository は Identity Store の Mongo 実装。パスワードは bcrypt で保存する。
type CredentialRepository struct {
	collection *mongo.Collection
	cost       int
}

func NewCredentialRepository(db *mongo.Database, collectionName string, bcryptCost int) *CredentialRepository {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &CredentialRepository{collection: db.Collection(collectionName), cost: bcryptCost}
}

// CreatePasswordCredential はメールアドレスの一意制約に違反した場合 ErrEmailTaken を返す。
func (r *CredentialRepository) CreatePasswordCredential(ctx context.Context, email, password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), r.cost)
	if err != nil {
		return "", err
	}
	doc := CredentialDocument{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", application.ErrEmailTaken
		}
		return "", err
	}
	return doc.ID, nil
}

// VerifyPassword は未登録・不一致のどちらも ErrInvalidCredentials にまとめる。
func (r *CredentialRepository) VerifyPassword(ctx context.Context, email, password string) (string, error) {
	var doc CredentialDocument
	filter := bson.M{"email": email, "passwordHash": bson.M{"$exists": true}}
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", application.ErrInvalidCredentials
		}
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(doc.PasswordHash), []byte(password)); err != nil {
		return "", application.ErrInvalidCredentials
	}
	return doc.ID, nil
}

// ResolveFederated は provider+subject でプリンシパルを検索し、無ければ作成する。
func (r *CredentialRepository) ResolveFederated(ctx context.Context, provider domain.Provider, subject, email string) (string, bool, error) {
	candidate := uuid.NewString()
	filter := bson.M{"provider": string(provider), "subject": subject}
	update := bson.M{"$setOnInsert": bson.M{
		"_id":       candidate,
		"email":     email,
		"createdAt": time.Now().UTC(),
	}}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc CredentialDocument
	if err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc); err != nil {
		if !mongo.IsDuplicateKeyError(err) {
			return "", false, err
		}
		// 同時作成に負けた側は既存のプリンシパルを読み直す
		if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
			return "", false, err
		}
		return doc.ID, false, nil
	}
	return doc.ID, doc.ID == candidate, nil
}
