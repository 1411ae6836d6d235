package application

import (
	"context"
	"time"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// CafeRepository abstracts read access to cafés.
// CafeRepository は Public コンテキストでカフェを読み取るためのポート。
type CafeRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Cafe, error)
	// FindByNamePrefix returns cafés whose name falls in [prefix, prefix+"\uf8ff"), ordered by name.
	FindByNamePrefix(ctx context.Context, prefix string, limit int) ([]domain.Cafe, error)
	// FindTopRated orders by rating average descending.
	FindTopRated(ctx context.Context, limit int) ([]domain.Cafe, error)
	// FindPopular orders by average desc, count desc, createdAt asc, id asc.
	FindPopular(ctx context.Context, limit int) ([]domain.Cafe, error)
}

// RatingRepository handles rating reads/writes.
// RatingRepository は評価の保存と、カフェ集計のトランザクション更新を担うポート。
type RatingRepository interface {
	NewID() string
	// CreateWithAggregate stores rating and folds it into the café aggregate in one transaction.
	CreateWithAggregate(ctx context.Context, rating *domain.Rating, opts AggregateOptions) (*domain.RatingAggregate, error)
	FindByCafe(ctx context.Context, cafeID string, limit int) ([]domain.Rating, error)
	IncrementHelpful(ctx context.Context, ratingID, voterID string, inc bool) (int, error)
}

// AggregateOptions tunes CreateWithAggregate.
type AggregateOptions struct {
	// AllowOrphan commits the rating even when the café document is missing,
	// leaving no aggregate change. Off by default.
	AllowOrphan bool
}

// BlobStore accepts binary uploads keyed by path and returns a retrievable URL.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// UserRepository persists user profile documents.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	FindByID(ctx context.Context, id string) (*domain.User, error)
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// IdentityStore authenticates principals and hands out stable ids.
type IdentityStore interface {
	CreatePasswordCredential(ctx context.Context, email, password string) (string, error)
	VerifyPassword(ctx context.Context, email, password string) (string, error)
	// ResolveFederated finds or creates the principal bound to provider+subject.
	ResolveFederated(ctx context.Context, provider domain.Provider, subject, email string) (principalID string, created bool, err error)
}

// AccessToken is a signed bearer token handed to clients.
type AccessToken struct {
	Value     string
	ExpiresAt time.Time
}

// TokenIssuer signs and revokes access tokens.
type TokenIssuer interface {
	Issue(user domain.User) (AccessToken, error)
	Revoke(ctx context.Context, token string) error
}

// SocialIdentity is what a provider asserts about a signed-in principal.
type SocialIdentity struct {
	Provider    domain.Provider
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
}

// SocialVerifier validates provider-issued ID tokens.
type SocialVerifier interface {
	Verify(ctx context.Context, provider domain.Provider, idToken string) (SocialIdentity, error)
}

// PendingSignInStore keeps redirect-flow state until the result comes back.
type PendingSignInStore interface {
	Save(ctx context.Context, state string, provider domain.Provider, ttl time.Duration) error
	// Consume returns the provider bound to state and forgets it. Unknown or
	// expired state yields ErrPendingStateNotFound.
	Consume(ctx context.Context, state string) (domain.Provider, error)
}

// SubmissionRecorder observes rating submissions for metrics.
type SubmissionRecorder interface {
	RatingSubmitted(stars int)
	ImageUploadFailed(kind string)
}

type nopRecorder struct{}

func (nopRecorder) RatingSubmitted(int) {}
func (nopRecorder) ImageUploadFailed(string) {}

// CafeQueryService describes café read use-cases.
// CafeQueryService はカフェ検索・人気順・詳細のユースケースを提供するリーダーモデル。
type CafeQueryService interface {
	Search(ctx context.Context, term string, tags []string, limit int) ([]domain.Cafe, error)
	Popular(ctx context.Context, limit int) ([]domain.Cafe, error)
	Detail(ctx context.Context, id string) (*domain.Cafe, error)
}

// RatingQueryService describes rating read use-cases.
type RatingQueryService interface {
	ListByCafe(ctx context.Context, cafeID string, limit int) ([]domain.Rating, error)
}

// RatingCommandService handles writing use-cases.
type RatingCommandService interface {
	Submit(ctx context.Context, cmd SubmitRatingCommand) (*domain.Rating, error)
	ToggleHelpful(ctx context.Context, ratingID, voterID string, helpful bool) (int, error)
}

// SubmitRatingCommand captures an authenticated rating submission.
type SubmitRatingCommand struct {
	CafeID       string
	AuthorID     string
	AuthorName   string
	AuthorAvatar string
	Stars        int
	Comment      string
	Tags         []string
	Images       []ImageUpload
}

// ImageUpload is one image attached to a submission.
type ImageUpload struct {
	Data        []byte
	ContentType string
}
