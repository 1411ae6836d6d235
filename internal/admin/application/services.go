package application

import (
	"context"
	"errors"

	admindomain "github.com/sngm3741/cafe-club/api/internal/admin/domain"
	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

var (
	ErrCafeNotFound = errors.New("cafe not found")
	ErrNotCafeOwner = errors.New("cafe belongs to another owner")
	ErrInvalidCafe  = errors.New("invalid cafe")
	// ErrAggregateChanged reports that a rating was committed between reading
	// and replacing a café aggregate.
	ErrAggregateChanged = errors.New("cafe aggregate changed concurrently")
)

// CafeRepository exposes admin operations on cafés.
type CafeRepository interface {
	Find(ctx context.Context, filter CafeFilter, paging Paging) ([]admindomain.Cafe, error)
	FindByID(ctx context.Context, id string) (*admindomain.Cafe, error)
	NewID() string
	Create(ctx context.Context, cafe *admindomain.Cafe) error
	// Update writes descriptive fields only and never touches the rating aggregate.
	Update(ctx context.Context, cafe *admindomain.Cafe) error
	ListIDs(ctx context.Context) ([]string, error)
	// ReplaceAggregate overwrites the aggregate only while the stored rating
	// count still equals expectedCount.
	ReplaceAggregate(ctx context.Context, id string, expectedCount int, agg publicdomain.RatingAggregate) error
}

// RatingStatsRepository counts stored ratings per star value.
type RatingStatsRepository interface {
	StarCounts(ctx context.Context, cafeID string) (map[int]int, error)
}

// BlobStore uploads café images.
type BlobStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// Recorder observes admin side effects for metrics.
type Recorder interface {
	ImageUploadFailed(kind string)
	AggregateReconciled(changed bool)
}

type nopRecorder struct{}

func (nopRecorder) ImageUploadFailed(string) {}
func (nopRecorder) AggregateReconciled(bool) {}

// CafeFilter expresses admin search criteria.
type CafeFilter struct {
	Keyword string
	OwnerID string
	Limit   int
}

// Paging controls pagination.
type Paging struct {
	Page  int
	Limit int
}

// CafeService describes admin café use-cases.
type CafeService interface {
	List(ctx context.Context, filter CafeFilter, paging Paging) ([]admindomain.Cafe, error)
	Detail(ctx context.Context, id string) (*admindomain.Cafe, error)
	Register(ctx context.Context, cmd UpsertCafeCommand, images []ImageUpload) (*admindomain.Cafe, error)
	Update(ctx context.Context, id string, cmd UpsertCafeCommand) (*admindomain.Cafe, error)
	Reconcile(ctx context.Context, id string) (*publicdomain.RatingAggregate, error)
	ReconcileAll(ctx context.Context) (int, error)
}

// UpsertCafeCommand contains inputs for registering/updating cafés.
type UpsertCafeCommand struct {
	ActorID     string
	Name        string
	Description string
	Location    string
	Tags        []string
	Menu        MenuCommand
	Contact     ContactCommand
}

// MenuCommand holds the three menu sections.
type MenuCommand struct {
	Drinks   []string
	Food     []string
	Specials []string
}

// ContactCommand holds optional contact channels.
type ContactCommand struct {
	Phone     string
	Website   string
	Instagram string
}

// ImageUpload is one image attached to a café registration.
type ImageUpload struct {
	Data        []byte
	ContentType string
}
