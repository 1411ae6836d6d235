package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	admindomain "github.com/sngm3741/cafe-club/api/internal/admin/domain"
	publicdomain "github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// CafeServiceConfig wires the admin café service.
type CafeServiceConfig struct {
	Cafes    CafeRepository
	Ratings  RatingStatsRepository
	Blobs    BlobStore
	Recorder Recorder
	Logger   *zap.Logger
	Now      func() time.Time
}

// cafeService implements CafeService.
type cafeService struct {
	cafes    CafeRepository
	ratings  RatingStatsRepository
	blobs    BlobStore
	recorder Recorder
	logger   *zap.Logger
	now      func() time.Time
}

func NewCafeService(cfg CafeServiceConfig) CafeService {
	svc := &cafeService{
		cafes:    cfg.Cafes,
		ratings:  cfg.Ratings,
		blobs:    cfg.Blobs,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
		now:      cfg.Now,
	}
	if svc.recorder == nil {
		svc.recorder = nopRecorder{}
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc
}

func (s *cafeService) List(ctx context.Context, filter CafeFilter, paging Paging) ([]admindomain.Cafe, error) {
	return s.cafes.Find(ctx, filter, paging)
}

func (s *cafeService) Detail(ctx context.Context, id string) (*admindomain.Cafe, error) {
	return s.cafes.FindByID(ctx, id)
}

// Register creates a café with an empty rating aggregate. Images are
// uploaded best-effort before the document is written.
func (s *cafeService) Register(ctx context.Context, cmd UpsertCafeCommand, images []ImageUpload) (*admindomain.Cafe, error) {
	cafe, err := buildCafe(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCafe, err)
	}

	now := s.now().UTC()
	cafe.ID = s.cafes.NewID()
	cafe.OwnerID = cmd.ActorID
	cafe.Rating = publicdomain.NewRatingAggregate()
	cafe.CreatedAt = now
	cafe.UpdatedAt = now

	urls := s.uploadImages(ctx, cafe.ID, images)
	photos, err := admindomain.NewPhotoURLList(urls, 0)
	if err != nil {
		return nil, err
	}
	cafe.Images = photos

	if err := s.cafes.Create(ctx, cafe); err != nil {
		return nil, fmt.Errorf("create cafe: %w", err)
	}
	return cafe, nil
}

// Update replaces the descriptive fields of a café owned by the actor.
func (s *cafeService) Update(ctx context.Context, id string, cmd UpsertCafeCommand) (*admindomain.Cafe, error) {
	current, err := s.cafes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.OwnerID != "" && current.OwnerID != cmd.ActorID {
		return nil, ErrNotCafeOwner
	}

	cafe, err := buildCafe(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCafe, err)
	}
	cafe.ID = current.ID
	cafe.OwnerID = current.OwnerID
	cafe.Images = current.Images
	cafe.Rating = current.Rating
	cafe.CreatedAt = current.CreatedAt
	cafe.UpdatedAt = s.now().UTC()

	if err := s.cafes.Update(ctx, cafe); err != nil {
		return nil, fmt.Errorf("update cafe: %w", err)
	}
	return cafe, nil
}

// reconcileAttempts bounds retries when ratings keep landing mid-rebuild.
const reconcileAttempts = 3

// Reconcile rebuilds a café's aggregate from its stored ratings and writes
// it back when it has drifted. The write only lands if no rating was
// committed since the café was read; otherwise the rebuild starts over.
func (s *cafeService) Reconcile(ctx context.Context, id string) (*publicdomain.RatingAggregate, error) {
	var lastErr error
	for attempt := 0; attempt < reconcileAttempts; attempt++ {
		rebuilt, err := s.reconcileOnce(ctx, id)
		if err == nil {
			return rebuilt, nil
		}
		if !errors.Is(err, ErrAggregateChanged) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("rating aggregate changed during reconcile, retrying",
			zap.String("cafeId", id),
			zap.Int("attempt", attempt+1),
		)
	}
	return nil, lastErr
}

func (s *cafeService) reconcileOnce(ctx context.Context, id string) (*publicdomain.RatingAggregate, error) {
	current, err := s.cafes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.ratings.StarCounts(ctx, current.ID)
	if err != nil {
		return nil, fmt.Errorf("count ratings: %w", err)
	}

	rebuilt := publicdomain.AggregateFromBreakdown(counts)
	changed := !sameAggregate(current.Rating, rebuilt)
	if changed {
		if err := s.cafes.ReplaceAggregate(ctx, current.ID, current.Rating.Count, rebuilt); err != nil {
			return nil, fmt.Errorf("replace aggregate: %w", err)
		}
		s.logger.Info("rating aggregate reconciled",
			zap.String("cafeId", current.ID),
			zap.Int("previousCount", current.Rating.Count),
			zap.Int("count", rebuilt.Count),
			zap.Float64("previousAverage", current.Rating.Average),
			zap.Float64("average", rebuilt.Average),
		)
	}
	s.recorder.AggregateReconciled(changed)
	return &rebuilt, nil
}

// ReconcileAll reconciles every café and returns how many were processed.
// A failure on one café is logged and does not stop the run.
func (s *cafeService) ReconcileAll(ctx context.Context) (int, error) {
	ids, err := s.cafes.ListIDs(ctx)
	if err != nil {
		return 0, err
	}
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return done, err
		}
		if _, err := s.Reconcile(ctx, id); err != nil {
			s.logger.Warn("reconcile failed", zap.String("cafeId", id), zap.Error(err))
			continue
		}
		done++
	}
	return done, nil
}

func (s *cafeService) uploadImages(ctx context.Context, cafeID string, images []ImageUpload) []string {
	if len(images) == 0 || s.blobs == nil {
		return nil
	}
	urls := make([]string, 0, len(images))
	for i, img := range images {
		contentType := img.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		url, err := s.blobs.Upload(ctx, CafeImageKey(cafeID, i, s.now()), img.Data, contentType)
		if err != nil {
			s.logger.Warn("cafe image upload failed", zap.String("cafeId", cafeID), zap.Int("index", i), zap.Error(err))
			s.recorder.ImageUploadFailed("cafe")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

// CafeImageKey builds the blob path of the index-th image of a café.
func CafeImageKey(cafeID string, index int, at time.Time) string {
	return fmt.Sprintf("cafe-images/%s/image_%d_%d.jpg", cafeID, index, at.UnixMilli())
}

func buildCafe(cmd UpsertCafeCommand) (*admindomain.Cafe, error) {
	name, err := admindomain.NewCafeName(cmd.Name)
	if err != nil {
		return nil, err
	}
	location, err := admindomain.NewLocation(cmd.Location)
	if err != nil {
		return nil, err
	}
	description, err := admindomain.NewDescription(cmd.Description)
	if err != nil {
		return nil, err
	}
	tags, err := admindomain.NewTagList(cmd.Tags)
	if err != nil {
		return nil, err
	}
	menu, err := admindomain.NewMenu(cmd.Menu.Drinks, cmd.Menu.Food, cmd.Menu.Specials)
	if err != nil {
		return nil, err
	}
	contact, err := admindomain.NewContact(cmd.Contact.Phone, cmd.Contact.Website, cmd.Contact.Instagram)
	if err != nil {
		return nil, err
	}
	return &admindomain.Cafe{
		Name:        name,
		Description: description,
		Location:    location,
		Tags:        tags,
		Menu:        menu,
		Contact:     contact,
	}, nil
}

func sameAggregate(a, b publicdomain.RatingAggregate) bool {
	if a.Count != b.Count || a.Average != b.Average {
		return false
	}
	for stars := publicdomain.MinStars; stars <= publicdomain.MaxStars; stars++ {
		if a.Breakdown[stars] != b.Breakdown[stars] {
			return false
		}
	}
	return true
}
