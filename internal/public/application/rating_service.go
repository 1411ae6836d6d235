package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

const DefaultRatingsLimit = 20

// RatingServiceConfig wires the rating command service.
type RatingServiceConfig struct {
	Ratings      RatingRepository
	Cafes        CafeRepository
	Blobs        BlobStore
	Recorder     SubmissionRecorder
	Logger       *zap.Logger
	AllowOrphans bool
	Now          func() time.Time
}

type ratingCommandService struct {
	ratings      RatingRepository
	cafes        CafeRepository
	blobs        BlobStore
	recorder     SubmissionRecorder
	logger       *zap.Logger
	allowOrphans bool
	now          func() time.Time
}

// NewRatingCommandService creates the rating aggregator.
func NewRatingCommandService(cfg RatingServiceConfig) RatingCommandService {
	svc := &ratingCommandService{
		ratings:      cfg.Ratings,
		cafes:        cfg.Cafes,
		blobs:        cfg.Blobs,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		allowOrphans: cfg.AllowOrphans,
		now:          cfg.Now,
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

// Submit stores a rating and folds it into the café aggregate atomically.
// Image uploads are best-effort: a failed upload is skipped and the rating
// is stored with the URLs that did succeed.
func (s *ratingCommandService) Submit(ctx context.Context, cmd SubmitRatingCommand) (*domain.Rating, error) {
	if !domain.ValidStars(cmd.Stars) {
		return nil, ErrInvalidStars
	}

	if !s.allowOrphans {
		if _, err := s.cafes.FindByID(ctx, cmd.CafeID); err != nil {
			return nil, err
		}
	}

	ratingID := s.ratings.NewID()
	images := s.uploadImages(ctx, cmd.CafeID, ratingID, cmd.Images)

	now := s.now().UTC()
	rating := &domain.Rating{
		ID:         ratingID,
		CafeID:     cmd.CafeID,
		UserID:     cmd.AuthorID,
		UserName:   cmd.AuthorName,
		UserAvatar: cmd.AuthorAvatar,
		Stars:      cmd.Stars,
		Comment:    cmd.Comment,
		Tags:       append([]string{}, cmd.Tags...),
		Images:     images,
		Helpful:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if _, err := s.ratings.CreateWithAggregate(ctx, rating, AggregateOptions{AllowOrphan: s.allowOrphans}); err != nil {
		if errors.Is(err, ErrCafeNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("create rating: %w", err)
	}

	s.recorder.RatingSubmitted(rating.Stars)
	return rating, nil
}

func (s *ratingCommandService) uploadImages(ctx context.Context, cafeID, ratingID string, uploads []ImageUpload) []string {
	if len(uploads) == 0 || s.blobs == nil {
		return []string{}
	}

	urls := make([]string, 0, len(uploads))
	for i, upload := range uploads {
		key := RatingImageKey(cafeID, ratingID, i, s.now())
		url, err := s.blobs.Upload(ctx, key, upload.Data, contentTypeOrJPEG(upload.ContentType))
		if err != nil {
			s.logger.Warn("rating image upload failed",
				zap.String("cafeId", cafeID),
				zap.String("ratingId", ratingID),
				zap.Int("index", i),
				zap.Error(err),
			)
			s.recorder.ImageUploadFailed("rating")
			continue
		}
		urls = append(urls, url)
	}
	return urls
}

func (s *ratingCommandService) ToggleHelpful(ctx context.Context, ratingID, voterID string, helpful bool) (int, error) {
	return s.ratings.IncrementHelpful(ctx, ratingID, voterID, helpful)
}

// RatingImageKey builds the blob path of the index-th image of a rating.
func RatingImageKey(cafeID, ratingID string, index int, at time.Time) string {
	return fmt.Sprintf("rating-images/%s/%s/image_%d_%d.jpg", cafeID, ratingID, index, at.UnixMilli())
}

func contentTypeOrJPEG(contentType string) string {
	if contentType == "" {
		return "image/jpeg"
	}
	return contentType
}

// ratingQueryService implements RatingQueryService.
type ratingQueryService struct {
	repo RatingRepository
}

// NewRatingQueryService creates a new RatingQueryService.
func NewRatingQueryService(repo RatingRepository) RatingQueryService {
	return &ratingQueryService{repo: repo}
}

// ListByCafe returns the newest ratings first.
func (s *ratingQueryService) ListByCafe(ctx context.Context, cafeID string, limit int) ([]domain.Rating, error) {
	return s.repo.FindByCafe(ctx, cafeID, clampLimit(limit, DefaultRatingsLimit))
}
