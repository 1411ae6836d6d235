package application

import (
	"context"
	"sort"
	"strings"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

const (
	DefaultSearchLimit  = 20
	DefaultPopularLimit = 10
	MaxListLimit        = 100
)

// cafeQueryService is the concrete implementation of CafeQueryService.
type cafeQueryService struct {
	repo CafeRepository
}

// NewCafeQueryService creates a new café query service.
func NewCafeQueryService(repo CafeRepository) CafeQueryService {
	return &cafeQueryService{repo: repo}
}

// Search narrows by name prefix in the store, then by tags in process.
// The tag filter runs after the limit, so a page may hold fewer than limit
// cafés even when more matches exist further down.
func (s *cafeQueryService) Search(ctx context.Context, term string, tags []string, limit int) ([]domain.Cafe, error) {
	limit = clampLimit(limit, DefaultSearchLimit)
	term = strings.TrimSpace(term)

	var (
		cafes []domain.Cafe
		err   error
	)
	if term != "" {
		cafes, err = s.repo.FindByNamePrefix(ctx, term, limit)
	} else {
		cafes, err = s.repo.FindTopRated(ctx, limit)
	}
	if err != nil {
		return nil, err
	}

	if len(tags) == 0 {
		return cafes, nil
	}
	filtered := make([]domain.Cafe, 0, len(cafes))
	for _, cafe := range cafes {
		if cafe.HasAnyTag(tags) {
			filtered = append(filtered, cafe)
		}
	}
	return filtered, nil
}

func (s *cafeQueryService) Popular(ctx context.Context, limit int) ([]domain.Cafe, error) {
	cafes, err := s.repo.FindPopular(ctx, clampLimit(limit, DefaultPopularLimit))
	if err != nil {
		return nil, err
	}
	SortPopular(cafes)
	return cafes, nil
}

func (s *cafeQueryService) Detail(ctx context.Context, id string) (*domain.Cafe, error) {
	return s.repo.FindByID(ctx, id)
}

// SortPopular orders cafés by average desc, count desc, then oldest first,
// then id, so equal ratings always come back in the same order.
func SortPopular(cafes []domain.Cafe) {
	sort.SliceStable(cafes, func(i, j int) bool {
		a, b := cafes[i], cafes[j]
		if a.Rating.Average != b.Rating.Average {
			return a.Rating.Average > b.Rating.Average
		}
		if a.Rating.Count != b.Rating.Count {
			return a.Rating.Count > b.Rating.Count
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

func clampLimit(limit, fallback int) int {
	if limit <= 0 {
		return fallback
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}
