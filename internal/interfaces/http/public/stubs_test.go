package public

import (
	"context"
	"sync"
	"time"

	publicapp "github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type stubCafes struct {
	cafes      []domain.Cafe
	err        error
	gotTerm    string
	gotTags    []string
	gotLimit   int
	detailByID map[string]domain.Cafe
}

func (s *stubCafes) Search(_ context.Context, term string, tags []string, limit int) ([]domain.Cafe, error) {
	s.gotTerm, s.gotTags, s.gotLimit = term, tags, limit
	return s.cafes, s.err
}

func (s *stubCafes) Popular(_ context.Context, limit int) ([]domain.Cafe, error) {
	s.gotLimit = limit
	return s.cafes, s.err
}

func (s *stubCafes) Detail(_ context.Context, id string) (*domain.Cafe, error) {
	c, ok := s.detailByID[id]
	if !ok {
		return nil, publicapp.ErrCafeNotFound
	}
	return &c, nil
}

type stubRatings struct {
	mu        sync.Mutex
	submitted []publicapp.SubmitRatingCommand
	submitErr error
	voters    []string
	toggleErr error
	list      []domain.Rating
}

func (s *stubRatings) ListByCafe(_ context.Context, _ string, _ int) ([]domain.Rating, error) {
	return s.list, nil
}

func (s *stubRatings) Submit(_ context.Context, cmd publicapp.SubmitRatingCommand) (*domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return nil, s.submitErr
	}
	s.submitted = append(s.submitted, cmd)
	return &domain.Rating{
		ID:        "rating-1",
		CafeID:    cmd.CafeID,
		UserID:    cmd.AuthorID,
		UserName:  cmd.AuthorName,
		Stars:     cmd.Stars,
		Comment:   cmd.Comment,
		Tags:      cmd.Tags,
		CreatedAt: time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC),
	}, nil
}

func (s *stubRatings) ToggleHelpful(_ context.Context, _ string, voterID string, helpful bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.toggleErr != nil {
		return 0, s.toggleErr
	}
	s.voters = append(s.voters, voterID)
	if helpful {
		return 1, nil
	}
	return 0, nil
}

type stubAuth struct {
	registerErr error
	gotRegister publicapp.RegisterUserCommand
	gotSession  *publicapp.Session
	social      *publicapp.SocialLoginResult
	socialErr   error
	logoutToken string
	user        *domain.User
}

func (s *stubAuth) result() *publicapp.AuthResult {
	return &publicapp.AuthResult{
		User:  s.user,
		Token: publicapp.AccessToken{Value: "token-" + s.user.ID, ExpiresAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
	}
}

func (s *stubAuth) RegisterUser(_ context.Context, sess *publicapp.Session, cmd publicapp.RegisterUserCommand) (*publicapp.AuthResult, error) {
	s.gotRegister, s.gotSession = cmd, sess
	if s.registerErr != nil {
		return nil, s.registerErr
	}
	return s.result(), nil
}

func (s *stubAuth) LoginUser(_ context.Context, sess *publicapp.Session, _, password string) (*publicapp.AuthResult, error) {
	s.gotSession = sess
	if password != "correct-horse" {
		return nil, publicapp.ErrInvalidCredentials
	}
	return s.result(), nil
}

func (s *stubAuth) LogoutUser(_ context.Context, _ *publicapp.Session, token string) error {
	s.logoutToken = token
	return nil
}

func (s *stubAuth) LoginWithProvider(_ context.Context, _ *publicapp.Session, _ domain.Provider, _ string) (*publicapp.SocialLoginResult, error) {
	return s.social, s.socialErr
}

func (s *stubAuth) HandleRedirectResult(_ context.Context, _ *publicapp.Session, _, _ string) (*publicapp.SocialLoginResult, error) {
	return nil, publicapp.ErrPendingStateNotFound
}

func (s *stubAuth) CurrentUser(_ context.Context, id string) (*domain.User, error) {
	if s.user == nil || s.user.ID != id {
		return nil, publicapp.ErrUserNotFound
	}
	return s.user, nil
}

type stubUsers struct {
	users map[string]*domain.User
}

func (s stubUsers) Create(context.Context, *domain.User) error { return nil }

func (s stubUsers) FindByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, publicapp.ErrUserNotFound
}

func (s stubUsers) TouchLastLogin(context.Context, string, time.Time) error { return nil }
