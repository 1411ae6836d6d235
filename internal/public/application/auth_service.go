package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// AuthService covers account registration, sign-in and sign-out.
type AuthService interface {
	RegisterUser(ctx context.Context, sess *Session, cmd RegisterUserCommand) (*AuthResult, error)
	LoginUser(ctx context.Context, sess *Session, email, password string) (*AuthResult, error)
	LogoutUser(ctx context.Context, sess *Session, token string) error
	LoginWithProvider(ctx context.Context, sess *Session, provider domain.Provider, idToken string) (*SocialLoginResult, error)
	HandleRedirectResult(ctx context.Context, sess *Session, state, idToken string) (*SocialLoginResult, error)
	CurrentUser(ctx context.Context, principalID string) (*domain.User, error)
}

// RegisterUserCommand carries the email sign-up form.
type RegisterUserCommand struct {
	Email    string
	Password string
	Name     string
	Username string
	Type     domain.AccountType
	Bio      string
}

// AuthResult is returned by every completed sign-in.
type AuthResult struct {
	User  *domain.User
	Token AccessToken
}

// SocialLoginResult is either a completed sign-in or, for the redirect
// flow, a pending one the client finishes at RedirectURL.
type SocialLoginResult struct {
	AuthResult
	IsNewUser   bool
	Pending     bool
	State       string
	RedirectURL string
}

// AuthServiceConfig wires the authentication service.
type AuthServiceConfig struct {
	Users      UserRepository
	Identities IdentityStore
	Tokens     TokenIssuer
	Verifier   SocialVerifier
	Pending    PendingSignInStore
	Flow       SocialFlow
	// AuthorizeURLs are the provider pages the redirect flow sends clients to.
	AuthorizeURLs map[domain.Provider]string
	RedirectTTL   time.Duration
	Logger        *zap.Logger
	Now           func() time.Time
}

type authService struct {
	users      UserRepository
	identities IdentityStore
	tokens     TokenIssuer
	verifier   SocialVerifier
	pending    PendingSignInStore
	social     socialStrategy
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates the authentication service. The social flow is
// fixed here for the lifetime of the process.
func NewAuthService(cfg AuthServiceConfig) (AuthService, error) {
	svc := &authService{
		users:      cfg.Users,
		identities: cfg.Identities,
		tokens:     cfg.Tokens,
		verifier:   cfg.Verifier,
		pending:    cfg.Pending,
		logger:     cfg.Logger,
		now:        cfg.Now,
	}
	if svc.logger == nil {
		svc.logger = zap.NewNop()
	}
	if svc.now == nil {
		svc.now = time.Now
	}

	strategy, err := newSocialStrategy(cfg)
	if err != nil {
		return nil, err
	}
	svc.social = strategy
	return svc, nil
}

func (s *authService) RegisterUser(ctx context.Context, sess *Session, cmd RegisterUserCommand) (*AuthResult, error) {
	email := normalizeEmail(cmd.Email)
	principalID, err := s.identities.CreatePasswordCredential(ctx, email, cmd.Password)
	if err != nil {
		return nil, err
	}

	accountType := cmd.Type
	if accountType == "" {
		accountType = domain.AccountTypeNormal
	}
	now := s.now().UTC()
	user := &domain.User{
		ID:        principalID,
		Email:     email,
		Name:      strings.TrimSpace(cmd.Name),
		Username:  strings.TrimSpace(cmd.Username),
		Type:      accountType,
		Bio:       cmd.Bio,
		CreatedAt: now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user document: %w", err)
	}

	return s.complete(ctx, sess, user)
}

func (s *authService) LoginUser(ctx context.Context, sess *Session, email, password string) (*AuthResult, error) {
	principalID, err := s.identities.VerifyPassword(ctx, normalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, principalID)
	if err != nil {
		return nil, err
	}
	return s.complete(ctx, sess, user)
}

// LogoutUser signs the session out and revokes token when one is given.
func (s *authService) LogoutUser(ctx context.Context, sess *Session, token string) error {
	sess.SignOut(ctx)
	if token == "" {
		return nil
	}
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *authService) LoginWithProvider(ctx context.Context, sess *Session, provider domain.Provider, idToken string) (*SocialLoginResult, error) {
	if _, err := domain.ParseProvider(string(provider)); err != nil {
		return nil, ErrUnsupportedProvider
	}
	return s.social.begin(ctx, s, sess, provider, idToken)
}

// HandleRedirectResult finishes a redirect sign-in started by LoginWithProvider.
func (s *authService) HandleRedirectResult(ctx context.Context, sess *Session, state, idToken string) (*SocialLoginResult, error) {
	if s.pending == nil || state == "" {
		return nil, ErrPendingStateNotFound
	}
	provider, err := s.pending.Consume(ctx, state)
	if err != nil {
		return nil, err
	}
	identity, err := s.verifier.Verify(ctx, provider, idToken)
	if err != nil {
		return nil, err
	}
	return s.resolveSocial(ctx, sess, identity)
}

func (s *authService) CurrentUser(ctx context.Context, principalID string) (*domain.User, error) {
	return s.users.FindByID(ctx, principalID)
}

// resolveSocial maps a verified provider identity onto a principal and user
// document, creating the document on first sign-in.
func (s *authService) resolveSocial(ctx context.Context, sess *Session, identity SocialIdentity) (*SocialLoginResult, error) {
	principalID, _, err := s.identities.ResolveFederated(ctx, identity.Provider, identity.Subject, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("resolve federated identity: %w", err)
	}

	now := s.now().UTC()
	isNew := false
	user, err := s.users.FindByID(ctx, principalID)
	switch {
	case errors.Is(err, ErrUserNotFound):
		user = newSocialUser(principalID, identity, now)
		if err := s.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("create user document: %w", err)
		}
		isNew = true
		s.logger.Info("social user created",
			zap.String("userId", principalID),
			zap.String("provider", string(identity.Provider)),
		)
	case err != nil:
		return nil, err
	default:
		if err := s.users.TouchLastLogin(ctx, principalID, now); err != nil {
			return nil, fmt.Errorf("update last login: %w", err)
		}
		user.LastLogin = &now
	}

	result, err := s.complete(ctx, sess, user)
	if err != nil {
		return nil, err
	}
	return &SocialLoginResult{AuthResult: *result, IsNewUser: isNew}, nil
}

func (s *authService) complete(ctx context.Context, sess *Session, user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(*user)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	sess.SignIn(ctx, user.ID)
	return &AuthResult{User: user, Token: token}, nil
}

func newSocialUser(principalID string, identity SocialIdentity, now time.Time) *domain.User {
	name := strings.TrimSpace(identity.DisplayName)
	if name == "" {
		name = identity.Provider.DisplayName() + " user"
	}
	return &domain.User{
		ID:        principalID,
		Email:     identity.Email,
		Name:      name,
		Username:  domain.GenerateUsername(identity.DisplayName),
		Type:      domain.AccountTypeNormal,
		Avatar:    identity.PhotoURL,
		Provider:  identity.Provider.DisplayName(),
		CreatedAt: now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
