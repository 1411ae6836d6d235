// Package identity issues and verifies the JWTs used by the API and checks
// ID tokens presented by social providers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrRevokedToken = errors.New("access token has been revoked")
)

const leeway = 30 * time.Second

// Claims are carried by every access token.
type Claims struct {
	jwt.RegisteredClaims
	Name              string `json:"name,omitempty"`
	Picture           string `json:"picture,omitempty"`
	PreferredUsername string `json:"preferred_username,omitempty"`
	Email             string `json:"email,omitempty"`
	AccountType       string `json:"account_type,omitempty"`
}

// IssuerConfig pairs a trusted issuer with its HMAC secret.
type IssuerConfig struct {
	Issuer string
	Secret []byte
}

// RevocationList remembers revoked token ids until they expire.
type RevocationList interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// TokenService signs access tokens for this API and verifies bearer tokens
// from this API and any additional trusted issuers.
type TokenService struct {
	own      IssuerConfig
	trusted  []IssuerConfig
	audience string
	ttl      time.Duration
	revoked  RevocationList
	now      func() time.Time
}

var _ application.TokenIssuer = (*TokenService)(nil)

// TokenServiceConfig wires a TokenService.
type TokenServiceConfig struct {
	Own      IssuerConfig
	Trusted  []IssuerConfig
	Audience string
	TTL      time.Duration
	Revoked  RevocationList
	Now      func() time.Time
}

func NewTokenService(cfg TokenServiceConfig) (*TokenService, error) {
	if len(cfg.Own.Secret) == 0 {
		return nil, errors.New("token signing secret is required")
	}
	svc := &TokenService{
		own:      cfg.Own,
		trusted:  cfg.Trusted,
		audience: cfg.Audience,
		ttl:      cfg.TTL,
		revoked:  cfg.Revoked,
		now:      cfg.Now,
	}
	if svc.ttl <= 0 {
		svc.ttl = 24 * time.Hour
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	return svc, nil
}

// Issue signs an access token for user.
func (s *TokenService) Issue(user domain.User) (application.AccessToken, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.own.Issuer,
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Name:              user.Name,
		Picture:           user.Avatar,
		PreferredUsername: user.Username,
		Email:             user.Email,
		AccountType:       string(user.Type),
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.own.Secret)
	if err != nil {
		return application.AccessToken{}, fmt.Errorf("sign token: %w", err)
	}
	return application.AccessToken{Value: signed, ExpiresAt: expiresAt}, nil
}

// Revoke blocks a token issued by this service until it would have expired.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	claims, err := parseWithIssuer(token, s.own, s.audience, s.now)
	if err != nil {
		return ErrInvalidToken
	}
	if s.revoked == nil || claims.ID == "" {
		return nil
	}
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		ttl = claims.ExpiresAt.Sub(s.now()) + leeway
	}
	return s.revoked.Revoke(ctx, claims.ID, ttl)
}

// Verify checks token against every trusted issuer, own first, and rejects
// revoked ids.
func (s *TokenService) Verify(ctx context.Context, token string) (*Claims, error) {
	issuers := append([]IssuerConfig{s.own}, s.trusted...)
	for _, cfg := range issuers {
		claims, err := parseWithIssuer(token, cfg, s.audience, s.now)
		if err != nil {
			continue
		}
		if s.revoked != nil && claims.ID != "" {
			revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
			if err != nil {
				return nil, fmt.Errorf("check revocation: %w", err)
			}
			if revoked {
				return nil, ErrRevokedToken
			}
		}
		return claims, nil
	}
	return nil, ErrInvalidToken
}

func parseWithIssuer(token string, cfg IssuerConfig, audience string, now func() time.Time) (*Claims, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrInvalidToken
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
