package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sngm3741/cafe-club/api/internal/public/application"
	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

type idTokenClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email,omitempty"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// ProviderConfig describes how ID tokens from one provider are checked.
type ProviderConfig struct {
	Issuer   string
	Audience string
	Secret   []byte
}

// SocialVerifier checks HMAC-signed ID tokens minted by the sign-in broker
// for each configured provider.
type SocialVerifier struct {
	providers map[domain.Provider]ProviderConfig
	now       func() time.Time
}

var _ application.SocialVerifier = (*SocialVerifier)(nil)

func NewSocialVerifier(providers map[domain.Provider]ProviderConfig, now func() time.Time) *SocialVerifier {
	if now == nil {
		now = time.Now
	}
	copied := make(map[domain.Provider]ProviderConfig, len(providers))
	for p, cfg := range providers {
		if len(cfg.Secret) == 0 {
			continue
		}
		copied[p] = cfg
	}
	return &SocialVerifier{providers: copied, now: now}
}

// Providers lists the providers that have verification configured.
func (v *SocialVerifier) Providers() []domain.Provider {
	out := make([]domain.Provider, 0, len(v.providers))
	for _, p := range domain.Providers {
		if _, ok := v.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (v *SocialVerifier) Verify(_ context.Context, provider domain.Provider, idToken string) (application.SocialIdentity, error) {
	cfg, ok := v.providers[provider]
	if !ok {
		return application.SocialIdentity{}, application.ErrUnsupportedProvider
	}
	idToken = strings.TrimSpace(idToken)
	if idToken == "" {
		return application.SocialIdentity{}, application.ErrInvalidIDToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	claims := &idTokenClaims{}
	parsed, err := jwt.ParseWithClaims(idToken, claims, func(*jwt.Token) (any, error) {
		return cfg.Secret, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return application.SocialIdentity{}, fmt.Errorf("%w: %v", application.ErrInvalidIDToken, err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return application.SocialIdentity{}, application.ErrInvalidIDToken
	}

	return application.SocialIdentity{
		Provider:    provider,
		Subject:     claims.Subject,
		Email:       strings.TrimSpace(claims.Email),
		DisplayName: strings.TrimSpace(claims.Name),
		PhotoURL:    strings.TrimSpace(claims.Picture),
	}, nil
}
