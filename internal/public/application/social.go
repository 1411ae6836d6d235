package application

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/sngm3741/cafe-club/api/internal/public/domain"
)

// SocialFlow selects how provider sign-in completes.
type SocialFlow string

const (
	// SocialFlowPopup resolves the provider token within the same call.
	SocialFlowPopup SocialFlow = "popup"
	// SocialFlowRedirect hands back a pending state the client completes later.
	SocialFlowRedirect SocialFlow = "redirect"
)

const defaultRedirectTTL = 10 * time.Minute

// ParseSocialFlow accepts an empty value as SocialFlowPopup.
func ParseSocialFlow(value string) (SocialFlow, error) {
	switch SocialFlow(value) {
	case "", SocialFlowPopup:
		return SocialFlowPopup, nil
	case SocialFlowRedirect:
		return SocialFlowRedirect, nil
	}
	return "", fmt.Errorf("invalid social flow: %s", value)
}

type socialStrategy interface {
	begin(ctx context.Context, svc *authService, sess *Session, provider domain.Provider, idToken string) (*SocialLoginResult, error)
}

func newSocialStrategy(cfg AuthServiceConfig) (socialStrategy, error) {
	switch cfg.Flow {
	case "", SocialFlowPopup:
		return popupStrategy{}, nil
	case SocialFlowRedirect:
		if cfg.Pending == nil {
			return nil, fmt.Errorf("redirect sign-in requires a pending state store")
		}
		ttl := cfg.RedirectTTL
		if ttl <= 0 {
			ttl = defaultRedirectTTL
		}
		return redirectStrategy{authorizeURLs: cfg.AuthorizeURLs, ttl: ttl}, nil
	}
	return nil, fmt.Errorf("invalid social flow: %s", cfg.Flow)
}

type popupStrategy struct{}

func (popupStrategy) begin(ctx context.Context, svc *authService, sess *Session, provider domain.Provider, idToken string) (*SocialLoginResult, error) {
	identity, err := svc.verifier.Verify(ctx, provider, idToken)
	if err != nil {
		return nil, err
	}
	return svc.resolveSocial(ctx, sess, identity)
}

type redirectStrategy struct {
	authorizeURLs map[domain.Provider]string
	ttl           time.Duration
}

func (r redirectStrategy) begin(ctx context.Context, svc *authService, _ *Session, provider domain.Provider, _ string) (*SocialLoginResult, error) {
	base, ok := r.authorizeURLs[provider]
	if !ok || base == "" {
		return nil, ErrUnsupportedProvider
	}
	st := uuid.NewString()
	redirectURL, err := withState(base, st)
	if err != nil {
		return nil, fmt.Errorf("build authorize url: %w", err)
	}
	if err := svc.pending.Save(ctx, st, provider, r.ttl); err != nil {
		return nil, fmt.Errorf("save pending sign-in: %w", err)
	}
	return &SocialLoginResult{
		Pending:     true,
		State:       st,
		RedirectURL: redirectURL.String(),
	}, nil
}

func withState(base, st string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("state", st)
	u.RawQuery = q.Encode()
	return u, nil
}
