package domain

import (
	"fmt"
	"strings"
	"time"
)

// AccountType distinguishes regular users from café owners.
type AccountType string

const (
	AccountTypeNormal    AccountType = "normal"
	AccountTypeCafeOwner AccountType = "cafe_owner"
)

// ParseAccountType accepts an empty value as AccountTypeNormal.
func ParseAccountType(value string) (AccountType, error) {
	switch AccountType(strings.TrimSpace(value)) {
	case "", AccountTypeNormal:
		return AccountTypeNormal, nil
	case AccountTypeCafeOwner:
		return AccountTypeCafeOwner, nil
	}
	return "", fmt.Errorf("invalid account type: %s", value)
}

// UserStats are display counters; no write path maintains them.
type UserStats struct {
	Reviews   int
	Followers int
	Following int
}

// User is the profile document keyed by the identity principal id.
type User struct {
	ID        string
	Email     string
	Name      string
	Username  string
	Type      AccountType
	Bio       string
	Avatar    string
	Provider  string
	Stats     UserStats
	CreatedAt time.Time
	LastLogin *time.Time
}

// IsCafeOwner reports whether the user may manage cafés.
func (u User) IsCafeOwner() bool {
	return u.Type == AccountTypeCafeOwner
}

// Provider identifies a federated identity provider.
type Provider string

const (
	ProviderGoogle   Provider = "google"
	ProviderFacebook Provider = "facebook"
	ProviderApple    Provider = "apple"
)

// Providers lists every supported social provider.
var Providers = []Provider{ProviderGoogle, ProviderFacebook, ProviderApple}

// ParseProvider normalises a provider name.
func ParseProvider(value string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Providers {
		if p == known {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported provider: %s", value)
}

// DisplayName returns the human readable provider label.
func (p Provider) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google"
	case ProviderFacebook:
		return "Facebook"
	case ProviderApple:
		return "Apple"
	}
	return "Social"
}
