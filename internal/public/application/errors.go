package application

import "errors"

var (
	ErrCafeNotFound         = errors.New("cafe not found")
	ErrRatingNotFound       = errors.New("rating not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrInvalidStars         = errors.New("rating must be an integer between 1 and 5")
	ErrInvalidCredentials   = errors.New("invalid email or password")
	ErrEmailTaken           = errors.New("email is already registered")
	ErrInvalidIDToken       = errors.New("invalid identity token")
	ErrUnsupportedProvider  = errors.New("unsupported identity provider")
	ErrPendingStateNotFound = errors.New("no pending sign-in for this state")
)
