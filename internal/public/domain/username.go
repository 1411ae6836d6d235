package domain

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
)

// MaxUsernameLength caps generated usernames.
const MaxUsernameLength = 15

var (
	usernameSpacePattern      = regexp.MustCompile(`[\s\p{Z}]+`)
	usernameDisallowedPattern = regexp.MustCompile(`[^a-z0-9_]`)
)

// GenerateUsername derives a username from a display name: lower-case,
// whitespace runs become "_", anything outside [a-z0-9_] is dropped and the
// result is cut to MaxUsernameLength. An empty name, or one that strips to
// nothing, falls back to "user_<n>".
func GenerateUsername(name string) string {
	if strings.TrimSpace(name) == "" {
		return fallbackUsername()
	}
	username := strings.ToLower(name)
	username = usernameSpacePattern.ReplaceAllString(username, "_")
	username = usernameDisallowedPattern.ReplaceAllString(username, "")
	if len(username) > MaxUsernameLength {
		username = username[:MaxUsernameLength]
	}
	if username == "" {
		return fallbackUsername()
	}
	return username
}

func fallbackUsername() string {
	return fmt.Sprintf("user_%d", rand.Intn(10000))
}
