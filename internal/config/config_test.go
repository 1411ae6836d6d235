package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("HELPFUL_VOTER_SECRET", "voter-secret")
	t.Setenv("AUTH_JWT_SECRET", "jwt-secret")
}

func TestFromViper_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "cafe", cfg.CafeCollection)
	assert.Equal(t, "rating_helpful_votes", cfg.HelpfulVoteCollection)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "popup", cfg.SocialFlow)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "cafe-club", cfg.JWTIssuer)
	assert.Empty(t, cfg.JWTConfigs)
	assert.Empty(t, cfg.SocialProviders)
	assert.False(t, cfg.RatingAllowOrphans)
	assert.Equal(t, "0 4 * * *", cfg.ReconcileCron)
}

func TestFromViper_EnvOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_ALLOWED_ORIGINS", "https://cafe.example.com, ,https://admin.example.com")
	t.Setenv("AUTH_TOKEN_TTL", "2h")
	t.Setenv("AUTH_TRUSTED_JWT_SECRET", "partner")
	t.Setenv("AUTH_TRUSTED_JWT_ISSUER", "partner-auth")
	t.Setenv("AUTH_GOOGLE_JWT_SECRET", "google-secret")
	t.Setenv("AUTH_GOOGLE_JWT_ISSUER", "https://accounts.google.com")
	t.Setenv("RATING_ALLOW_ORPHANS", "true")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("S3_BUCKET", "cafe-images")

	cfg, err := FromViper(newViper())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://cafe.example.com", "https://admin.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, "json", cfg.LogFormat)
	require.Len(t, cfg.JWTConfigs, 1)
	assert.Equal(t, "partner-auth", cfg.JWTConfigs[0].Issuer)
	require.Contains(t, cfg.SocialProviders, "google")
	assert.Equal(t, "https://accounts.google.com", cfg.SocialProviders["google"].Issuer)
	assert.True(t, cfg.RatingAllowOrphans)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "cafe-images", cfg.S3.Bucket)
}

func TestFromViper_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing voter secret", env: map[string]string{"AUTH_JWT_SECRET": "x"}},
		{name: "missing jwt secret", env: map[string]string{"HELPFUL_VOTER_SECRET": "x"}},
		{name: "unknown social flow", env: map[string]string{
			"AUTH_JWT_SECRET": "x", "HELPFUL_VOTER_SECRET": "x", "AUTH_SOCIAL_FLOW": "iframe",
		}},
		{name: "redirect without authorize url", env: map[string]string{
			"AUTH_JWT_SECRET": "x", "HELPFUL_VOTER_SECRET": "x", "AUTH_SOCIAL_FLOW": "redirect",
			"AUTH_APPLE_JWT_SECRET": "apple",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AUTH_JWT_SECRET", "")
			t.Setenv("HELPFUL_VOTER_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromViper(newViper())
			assert.Error(t, err)
		})
	}
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, parseList(" a , b ,", nil))
	assert.Equal(t, []string{"x"}, parseList(" , ", []string{"x"}))
}
