package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// JWTConfig defines issuer/secret pair for auth verification.
type JWTConfig struct {
	Issuer string
	Secret []byte
}

// SocialProviderConfig configures one social sign-in provider.
type SocialProviderConfig struct {
	Secret       []byte
	Issuer       string
	Audience     string
	AuthorizeURL string
}

// RedisConfig points at the Redis used for auth state. An empty Addr keeps
// that state in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// S3Config describes the image bucket. An empty Bucket disables uploads.
type S3Config struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	UseSSL        bool
	UsePathStyle  bool
	PublicBaseURL string
}

// Config holds runtime configuration shared across the application.
type Config struct {
	Env                   string
	Addr                  string
	LogLevel              string
	LogFormat             string
	MongoURI              string
	MongoDatabase         string
	CafeCollection        string
	RatingCollection      string
	UserCollection        string
	CredentialCollection  string
	HelpfulVoteCollection string
	Timeout               time.Duration
	RequestTimeout        time.Duration
	Timezone              string
	AllowedOrigins        []string
	HelpfulCookieSecret   []byte
	HelpfulCookieSecure   bool
	BcryptCost            int

	JWTSecret   []byte
	JWTIssuer   string
	JWTAudience string
	TokenTTL    time.Duration
	// JWTConfigs are additional issuers whose bearer tokens are accepted.
	JWTConfigs      []JWTConfig
	SocialFlow      string
	SocialProviders map[string]SocialProviderConfig
	RedirectTTL     time.Duration

	Redis RedisConfig
	S3    S3Config

	RatingAllowOrphans bool
	ReconcileCron      string
	RateLimitRPS       float64
	RateLimitBurst     int
}

var socialProviders = []string{"google", "facebook", "apple"}

// Load reads an optional .env file and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("app_env", "development")
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("mongo_uri", "mongodb://mongo:27017/?replicaSet=rs0")
	v.SetDefault("mongo_db", "cafe-club")
	v.SetDefault("cafe_collection", "cafe")
	v.SetDefault("rating_collection", "rating")
	v.SetDefault("user_collection", "user")
	v.SetDefault("credential_collection", "credential")
	v.SetDefault("helpful_vote_collection", "rating_helpful_votes")
	v.SetDefault("mongo_connect_timeout", "10s")
	v.SetDefault("request_timeout", "5s")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("api_allowed_origins", "*")
	v.SetDefault("bcrypt_cost", 10)
	v.SetDefault("auth_jwt_issuer", "cafe-club")
	v.SetDefault("auth_token_ttl", "24h")
	v.SetDefault("auth_social_flow", "popup")
	v.SetDefault("auth_redirect_ttl", "10m")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_use_path_style", true)
	v.SetDefault("aggregate_reconcile_cron", "0 4 * * *")
	v.SetDefault("rate_limit_rps", 5)
	v.SetDefault("rate_limit_burst", 10)
	return v
}

// FromViper builds a Config from an already populated viper instance.
func FromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Env:                   strings.TrimSpace(v.GetString("app_env")),
		Addr:                  v.GetString("http_addr"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             strings.TrimSpace(v.GetString("log_format")),
		MongoURI:              v.GetString("mongo_uri"),
		MongoDatabase:         v.GetString("mongo_db"),
		CafeCollection:        v.GetString("cafe_collection"),
		RatingCollection:      v.GetString("rating_collection"),
		UserCollection:        v.GetString("user_collection"),
		CredentialCollection:  v.GetString("credential_collection"),
		HelpfulVoteCollection: v.GetString("helpful_vote_collection"),
		Timeout:               v.GetDuration("mongo_connect_timeout"),
		RequestTimeout:        v.GetDuration("request_timeout"),
		Timezone:              v.GetString("timezone"),
		AllowedOrigins:        parseList(v.GetString("api_allowed_origins"), []string{"*"}),
		HelpfulCookieSecret:   []byte(strings.TrimSpace(v.GetString("helpful_voter_secret"))),
		HelpfulCookieSecure:   v.GetBool("helpful_cookie_secure"),
		BcryptCost:            v.GetInt("bcrypt_cost"),

		JWTSecret:       []byte(strings.TrimSpace(v.GetString("auth_jwt_secret"))),
		JWTIssuer:       strings.TrimSpace(v.GetString("auth_jwt_issuer")),
		JWTAudience:     strings.TrimSpace(v.GetString("auth_jwt_audience")),
		TokenTTL:        v.GetDuration("auth_token_ttl"),
		SocialFlow:      strings.ToLower(strings.TrimSpace(v.GetString("auth_social_flow"))),
		SocialProviders: map[string]SocialProviderConfig{},
		RedirectTTL:     v.GetDuration("auth_redirect_ttl"),

		Redis: RedisConfig{
			Addr:     strings.TrimSpace(v.GetString("redis_addr")),
			Password: v.GetString("redis_password"),
			DB:       v.GetInt("redis_db"),
		},
		S3: S3Config{
			Endpoint:      strings.TrimSpace(v.GetString("s3_endpoint")),
			Region:        v.GetString("s3_region"),
			Bucket:        strings.TrimSpace(v.GetString("s3_bucket")),
			AccessKey:     v.GetString("s3_access_key"),
			SecretKey:     v.GetString("s3_secret_key"),
			UseSSL:        v.GetBool("s3_use_ssl"),
			UsePathStyle:  v.GetBool("s3_use_path_style"),
			PublicBaseURL: strings.TrimSpace(v.GetString("media_base_url")),
		},

		RatingAllowOrphans: v.GetBool("rating_allow_orphans"),
		ReconcileCron:      strings.TrimSpace(v.GetString("aggregate_reconcile_cron")),
		RateLimitRPS:       v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:     v.GetInt("rate_limit_burst"),
	}

	if secret := strings.TrimSpace(v.GetString("auth_trusted_jwt_secret")); secret != "" {
		cfg.JWTConfigs = append(cfg.JWTConfigs, JWTConfig{
			Issuer: strings.TrimSpace(v.GetString("auth_trusted_jwt_issuer")),
			Secret: []byte(secret),
		})
	}

	for _, name := range socialProviders {
		prefix := "auth_" + name + "_"
		secret := strings.TrimSpace(v.GetString(prefix + "jwt_secret"))
		if secret == "" {
			continue
		}
		cfg.SocialProviders[name] = SocialProviderConfig{
			Secret:       []byte(secret),
			Issuer:       strings.TrimSpace(v.GetString(prefix + "jwt_issuer")),
			Audience:     strings.TrimSpace(v.GetString(prefix + "jwt_audience")),
			AuthorizeURL: strings.TrimSpace(v.GetString(prefix + "authorize_url")),
		}
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "json"
		if cfg.IsDevelopment() {
			cfg.LogFormat = "console"
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// IsDevelopment reports whether APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.Env == "" || strings.EqualFold(c.Env, "development")
}

func (c Config) validate() error {
	var problems []string
	if len(c.HelpfulCookieSecret) == 0 {
		problems = append(problems, "HELPFUL_VOTER_SECRET must be configured")
	}
	if len(c.JWTSecret) == 0 {
		problems = append(problems, "AUTH_JWT_SECRET must be configured")
	}
	switch c.SocialFlow {
	case "popup":
	case "redirect":
		for name, p := range c.SocialProviders {
			if p.AuthorizeURL == "" {
				problems = append(problems, fmt.Sprintf("AUTH_%s_AUTHORIZE_URL is required for the redirect flow", strings.ToUpper(name)))
			}
		}
	default:
		problems = append(problems, fmt.Sprintf("AUTH_SOCIAL_FLOW must be popup or redirect, got %q", c.SocialFlow))
	}
	if c.TokenTTL <= 0 {
		problems = append(problems, "AUTH_TOKEN_TTL must be positive")
	}
	if c.RequestTimeout <= 0 {
		problems = append(problems, "REQUEST_TIMEOUT must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		problems = append(problems, "RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

func parseList(raw string, fallback []string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	values := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			values = append(values, part)
		}
	}

	if len(values) == 0 {
		return fallback
	}
	return values
}
