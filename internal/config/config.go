package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENV" default:"development"`
	Port        string `envconfig:"PORT" default:"8080"`
	Host        string `envconfig:"HOST" default:"http://localhost:8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	PostgresURI string `envconfig:"POSTGRES_URI" default:"postgres://localhost:5432/tandem?sslmode=disable"`
	MongoURI    string `envconfig:"MONGODB_URI" default:"mongodb://localhost:27017/tandem"`
	RedisURI    string `envconfig:"REDIS_URI" default:"redis://localhost:6379/0"`

	FrontendURL    string `envconfig:"FRONTEND_URL" default:"http://localhost:3000"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS"` // comma separated; falls back to FRONTEND_URL

	CloudinaryName      string `envconfig:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `envconfig:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `envconfig:"CLOUDINARY_API_SECRET"`

	// argon2id hash of the key admins send in X-Admin-Key (see cmd/adminkey)
	AdminKeyHash string `envconfig:"ADMIN_KEY_HASH"`

	TranscriptCap         int           `envconfig:"TRANSCRIPT_CAP" default:"100"`
	CandidateLimit        int           `envconfig:"CANDIDATE_LIMIT" default:"500"`
	SideEffectTimeout     time.Duration `envconfig:"SIDE_EFFECT_TIMEOUT" default:"5s"`
	DeliveryTimeout       time.Duration `envconfig:"DELIVERY_TIMEOUT" default:"3s"`
	SpamMessagesPerMinute int           `envconfig:"SPAM_MESSAGES_PER_MINUTE" default:"20"`
	SpamBurst             int           `envconfig:"SPAM_BURST" default:"10"`
	DirectoryCacheTTL     time.Duration `envconfig:"DIRECTORY_CACHE_TTL" default:"10m"`
	SessionTTL            time.Duration `envconfig:"SESSION_TTL" default:"168h"`
}

// Load reads the process environment. godotenv is applied by main before this runs.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	cfg.Environment = strings.ToLower(strings.TrimSpace(cfg.Environment))

	if cfg.TranscriptCap <= 0 {
		return nil, fmt.Errorf("TRANSCRIPT_CAP must be positive, got %d", cfg.TranscriptCap)
	}
	if cfg.SpamMessagesPerMinute <= 0 || cfg.SpamBurst <= 0 {
		return nil, fmt.Errorf("spam limits must be positive")
	}
	return &cfg, nil
}

// IsProduction returns true when ENV is set to "production".
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strings.TrimPrefix(c.Port, ":")
}

// APIHost is the bare hostname requests must target in production; empty for local hosts.
func (c *Config) APIHost() string {
	host := hostname(c.Host)
	if host == "localhost" || host == "127.0.0.1" {
		return ""
	}
	return host
}

// Origins returns the CORS allow-list: ALLOWED_ORIGINS, else FRONTEND_URL, plus the
// apex and www origins of a non-local HOST.
func (c *Config) Origins() []string {
	origins := parseOrigins(c.AllowedOrigins)
	if len(origins) == 0 && strings.TrimSpace(c.FrontendURL) != "" {
		origins = append(origins, strings.TrimSpace(c.FrontendURL))
	}

	host := hostname(c.Host)
	if host != "" && host != "localhost" {
		parts := strings.Split(host, ".")
		if len(parts) >= 2 {
			domain := strings.Join(parts[1:], ".")
			for _, origin := range []string{"https://" + domain, "https://www." + domain} {
				if !containsOrigin(origins, origin) {
					origins = append(origins, origin)
				}
			}
		}
	}
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return origins
}

// hostname strips scheme, path and port from a HOST value.
func hostname(raw string) string {
	h := strings.TrimSpace(raw)
	for _, prefix := range []string{"https://", "http://"} {
		h = strings.TrimPrefix(h, prefix)
	}
	if idx := strings.Index(h, "/"); idx != -1 {
		h = h[:idx]
	}
	if idx := strings.Index(h, ":"); idx != -1 {
		h = h[:idx]
	}
	return strings.TrimSpace(h)
}

func parseOrigins(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func containsOrigin(list []string, o string) bool {
	o = strings.TrimSpace(strings.ToLower(o))
	for _, v := range list {
		if strings.TrimSpace(strings.ToLower(v)) == o {
			return true
		}
	}
	return false
}
