package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
	BackendLocal    = "local"
)

type Config struct {
	Port    string
	Backend string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	DatabaseURL string

	LocalStorePath string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	AdminPassword string
	TokenTTL      time.Duration

	CorsAllowedOrigins []string
	PublicRateLimit    int
	LoginRateLimit     int

	// SanitizeContent scrubs post bodies on write.
	SanitizeContent bool

	LogLevel slog.Level
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORE_BACKEND", BackendMongo)
	v.SetDefault("MONGODB_URI", "")
	v.SetDefault("MONGODB_DATABASE", "portfolio")
	v.SetDefault("MONGODB_COLLECTION", "blogPosts")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("LOCAL_STORE_PATH", "data/blogPosts.json")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("PUBLIC_RATE_LIMIT", 60)
	v.SetDefault("LOGIN_RATE_LIMIT", 5)
	v.SetDefault("SANITIZE_CONTENT", false)
	v.SetDefault("LOG_LEVEL", "info")
}

// Load reads .env, an optional CONFIG_FILE and the environment, in
// increasing order of precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.AutomaticEnv()

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Port:               getString(v, "PORT"),
		Backend:            strings.ToLower(getString(v, "STORE_BACKEND")),
		MongoURI:           getString(v, "MONGODB_URI"),
		MongoDatabase:      getString(v, "MONGODB_DATABASE"),
		MongoCollection:    getString(v, "MONGODB_COLLECTION"),
		DatabaseURL:        getString(v, "DATABASE_URL"),
		LocalStorePath:     getString(v, "LOCAL_STORE_PATH"),
		RedisAddr:          getString(v, "REDIS_ADDR"),
		RedisPassword:      getString(v, "REDIS_PASSWORD"),
		RedisDB:            v.GetInt("REDIS_DB"),
		AdminPassword:      getString(v, "ADMIN_PASSWORD"),
		TokenTTL:           v.GetDuration("TOKEN_TTL"),
		CorsAllowedOrigins: splitCSV(getString(v, "CORS_ALLOWED_ORIGINS")),
		PublicRateLimit:    v.GetInt("PUBLIC_RATE_LIMIT"),
		LoginRateLimit:     v.GetInt("LOGIN_RATE_LIMIT"),
		SanitizeContent:    v.GetBool("SANITIZE_CONTENT"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getString(v, "LOG_LEVEL"))); err != nil {
		return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.AdminPassword == "" {
		return errors.New("ADMIN_PASSWORD is required")
	}
	if c.TokenTTL <= 0 {
		return errors.New("TOKEN_TTL must be a positive duration")
	}
	switch c.Backend {
	case BackendMongo:
		if c.MongoURI == "" {
			return errors.New("MONGODB_URI is required for the mongo backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	case BackendLocal:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Backend)
	}
	return nil
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
