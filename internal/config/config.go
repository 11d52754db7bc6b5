// Package config reads the server configuration from environment variables.
//
// Every variable has a default except JWT_SECRET. A variable that is set but
// cannot be parsed (PORT=abc, TOKEN_TTL=forever) is a startup error rather
// than a silent fallback, so a typo in a deployment manifest fails loudly.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/foodgram/internal/server"
)

// Config holds all configuration for the application.
type Config struct {
	// Server
	Port     int
	BaseURL  string // public origin used in short links, e.g. https://foodgram.example.com
	LogLevel slog.Level

	// Database
	DBPath string

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Media: local directory unless S3BucketName is set
	MediaDir     string
	MediaURL     string
	S3BucketName string
	AWSRegion    string
	S3PublicURL  string

	// Rate limiting: disabled when RedisURL is empty
	RedisURL   string
	RateLimit  int
	RateWindow time.Duration

	// Optional GitHub login
	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return load(os.Getenv)
}

// load collects every parse error instead of stopping at the first, so one
// failed start reports all bad variables.
func load(getenv func(string) string) (*Config, error) {
	p := parser{getenv: getenv}

	cfg := &Config{
		Port:     p.integer("PORT", 8080),
		LogLevel: p.level("LOG_LEVEL", slog.LevelInfo),
		DBPath:   p.str("DB_PATH", "data/foodgram.db"),

		JWTSecret: getenv("JWT_SECRET"),
		TokenTTL:  p.duration("TOKEN_TTL", 24*time.Hour),

		MediaDir:     p.str("MEDIA_DIR", "media"),
		MediaURL:     p.str("MEDIA_URL", "/media/"),
		S3BucketName: getenv("S3_BUCKET_NAME"),
		AWSRegion:    p.str("AWS_REGION", "us-east-1"),
		S3PublicURL:  getenv("S3_PUBLIC_URL"),

		RedisURL:   getenv("REDIS_URL"),
		RateLimit:  p.integer("RATE_LIMIT", 100),
		RateWindow: p.duration("RATE_WINDOW", time.Minute),

		GitHubClientID:     getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: getenv("GITHUB_CLIENT_SECRET"),
	}
	cfg.BaseURL = strings.TrimSuffix(p.str("BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	cfg.GitHubCallbackURL = p.str("GITHUB_CALLBACK_URL", cfg.BaseURL+"/api/auth/github/callback")

	if cfg.JWTSecret == "" {
		p.errs = append(p.errs, errors.New("JWT_SECRET is required"))
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		p.errs = append(p.errs, fmt.Errorf("PORT %d is out of range", cfg.Port))
	}
	if cfg.RateLimit <= 0 {
		p.errs = append(p.errs, fmt.Errorf("RATE_LIMIT must be positive, got %d", cfg.RateLimit))
	}
	if cfg.RateWindow <= 0 {
		p.errs = append(p.errs, fmt.Errorf("RATE_WINDOW must be positive, got %v", cfg.RateWindow))
	}

	if err := errors.Join(p.errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Server converts the configuration into the server's own Config.
func (c *Config) Server() server.Config {
	return server.Config{
		Port:               c.Port,
		BaseURL:            c.BaseURL,
		DBPath:             c.DBPath,
		JWTSecret:          c.JWTSecret,
		TokenTTL:           c.TokenTTL,
		MediaDir:           c.MediaDir,
		MediaURL:           c.MediaURL,
		S3BucketName:       c.S3BucketName,
		AWSRegion:          c.AWSRegion,
		S3PublicURL:        c.S3PublicURL,
		RedisURL:           c.RedisURL,
		RateLimit:          c.RateLimit,
		RateWindow:         c.RateWindow,
		GitHubClientID:     c.GitHubClientID,
		GitHubClientSecret: c.GitHubClientSecret,
		GitHubCallbackURL:  c.GitHubCallbackURL,
	}
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(name, def string) string {
	if v := p.getenv(name); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(name string, def int) int {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not an integer", name, raw))
		return def
	}
	return n
}

func (p *parser) duration(name string, def time.Duration) time.Duration {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a duration (e.g. 30m, 24h)", name, raw))
		return def
	}
	return d
}

func (p *parser) level(name string, def slog.Level) slog.Level {
	raw := p.getenv(name)
	if raw == "" {
		return def
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(raw)); err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: %q is not a log level (debug, info, warn, error)", name, raw))
		return def
	}
	return lvl
}
