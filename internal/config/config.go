// Package config loads the portal's settings from the environment, with an
// optional config file underneath.
//
// PRECEDENCE (highest first):
//  1. environment variables, e.g. PORT=9000
//  2. the file named by CONFIG_FILE (yaml, json, toml or .env)
//  3. the defaults below
//
// Keys are the env var names, lower-cased in files: `port: 9000`.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Record store backends.
const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
	StoreMemory = "memory"
)

// Config is everything cmd/server needs to assemble the portal.
type Config struct {
	Port     int
	BaseURL  string
	SiteName string
	LogLevel slog.Level

	DBPath      string
	RecordStore string
	MongoURI    string
	MongoDB     string
	RedisAddr   string
	RedisPass   string
	BindingTTL  time.Duration

	JWTSecret    string
	CookieSecure bool

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	UploadDir   string
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	RoleFetchTimeout  time.Duration
	GuardWait         time.Duration
	SessionIdle       time.Duration
	SessionRevalidate time.Duration
}

// Load reads configuration via viper. A missing JWT_SECRET is an error:
// without it instance tokens cannot be signed and no one can sign in.
func Load() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("port", 8080)
	v.SetDefault("base_url", "")
	v.SetDefault("site_name", "NGO Hub")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_path", "data/ngohub.db")
	v.SetDefault("record_store", StoreSQLite)
	v.SetDefault("mongo_uri", "")
	v.SetDefault("mongo_db", "ngohub")
	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("binding_ttl", 7*24*time.Hour)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("cookie_secure", false)
	v.SetDefault("github_client_id", "")
	v.SetDefault("github_client_secret", "")
	v.SetDefault("github_callback_url", "")
	v.SetDefault("google_client_id", "")
	v.SetDefault("google_client_secret", "")
	v.SetDefault("google_callback_url", "")
	v.SetDefault("upload_dir", "data/uploads")
	v.SetDefault("s3_bucket", "")
	v.SetDefault("s3_region", "us-east-1")
	v.SetDefault("s3_endpoint", "")
	v.SetDefault("s3_access_key", "")
	v.SetDefault("s3_secret_key", "")
	v.SetDefault("role_fetch_timeout", 5*time.Second)
	v.SetDefault("guard_wait", 3*time.Second)
	v.SetDefault("session_idle", 24*time.Hour)
	v.SetDefault("session_revalidate", time.Minute)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", file, err)
		}
	}

	cfg := &Config{
		Port:               v.GetInt("port"),
		BaseURL:            strings.TrimRight(v.GetString("base_url"), "/"),
		SiteName:           v.GetString("site_name"),
		DBPath:             v.GetString("db_path"),
		RecordStore:        strings.ToLower(v.GetString("record_store")),
		MongoURI:           v.GetString("mongo_uri"),
		MongoDB:            v.GetString("mongo_db"),
		RedisAddr:          v.GetString("redis_addr"),
		RedisPass:          v.GetString("redis_password"),
		BindingTTL:         v.GetDuration("binding_ttl"),
		JWTSecret:          v.GetString("jwt_secret"),
		CookieSecure:       v.GetBool("cookie_secure"),
		GitHubClientID:     v.GetString("github_client_id"),
		GitHubClientSecret: v.GetString("github_client_secret"),
		GitHubCallbackURL:  v.GetString("github_callback_url"),
		GoogleClientID:     v.GetString("google_client_id"),
		GoogleClientSecret: v.GetString("google_client_secret"),
		GoogleCallbackURL:  v.GetString("google_callback_url"),
		UploadDir:          v.GetString("upload_dir"),
		S3Bucket:           v.GetString("s3_bucket"),
		S3Region:           v.GetString("s3_region"),
		S3Endpoint:         v.GetString("s3_endpoint"),
		S3AccessKey:        v.GetString("s3_access_key"),
		S3SecretKey:        v.GetString("s3_secret_key"),
		RoleFetchTimeout:   v.GetDuration("role_fetch_timeout"),
		GuardWait:          v.GetDuration("guard_wait"),
		SessionIdle:        v.GetDuration("session_idle"),
		SessionRevalidate:  v.GetDuration("session_revalidate"),
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(v.GetString("log_level"))); err != nil {
		return nil, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = fmt.Sprintf("http://localhost:%d", cfg.Port)
	}
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = cfg.BaseURL + "/auth/github/callback"
	}
	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = cfg.BaseURL + "/auth/google/callback"
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	switch c.RecordStore {
	case StoreSQLite, StoreMemory:
	case StoreMongo:
		if c.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required when RECORD_STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("RECORD_STORE %q must be sqlite, mongo or memory", c.RecordStore))
	}
	for name, d := range map[string]time.Duration{
		"ROLE_FETCH_TIMEOUT": c.RoleFetchTimeout,
		"GUARD_WAIT":         c.GuardWait,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GitHubEnabled reports whether GitHub sign-in is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// GoogleEnabled reports whether Google sign-in is configured.
func (c *Config) GoogleEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// S3Enabled reports whether uploads go to S3 rather than UploadDir.
func (c *Config) S3Enabled() bool {
	return c.S3Bucket != ""
}
