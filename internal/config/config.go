// Package config loads the service configuration from defaults, an optional
// YAML file, ATELIER_* environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "ATELIER_"

// Backend kinds.
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Cache kinds.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Log      LogConfig      `koanf:"log"`
	Backend  BackendConfig  `koanf:"backend"`
	Supabase SupabaseConfig `koanf:"supabase"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Mail     MailConfig     `koanf:"mail"`
	Session  SessionConfig  `koanf:"session"`
	Cache    CacheConfig    `koanf:"cache"`
	Content  ContentConfig  `koanf:"content"`
	CORS     CORSConfig     `koanf:"cors"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port" validate:"required"`
	MetricsPort       string        `koanf:"metrics_port" validate:"required"`
	BaseURL           string        `koanf:"base_url" validate:"required,url"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=json text"`
}

// BackendConfig selects the backend implementation.
type BackendConfig struct {
	Kind string `koanf:"kind" validate:"oneof=supabase postgres"`
}

// SupabaseConfig contains hosted backend settings.
type SupabaseConfig struct {
	URL       string        `koanf:"url"`
	AnonKey   string        `koanf:"anon_key"`
	Timeout   time.Duration `koanf:"timeout"`
	RateLimit float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst     int           `koanf:"burst" validate:"gte=0"`
}

// DatabaseConfig contains PostgreSQL settings for the self-hosted backend.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectAttempts int           `koanf:"connect_attempts" validate:"gte=1"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// AuthConfig contains settings for the self-hosted backend's tokens.
type AuthConfig struct {
	JWTSecret          string        `koanf:"jwt_secret"`
	TokenDuration      time.Duration `koanf:"token_duration"`
	ResetTokenDuration time.Duration `koanf:"reset_token_duration"`
}

// MailConfig contains SMTP settings for reset mail.
type MailConfig struct {
	Enabled      bool   `koanf:"enabled"`
	SMTPHost     string `koanf:"smtp_host"`
	SMTPPort     int    `koanf:"smtp_port"`
	SMTPUser     string `koanf:"smtp_user"`
	SMTPPassword string `koanf:"smtp_password"`
	FromAddress  string `koanf:"from_address"`
}

// SessionConfig contains settings for session cookies.
type SessionConfig struct {
	CookieSecure     bool          `koanf:"cookie_secure"`
	CookieDomain     string        `koanf:"cookie_domain"`
	RememberDuration time.Duration `koanf:"remember_duration"`
}

// CacheConfig selects where last-known-good content is kept.
type CacheConfig struct {
	Kind          string        `koanf:"kind" validate:"oneof=memory redis"`
	TTL           time.Duration `koanf:"ttl"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db"`
}

// ContentConfig controls display content reads.
type ContentConfig struct {
	Fallback  bool `koanf:"fallback"`
	NewsLimit int  `koanf:"news_limit" validate:"gte=1"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              "8080",
			MetricsPort:       "9090",
			BaseURL:           "http://localhost:8080",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		Log:     LogConfig{Level: "info", Format: "json"},
		Backend: BackendConfig{Kind: BackendSupabase},
		Supabase: SupabaseConfig{
			Timeout:   10 * time.Second,
			RateLimit: 20,
			Burst:     40,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Hour,
			ConnectAttempts: 5,
			ConnectTimeout:  time.Minute,
		},
		Auth: AuthConfig{
			TokenDuration:      24 * time.Hour,
			ResetTokenDuration: time.Hour,
		},
		Mail: MailConfig{SMTPPort: 587},
		Session: SessionConfig{
			RememberDuration: 30 * 24 * time.Hour,
		},
		Cache:   CacheConfig{Kind: CacheMemory, TTL: 24 * time.Hour},
		Content: ContentConfig{Fallback: true, NewsLimit: 5},
	}
}

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"host":         "server.host",
	"port":         "server.port",
	"metrics-port": "server.metrics_port",
	"base-url":     "server.base_url",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"backend":      "backend.kind",
	"database-url": "database.url",
	"auto-migrate": "database.auto_migrate",
}

// RegisterFlags adds the overridable flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("host", d.Server.Host, "listen host")
	fs.String("port", d.Server.Port, "listen port")
	fs.String("metrics-port", d.Server.MetricsPort, "metrics listen port")
	fs.String("base-url", d.Server.BaseURL, "public base URL used in reset links")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("backend", d.Backend.Kind, "backend kind (supabase, postgres)")
	fs.String("database-url", "", "PostgreSQL URL for the postgres backend")
	fs.Bool("auto-migrate", false, "apply migrations on start")
}

// Load reads the configuration and validates it.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg, err := Read(path, fs)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read builds the configuration without validating it. path may be empty;
// fs may be nil. Only flags set explicitly override the other sources.
func Read(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// envKey turns ATELIER_SESSION_COOKIE_SECURE into session.cookie_secure.
// Comma-separated values of list keys are split.
func envKey(name, value string) (string, any) {
	name = strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, rest, ok := strings.Cut(name, "_")
	if !ok {
		return "", nil
	}
	key := section + "." + rest

	if key == "cors.allowed_origins" {
		parts := strings.Split(value, ",")
		origins := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				origins = append(origins, p)
			}
		}
		return key, origins
	}
	return key, value
}

// Validate checks field constraints and the settings each backend needs.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	switch c.Backend.Kind {
	case BackendSupabase:
		if c.Supabase.URL == "" {
			errs = append(errs, errors.New("supabase.url is required for the supabase backend"))
		}
		if c.Supabase.AnonKey == "" {
			errs = append(errs, errors.New("supabase.anon_key is required for the supabase backend"))
		}
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required for the postgres backend"))
		}
		if c.Auth.JWTSecret == "" {
			errs = append(errs, errors.New("auth.jwt_secret is required for the postgres backend"))
		}
		if c.Auth.TokenDuration <= 0 {
			errs = append(errs, errors.New("auth.token_duration must be positive"))
		}
	}
	if c.Cache.Kind == CacheRedis && c.Cache.RedisAddr == "" {
		errs = append(errs, errors.New("cache.redis_addr is required for the redis cache"))
	}
	if c.Mail.Enabled && (c.Mail.SMTPHost == "" || c.Mail.FromAddress == "") {
		errs = append(errs, errors.New("mail.smtp_host and mail.from_address are required when mail is enabled"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ResetURL is the page password reset links point to.
func (c *Config) ResetURL() string {
	return strings.TrimRight(c.Server.BaseURL, "/") + "/reset-password"
}
