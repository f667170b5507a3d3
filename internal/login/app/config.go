package app

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/medportal/phoneauth/pkg/otpflow"
)

const (
	// CacheDriverSQLite keeps the session cache in a local SQLite file.
	CacheDriverSQLite = "sqlite"
	// CacheDriverRedis keeps the session cache in Redis, shared between hosts.
	CacheDriverRedis = "redis"
)

// CacheConfig selects and configures the session cache backend.
type CacheConfig struct {
	Driver string `yaml:"driver" envconfig:"PHONEAUTH_CACHE_DRIVER"`
	// Path of the SQLite file; ":memory:" keeps nothing between runs.
	Path string `yaml:"path" envconfig:"PHONEAUTH_CACHE_PATH"`

	RedisAddr     string `yaml:"redis_addr" envconfig:"PHONEAUTH_REDIS_ADDR"`
	RedisPassword string `yaml:"redis_password" envconfig:"PHONEAUTH_REDIS_PASSWORD"`
	RedisDB       int    `yaml:"redis_db" envconfig:"PHONEAUTH_REDIS_DB"`

	// Passphrase seals cached tokens at rest. Empty stores them in the clear.
	Passphrase string `yaml:"passphrase" envconfig:"PHONEAUTH_CACHE_PASSPHRASE"`

	// Retention bounds the attempts journal.
	Retention time.Duration `yaml:"retention" envconfig:"PHONEAUTH_ATTEMPT_RETENTION"`
}

// LogConfig mirrors slogx.Config.
type LogConfig struct {
	Env    string `yaml:"env" envconfig:"PHONEAUTH_ENV"`
	Level  string `yaml:"level" envconfig:"PHONEAUTH_LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"PHONEAUTH_LOG_FORMAT"`
}

// Config is the CLI configuration. Values come from an optional YAML file,
// overlaid by environment variables (a .env file is loaded first if present).
type Config struct {
	// AuthorityURL is the login service that issues verification sessions.
	AuthorityURL string `yaml:"authority_url" envconfig:"PHONEAUTH_AUTHORITY_URL"`
	// IdentityURL is the GoTrue-compatible identity provider.
	IdentityURL string `yaml:"identity_url" envconfig:"PHONEAUTH_IDENTITY_URL"`
	// APIKey is the public key sent to both services.
	APIKey string `yaml:"api_key" envconfig:"PHONEAUTH_API_KEY"`

	// DialCode is prepended to local numbers typed without one.
	DialCode string `yaml:"dial_code" envconfig:"PHONEAUTH_DIAL_CODE"`
	// Profile names the cached session, so one machine can hold several.
	Profile string `yaml:"profile" envconfig:"PHONEAUTH_PROFILE"`

	ResendWindow   time.Duration `yaml:"resend_window" envconfig:"PHONEAUTH_RESEND_WINDOW"`
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"PHONEAUTH_REQUEST_TIMEOUT"`

	// QR renders the deep link as a terminal QR code.
	QR bool `yaml:"qr" envconfig:"PHONEAUTH_QR"`

	Cache CacheConfig `yaml:"cache"`
	Log   LogConfig   `yaml:"log"`
}

// LoadConfig reads envFile (if it exists), then the YAML file at path (if
// path is non-empty), then the environment, and normalizes the result.
func LoadConfig(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates required fields and fills in defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	var err error
	if cfg.AuthorityURL, err = normalizeURL("authority_url", cfg.AuthorityURL); err != nil {
		return err
	}
	if cfg.IdentityURL, err = normalizeURL("identity_url", cfg.IdentityURL); err != nil {
		return err
	}

	cfg.DialCode = strings.TrimSpace(cfg.DialCode)
	if cfg.DialCode == "" {
		cfg.DialCode = DefaultDialCode
	}
	if !dialCodeRe.MatchString(cfg.DialCode) {
		return fmt.Errorf("invalid dial_code %q; expected + followed by 1-3 digits", cfg.DialCode)
	}

	cfg.Profile = strings.TrimSpace(cfg.Profile)
	if cfg.Profile == "" {
		cfg.Profile = "default"
	}

	if cfg.ResendWindow == 0 {
		cfg.ResendWindow = otpflow.DefaultWindow
	}
	if cfg.ResendWindow < time.Second {
		return fmt.Errorf("resend_window must be at least 1s")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 10 * time.Second
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be > 0")
	}

	if err := normalizeCache(&cfg.Cache); err != nil {
		return err
	}

	if cfg.Log.Env == "" {
		cfg.Log.Env = "prod"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "warn"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return nil
}

func normalizeCache(c *CacheConfig) error {
	c.Driver = strings.ToLower(strings.TrimSpace(c.Driver))
	if c.Driver == "" {
		c.Driver = CacheDriverSQLite
	}

	switch c.Driver {
	case CacheDriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			c.Path = "phoneauth.db"
		}
	case CacheDriverRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return fmt.Errorf("cache.redis_addr is required when cache.driver is 'redis'")
		}
	default:
		return fmt.Errorf("invalid cache.driver %q; allowed: sqlite, redis", c.Driver)
	}

	if c.Retention == 0 {
		c.Retention = 30 * 24 * time.Hour
	}
	if c.Retention < 0 {
		return fmt.Errorf("cache.retention must be > 0")
	}
	return nil
}

func normalizeURL(name, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%s is required", name)
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("%s must be an absolute http(s) URL, got %q", name, raw)
	}
	return strings.TrimSuffix(raw, "/"), nil
}
