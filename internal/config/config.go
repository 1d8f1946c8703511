// Package config loads server and CLI settings from an optional YAML file,
// a .env file and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultConfigFile = "prepper.yaml"
	devSecret         = "dev-secret-change-me"
)

type Config struct {
	Port        string        `yaml:"port"`
	DBPath      string        `yaml:"db_path"`
	LogLevel    string        `yaml:"log_level"`
	LogFormat   string        `yaml:"log_format"`
	BaseURL     string        `yaml:"base_url"`
	Dev         bool          `yaml:"dev"`
	JWTSecret   string        `yaml:"jwt_secret"`
	TokenTTL    time.Duration `yaml:"token_ttl"`
	CORSOrigins []string      `yaml:"cors_origins"`

	// TrustedProxies lists addresses or CIDRs whose X-Real-IP and
	// X-Forwarded-For headers are believed.
	TrustedProxies []string `yaml:"trusted_proxies"`

	Postmark PostmarkConfig `yaml:"postmark"`
	S3       S3Config       `yaml:"s3"`
	Backup   BackupConfig   `yaml:"backup"`
}

type PostmarkConfig struct {
	ServerToken string `yaml:"server_token"`
	FromEmail   string `yaml:"from_email"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

type BackupConfig struct {
	Passphrase    string `yaml:"passphrase"`
	Prefix        string `yaml:"prefix"`
	RetentionDays int    `yaml:"retention_days"`
}

func defaults() *Config {
	return &Config{
		Port:        "8080",
		DBPath:      "prepper.db",
		LogLevel:    "info",
		BaseURL:     "http://localhost:3000",
		TokenTTL:    24 * time.Hour,
		CORSOrigins: []string{"http://localhost:3000"},
		Postmark:    PostmarkConfig{FromEmail: "noreply@prepper.local"},
		S3:          S3Config{Region: "us-east-1"},
		Backup:      BackupConfig{Prefix: "prepper", RetentionDays: 30},
	}
}

// Load reads the configuration and validates it for serving.
func Load() (*Config, error) {
	cfg, err := Read()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Read reads .env (if present), then the YAML file named by PREPPER_CONFIG
// (default prepper.yaml, skipped when absent), then environment overrides.
// It does not validate; operator tools that never issue tokens use it
// directly.
func Read() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := defaults()

	path := os.Getenv("PREPPER_CONFIG")
	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}
	if err := cfg.loadFile(path); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	setString(&c.Port, "PREPPER_PORT")
	setString(&c.DBPath, "PREPPER_DB_PATH")
	setString(&c.LogLevel, "PREPPER_LOG_LEVEL")
	setString(&c.LogFormat, "PREPPER_LOG_FORMAT")
	setString(&c.BaseURL, "PREPPER_BASE_URL")
	setString(&c.JWTSecret, "PREPPER_JWT_SECRET")
	setString(&c.Postmark.ServerToken, "POSTMARK_SERVER_TOKEN")
	setString(&c.Postmark.FromEmail, "POSTMARK_FROM_EMAIL")
	setString(&c.S3.Endpoint, "PREPPER_S3_ENDPOINT")
	setString(&c.S3.Bucket, "PREPPER_S3_BUCKET")
	setString(&c.S3.Region, "PREPPER_S3_REGION")
	setString(&c.S3.AccessKey, "PREPPER_S3_ACCESS_KEY")
	setString(&c.S3.SecretKey, "PREPPER_S3_SECRET_KEY")
	setString(&c.Backup.Passphrase, "PREPPER_BACKUP_PASSPHRASE")
	setString(&c.Backup.Prefix, "PREPPER_BACKUP_PREFIX")

	if v := os.Getenv("PREPPER_CORS_ORIGINS"); v != "" {
		c.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("PREPPER_TRUSTED_PROXIES"); v != "" {
		c.TrustedProxies = splitList(v)
	}
	if v := os.Getenv("PREPPER_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PREPPER_DEV: %w", err)
		}
		c.Dev = dev
	}
	if v := os.Getenv("PREPPER_TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PREPPER_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = ttl
	}
	if v := os.Getenv("PREPPER_BACKUP_RETENTION_DAYS"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PREPPER_BACKUP_RETENTION_DAYS: %w", err)
		}
		c.Backup.RetentionDays = days
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// TrustedProxyPrefixes parses TrustedProxies. A bare address stands for
// itself alone.
func (c *Config) TrustedProxyPrefixes() ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, entry := range c.TrustedProxies {
		if p, err := netip.ParsePrefix(entry); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			return nil, fmt.Errorf("trusted_proxies: %q is neither an address nor a CIDR", entry)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// Validate rejects settings the server cannot run with. In dev mode an
// empty JWT secret is replaced with a fixed development secret.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		if !c.Dev {
			return errors.New("PREPPER_JWT_SECRET is required outside dev mode")
		}
		c.JWTSecret = devSecret
	}
	if c.TokenTTL <= 0 {
		return errors.New("token_ttl must be positive")
	}
	if c.DBPath == "" {
		return errors.New("db_path is required")
	}
	if _, err := c.TrustedProxyPrefixes(); err != nil {
		return err
	}
	return nil
}

// BackupEnabled reports whether S3 credentials are complete.
func (c *Config) BackupEnabled() bool {
	return c.S3.Bucket != "" && c.S3.AccessKey != "" && c.S3.SecretKey != ""
}
