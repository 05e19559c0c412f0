package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the portal.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Redis     RedisConfig     `yaml:"redis"`
	Shopify   ShopifyConfig   `yaml:"shopify"`
	Recharge  RechargeConfig  `yaml:"recharge"`
	Discord   DiscordConfig   `yaml:"discord"`
	Storage   StorageConfig   `yaml:"storage"`
	Auth      AuthConfig      `yaml:"auth"`
	Audit     AuditConfig     `yaml:"audit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection.
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

// ShopifyConfig holds Shopify Admin API configuration.
type ShopifyConfig struct {
	BaseURL        string `yaml:"base_url"`
	AccessToken    string `yaml:"access_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the configured timeout as a duration.
func (c ShopifyConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RechargeConfig holds Recharge API configuration.
type RechargeConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIToken       string `yaml:"api_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Enabled        bool   `yaml:"enabled"`
}

// Timeout returns the configured timeout as a duration.
func (c RechargeConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DiscordConfig holds the ops-channel webhook.
type DiscordConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	Enabled    bool   `yaml:"enabled"`
}

// StorageConfig holds S3 settings for run report exports.
type StorageConfig struct {
	S3Bucket   string `yaml:"s3_bucket"`
	AWSRegion  string `yaml:"aws_region"`
	AWSProfile string `yaml:"aws_profile"` // Empty string uses default credential chain (IAM role)
	Enabled    bool   `yaml:"enabled"`
}

// GetAWSProfile returns the AWS profile, with environment variable override.
func (c StorageConfig) GetAWSProfile() string {
	if envProfile := os.Getenv("AWS_PROFILE_OVERRIDE"); envProfile != "" {
		if envProfile == "none" || envProfile == "iam" {
			return ""
		}
		return envProfile
	}
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "" // Running on ECS or Lambda, use IAM role
	}
	return c.AWSProfile
}

// AuthConfig holds Google OAuth authentication configuration.
type AuthConfig struct {
	Enabled            bool   `yaml:"enabled"`
	GoogleClientID     string `yaml:"google_client_id"`
	GoogleClientSecret string `yaml:"google_client_secret"`
	AllowedDomain      string `yaml:"allowed_domain"`
	SessionSecret      string `yaml:"session_secret"`
	CookieName         string `yaml:"cookie_name"`
	CookieMaxAge       int    `yaml:"cookie_max_age"`
}

// AuditConfig tunes the batch runner.
type AuditConfig struct {
	BatchSize            int `yaml:"batch_size"`
	InterSubscriberMs    int `yaml:"inter_subscriber_ms"`
	OrderSourcePerSecond int `yaml:"order_source_per_second"`
}

// InterSubscriberDelay returns the fixed pause between subscribers.
func (c AuditConfig) InterSubscriberDelay() time.Duration {
	return time.Duration(c.InterSubscriberMs) * time.Millisecond
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Shopify.TimeoutSeconds == 0 {
		cfg.Shopify.TimeoutSeconds = 30
	}
	if cfg.Recharge.TimeoutSeconds == 0 {
		cfg.Recharge.TimeoutSeconds = 30
	}
	if cfg.Recharge.BaseURL == "" {
		cfg.Recharge.BaseURL = "https://api.rechargeapps.com"
	}
	if cfg.Storage.AWSRegion == "" {
		cfg.Storage.AWSRegion = "us-east-1"
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "boxops_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 86400
	}
	if cfg.Audit.BatchSize == 0 {
		cfg.Audit.BatchSize = 10
	}
	if cfg.Audit.InterSubscriberMs == 0 {
		cfg.Audit.InterSubscriberMs = 500
	}
	if cfg.Audit.OrderSourcePerSecond == 0 {
		cfg.Audit.OrderSourcePerSecond = 2
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("SHOPIFY_BASE_URL"); v != "" {
		cfg.Shopify.BaseURL = v
	}
	if v := os.Getenv("SHOPIFY_ACCESS_TOKEN"); v != "" {
		cfg.Shopify.AccessToken = v
	}
	if v := os.Getenv("RECHARGE_API_TOKEN"); v != "" {
		cfg.Recharge.APIToken = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Discord.WebhookURL = v
		cfg.Discord.Enabled = true
	}
	if v := os.Getenv("REPORTS_S3_BUCKET"); v != "" {
		cfg.Storage.S3Bucket = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Auth.GoogleClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Auth.GoogleClientSecret = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Auth.SessionSecret = v
	}
	if v := os.Getenv("AUTH_ALLOWED_DOMAIN"); v != "" {
		cfg.Auth.AllowedDomain = v
	}

	return cfg, nil
}
