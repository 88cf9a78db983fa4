package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage providers accepted by STORAGE_PROVIDER.
const (
	StorageLocal  = "local"
	StorageGCS    = "gcs"
	StorageMemory = "memory"
)

type Config struct {
	Port             string        `mapstructure:"PORT"`
	Env              string        `mapstructure:"ENV"`
	DatabaseURL      string        `mapstructure:"DATABASE_URL"`
	DBMaxConns       int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns       int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL         string        `mapstructure:"REDIS_URL"`
	AuthIssuer       string        `mapstructure:"AUTH_ISSUER"`
	AuthJWKSURL      string        `mapstructure:"AUTH_JWKS_URL"`
	AuthAudience     string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey   string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins      []string      `mapstructure:"CORS_ORIGINS"`
	OCRAPI           string        `mapstructure:"OCR_API"`
	RetrieverAPI     string        `mapstructure:"RETRIEVER_API"`
	OutboundTimeout  time.Duration `mapstructure:"OUTBOUND_TIMEOUT"`
	StorageProvider  string        `mapstructure:"STORAGE_PROVIDER"`
	UploadDir        string        `mapstructure:"UPLOAD_DIR"`
	PublicUploadPath string        `mapstructure:"PUBLIC_UPLOAD_PATH"`
	GCSBucket        string        `mapstructure:"GCS_BUCKET"`
	GCSCredentials   string        `mapstructure:"GCS_CREDENTIALS_JSON"`
	MaxUploadSize    string        `mapstructure:"MAX_UPLOAD_SIZE"`
}

var envKeys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
	"AUTH_ISSUER", "AUTH_JWKS_URL", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY", "CORS_ORIGINS",
	"OCR_API", "RETRIEVER_API", "OUTBOUND_TIMEOUT",
	"STORAGE_PROVIDER", "UPLOAD_DIR", "PUBLIC_UPLOAD_PATH", "GCS_BUCKET", "GCS_CREDENTIALS_JSON",
	"MAX_UPLOAD_SIZE",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "5001")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("OCR_API", "http://0.0.0.0:7000/ocr")
	v.SetDefault("RETRIEVER_API", "http://0.0.0.0:9000/analyze")
	v.SetDefault("OUTBOUND_TIMEOUT", "60s")
	v.SetDefault("STORAGE_PROVIDER", StorageLocal)
	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("PUBLIC_UPLOAD_PATH", "/uploads")
	v.SetDefault("MAX_UPLOAD_SIZE", "20M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a token verification source (shared key or issuer) must be configured, and
// the selected storage provider must have what it needs.
func (c *Config) Validate() error {
	if !c.IsDev() && c.AuthSigningKey == "" && c.AuthIssuer == "" {
		return fmt.Errorf(
			"AUTH_SIGNING_KEY or AUTH_ISSUER must be set outside development (current ENV=%q)", c.Env)
	}

	switch c.StorageProvider {
	case StorageLocal:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required when STORAGE_PROVIDER is %q", StorageLocal)
		}
	case StorageGCS:
		if c.GCSBucket == "" {
			return fmt.Errorf("GCS_BUCKET is required when STORAGE_PROVIDER is %q", StorageGCS)
		}
	case StorageMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORAGE_PROVIDER %q is not allowed in production", StorageMemory)
		}
	default:
		return fmt.Errorf("STORAGE_PROVIDER must be \"local\", \"gcs\", or \"memory\", got %q", c.StorageProvider)
	}

	if c.OutboundTimeout <= 0 {
		return fmt.Errorf("OUTBOUND_TIMEOUT must be positive, got %s", c.OutboundTimeout)
	}

	return nil
}
