package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Ingestion IngestionConfig `mapstructure:"ingestion"`
	Log       LogConfig       `mapstructure:"log"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // "development" or "production"
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`            // "sqlite" or "postgres"
	DSN             string `mapstructure:"dsn"`               // Connection string
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`    // Maximum idle connections (Postgres)
	MaxOpenConns    int    `mapstructure:"max_open_conns"`    // Maximum open connections (Postgres)
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"` // Connection max lifetime in minutes (Postgres)
	LogLevel        string `mapstructure:"log_level"`         // GORM log level, falls back to log.level
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret  string        `mapstructure:"jwt_secret"`  // Secret for JWT signing
	TokenTTL   time.Duration `mapstructure:"token_ttl"`   // Lifetime of issued tokens
	BcryptCost int           `mapstructure:"bcrypt_cost"` // bcrypt work factor
}

// StorageConfig holds uploaded file storage configuration
type StorageConfig struct {
	Backend     string   `mapstructure:"backend"`       // "local" or "s3"
	UploadDir   string   `mapstructure:"upload_dir"`    // Directory for the local backend
	MaxUploadMB int64    `mapstructure:"max_upload_mb"` // Maximum multipart body size
	S3          S3Config `mapstructure:"s3"`
}

// S3Config holds S3 (or S3-compatible) object storage settings
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"` // e.g. MinIO; empty for AWS
	AccessKey    string `mapstructure:"access_key"`
	SecretKey    string `mapstructure:"secret_key"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	Prefix       string `mapstructure:"prefix"`
}

// IngestionConfig holds the upstream ingestion service settings
type IngestionConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Format string `mapstructure:"format"` // "json" or "text"
	Level  string `mapstructure:"level"`  // "debug", "info", "warn", "error"
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// DefaultIngestionURL is the upstream used when none is configured.
const DefaultIngestionURL = "http://python-backend:5000/start-ingestion"

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Read from config file if exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/docshelf/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found, using defaults
	}

	// Environment variables override
	v.SetEnvPrefix("DOCSHELF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Variable names used by existing deployments
	_ = v.BindEnv("server.port", "DOCSHELF_SERVER_PORT", "PORT")
	_ = v.BindEnv("auth.jwt_secret", "DOCSHELF_AUTH_JWT_SECRET", "JWT_SECRET")
	_ = v.BindEnv("ingestion.url", "DOCSHELF_INGESTION_URL", "PYTHON_BACKEND_URL")
	_ = v.BindEnv("database.dsn", "DOCSHELF_DATABASE_DSN", "DATABASE_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// A PostgreSQL URL, typically from DATABASE_URL, selects its own driver.
	if cfg.Database.Driver == "sqlite" && isPostgresURL(cfg.Database.DSN) {
		cfg.Database.Driver = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func isPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "development")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./docshelf.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60) // 60 minutes
	v.SetDefault("auth.jwt_secret", "change-me-in-production")
	v.SetDefault("auth.token_ttl", "15h")
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.upload_dir", "./uploads")
	v.SetDefault("storage.max_upload_mb", 32)
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("ingestion.url", DefaultIngestionURL)
	v.SetDefault("ingestion.timeout", "30s")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")
	v.SetDefault("metrics.enabled", true)
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	switch c.Database.Driver {
	case "sqlite", "postgres", "postgresql":
	default:
		return fmt.Errorf("unsupported database driver: %s (supported: sqlite, postgres)", c.Database.Driver)
	}
	if c.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret must not be empty")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	switch c.Storage.Backend {
	case "local":
		if c.Storage.UploadDir == "" {
			return errors.New("storage.upload_dir is required when storage backend is local")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required when storage backend is s3")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (supported: local, s3)", c.Storage.Backend)
	}
	if c.Ingestion.URL == "" {
		return errors.New("ingestion.url must not be empty")
	}
	return nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Mode == "production"
}
