// Package config loads the service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Image store backends.
const (
	ImageStoreS3    = "s3"
	ImageStoreLocal = "local"
)

type DatabaseConfig struct {
	Driver string
	DSN    string
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type StorageConfig struct {
	Backend string
	// PublicDir is served at "/"; profile pictures of the local backend land
	// in PublicDir/static.
	PublicDir        string
	Bucket           string
	Region           string
	AccessKey        string
	SecretKey        string
	Endpoint         string
	CloudFrontDomain string
}

type RabbitMQConfig struct {
	URL   string
	Queue string
}

// AdminConfig describes the admin account seeded at startup. Seeding is
// skipped when Username is empty.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

// Config holds all settings of the service.
type Config struct {
	AppPort     string
	CORSOrigins string
	LogFile     string
	Database    DatabaseConfig
	Auth        AuthConfig
	Gemini      GeminiConfig
	Storage     StorageConfig
	RabbitMQ    RabbitMQConfig
	Admin       AdminConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("LOG_FILE", "log.txt")
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=raidentrack port=5432 sslmode=disable")
	v.SetDefault("ACCESS_TOKEN_TTL", "30m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash-thinking-exp-01-21")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("IMAGE_STORE", ImageStoreLocal)
	v.SetDefault("PUBLIC_DIR", "public")
	v.SetDefault("RABBITMQ_QUEUE", "raidentrack_events")
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
		log.Println("Loaded settings from .env")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()
	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		CORSOrigins: v.GetString("CORS_ORIGINS"),
		LogFile:     v.GetString("LOG_FILE"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("DATABASE_DRIVER")),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: AuthConfig{
			JWTSecret:       v.GetString("JWT_SECRET"),
			AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
			RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		},
		Gemini: GeminiConfig{
			APIKey:  v.GetString("GEMINI_API_KEY"),
			Model:   v.GetString("GEMINI_MODEL"),
			BaseURL: v.GetString("GEMINI_BASE_URL"),
		},
		Storage: StorageConfig{
			Backend:          strings.ToLower(v.GetString("IMAGE_STORE")),
			PublicDir:        v.GetString("PUBLIC_DIR"),
			Bucket:           v.GetString("AWS_BUCKET_NAME"),
			Region:           v.GetString("AWS_BUCKET_REGION"),
			AccessKey:        v.GetString("AWS_ACCESS_KEY"),
			SecretKey:        v.GetString("AWS_SECRET_KEY"),
			Endpoint:         v.GetString("S3_ENDPOINT"),
			CloudFrontDomain: v.GetString("CLOUDFRONT_DOMAIN"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:   v.GetString("RABBITMQ_URL"),
			Queue: v.GetString("RABBITMQ_QUEUE"),
		},
		Admin: AdminConfig{
			Username: v.GetString("ADMIN_USERNAME"),
			Email:    v.GetString("ADMIN_EMAIL"),
			Password: v.GetString("ADMIN_PASSWORD"),
		},
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	var errs []error
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET must be set"))
	}
	if c.Auth.AccessTokenTTL <= 0 || c.Auth.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL and REFRESH_TOKEN_TTL must be positive durations"))
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver))
	}
	switch c.Storage.Backend {
	case ImageStoreLocal:
	case ImageStoreS3:
		if c.Storage.Bucket == "" || c.Storage.Region == "" {
			errs = append(errs, errors.New("AWS_BUCKET_NAME and AWS_BUCKET_REGION must be set for the s3 image store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported IMAGE_STORE %q", c.Storage.Backend))
	}
	if c.Admin.Username != "" && c.Admin.Password == "" {
		errs = append(errs, errors.New("ADMIN_PASSWORD must be set when ADMIN_USERNAME is"))
	}
	return errors.Join(errs...)
}
