package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/farellandr/ridehail/internal/models"
)

type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`

	StripeSecretKey           string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeEphemeralKeyVersion string `mapstructure:"STRIPE_EPHEMERAL_KEY_VERSION"`

	ClerkJWKSURL string `mapstructure:"CLERK_JWKS_URL"`
	ClerkIssuer  string `mapstructure:"CLERK_ISSUER"`

	RedisURL              string `mapstructure:"REDIS_URL"`
	IdempotencyBoltPath   string `mapstructure:"IDEMPOTENCY_BOLT_PATH"`
	IdempotencyTTLMinutes int    `mapstructure:"IDEMPOTENCY_TTL_MINUTES"`

	RabbitMQURL    string `mapstructure:"RABBITMQ_URL"`
	EventsExchange string `mapstructure:"EVENTS_EXCHANGE"`

	ReceiptSigningKey  string `mapstructure:"RECEIPT_SIGNING_KEY"`
	VerifyRidePayments bool   `mapstructure:"VERIFY_RIDE_PAYMENTS"`

	ReconcileSchedule     string `mapstructure:"RECONCILE_SCHEDULE"`
	ReconcileGraceMinutes int    `mapstructure:"RECONCILE_GRACE_MINUTES"`
}

var envKeys = []string{
	"SERVER_PORT", "DATABASE_URL", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
	"STRIPE_SECRET_KEY", "STRIPE_EPHEMERAL_KEY_VERSION",
	"CLERK_JWKS_URL", "CLERK_ISSUER",
	"REDIS_URL", "IDEMPOTENCY_BOLT_PATH", "IDEMPOTENCY_TTL_MINUTES",
	"RABBITMQ_URL", "EVENTS_EXCHANGE",
	"RECEIPT_SIGNING_KEY", "VERIFY_RIDE_PAYMENTS",
	"RECONCILE_SCHEDULE", "RECONCILE_GRACE_MINUTES",
}

// LoadConfig reads configuration from the environment. When path is set the
// file is read first and environment variables override it.
func LoadConfig(path string) (*Config, error) {
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("STRIPE_EPHEMERAL_KEY_VERSION", "2024-06-20")
	viper.SetDefault("IDEMPOTENCY_BOLT_PATH", "idempotency.db")
	viper.SetDefault("IDEMPOTENCY_TTL_MINUTES", 24*60)
	viper.SetDefault("EVENTS_EXCHANGE", "ridehail.events")
	viper.SetDefault("VERIFY_RIDE_PAYMENTS", false)
	viper.SetDefault("RECONCILE_SCHEDULE", "@every 5m")
	viper.SetDefault("RECONCILE_GRACE_MINUTES", 10)
	viper.AutomaticEnv()

	for _, key := range envKeys {
		_ = viper.BindEnv(key)
	}
	// PORT is what most hosting platforms inject.
	_ = viper.BindEnv("SERVER_PORT", "SERVER_PORT", "PORT")

	if path != "" {
		viper.SetConfigFile(path)
		viper.SetConfigType("env")
		if err := viper.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.StripeSecretKey == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY is required")
	}
	if config.DatabaseURL == "" && config.DBHost == "" {
		return nil, fmt.Errorf("DATABASE_URL or DB_HOST is required")
	}

	return &config, nil
}

func (c *Config) IdempotencyTTL() time.Duration {
	return time.Duration(c.IdempotencyTTLMinutes) * time.Minute
}

func (c *Config) ReconcileGrace() time.Duration {
	return time.Duration(c.ReconcileGraceMinutes) * time.Minute
}

// DSN prefers DATABASE_URL and falls back to the individual DB_* settings.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

func enableUUIDExtension(db *gorm.DB) error {
	return db.Exec("CREATE EXTENSION IF NOT EXISTS \"uuid-ossp\"").Error
}

func InitDatabase(cfg *Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := enableUUIDExtension(db); err != nil {
		return nil, err
	}

	err = db.AutoMigrate(&models.User{}, &models.Ride{}, &models.PaymentAttempt{})
	if err != nil {
		return nil, err
	}

	return db, nil
}
