// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-secret-key-change-in-production"

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                          string        `mapstructure:"PORT"`
	Env                           string        `mapstructure:"APP_ENV"`
	DBHost                        string        `mapstructure:"DB_HOST"`
	DBPort                        string        `mapstructure:"DB_PORT"`
	DBUser                        string        `mapstructure:"DB_USER"`
	DBPassword                    string        `mapstructure:"DB_PASSWORD"`
	DBName                        string        `mapstructure:"DB_NAME"`
	DBSSLMode                     string        `mapstructure:"DB_SSLMODE"`
	DBMaxOpenConns                int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int           `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSchemaMode                  string        `mapstructure:"DB_SCHEMA_MODE"`
	DBAutoMigrateAllowDestructive bool          `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	RedisURL                      string        `mapstructure:"REDIS_URL"`
	JWTSecret                     string        `mapstructure:"JWT_SECRET"`
	AuthRequired                  bool          `mapstructure:"AUTH_REQUIRED"`
	AllowedOrigins                string        `mapstructure:"ALLOWED_ORIGINS"`
	FeatureFlags                  string        `mapstructure:"FEATURE_FLAGS"`
	ViewerTickInterval            time.Duration `mapstructure:"VIEWER_TICK_INTERVAL"`
	MessageMaxLength              int           `mapstructure:"MESSAGE_MAX_LENGTH"`
	StatusCacheTTL                time.Duration `mapstructure:"STATUS_CACHE_TTL"`
	TracingEnabled                bool          `mapstructure:"TRACING_ENABLED"`
	TracingExporter               string        `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint                  string        `mapstructure:"OTLP_ENDPOINT"`
	TracingSamplerRatio           float64       `mapstructure:"TRACING_SAMPLER_RATIO"`
	SentryDSN                     string        `mapstructure:"SENTRY_DSN"`
	SeedDemoData                  bool          `mapstructure:"SEED_DEMO_DATA"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base file is optional; env vars and defaults are enough to boot.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "hubmedia")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("AUTH_REQUIRED", false)
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173")
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("VIEWER_TICK_INTERVAL", "3s")
	viper.SetDefault("MESSAGE_MAX_LENGTH", 500)
	viper.SetDefault("STATUS_CACHE_TTL", "2s")
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "stdout")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
	viper.SetDefault("SENTRY_DSN", "")
	viper.SetDefault("SEED_DEMO_DATA", false)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.TracingExporter = strings.ToLower(strings.TrimSpace(c.TracingExporter))
}

// IsProduction reports whether the config targets a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.ViewerTickInterval <= 0 {
		return errors.New("VIEWER_TICK_INTERVAL must be positive")
	}
	if c.MessageMaxLength <= 0 {
		return errors.New("MESSAGE_MAX_LENGTH must be positive")
	}
	if c.StatusCacheTTL < 0 {
		return errors.New("STATUS_CACHE_TTL must not be negative")
	}
	if c.TracingSamplerRatio < 0 || c.TracingSamplerRatio > 1 {
		return errors.New("TRACING_SAMPLER_RATIO must be between 0 and 1")
	}

	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			return errors.New("DB_SSLMODE must enable TLS in production")
		}
		if !c.AuthRequired {
			return errors.New("AUTH_REQUIRED must be true in production")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else if len(c.JWTSecret) < 32 {
		log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
	}

	return nil
}
