package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                "8375",
		Env:                 "development",
		JWTSecret:           "secure-secret-at-least-32-chars-long",
		DBPassword:          "secure-password",
		DBSSLMode:           "require",
		AuthRequired:        true,
		ViewerTickInterval:  3 * time.Second,
		MessageMaxLength:    500,
		StatusCacheTTL:      2 * time.Second,
		TracingSamplerRatio: 1,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid development", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing jwt secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"zero tick interval", func(c *Config) { c.ViewerTickInterval = 0 }, true},
		{"zero message length", func(c *Config) { c.MessageMaxLength = 0 }, true},
		{"negative cache ttl", func(c *Config) { c.StatusCacheTTL = -time.Second }, true},
		{"sampler out of range", func(c *Config) { c.TracingSamplerRatio = 1.5 }, true},
		{"production valid", func(c *Config) { c.Env = "production" }, false},
		{"production default secret", func(c *Config) {
			c.Env = "production"
			c.JWTSecret = defaultJWTSecret
		}, true},
		{"production short secret", func(c *Config) {
			c.Env = "prod"
			c.JWTSecret = "short"
		}, true},
		{"production default db password", func(c *Config) {
			c.Env = "production"
			c.DBPassword = "password"
		}, true},
		{"production ssl disabled", func(c *Config) {
			c.Env = "production"
			c.DBSSLMode = "disable"
		}, true},
		{"production optional auth", func(c *Config) {
			c.Env = "production"
			c.AuthRequired = false
		}, true},
		{"development optional auth", func(c *Config) { c.AuthRequired = false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	defer viper.Reset()

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8375", c.Port)
	assert.Equal(t, 3*time.Second, c.ViewerTickInterval)
	assert.Equal(t, 2*time.Second, c.StatusCacheTTL)
	assert.Equal(t, 500, c.MessageMaxLength)
	assert.Equal(t, "hybrid", c.DBSchemaMode)
	assert.False(t, c.AuthRequired)
}

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("VIEWER_TICK_INTERVAL", "750ms")
	t.Setenv("MESSAGE_MAX_LENGTH", "280")
	defer viper.Reset()

	c, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, 750*time.Millisecond, c.ViewerTickInterval)
	assert.Equal(t, 280, c.MessageMaxLength)
}
