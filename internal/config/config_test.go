package config

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "production",
		Port:                     "8080",
		JWTSecret:                "secure-secret-at-least-32-chars-long",
		DBDriver:                 "postgres",
		DBPassword:               "secure-password",
		DBSSLMode:                "require",
		DBConnMaxLifetimeMinutes: 1,
		RedisURL:                 "redis://localhost:6379",
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production", func(c *Config) {}, false},
		{"production with disabled TLS", func(c *Config) { c.DBSSLMode = "disable" }, true},
		{"production with empty TLS mode", func(c *Config) { c.DBSSLMode = "" }, true},
		{"production with default secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"production with short secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"production with default db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"production on sqlite", func(c *Config) { c.DBDriver = "sqlite" }, true},
		{"development with disabled TLS", func(c *Config) { c.Env = "development"; c.DBSSLMode = "disable" }, false},
		{"test on sqlite", func(c *Config) { c.Env = "test"; c.DBDriver = "sqlite" }, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"unknown driver", func(c *Config) { c.DBDriver = "mysql" }, true},
		{"minio without credentials", func(c *Config) { c.MinioEndpoint = "localhost:9000" }, true},
		{"minio with credentials", func(c *Config) {
			c.MinioEndpoint = "localhost:9000"
			c.MinioAccessKey = "ak"
			c.MinioSecretKey = "sk"
		}, false},
	}

	for _, tt := range tests {
		tt := tt
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

func TestLoadConfig_EnvOverridesAndNormalization(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("APP_ENV", "development")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("GATEWAY_URL", "http://forum.local:8375/")
	t.Setenv("MEILI_URL", "http://meili:7700")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "http://forum.local:8375", c.GatewayURL)
	assert.Equal(t, "http://meili:7700", c.MeiliURL)
	assert.Equal(t, "bitboard-media", c.MinioBucket)
	assert.Equal(t, 24*7, c.TokenTTLHours)
	assert.False(t, c.IsProduction())
}
