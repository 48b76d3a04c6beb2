//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
)

// IntegrationTestConfig holds the live endpoints integration tests talk to.
type IntegrationTestConfig struct {
	APIKey         string
	APIURL         string
	MemcachedAddrs string
	RedisAddr      string
	RedisPassword  string
}

// GetIntegrationConfig loads integration test configuration from environment.
// Backend addresses default to the local ports used by docker run.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	t.Helper()
	return IntegrationTestConfig{
		APIKey:         os.Getenv("WEATHER_API_KEY"),
		APIURL:         envOr("WEATHER_API_URL", "https://api.openweathermap.org/data/2.5"),
		MemcachedAddrs: envOr("MEMCACHED_ADDRS", "localhost:11211"),
		RedisAddr:      envOr("REDIS_ADDR", "localhost:6379"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
	}
}

// RequireAPIKey returns the configuration, skipping the test when
// WEATHER_API_KEY is not set.
func RequireAPIKey(t *testing.T) IntegrationTestConfig {
	t.Helper()
	cfg := GetIntegrationConfig(t)
	if cfg.APIKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
