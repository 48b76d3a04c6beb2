package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// envKeys are the variables Load reads; every test starts with them unset.
var envKeys = []string{
	"ENV_NAME", "PORT", "WEATHER_API_KEY", "DISPLAY_TIMEZONE", "FAVORITES_BACKEND",
	"MEMCACHED_ADDRS", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
}

// isolate unsets envKeys, chdirs into a fresh temp dir and restores both on cleanup.
func isolate(t *testing.T) string {
	t.Helper()
	saved := make(map[string]string)
	for _, k := range envKeys {
		if v, ok := os.LookupEnv(k); ok {
			saved[k] = v
		}
		os.Unsetenv(k)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWd)
		for _, k := range envKeys {
			os.Unsetenv(k)
			if v, ok := saved[k]; ok {
				os.Setenv(k, v)
			}
		}
	})
	return dir
}

func TestLoad_FailsWhenNoAPIKey(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, minimalEnvYAML)

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error when no WEATHER_API_KEY and no secrets file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "WEATHER_API_KEY") {
		t.Errorf("Load() error = %v, want message containing WEATHER_API_KEY", err)
	}
}

func TestLoad_SucceedsWithSecretsFile(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\nredis_password: hunter2\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-secrets-file" {
		t.Errorf("WeatherAPIKey = %q, want key from secrets file", cfg.WeatherAPIKey)
	}
	if cfg.RedisPassword != "hunter2" {
		t.Errorf("RedisPassword = %q, want hunter2", cfg.RedisPassword)
	}
}

func TestLoad_SucceedsWithDotEnv(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: key-from-secrets-file\n")
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WEATHER_API_KEY=key-from-dotenv\nFAVORITES_BACKEND=sqlite\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-dotenv" {
		t.Errorf("WeatherAPIKey = %q, want .env value over secrets file", cfg.WeatherAPIKey)
	}
	if cfg.FavoritesBackend != "sqlite" {
		t.Errorf("FavoritesBackend = %q, want sqlite", cfg.FavoritesBackend)
	}
}

func TestLoad_EnvVarWinsOverDotEnv(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, minimalEnvYAML)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("WEATHER_API_KEY=key-from-dotenv\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	os.Setenv("WEATHER_API_KEY", "key-from-env")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPIKey != "key-from-env" {
		t.Errorf("WeatherAPIKey = %q, want env value", cfg.WeatherAPIKey)
	}
}

func TestLoad_EnvFileNotFound(t *testing.T) {
	isolate(t)
	os.Setenv("ENV_NAME", "nonexistent")

	cfg, err := Load()
	if err == nil {
		t.Fatal("Load() expected error for missing env file, got nil")
	}
	if cfg != nil {
		t.Fatalf("Load() expected nil config on error, got %+v", cfg)
	}
	if !strings.Contains(err.Error(), "nonexistent.yaml") {
		t.Errorf("Load() error = %v, want path of missing file", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, "server:\n  port: \"\"\n")
	os.Setenv("WEATHER_API_KEY", "test-key-12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"ServerPort", cfg.ServerPort, "8080"},
		{"WeatherAPIURL", cfg.WeatherAPIURL, "https://api.openweathermap.org/data/2.5"},
		{"WeatherAPITimeout", cfg.WeatherAPITimeout, 5 * time.Second},
		{"WeatherAPILanguage", cfg.WeatherAPILanguage, "kr"},
		{"RequestTimeout", cfg.RequestTimeout, 10 * time.Second},
		{"DisplayTimezone", cfg.DisplayTimezone, "Asia/Seoul"},
		{"CurrentRefreshInterval", cfg.CurrentRefreshInterval, 600 * time.Second},
		{"ForecastRefreshInterval", cfg.ForecastRefreshInterval, 1800 * time.Second},
		{"LocateTimeout", cfg.LocateTimeout, 10 * time.Second},
		{"FavoritesBackend", cfg.FavoritesBackend, "file"},
		{"FavoritesRecord", cfg.FavoritesRecord, "favorite-cities"},
		{"FavoritesFilePath", cfg.FavoritesFilePath, filepath.Join("data", "favorites.json")},
		{"MemcachedAddrs", cfg.MemcachedAddrs, "localhost:11211"},
		{"MemcachedMaxIdleConns", cfg.MemcachedMaxIdleConns, 2},
		{"RedisAddr", cfg.RedisAddr, "localhost:6379"},
		{"RateLimitRPS", cfg.RateLimitRPS, 20},
		{"RateLimitBurst", cfg.RateLimitBurst, 40},
		{"ShutdownTimeout", cfg.ShutdownTimeout, 30 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
	if cfg.DisplayLocation == nil || cfg.DisplayLocation.String() != "Asia/Seoul" {
		t.Errorf("DisplayLocation = %v, want Asia/Seoul", cfg.DisplayLocation)
	}
	if cfg.HomePosition != nil {
		t.Errorf("HomePosition = %+v, want nil", cfg.HomePosition)
	}
}

func TestLoad_FullFile(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, fullEnvYAML)
	os.Setenv("WEATHER_API_KEY", "test-key-12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "9090" || cfg.WeatherAPILanguage != "en" {
		t.Errorf("ServerPort = %q, language = %q", cfg.ServerPort, cfg.WeatherAPILanguage)
	}
	if cfg.DisplayLocation.String() != "UTC" {
		t.Errorf("DisplayLocation = %v, want UTC", cfg.DisplayLocation)
	}
	if cfg.CurrentRefreshInterval != 2*time.Minute || cfg.ForecastRefreshInterval != 15*time.Minute {
		t.Errorf("intervals = %v, %v", cfg.CurrentRefreshInterval, cfg.ForecastRefreshInterval)
	}
	if cfg.HomePosition == nil || cfg.HomePosition.Latitude != 35.1796 || cfg.HomePosition.Longitude != 129.0756 {
		t.Errorf("HomePosition = %+v", cfg.HomePosition)
	}
	if cfg.FavoritesBackend != "redis" || cfg.RedisAddr != "redis:6379" || cfg.RedisDB != 3 {
		t.Errorf("favorites = %q %q %d", cfg.FavoritesBackend, cfg.RedisAddr, cfg.RedisDB)
	}
	if len(cfg.TrackedCities) != 2 || cfg.TrackedCities[0] != "서울" {
		t.Errorf("TrackedCities = %v", cfg.TrackedCities)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, fullEnvYAML)
	os.Setenv("WEATHER_API_KEY", "test-key-12345")
	os.Setenv("PORT", "7070")
	os.Setenv("FAVORITES_BACKEND", "Memcached")
	os.Setenv("MEMCACHED_ADDRS", "mc1:11211,mc2:11211")
	os.Setenv("REDIS_DB", "5")
	os.Setenv("DISPLAY_TIMEZONE", "Europe/Berlin")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.ServerPort != "7070" {
		t.Errorf("ServerPort = %q, want 7070", cfg.ServerPort)
	}
	if cfg.FavoritesBackend != "memcached" {
		t.Errorf("FavoritesBackend = %q, want memcached", cfg.FavoritesBackend)
	}
	if cfg.MemcachedAddrs != "mc1:11211,mc2:11211" {
		t.Errorf("MemcachedAddrs = %q", cfg.MemcachedAddrs)
	}
	if cfg.RedisDB != 5 {
		t.Errorf("RedisDB = %d, want 5", cfg.RedisDB)
	}
	if cfg.DisplayLocation.String() != "Europe/Berlin" {
		t.Errorf("DisplayLocation = %v", cfg.DisplayLocation)
	}
}

func TestLoad_InvalidDurationFallsBackToDefault(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, `
weather_api:
  timeout: "not-a-duration"
dashboard:
  current_refresh_interval: "soon"
shutdown:
  timeout: "-5s"
`)
	os.Setenv("WEATHER_API_KEY", "test-key-12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.WeatherAPITimeout != 5*time.Second {
		t.Errorf("WeatherAPITimeout = %v, want default 5s", cfg.WeatherAPITimeout)
	}
	if cfg.CurrentRefreshInterval != 600*time.Second {
		t.Errorf("CurrentRefreshInterval = %v, want default", cfg.CurrentRefreshInterval)
	}
	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want default", cfg.ShutdownTimeout)
	}
}

func TestLoad_RequestTimeoutRaisedAboveAPITimeout(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, `
weather_api:
  timeout: "8s"
request:
  timeout: "3s"
`)
	os.Setenv("WEATHER_API_KEY", "test-key-12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.RequestTimeout != 9*time.Second {
		t.Errorf("RequestTimeout = %v, want 9s", cfg.RequestTimeout)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"zero api timeout", "weather_api:\n  timeout: \"0s\"\n", "WEATHER_API_TIMEOUT"},
		{"unknown backend", "favorites:\n  backend: etcd\n", "favorites.backend"},
		{"unknown timezone", "dashboard:\n  timezone: Mars/Olympus\n", "dashboard.timezone"},
		{"sub-second refresh", "dashboard:\n  current_refresh_interval: \"500ms\"\n", "refresh intervals"},
		{"home out of range", "geolocation:\n  home:\n    latitude: 120\n    longitude: 0\n", "geolocation.home"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			writeEnvFile(t, dir, tt.yaml)
			os.Setenv("WEATHER_API_KEY", "test-key-12345")

			cfg, err := Load()
			if err == nil {
				t.Fatalf("Load() expected error, got config %+v", cfg)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_InvalidRedisDBEnv(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, minimalEnvYAML)
	os.Setenv("WEATHER_API_KEY", "test-key-12345")
	os.Setenv("REDIS_DB", "zero")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "REDIS_DB") {
		t.Errorf("Load() error = %v, want REDIS_DB error", err)
	}
}

func TestLoad_InvalidSecretsYAML(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, minimalEnvYAML)
	writeSecretsFile(t, dir, "weather_api_key: [unclosed\n")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse secrets file") {
		t.Errorf("Load() error = %v, want secrets parse error", err)
	}
}

func TestLoad_InvalidConfigYAML(t *testing.T) {
	dir := isolate(t)
	writeEnvFile(t, dir, "server: [unclosed\n")
	os.Setenv("WEATHER_API_KEY", "test-key-12345")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse config file") {
		t.Errorf("Load() error = %v, want config parse error", err)
	}
}

func TestLoad_ProjectDevConfig(t *testing.T) {
	root := findProjectRoot(t)
	isolate(t)
	if err := os.Chdir(root); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	os.Setenv("WEATHER_API_KEY", "test-key-12345")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with config/dev.yaml error = %v", err)
	}
	if cfg.FavoritesBackend == "" || cfg.DisplayLocation == nil {
		t.Errorf("dev config incomplete: %+v", cfg)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", time.Minute},
		{"  30s ", 30 * time.Second},
		{"garbage", time.Minute},
		{"0s", time.Minute},
		{"-1s", time.Minute},
	}
	for _, tt := range tests {
		if got := parseDuration(tt.in, time.Minute); got != tt.want {
			t.Errorf("parseDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := parseDurationOrZero("0s", time.Minute); got != 0 {
		t.Errorf("parseDurationOrZero(0s) = %v, want 0", got)
	}
}

const minimalEnvYAML = `
server:
  port: "8080"
`

const fullEnvYAML = `
server:
  port: "9090"
weather_api:
  url: "http://localhost:9999/data/2.5"
  timeout: "3s"
  language: "en"
request:
  timeout: "6s"
dashboard:
  timezone: "UTC"
  current_refresh_interval: "2m"
  forecast_refresh_interval: "15m"
geolocation:
  timeout: "5s"
  home:
    latitude: 35.1796
    longitude: 129.0756
favorites:
  backend: redis
  record: test-favorites
  redis:
    addr: "redis:6379"
    db: 3
rate_limit:
  rps: 5
  burst: 10
shutdown:
  timeout: "10s"
metrics:
  tracked_cities:
    - 서울
    - 부산
`

func writeEnvFile(t *testing.T, dir, content string) {
	t.Helper()
	configDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "dev.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}
}

func writeSecretsFile(t *testing.T, dir, content string) {
	t.Helper()
	secretsDir := filepath.Join(dir, "config")
	if err := os.MkdirAll(secretsDir, 0755); err != nil {
		t.Fatalf("mkdir config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(secretsDir, "secrets.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("write secrets file: %v", err)
	}
}

func findProjectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "config", "dev.yaml")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("config/dev.yaml not found (run tests from project root)")
		}
		dir = parent
	}
}
