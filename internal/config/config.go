package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds dashboard configuration loaded from YAML, .env and the environment.
type Config struct {
	ServerPort string

	WeatherAPIKey      string
	WeatherAPIURL      string
	WeatherAPITimeout  time.Duration
	WeatherAPILanguage string

	RequestTimeout time.Duration

	DisplayTimezone         string
	DisplayLocation         *time.Location
	CurrentRefreshInterval  time.Duration
	ForecastRefreshInterval time.Duration

	LocateTimeout time.Duration
	// HomePosition is used by the locate endpoint when the browser reports nothing.
	HomePosition *Position

	FavoritesBackend      string // memory, file, sqlite, memcached or redis
	FavoritesRecord       string
	FavoritesFilePath     string
	FavoritesSQLitePath   string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int
	RedisAddr             string
	RedisPassword         string
	RedisDB               int

	RateLimitRPS   int
	RateLimitBurst int

	ShutdownTimeout time.Duration

	TrackedCities []string
}

// Position is a configured latitude/longitude pair.
type Position struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL      string `yaml:"url"`
		Timeout  string `yaml:"timeout"`
		Language string `yaml:"language"`
	} `yaml:"weather_api"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Dashboard struct {
		Timezone                string `yaml:"timezone"`
		CurrentRefreshInterval  string `yaml:"current_refresh_interval"`
		ForecastRefreshInterval string `yaml:"forecast_refresh_interval"`
	} `yaml:"dashboard"`

	Geolocation struct {
		Timeout string    `yaml:"timeout"`
		Home    *Position `yaml:"home"`
	} `yaml:"geolocation"`

	Favorites struct {
		Backend    string `yaml:"backend"`
		Record     string `yaml:"record"`
		FilePath   string `yaml:"file_path"`
		SQLitePath string `yaml:"sqlite_path"`
		Memcached  struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
		Redis struct {
			Addr string `yaml:"addr"`
			DB   int    `yaml:"db"`
		} `yaml:"redis"`
	} `yaml:"favorites"`

	RateLimit struct {
		RPS   int `yaml:"rps"`
		Burst int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	RedisPassword string `yaml:"redis_password"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), an
// optional .env file and config/secrets.yaml. Environment variables win over
// .env, which wins over the secrets file. Call from project root.
func Load() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	if err := godotenv.Load(filepath.Join(cwd, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env file: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	var sec secretsFile
	secretsData, err := os.ReadFile(filepath.Join(cwd, "config", "secrets.yaml"))
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read secrets file: %w", err)
		}
	} else if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return nil, fmt.Errorf("parse secrets file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.WeatherAPIKey = firstNonEmpty(os.Getenv("WEATHER_API_KEY"), sec.WeatherAPIKey)
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}
	cfg.WeatherAPIURL = firstNonEmpty(fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5")
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 5*time.Second)
	cfg.WeatherAPILanguage = firstNonEmpty(fc.WeatherAPI.Language, "kr")

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 10*time.Second)

	cfg.DisplayTimezone = firstNonEmpty(os.Getenv("DISPLAY_TIMEZONE"), fc.Dashboard.Timezone, "Asia/Seoul")
	cfg.CurrentRefreshInterval = parseDuration(fc.Dashboard.CurrentRefreshInterval, 600*time.Second)
	cfg.ForecastRefreshInterval = parseDuration(fc.Dashboard.ForecastRefreshInterval, 1800*time.Second)

	cfg.LocateTimeout = parseDuration(fc.Geolocation.Timeout, 10*time.Second)
	cfg.HomePosition = fc.Geolocation.Home

	cfg.FavoritesBackend = strings.TrimSpace(strings.ToLower(
		firstNonEmpty(os.Getenv("FAVORITES_BACKEND"), fc.Favorites.Backend, "file")))
	cfg.FavoritesRecord = firstNonEmpty(fc.Favorites.Record, "favorite-cities")
	cfg.FavoritesFilePath = firstNonEmpty(fc.Favorites.FilePath, filepath.Join("data", "favorites.json"))
	cfg.FavoritesSQLitePath = firstNonEmpty(fc.Favorites.SQLitePath, filepath.Join("data", "favorites.db"))

	cfg.MemcachedAddrs = firstNonEmpty(strings.TrimSpace(os.Getenv("MEMCACHED_ADDRS")), strings.TrimSpace(fc.Favorites.Memcached.Addrs), "localhost:11211")
	cfg.MemcachedTimeout = parseDuration(fc.Favorites.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Favorites.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RedisAddr = firstNonEmpty(strings.TrimSpace(os.Getenv("REDIS_ADDR")), strings.TrimSpace(fc.Favorites.Redis.Addr), "localhost:6379")
	cfg.RedisPassword = firstNonEmpty(os.Getenv("REDIS_PASSWORD"), sec.RedisPassword)
	cfg.RedisDB = fc.Favorites.Redis.DB
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("REDIS_DB must be an integer, got %q", v)
		}
		cfg.RedisDB = db
	}

	cfg.RateLimitRPS = fc.RateLimit.RPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 20
	}
	cfg.RateLimitBurst = fc.RateLimit.Burst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 40
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)
	cfg.TrackedCities = fc.Metrics.TrackedCities

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation and resolves the display timezone.
// RequestTimeout is raised above WeatherAPITimeout when needed.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("WEATHER_API_TIMEOUT must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + time.Second
	}
	if cfg.CurrentRefreshInterval < time.Second || cfg.ForecastRefreshInterval < time.Second {
		return fmt.Errorf("dashboard refresh intervals must be at least 1s")
	}
	loc, err := time.LoadLocation(cfg.DisplayTimezone)
	if err != nil {
		return fmt.Errorf("dashboard.timezone %q: %w", cfg.DisplayTimezone, err)
	}
	cfg.DisplayLocation = loc

	switch cfg.FavoritesBackend {
	case "memory", "file", "sqlite", "memcached", "redis":
		// valid
	default:
		return fmt.Errorf("favorites.backend must be memory, file, sqlite, memcached or redis, got %q", cfg.FavoritesBackend)
	}
	if p := cfg.HomePosition; p != nil {
		if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
			return fmt.Errorf("geolocation.home out of range: %v,%v", p.Latitude, p.Longitude)
		}
	}
	return nil
}
