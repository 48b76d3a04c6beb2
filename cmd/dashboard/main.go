package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/weather-dashboard/internal/cities"
	"github.com/kjstillabower/weather-dashboard/internal/client"
	"github.com/kjstillabower/weather-dashboard/internal/config"
	"github.com/kjstillabower/weather-dashboard/internal/dashboard"
	"github.com/kjstillabower/weather-dashboard/internal/favorites"
	"github.com/kjstillabower/weather-dashboard/internal/geolocation"
	httphandler "github.com/kjstillabower/weather-dashboard/internal/http"
	"github.com/kjstillabower/weather-dashboard/internal/lifecycle"
	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

const inFlightCheckInterval = 100 * time.Millisecond

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := client.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherAPIURL, cfg.WeatherAPILanguage, cfg.WeatherAPITimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	tracked := cfg.TrackedCities
	if len(tracked) == 0 {
		for _, c := range cities.All() {
			tracked = append(tracked, c.Name)
		}
	}
	observability.SetTrackedCities(tracked)

	backend, err := favorites.OpenBackend(favorites.Options{
		Backend:               cfg.FavoritesBackend,
		Record:                cfg.FavoritesRecord,
		FilePath:              cfg.FavoritesFilePath,
		SQLitePath:            cfg.FavoritesSQLitePath,
		MemcachedAddrs:        cfg.MemcachedAddrs,
		MemcachedTimeout:      cfg.MemcachedTimeout,
		MemcachedMaxIdleConns: cfg.MemcachedMaxIdleConns,
		RedisAddr:             cfg.RedisAddr,
		RedisPassword:         cfg.RedisPassword,
		RedisDB:               cfg.RedisDB,
	})
	if err != nil {
		logger.Fatal("favorites backend", zap.Error(err))
	}
	logger.Info("favorites backend", zap.String("backend", backend.Name), zap.String("record", cfg.FavoritesRecord))

	startupCtx, startupCancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	favs, err := favorites.NewService(startupCtx, backend, logger)
	startupCancel()
	if err != nil {
		logger.Fatal("favorites", zap.Error(err))
	}

	controller := dashboard.New(weatherClient, favs, logger, dashboard.Config{
		CurrentInterval:  cfg.CurrentRefreshInterval,
		ForecastInterval: cfg.ForecastRefreshInterval,
		Location:         cfg.DisplayLocation,
		LocateTimeout:    cfg.LocateTimeout,
	})

	var home geolocation.Locator
	if cfg.HomePosition != nil {
		home = geolocation.StaticLocator{Position: models.Coordinates{
			Latitude:  cfg.HomePosition.Latitude,
			Longitude: cfg.HomePosition.Longitude,
		}}
	}

	healthConfig := &httphandler.HealthConfig{
		StartTime:        time.Now(),
		FavoritesBackend: backend.Name,
		FavoritesPing:    backend.Ping,
		APIKeyCheck: func(ctx context.Context) error {
			return weatherClient.ValidateAPIKey(ctx, cities.Default().Coordinates)
		},
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(controller, favs, home, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, limiter, cfg.RequestTimeout)

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	if err := controller.Start(ctx); err != nil {
		logger.Fatal("dashboard", zap.Error(err))
	}
	lifecycle.SetReady(true)

	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	lifecycle.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}

	inFlight := httphandler.InFlightCount()
	logger.Info("waiting for in-flight requests", zap.Int64("count", inFlight))
	if err := httphandler.WaitForInFlight(shutdownCtx, inFlightCheckInterval); err != nil {
		logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
	}

	controller.Close()

	if err := backend.Close(); err != nil {
		logger.Error("favorites backend close", zap.Error(err))
	}
	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
