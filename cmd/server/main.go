// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/andresuchdata/stockwise/internal/api"
	"github.com/andresuchdata/stockwise/internal/cache"
	"github.com/andresuchdata/stockwise/internal/config"
	"github.com/andresuchdata/stockwise/internal/service"
	"github.com/andresuchdata/stockwise/internal/source"
	"github.com/andresuchdata/stockwise/pkg/logger"
)

func main() {
	cfg := config.Load()

	logger.Configure(cfg.Log.Level, cfg.Log.Format)
	if cfg.Server.Mode == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rowSource, closeSource, err := source.New(ctx, cfg)
	if err != nil {
		logger.Log.Fatal().Err(err).Str("kind", cfg.Source.Kind).Msg("Failed to build dataset source")
	}
	defer closeSource()

	analyticsCache, err := cache.NewAnalyticsCache(cfg.Cache)
	if err != nil {
		logger.Log.Warn().Err(err).Msg("Cache unavailable, continuing without memoization")
		analyticsCache = cache.NewNoopAnalyticsCache()
	}

	analytics := service.NewAnalyticsService(rowSource, analyticsCache, service.ForecastDefaults{
		WindowMonths:   cfg.Forecast.WindowMonths,
		TargetMonths:   cfg.Forecast.TargetMonths,
		LeadTimeMonths: cfg.Forecast.LeadTimeMonths,
		BufferMonths:   cfg.Forecast.BufferMonths,
		Motives:        cfg.Forecast.Motives,
	})

	// A failed first load leaves the API answering 503 until a refresh succeeds.
	if _, err := analytics.Refresh(ctx); err != nil {
		logger.Log.Error().Err(err).Str("source", rowSource.Name()).Msg("Initial dataset load failed")
	}
	if cfg.Source.RefreshInterval > 0 {
		go refreshLoop(ctx, analytics, cfg.Source.RefreshInterval)
	}

	router := api.NewRouter(&api.Services{Analytics: analytics}, cfg.Server.AllowedOrigins)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Log.Info().Str("port", cfg.Server.Port).Str("source", rowSource.Name()).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	<-ctx.Done()
	logger.Log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error().Err(err).Msg("Server forced to shutdown")
		os.Exit(1)
	}

	logger.Log.Info().Msg("Server exiting")
}

func refreshLoop(ctx context.Context, svc *service.AnalyticsService, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.Refresh(ctx); err != nil {
				logger.Log.Error().Err(err).Msg("Scheduled dataset refresh failed")
			}
		}
	}
}
