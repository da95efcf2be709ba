package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/kjstillabower/climate-forecast-service/internal/config"
	httphandler "github.com/kjstillabower/climate-forecast-service/internal/http"
	"github.com/kjstillabower/climate-forecast-service/internal/lifecycle"
	"github.com/kjstillabower/climate-forecast-service/internal/model"
	"github.com/kjstillabower/climate-forecast-service/internal/observability"
	"github.com/kjstillabower/climate-forecast-service/internal/pages"
	"github.com/kjstillabower/climate-forecast-service/internal/service"
	"github.com/kjstillabower/climate-forecast-service/internal/traffic"
	"github.com/kjstillabower/climate-forecast-service/internal/validation"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

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

	state := &lifecycle.State{}

	forest, err := model.Load(cfg.ModelPath)
	if err != nil {
		logger.Fatal("model", zap.String("path", cfg.ModelPath), zap.Error(err))
	}
	info := forest.Info()
	observability.ModelTrees.Set(float64(info.Trees))
	modelFields := []zap.Field{
		zap.String("path", cfg.ModelPath),
		zap.Int("trees", info.Trees),
		zap.Int("nodes", info.Nodes),
	}
	if !info.TrainedAt.IsZero() {
		modelFields = append(modelFields, zap.Time("trained_at", info.TrainedAt))
	}
	for target, m := range info.Metrics {
		modelFields = append(modelFields, zap.Float64(target+"_r2", m.R2))
	}
	logger.Info("model loaded", modelFields...)

	forecastService := service.NewForecastService(forest)

	renderer, err := pages.New(pages.Options{
		MaxDays:          service.MaxDays,
		DefaultLatitude:  cfg.DefaultLatitude,
		DefaultLongitude: cfg.DefaultLongitude,
	})
	if err != nil {
		logger.Fatal("pages", zap.Error(err))
	}

	retention := cfg.DegradedWindow
	if cfg.OverloadWindow > retention {
		retention = cfg.OverloadWindow
	}
	tracker := traffic.New(retention)
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}

	healthConfig := &httphandler.HealthConfig{
		Version:          version,
		Model:            info,
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,

		RateLimitRPS:         cfg.RateLimitRPS,
		OverloadWindow:       cfg.OverloadWindow,
		OverloadThresholdPct: cfg.OverloadThresholdPct,
	}
	defaults := validation.Defaults{Latitude: cfg.DefaultLatitude, Longitude: cfg.DefaultLongitude}
	handler := httphandler.NewHandler(forecastService, renderer, defaults, healthConfig, state, tracker, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterOptions{
		Limiter:        limiter,
		Tracker:        tracker,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	state.SetReady()

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("graceful shutdown triggered")
		state.SetShuttingDown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown", zap.Error(err))
		}

		logger.Info("waiting for in-flight requests", zap.Int64("count", httphandler.InFlightCount()))
		waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownInFlightTimeout)
		defer waitCancel()
		if err := httphandler.WaitForInFlight(waitCtx, cfg.ShutdownInFlightCheckInterval); err != nil {
			logger.Warn("in-flight requests not completed", zap.Error(err), zap.Int64("remaining", httphandler.InFlightCount()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped", zap.Error(err))
	}

	if err := observability.FlushTelemetry(context.Background(), logger); err != nil {
		logger.Error("telemetry flush", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
