package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/damon-houk/nbp-currency-exchange/internal/application/service"
	"github.com/damon-houk/nbp-currency-exchange/internal/config"
	"github.com/damon-houk/nbp-currency-exchange/internal/domain/repository"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/api"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/db"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/handler"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/logger"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/metrics"
	"github.com/damon-houk/nbp-currency-exchange/internal/infrastructure/middleware"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", map[string]interface{}{
			"error": err.Error(),
		})
	}

	log := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.LogLevel))
	logger.SetDefaultLogger(log)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func run(cfg *config.Config, log logger.Logger) error {
	log.Info("Starting NBP currency exchange service", map[string]interface{}{
		"port":         cfg.Port,
		"store_driver": cfg.StoreDriver,
	})

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rateMetrics := metrics.NewRateMetrics(registry)

	store, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Error("Error closing rate store", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	nbpClient := api.NewNBPClient(api.ClientConfig{
		ArchiveURL:   cfg.NBPArchiveURL,
		TableBaseURL: cfg.NBPTableBaseURL,
		Timeout:      cfg.NBPHTTPTimeout,
		MaxRetries:   cfg.NBPMaxRetries,
		RetryBackoff: cfg.NBPRetryBackoff,
		IndexTTL:     cfg.NBPIndexTTL,
	}, nil, log.WithField("component", "nbp_client"), rateMetrics)
	defer nbpClient.Close()

	resolver := service.NewRateResolver(store, nbpClient, log.WithField("component", "rate_resolver"), rateMetrics)
	conversionService := service.NewConversionService(resolver, log.WithField("component", "conversion"), rateMetrics)

	conversionHandler := handler.NewConversionHandler(conversionService, log)
	rateHandler := handler.NewRateHandler(conversionService, log)

	router := mux.NewRouter()
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware(rateMetrics))
	conversionHandler.RegisterRoutes(router)
	rateHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           middleware.CORSMiddleware()(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	// Listen for OS signals for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.Info("Shutting down server", map[string]interface{}{
			"signal": sig.String(),
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return err
	}

	log.Info("Server exited gracefully", nil)
	return nil
}

// openStore opens the configured rate store and returns a function that closes it
func openStore(cfg *config.Config, log logger.Logger) (repository.RateStore, func() error, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		sqlDB, err := db.OpenPostgres(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}

		if cfg.MigrationsEnabled {
			if err := db.RunMigrations(sqlDB, log); err != nil {
				sqlDB.Close()
				return nil, nil, err
			}
		}

		log.Info("Using Postgres rate store", nil)
		return db.NewPostgresRateStore(sqlDB), sqlDB.Close, nil

	default:
		if err := os.MkdirAll(cfg.BadgerPath, 0755); err != nil {
			return nil, nil, err
		}

		badgerDB, err := db.OpenBadger(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}

		log.Info("Using Badger rate store", map[string]interface{}{
			"path": cfg.BadgerPath,
		})
		return db.NewBadgerRateStore(badgerDB), badgerDB.Close, nil
	}
}
