// Inventory Service — участник саги обработки заказа: идемпотентное
// CAS-резервирование и освобождение складских позиций по событиям
// inventory.reserve.requested/inventory.released, плюс read-only REST API
// над каталогом и резервированиями.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sagacore/order-saga/pkg/config"
	dbpkg "github.com/sagacore/order-saga/pkg/db"
	"github.com/sagacore/order-saga/pkg/distlock"
	"github.com/sagacore/order-saga/pkg/eventbus"
	"github.com/sagacore/order-saga/pkg/healthcheck"
	"github.com/sagacore/order-saga/pkg/logger"
	"github.com/sagacore/order-saga/pkg/metrics"
	"github.com/sagacore/order-saga/pkg/middleware"
	outboxpkg "github.com/sagacore/order-saga/pkg/outbox"
	"github.com/sagacore/order-saga/pkg/tracing"
	inventoryhttp "github.com/sagacore/order-saga/services/inventory/internal/http"
	"github.com/sagacore/order-saga/services/inventory/internal/repository"
	"github.com/sagacore/order-saga/services/inventory/internal/saga"
	"github.com/sagacore/order-saga/services/inventory/internal/service"
)

func main() {
	seed := flag.Bool("seed", false, "заполнить каталог демонстрационными товарами, если он пуст")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Pretty: cfg.App.LogPretty,
	})
	log := logger.With().Str("service", "inventory-service").Logger()

	log.Info().
		Str("env", cfg.App.Env).
		Int("port", cfg.HTTP.Port).
		Msg("Запуск Inventory Service")

	shutdownTracing, err := tracing.InitTracer(tracing.Config{
		ServiceName:    "inventory-service",
		JaegerEndpoint: cfg.Jaeger.OTLPEndpoint(),
		Enabled:        cfg.Jaeger.Enabled,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Не удалось инициализировать tracing")
	}

	// === Подключение к зависимостям ===

	db, err := dbpkg.ConnectMySQL(cfg.MySQL, cfg.IsDevelopment())
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к MySQL")
	}
	log.Info().Msg("Подключение к MySQL установлено")

	redisClient := dbpkg.ConnectRedis(cfg.Redis)

	bus, err := eventbus.Connect(cfg.EventBus)
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка подключения к шине событий")
	}
	log.Info().Msg("Подключение к шине событий установлено")

	// === Слои приложения ===

	productRepo := repository.NewProductRepository(db)
	reservationRepo := repository.NewReservationRepository(db)
	commandRepo := saga.NewCommandRepository(db)

	if *seed {
		if err := seedProducts(context.Background(), productRepo); err != nil {
			log.Error().Err(err).Msg("Ошибка заполнения демонстрационных товаров")
		}
	}

	handler := saga.NewHandler(productRepo, reservationRepo, commandRepo)
	inventoryService := service.NewInventoryService(productRepo, reservationRepo)

	outboxRepo := outboxpkg.NewOutboxRepository(db, "inventory")
	outboxWorker := outboxpkg.NewOutboxWorker(outboxRepo, bus, outboxpkg.WorkerConfig{
		PollInterval:    cfg.Outbox.PollInterval,
		BatchSize:       cfg.Outbox.BatchSize,
		MaxRetries:      cfg.Outbox.MaxRetries,
		CleanupInterval: cfg.Outbox.CleanupInterval,
		CleanupRetain:   cfg.Outbox.CleanupRetain,
	}, "inventory")
	outboxLock := distlock.New(redisClient, "outbox-inventory", cfg.Outbox.LockTTL)

	commandConsumer := saga.NewCommandConsumer(bus, handler, "inventory-service", cfg.EventBus.MaxRetries)

	// === HTTP сервер ===

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	inventoryHandler := inventoryhttp.NewInventoryHandler(inventoryService)

	router := gin.New()
	router.Use(middleware.Recovery(), middleware.Tracing(), middleware.Logging(), metrics.GinMetricsMiddleware("inventory-service"))

	api := router.Group("/api/v1")
	inventoryHandler.RegisterRoutes(api)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// === Observability: Metrics ===

	readinessCheck := healthcheck.Composite(
		func(ctx context.Context) error { return healthcheck.CheckMySQL(ctx, db) },
		func(ctx context.Context) error { return healthcheck.CheckRedis(ctx, redisClient) },
	)

	var metricsServer *metrics.Server
	var metricsWg sync.WaitGroup
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr(), "inventory-service", metrics.WithReadinessCheck(readinessCheck))
		metricsWg.Add(1)
		go func() {
			defer metricsWg.Done()
			if err := metricsServer.Start(); err != nil {
				log.Error().Err(err).Msg("Ошибка Metrics Server")
			}
		}()
	}

	// === Фоновые воркеры ===

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workersWg sync.WaitGroup

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в Outbox Worker")
			}
		}()
		log.Info().Msg("Запуск Outbox Worker")
		outboxWorker.RunWithLock(ctx, outboxLock, 2*time.Second)
	}()

	workersWg.Add(1)
	go func() {
		defer workersWg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в Command Consumer")
			}
		}()
		log.Info().Msg("Запуск Command Consumer")
		if err := commandConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Ошибка Command Consumer")
		}
		<-ctx.Done()
	}()

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("Паника в HTTP сервере")
			}
		}()
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP сервер запущен")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("Ошибка HTTP сервера")
		}
	}()

	// === Ожидание сигнала завершения ===

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Получен сигнал завершения, останавливаем сервер...")

	cancel()
	workersWg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Ошибка остановки HTTP сервера")
	}

	if err := bus.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия шины событий")
	}

	if sqlDB, err := db.DB(); err == nil && sqlDB != nil {
		if err := sqlDB.Close(); err != nil {
			log.Error().Err(err).Msg("Ошибка закрытия MySQL")
		}
	}
	if err := redisClient.Close(); err != nil {
		log.Error().Err(err).Msg("Ошибка закрытия Redis")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Metrics Server")
		}
		metricsWg.Wait()
	}

	if shutdownTracing != nil {
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Ошибка остановки Tracing")
		}
	}

	log.Info().Msg("Inventory Service остановлен")
}
