package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/freshmart/order-core/internal/adapter/handler"
	"github.com/freshmart/order-core/internal/adapter/push"
	"github.com/freshmart/order-core/internal/adapter/storage"
	"github.com/freshmart/order-core/internal/core/service"
	"github.com/freshmart/order-core/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	if err := mysqlAdapter.InitSchema(ctx); err != nil {
		logger.Fatal("failed to init schema", zap.Error(err))
	}

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	statsCache := storage.NewRedisAdapter(rdb, cfg.StatsCacheTTL)

	maxOrderTotal, err := decimal.NewFromString(cfg.MaxOrderTotal)
	if err != nil {
		logger.Fatal("invalid MAX_ORDER_TOTAL", zap.Error(err))
	}

	gateway := push.NewFCMGateway(cfg.FCMEndpoint, cfg.FCMServerKey, cfg.PushMockMode, logger)
	if !gateway.Available() {
		logger.Warn("push gateway not configured, dispatches will be skipped")
	}

	orderService := service.NewOrderService(mysqlAdapter, statsCache, logger, cfg.MaxItemQuantity, maxOrderTotal)
	deviceService := service.NewDeviceService(mysqlAdapter, logger)
	notificationService := service.NewNotificationService(mysqlAdapter, mysqlAdapter, gateway, logger, cfg.DispatchWorkers)
	statsService := service.NewStatsService(mysqlAdapter, statsCache, logger)

	httpHandler := handler.NewHTTPHandler(orderService, deviceService, notificationService, statsService, logger)
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: httpHandler.Routes(),
	}

	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zap.ParseAtomicLevel(level); err == nil {
		cfg.Level = lvl
	}
	logger, err := cfg.Build()
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	return logger
}
