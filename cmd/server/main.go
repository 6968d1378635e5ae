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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/tapstand/kiosk/internal/adapter/handler"
	"github.com/tapstand/kiosk/internal/adapter/hardware"
	"github.com/tapstand/kiosk/internal/adapter/storage"
	"github.com/tapstand/kiosk/internal/adapter/stub"
	"github.com/tapstand/kiosk/internal/core/service"
	"github.com/tapstand/kiosk/internal/logging"
	"github.com/tapstand/kiosk/internal/metrics"
)

const (
	defaultHTTPAddr  = ":8080"
	defaultMySQLDSN  = "root:root@tcp(localhost:3306)/kiosk?parseTime=true"
	defaultRedisAddr = "localhost:6379"

	// One sensor pulse per 50ms matches the hardware bridge cadence.
	pulsePeriod = 50 * time.Millisecond
)

func main() {
	logger := logging.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpAddr := envOr("HTTP_ADDR", defaultHTTPAddr)
	mysqlDSN := envOr("MYSQL_DSN", defaultMySQLDSN)
	redisAddr := envOr("REDIS_ADDR", defaultRedisAddr)

	// Initialize MySQL
	db, err := sql.Open("mysql", mysqlDSN)
	if err != nil {
		logger.Error("mysql open failed", "error", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Error("mysql ping failed", "error", err)
		os.Exit(1)
	}
	if err := storage.ApplySchema(ctx, db); err != nil {
		logger.Error("schema setup failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to mysql")

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis")

	metrics.Register()

	// Initialize adapters
	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb)
	gpio := hardware.NewSimulator(pulsePeriod, logger)

	// Initialize services
	ledger := service.NewStockLedger(mysqlAdapter, logger)
	dispenser := service.NewDispenser(gpio, ledger, mysqlAdapter, logger, pulsePeriod)
	inventory := service.NewInventoryService(mysqlAdapter, ledger, logger)
	orders := service.NewOrderService(mysqlAdapter, redisAdapter, dispenser,
		stub.AgeVerifier{}, stub.PaymentGateway{Logger: logger}, logger)

	// Make every configured valve visible in hardware status up front.
	beverages, err := mysqlAdapter.ListBeverages(ctx)
	if err != nil {
		logger.Error("beverage listing failed", "error", err)
		os.Exit(1)
	}
	for _, b := range beverages {
		dispenser.Register(b.ValvePin, b.FlowSensorPin)
	}
	logger.Info("valves registered", "count", len(beverages))

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(orders, inventory, dispenser, logger)
	router := httpHandler.Routes()
	router.Handle("/metrics", promhttp.Handler())

	httpServer := &http.Server{
		Addr:    httpAddr,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", "addr", httpAddr)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
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
	logger.Info("http server stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
