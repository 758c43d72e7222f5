package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sales-core/config"
	"sales-core/internal/api"
	"sales-core/internal/broker"
	"sales-core/internal/redisclient"
	"sales-core/internal/service"
	"sales-core/internal/staging"
	"sales-core/internal/store"
	"sales-core/internal/store/memory"
	"sales-core/internal/util"
	"sales-core/internal/worker"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const serviceName = "sales-core"

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env, serviceName); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting sales core")

	tp, err := util.InitTracer(serviceName, cfg.Observ.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracer", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			logger.Warn("Error shutting down tracer", zap.Error(err))
		}
	}()

	var ledger store.Ledger
	switch cfg.Database.Driver {
	case config.DriverMemory:
		ledger = memory.New()
		logger.Warn("Using in-memory ledger, documents will not survive a restart")
	default:
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		ledger = db
		logger.Info("Database connected")
	}

	var backend staging.Backend
	switch cfg.Redis.Driver {
	case config.DriverMemory:
		backend = staging.NewMemoryBackend()
		logger.Warn("Using in-memory draft stage")
	default:
		redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer redisClient.Close()
		backend = redisClient
		logger.Info("Redis connected")
	}
	stage := staging.NewStage(backend, cfg.Business.DraftTTL)

	var publisher service.EventPublisher = service.NopPublisher{}
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var auditWorker *worker.AuditWorker
	if cfg.Kafka.Enabled {
		producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDocuments)
		defer producer.Close()
		publisher = broker.NewEventPublisher(producer)
		logger.Info("Kafka producer initialized")

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicDocuments, cfg.Kafka.ConsumerGroup)
		auditWorker = worker.NewAuditWorker(consumer, ledger)
		go func() {
			if err := auditWorker.Start(workerCtx); err != nil && err != context.Canceled {
				logger.Error("Audit worker error", zap.Error(err))
			}
		}()
	}

	numberer := service.NewNumberer(ledger)
	stock := service.NewStockEngine()
	drafts := service.NewDraftService(ledger, numberer, stage, service.Series{
		Sale:     cfg.Business.BranchCode,
		Purchase: cfg.Business.PurchaseSeries,
	})
	finalizer := service.NewFinalizer(ledger, stage, stock, numberer, publisher, cfg.Business.BranchCode)
	inactivation := service.NewInactivationEngine(ledger, stock, publisher)
	documents := service.NewDocumentService(ledger)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(drafts, finalizer, inactivation, documents)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		logger.Info("Starting HTTP server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", zap.Error(err))
	}

	workerCancel()
	if auditWorker != nil {
		_ = auditWorker.Stop()
	}

	logger.Info("Server exited")
}
