package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shipment-eventing-service/internal/domain/entity"
	"shipment-eventing-service/internal/infrastructure/config"
	"shipment-eventing-service/internal/infrastructure/feed"
	"shipment-eventing-service/internal/infrastructure/persistence"
	"shipment-eventing-service/internal/interface/repository"
	"shipment-eventing-service/internal/usecase"
	"shipment-eventing-service/pkg/logger"
	"shipment-eventing-service/pkg/metrics"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	amqp "github.com/rabbitmq/amqp091-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	// Create logger
	log := logger.NewLogger()
	log.Info("Starting Shipment Eventing Service")

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up MongoDB connection
	log.Info("Connecting to MongoDB")
	mongoClient, db, err := persistence.NewMongoClient(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	gormDB, err := gorm.Open(postgres.Open(cfg.PostgresURI), &gorm.Config{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}

	amqpConn, err := amqp.Dial(cfg.AmqpURL)
	if err != nil {
		log.Fatal("Failed to connect to RabbitMQ", "error", err)
	}

	blobClient, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
	})
	if err != nil {
		log.Fatal("Failed to create blob client", "error", err)
	}

	m := metrics.NewMetrics("shipment_eventing")

	// Set up repositories
	statusRepo := repository.NewMongoStatusRecordRepository(db, cfg.StatusCollection)
	shipmentRepo := repository.NewMongoShipmentRepository(db, repository.ShipmentCollections{
		Header:    cfg.HeaderCollection,
		Shipper:   cfg.ShipperCollection,
		Consignee: cfg.ConsigneeCollection,
		Milestone: cfg.MilestoneCollection,
	})
	entitlementRepo := repository.NewGormEntitlementRepository(gormDB)
	documentRepo := repository.NewDocumentAPIRepository(
		cfg.DocAPIBase, cfg.DocAPIKey, cfg.DocTimeout,
		blobClient, cfg.MinioBucket, cfg.SignedURLTTL, log)
	publisher, err := repository.NewAmqpPublisher(amqpConn, cfg.EventsExchange, cfg.AlertsExchange, log)
	if err != nil {
		log.Fatal("Failed to create publisher", "error", err)
	}
	defer publisher.Close()

	// Set up the engine
	workflows := entity.Workflows()
	ordered := []entity.Workflow{
		entity.AppointmentWorkflow(),
		entity.PodDocWorkflow(),
		entity.MilestoneWorkflow(),
	}

	builder := usecase.NewPayloadBuilder(shipmentRepo, documentRepo, cfg.DocType, log)
	dispatcher := usecase.NewDispatcher(publisher, m, log)
	engine := usecase.NewReconciler(statusRepo, shipmentRepo, entitlementRepo,
		builder, dispatcher, publisher, m, log, cfg.Stage, cfg.ServiceName)
	sweeper := usecase.NewSweeper(statusRepo, shipmentRepo, engine, publisher, m, log,
		workflows, cfg.MaxRetries, cfg.SweepPageSize, cfg.ServiceName)
	normalizer := usecase.NewNormalizer(shipmentRepo, log)

	// Start the change-feed consumer
	consumer := feed.NewConsumer(amqpConn, cfg.FeedQueue, normalizer, engine, publisher, m, ordered, log)
	if err := consumer.Start(ctx); err != nil {
		log.Fatal("Failed to start feed consumer", "error", err)
	}

	// Start the sweeper in a goroutine
	go func() {
		sweepTicker := time.NewTicker(cfg.SweepInterval)
		defer sweepTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				log.Info("Sweeper stopped")
				return
			case <-sweepTicker.C:
				log.Info("Running sweep")
				if err := sweeper.Sweep(ctx); err != nil {
					log.Error("Sweep error", "error", err)
				}
			}
		}
	}()

	// Set up HTTP server for metrics and the operator retrigger
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Healthy"))
	})
	mux.HandleFunc("/retrigger", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Workflow string `json:"workflow"`
			OrderNo  string `json:"orderNo"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderNo == "" {
			http.Error(w, "workflow and orderNo required", http.StatusBadRequest)
			return
		}
		wf, ok := workflows[req.Workflow]
		if !ok {
			http.Error(w, "unknown workflow", http.StatusBadRequest)
			return
		}
		if err := engine.Retrigger(r.Context(), wf, req.OrderNo); err != nil {
			log.Error("Retrigger failed", "workflow", req.Workflow, "orderNo", req.OrderNo, "error", err)
			http.Error(w, "retrigger failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", "error", err)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	log.Info("Received signal", "signal", sig)

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", "error", err)
	}

	cancel() // Cancel the context to stop all goroutines

	if err := amqpConn.Close(); err != nil {
		log.Error("RabbitMQ disconnect error", "error", err)
	}
	if err := mongoClient.Disconnect(shutdownCtx); err != nil {
		log.Error("MongoDB disconnect error", "error", err)
	}

	log.Info("Shipment Eventing Service stopped")
}
