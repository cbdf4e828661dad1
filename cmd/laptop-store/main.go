package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jogardn/laptop-store/internal/api"
	"github.com/jogardn/laptop-store/internal/circuitbreaker"
	"github.com/jogardn/laptop-store/internal/config"
	"github.com/jogardn/laptop-store/internal/database"
	"github.com/jogardn/laptop-store/internal/events"
	"github.com/jogardn/laptop-store/internal/store"
	"github.com/jogardn/laptop-store/internal/uploads"
	"github.com/jogardn/laptop-store/internal/websocket"
)

const producerBreaker = "kafka-producer"

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		logger.WithError(err).Fatal("Failed to create tables")
	}

	cleaner := uploads.NewCleaner(cfg.UploadDir, cfg.CleanupQueueSize, logger)
	cleaner.Start()
	defer cleaner.Stop()

	files, err := uploads.NewStore(cfg.UploadDir, cleaner, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to prepare upload directory")
	}

	storeOpts := store.Options{
		StableOrder:   cfg.StableOrder,
		HashPasswords: cfg.HashPasswords,
	}

	breakers := circuitbreaker.NewManager(circuitbreaker.Settings{
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
	}, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := events.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic, breakers.Breaker(producerBreaker), logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to create Kafka producer")
		}
		publisher = producer
	} else {
		logger.Info("KAFKA_BROKERS not set, change events are not published")
	}
	defer publisher.Close()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(logger)
	go hub.Run(hubCtx)

	metrics := api.NewMetrics()
	metrics.WatchBreakers(breakers)

	handler := api.NewRouter(api.Options{
		Laptops:        store.NewLaptopStore(db, cleaner, storeOpts),
		Customers:      store.NewCustomerStore(db, storeOpts),
		Carts:          store.NewCartStore(db, storeOpts),
		Orders:         store.NewOrderStore(db, storeOpts),
		Uploads:        files,
		Notifier:       api.NewNotifier(publisher, hub, logger),
		WebSocket:      hub.HandleWebSocket,
		DB:             db,
		Breakers:       breakers,
		Metrics:        metrics,
		PublicDir:      cfg.PublicDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("port", cfg.Port).Info("Starting laptop store")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	stopHub()

	logger.Info("Server gracefully stopped")
}
