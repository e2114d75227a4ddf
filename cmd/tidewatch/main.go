package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm/logger"

	"github.com/tidewatch/tidewatch/internal/blob"
	"github.com/tidewatch/tidewatch/internal/config"
	"github.com/tidewatch/tidewatch/internal/database"
	"github.com/tidewatch/tidewatch/internal/dispatch"
	"github.com/tidewatch/tidewatch/internal/feed"
	"github.com/tidewatch/tidewatch/internal/hotspot"
	"github.com/tidewatch/tidewatch/internal/ml"
	"github.com/tidewatch/tidewatch/internal/notify"
	"github.com/tidewatch/tidewatch/internal/observability"
	"github.com/tidewatch/tidewatch/internal/reports"
)

func main() {
	// Load .env file if it exists (ignore error if file doesn't exist)
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found or error loading it (this is fine if using environment variables): %v", err)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting TideWatch triage and alert engine...")

	// Initialize database connection
	db, err := database.Connect(cfg.DatabaseURL, logger.Warn)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Run database migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run database migrations: %v", err)
	}

	// Initialize stores
	reportStore := database.NewReportStore(db)
	alertLogStore := database.NewAlertLogStore(db)
	tokenStore := database.NewDeviceTokenStore(db)

	// Initialize metrics
	metrics := observability.NewMetrics()

	// Initialize ML service client
	mlClient := ml.NewClient(cfg.MLServiceURL, cfg.MLTimeout)
	log.Printf("ML service client initialized for %s", cfg.MLServiceURL)

	// Initialize media store
	blobStore := blob.NewMemoryStore()

	// Initialize channel senders
	smsSender := notify.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, "", nil)
	emailSender := notify.NewResendSender(cfg.ResendAPIKey, cfg.ResendFromEmail, "", nil)
	chatSender := notify.NewSlackSender(cfg.SlackBotToken)

	var pushSender notify.Multicaster
	if cfg.PushEndpoint != "" {
		pushSender = notify.NewPushSender(cfg.PushEndpoint, cfg.PushServerKey, nil)
		log.Printf("Push delivery enabled via %s", cfg.PushEndpoint)
	} else {
		log.Printf("Push delivery disabled (PUSH_ENDPOINT not set)")
	}

	// Initialize alert dispatcher
	resolver := dispatch.NewResolver(cfg.Destinations, tokenStore)
	dispatcher := dispatch.New(smsSender, emailSender, chatSender, pushSender, resolver,
		alertLogStore, dispatch.Config{
			ChannelTimeout:  cfg.ChannelTimeout,
			RealertVerified: cfg.RealertVerified,
		}, nil, metrics)
	log.Printf("Alert dispatcher initialized (channel timeout %s)", cfg.ChannelTimeout)

	// Initialize report service
	reportService := reports.NewService(reportStore, mlClient, blobStore, dispatcher, metrics)
	log.Printf("Report service initialized")

	// Initialize hotspot aggregator
	aggregator := hotspot.NewAggregator(reportStore, mlClient)
	stopHotspots := make(chan struct{})
	go aggregator.Start(cfg.HotspotInterval, stopHotspots)
	log.Printf("Hotspot aggregator running every %s", cfg.HotspotInterval)

	// Start metrics server in goroutine
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		log.Printf("Starting metrics server on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Metrics server error: %v", err)
		}
	}()

	// Create a context for the feed consumer
	ctx, ctxCancel := context.WithCancel(context.Background())
	defer ctxCancel()

	// Start social feed consumer if enabled
	var consumer *feed.Consumer
	if cfg.FeedEnabled {
		consumer = feed.NewConsumer(cfg.KafkaBrokers, cfg.FeedTopic, cfg.FeedGroupID,
			cfg.FeedSystemUser, reportService, metrics)
		go func() {
			log.Printf("Social feed consumer started on topic %s", cfg.FeedTopic)
			if err := consumer.Run(ctx); err != nil {
				log.Printf("Feed consumer error: %v", err)
			}
		}()
	} else {
		log.Printf("Social feed consumer disabled (FEED_ENABLED not set)")
	}

	// Set up graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	log.Println("TideWatch is running! Press Ctrl+C to exit.")

	<-sigChan
	log.Println("Received shutdown signal, cleaning up...")

	ctxCancel()
	close(stopHotspots)

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("Error closing feed consumer: %v", err)
		}
	}

	log.Println("Shutting down metrics server...")
	if err := metricsServer.Close(); err != nil {
		log.Printf("Error shutting down metrics server: %v", err)
	}

	if err := database.Close(db); err != nil {
		log.Printf("Error closing database: %v", err)
	}

	log.Println("Shutdown complete")
}
