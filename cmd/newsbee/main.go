package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"newsbee/internal/config"
	"newsbee/internal/db"
	"newsbee/internal/event"
	"newsbee/internal/history"
	"newsbee/internal/news"
	"newsbee/internal/newsapi"
	"newsbee/internal/tracking"
	"newsbee/internal/upstream"
	"newsbee/internal/web"
)

func main() {
	// Root context cancelled on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stdout, "[newsbee] ", log.LstdFlags|log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	if cfg.NewsAPIKey == "" {
		logger.Println("warning: NEWS_API_KEY is empty, the news api will reject requests")
	}

	// News API client
	httpClient := &http.Client{Timeout: cfg.Timeout}
	apiClient := newsapi.NewClient(cfg.NewsAPIURL, cfg.NewsAPIKey, httpClient)

	// Optional fetch tracking: Mongo history + RabbitMQ relay
	var (
		mongoClient *mongo.Client
		recorder    tracking.Recorder
		historyRepo history.Repository
	)
	if cfg.TrackingEnabled {
		connectCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
		mongoClient, err = db.ConnectMongo(connectCtx, cfg.MongoURI)
		cancel()
		if err != nil {
			logger.Fatalf("failed to connect to db: %v", err)
		}
		dbInstance := mongoClient.Database(cfg.MongoDBName)

		historyRepo, err = history.NewMongoRepository(dbInstance, logger)
		if err != nil {
			logger.Fatalf("failed to init history repository: %v", err)
		}
		recorder = historyRepo
		logger.Println("fetch history repository initialised")

		publisher, err := event.NewRabbitPublisher(
			cfg.RabbitURI,
			cfg.RabbitExchange,
			cfg.RabbitRoutingKey,
			logger,
		)
		if err != nil {
			logger.Fatalf("failed to init rabbit publisher: %v", err)
		}
		defer publisher.Close()

		eventsService := event.NewService(
			dbInstance.Collection(history.CollectionName),
			publisher,
			logger,
		)
		go eventsService.Run(ctx)
	}

	fetcher := tracking.NewFetcher(apiClient, recorder, logger)

	// Upstream probe goes straight to the api so it stays out of the history
	prober := upstream.NewProber(apiClient, cfg.DefaultCategory, cfg.MaxProbes, logger)

	server := web.NewServer(fetcher, web.Options{
		PageSize:        cfg.PageSize,
		DefaultCategory: cfg.DefaultCategory,
		Controller: news.Options{
			StrictErrors: cfg.StrictErrors,
			DiscardStale: cfg.DiscardStale,
		},
		SessionTTL: 2 * time.Hour,
	}, logger)
	server.SetReadiness(prober)
	if historyRepo != nil {
		server.SetHistory(historyRepo)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Printf("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	go func() {
		if err := prober.ProbeOnce(ctx); err != nil {
			logger.Printf("initial probe failed: %v", err)
		}
		prober.StartProbing(ctx, cfg.ProbeInterval)
	}()

	logger.Println("service started")

	// Block until we receive a signal / ctx cancelled
	<-ctx.Done()
	logger.Println("shutdown signal received, shutting down...")

	// Unified shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Graceful HTTP shutdown
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Printf("HTTP server shutdown error: %v", err)
	}

	// Graceful Mongo shutdown
	if mongoClient != nil {
		if err := mongoClient.Disconnect(shutdownCtx); err != nil {
			logger.Printf("mongo disconnect error: %v", err)
		}
	}

	logger.Println("shutdown complete")
}
