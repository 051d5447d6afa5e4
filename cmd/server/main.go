package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lol-tracker/internal/audit"
	"lol-tracker/internal/config"
	"lol-tracker/internal/db"
	"lol-tracker/internal/handlers"
	"lol-tracker/internal/logging"
	"lol-tracker/internal/middleware"
	"lol-tracker/internal/reconcile"
	"lol-tracker/internal/riot"
	"lol-tracker/internal/store"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
)

func main() {
	// Load configuration
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(cfg.Log.Level, cfg.Log.Format)
	logger.WithFields(log.Fields{
		"environment": cfg.Environment,
		"store":       cfg.Store.Driver,
		"riotKey":     logging.MaskKey(cfg.Riot.APIKey),
	}).Info("Starting tracker server")

	// Record store
	var (
		recordStore store.Store
		pinger      handlers.Pinger
		recorder    *audit.Recorder
	)
	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		recordStore = store.NewMemoryStore()
		recorder = audit.NewRecorder(nil, logger)
		logger.Warn("Using in-memory store, records are lost on restart")
	default:
		mongodb, err := db.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			mongodb.Close(ctx)
		}()
		logger.WithField("database", cfg.MongoDB.Database).Info("Connected to MongoDB")

		recordStore = store.NewMongoStore(mongodb)
		pinger = mongodb
		recorder = audit.NewRecorder(audit.NewMongoWriter(mongodb), logger)
	}

	// Upstream client
	riotClient, err := riot.NewClient(riot.ClientConfig{
		APIKey:        cfg.Riot.APIKey,
		Timeout:       cfg.RiotTimeout(),
		MaxRetries:    cfg.RiotMaxRetries(),
		MatchPageSize: cfg.Riot.MatchPageSize,
		BaseURL:       cfg.Riot.BaseURL,
	}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Riot API client")
	}

	service := reconcile.NewService(recordStore, riotClient, reconcile.Config{
		FetchConcurrency: cfg.Riot.FetchConcurrency,
		PageSize:         riotClient.PageSize(),
	}, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst, 10*time.Minute)
	playerHandler := handlers.NewPlayerHandler(service, recorder, logger)

	// Set up router
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders)

	playerHandler.Register(router, rateLimiter.IPRateLimitMiddleware)

	router.HandleFunc("/health", handlers.Health(pinger)).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// CORS middleware
	corsHandler := cors.New(cors.Options{
		AllowedOrigins: []string{cfg.Frontend.URL},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader, "Retry-After"},
	})

	var handler http.Handler = router
	if cfg.Server.TrustProxy {
		handler = middleware.RealIP(handler)
	}

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      corsHandler.Handler(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.WithField("addr", addr).Info("Server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server shutdown error")
	}
	recorder.Wait()

	logger.Info("Server stopped")
}
