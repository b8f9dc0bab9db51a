package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hostpulse/hostpulse/internal/auth"
	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/database"
	"github.com/hostpulse/hostpulse/internal/handlers"
	"github.com/hostpulse/hostpulse/internal/health"
	"github.com/hostpulse/hostpulse/internal/logger"
	"github.com/hostpulse/hostpulse/internal/retry"
	"github.com/hostpulse/hostpulse/internal/store"
	"github.com/hostpulse/hostpulse/internal/validation"
	"github.com/hostpulse/hostpulse/internal/valkey"
)

const version = "1.0.0"

func main() {
	// Load configuration
	cfg := config.Load()
	slogger := logger.New()

	// Set Gin mode
	gin.SetMode(cfg.GinMode)

	startupCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// Initialize database (retry while Postgres comes up)
	var db *database.DB
	err := retry.WithExponentialBackoff(startupCtx, retry.DefaultConfig(), "database connection", func() error {
		var err error
		db, err = database.New(cfg)
		return err
	})
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize Valkey (token cache invalidation on host deletion)
	var valkeyClient *valkey.Client
	err = retry.WithExponentialBackoff(startupCtx, retry.DefaultConfig(), "valkey connection", func() error {
		var err error
		valkeyClient, err = valkey.New(cfg)
		return err
	})
	if err != nil {
		log.Fatalf("Failed to initialize Valkey: %v", err)
	}
	defer valkeyClient.Close()

	st := store.New(db)
	authSvc := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	resolver := validation.NewTokenResolver(st, valkeyClient, cfg.TokenCacheTTL)

	authHandler := handlers.NewAuthHandler(st, authSvc, slogger)
	hostsHandler := handlers.NewHostsHandler(st, resolver, slogger)
	alertsHandler := handlers.NewAlertsHandler(st, slogger)
	installHandler := handlers.NewInstallHandler(st, cfg.IngestBaseURL, slogger)

	// Initialize router
	router := gin.Default()

	// Dashboard CORS: credentialed requests from the operator frontend.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	// Health check endpoint
	router.GET("/health", gin.WrapF(health.Handler("hostpulse-api", version, map[string]health.Pinger{
		"database": db,
		"valkey":   valkeyClient,
	})))

	api := router.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.GET("/install", installHandler.Script)
	}

	protected := api.Group("")
	protected.Use(authSvc.Middleware())
	{
		protected.POST("/hosts", hostsHandler.Create)
		protected.GET("/hosts", hostsHandler.List)
		protected.GET("/hosts/:id", hostsHandler.Get)
		protected.DELETE("/hosts/:id", hostsHandler.Delete)
		protected.GET("/hosts/:id/samples", hostsHandler.Samples)
		protected.GET("/alerts", alertsHandler.List)
	}

	// Start server
	addr := ":" + cfg.Port
	log.Printf("Starting API service on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
