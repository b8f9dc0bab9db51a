package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/hostpulse/hostpulse/internal/alerting"
	"github.com/hostpulse/hostpulse/internal/config"
	"github.com/hostpulse/hostpulse/internal/database"
	"github.com/hostpulse/hostpulse/internal/handlers"
	"github.com/hostpulse/hostpulse/internal/health"
	"github.com/hostpulse/hostpulse/internal/ingest"
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

	// Initialize Valkey
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

	// Wire the report pipeline: cached token resolution, sample + liveness
	// persistence, alert evaluation, DLQ on persistence failure.
	st := store.New(db)
	resolver := validation.NewTokenResolver(st, valkeyClient, cfg.TokenCacheTTL)
	evaluator := alerting.NewEvaluator(alerting.Thresholds{
		CPU:  cfg.CPUThreshold,
		RAM:  cfg.RAMThreshold,
		Disk: cfg.DiskThreshold,
	}, slogger)
	pipeline := ingest.NewPipeline(resolver, st, evaluator, valkeyClient, slogger)

	reportHandler := handlers.NewReportHandler(pipeline, cfg.ReportTimeout)
	dlqHandler := handlers.NewDLQHandler(valkeyClient, slogger)

	// Initialize router
	router := gin.Default()

	// Agents report from anywhere; only POST is needed.
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
	}))

	// Health check endpoint
	router.GET("/health", gin.WrapF(health.Handler("hostpulse-ingest", version, map[string]health.Pinger{
		"database": db,
		"valkey":   valkeyClient,
	})))

	// Ingest route (for agents only)
	router.POST("/api/report", reportHandler.Report)

	// Internal routes (operators only, not exposed publicly)
	internal := router.Group("/internal")
	{
		internal.GET("/dlq", dlqHandler.List)
	}

	// Start server
	addr := ":" + cfg.Port
	log.Printf("Starting ingest service on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
