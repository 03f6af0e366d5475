package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/starsong-studio/render-orchestrator/config"
	"github.com/starsong-studio/render-orchestrator/internal/database"
	"github.com/starsong-studio/render-orchestrator/internal/handlers"
	"github.com/starsong-studio/render-orchestrator/internal/services"
	"github.com/starsong-studio/render-orchestrator/internal/worker"
	"github.com/starsong-studio/render-orchestrator/pkg/encode"
)

func main() {
	fmt.Println("Starsong Render Orchestrator")

	// Load configuration
	cfg := config.LoadConfig()
	log.Printf("Environment: %s", cfg.Environment)
	log.Printf("Server port: %d", cfg.ServerPort)

	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("Failed to create storage directories: %v", err)
	}

	// Initialize database
	if err := database.InitDB(cfg.DBPath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		log.Fatalf("Failed to apply schema: %v", err)
	}

	// Create repositories and services
	exportRepo := database.NewExportRepository(database.DB)
	broadcaster := services.NewProgressBroadcaster()
	registry := services.NewCancelRegistry()
	probe := encode.FFmpegProbe{FFmpegPath: cfg.FFmpegPath}

	// Create handlers
	exportHandler := handlers.NewExportHandler(exportRepo, broadcaster, registry, probe)
	progressHandler := handlers.NewProgressHandler(broadcaster, exportRepo)

	// Create and start the export worker
	processor := worker.NewProcessor(exportRepo, broadcaster, registry, probe)
	processor.StoragePath = cfg.StoragePath
	processor.VideosPath = cfg.VideosPath
	processor.TempPath = cfg.TempPath
	processor.FFmpegPath = cfg.FFmpegPath
	processor.FFprobePath = cfg.FFprobePath
	processor.RenderWidth = cfg.RenderWidth
	processor.RenderHeight = cfg.RenderHeight
	processor.RenderFPS = cfg.RenderFPS

	exportWorker := worker.NewWorker(exportRepo, broadcaster, processor, 5*time.Second)
	go exportWorker.Start()
	log.Println("Export worker started (polling every 5 seconds)")

	// Create Gin router
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware - MUST be first
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Add("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Add("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Add("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Add("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(200)
			return
		}

		c.Next()
	})

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"service": "render-orchestrator",
		})
	})

	// API v1 group
	v1 := router.Group("/api/v1")
	{
		// Export endpoints
		exports := v1.Group("/exports")
		{
			exports.GET("", exportHandler.GetAll)
			exports.POST("/lyric-video", exportHandler.CreateLyricVideo)
			exports.POST("/cover", exportHandler.CreateCover)
			exports.GET("/:id", exportHandler.GetByID)
			exports.POST("/:id/cancel", exportHandler.Cancel)
			exports.GET("/:id/download", exportHandler.Download)
		}

		// Capability report
		v1.GET("/capabilities", exportHandler.Capabilities)

		// Progress streaming endpoints (SSE)
		progress := v1.Group("/progress")
		{
			progress.GET("/stream", progressHandler.StreamProgress)
			progress.GET("/stream/:id", progressHandler.StreamExportProgress)
			progress.GET("/stats", progressHandler.GetStats)
		}
	}

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", cfg.ServerPort)
	log.Printf("Starting server on %s", addr)

	go func() {
		if err := router.Run(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down gracefully...")

	// Stop worker
	exportWorker.Stop()

	// Close database
	database.Close()

	log.Println("Shutdown complete")
}
