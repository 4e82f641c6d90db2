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

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/bmad-method/orchestrator/api"
	"github.com/bmad-method/orchestrator/config"
	"github.com/bmad-method/orchestrator/facilitator"
	"github.com/bmad-method/orchestrator/hub"
	"github.com/bmad-method/orchestrator/policy"
	"github.com/bmad-method/orchestrator/service"
	"github.com/bmad-method/orchestrator/store"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting orchestrator...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Facilitator URL: %s", cfg.FacilitatorURL)

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize facilitator client
	facilitatorClient := facilitator.NewClient(cfg.FacilitatorURL, cfg.FacilitatorAPIKey, cfg.StreamTimeout)

	// Initialize policy engine
	ctx := context.Background()
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize WebSocket hub
	h := hub.New()
	go h.Run()

	// Initialize service
	svc := service.New(db, facilitatorClient, h, cfg, policyEngine)

	// Start periodic sync
	syncCtx, stopSync := context.WithCancel(ctx)
	go svc.RunSync(syncCtx)

	// Initialize handlers
	handler := api.NewHandler(svc, h)

	// Create Echo server
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	// Register routes
	handler.RegisterRoutes(e)

	// Start server
	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orchestrator...")

	// Stop the sync scheduler; its final flush persists every live session.
	stopSync()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}

	log.Println("Orchestrator stopped")
}
