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

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/charmcoach/reddit-opportunity-bot/internal/config"
	"github.com/charmcoach/reddit-opportunity-bot/internal/ledger"
	"github.com/charmcoach/reddit-opportunity-bot/internal/notifications"
	"github.com/charmcoach/reddit-opportunity-bot/internal/opportunity"
	"github.com/charmcoach/reddit-opportunity-bot/internal/report"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scheduler"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scorer"
	"github.com/charmcoach/reddit-opportunity-bot/internal/scoring"
	"github.com/charmcoach/reddit-opportunity-bot/internal/server"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	// Initialize configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Set up logging
	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting Reddit Opportunity Bot")

	ctx := context.Background()

	// Initialize the ledger and make sure every tab exists
	ledgerClient, err := ledger.NewSheetsLedger(ctx, cfg.GoogleSheetID, cfg.GoogleServiceAccountEmail, cfg.GooglePrivateKey)
	if err != nil {
		logrus.Fatalf("Failed to initialize ledger: %v", err)
	}
	if err := ledgerClient.EnsureStructure(ctx); err != nil {
		logrus.Fatalf("Failed to ensure ledger structure: %v", err)
	}

	// Initialize services
	notificationService := notifications.NewService(cfg)
	scoringEngine := scoring.NewEngine(ledgerClient, cfg.FreshnessHalfLifeHours)
	opportunityScorer := scorer.NewOpenAIScorer(cfg.OpenAIKey, cfg.OpenAIModel)
	opportunityService := opportunity.NewService(cfg, ledgerClient, scoringEngine, opportunityScorer, notificationService)
	reportService := report.NewService(ledgerClient, notificationService)

	// Initialize scheduler
	schedulerService := scheduler.NewService(cfg, reportService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	// Set up HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      server.New(opportunityService, reportService).Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start HTTP server in a goroutine
	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}
