package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rbpscan/internal/config"
	"rbpscan/internal/container"
	"rbpscan/ui"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	appConfig, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	gin.SetMode(appConfig.Server.GinMode)

	appContainer, err := container.New(appConfig)
	if err != nil {
		log.Fatalf("Failed to create application container: %v", err)
	}
	logger := appContainer.Logger

	if err := os.MkdirAll(appConfig.Storage.ScratchDir, 0o755); err != nil {
		log.Fatalf("Failed to create scratch directory %s: %v", appConfig.Storage.ScratchDir, err)
	}

	server := ui.NewServer(
		appContainer.AnalysisService,
		appContainer.Exporter,
		appConfig.Server,
		appConfig.Upload,
		logger,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(":" + appConfig.Server.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	case sig := <-quit:
		logger.Info("[main] received %s, shutting down", sig)
		// Wait up to the engine timeout for running analyses
		ctx, cancel := context.WithTimeout(context.Background(), appConfig.Engine.Timeout+5*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("[main] graceful shutdown failed: %v", err)
		}
	}
}
