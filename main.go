package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"raidentrack/internal/config"
	"raidentrack/internal/repositories"
	"raidentrack/internal/services"
	"raidentrack/pkg/gemini"
	"raidentrack/pkg/rabbitmq"
	"raidentrack/pkg/storage"
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// --- Logging ---
	// The log file backs the /logs endpoint.
	logFile, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Fatalf("Failed to open log file %s: %v", cfg.LogFile, err)
	}
	defer logFile.Close()
	log.SetOutput(io.MultiWriter(os.Stdout, logFile))

	ctx := context.Background()

	// --- Database ---
	db, err := repositories.OpenDatabase(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := repositories.AutoMigrate(db); err != nil {
		log.Fatalf("%v", err)
	}

	// --- Collaborators ---
	images, err := newImageStore(ctx, cfg.Storage)
	if err != nil {
		log.Fatalf("Failed to initialize image store: %v", err)
	}

	var engine services.PredictionEngine
	if cfg.Gemini.APIKey != "" {
		engine = gemini.NewClient(gemini.Config{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
		})
	} else {
		log.Println("GEMINI_API_KEY is not set, predictions are disabled")
	}

	var events services.EventPublisher
	if cfg.RabbitMQ.URL != "" {
		mqClient, err := rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQ.URL, Queue: cfg.RabbitMQ.Queue})
		if err != nil {
			log.Printf("RabbitMQ unavailable, events will not be published: %v", err)
		} else {
			defer mqClient.Close()
			events = mqClient
			if err := mqClient.Consume(rabbitmq.LogEvent); err != nil {
				log.Printf("Failed to start RabbitMQ consumer: %v", err)
			}
		}
	}

	// --- HTTP app ---
	app, authService := NewApp(cfg, Dependencies{
		DB:     db,
		Hasher: services.NewBcryptHasher(0),
		Images: images,
		Engine: engine,
		Events: events,
	})

	if cfg.Admin.Username != "" {
		seedCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		admin, err := authService.EnsureAdmin(seedCtx, cfg.Admin.Username, cfg.Admin.Email, cfg.Admin.Password)
		cancel()
		if err != nil {
			log.Fatalf("Failed to seed admin %s: %v", cfg.Admin.Username, err)
		}
		log.Printf("Admin account %s (%d) is ready", admin.Username, admin.PublicID)
	}

	// --- Start HTTP Server ---
	log.Printf("Starting server on port %s", cfg.AppPort)

	// Graceful shutdown handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}

func newImageStore(ctx context.Context, cfg config.StorageConfig) (services.ImageStore, error) {
	switch cfg.Backend {
	case config.ImageStoreS3:
		return storage.NewS3Store(ctx, storage.S3Config{
			Bucket:        cfg.Bucket,
			Region:        cfg.Region,
			AccessKey:     cfg.AccessKey,
			SecretKey:     cfg.SecretKey,
			Endpoint:      cfg.Endpoint,
			PublicBaseURL: cfg.CloudFrontDomain,
		})
	case config.ImageStoreLocal:
		return storage.NewLocalStore(cfg.PublicDir)
	default:
		return nil, fmt.Errorf("unsupported image store %q", cfg.Backend)
	}
}
