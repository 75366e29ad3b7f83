package main

import (
	"log"
	"path/filepath"
	"time"

	"raidentrack/internal/config"
	"raidentrack/internal/handlers"
	"raidentrack/internal/middleware"
	"raidentrack/internal/repositories"
	"raidentrack/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

// maxUploadSize bounds request bodies, which carry CSV files and images.
const maxUploadSize = 10 * 1024 * 1024

// Dependencies are the collaborators the HTTP app is built from. Engine and
// Events may be nil.
type Dependencies struct {
	DB     *gorm.DB
	Hasher services.PasswordHasher
	Images services.ImageStore
	Engine services.PredictionEngine
	Events services.EventPublisher
}

// NewApp wires repositories, services and handlers into a Fiber app. The
// AuthService is returned as well so the caller can seed the admin account.
func NewApp(cfg *config.Config, deps Dependencies) (*fiber.App, *services.AuthService) {
	// --- Repositories ---
	userRepo := repositories.NewGORMUserRepository(deps.DB)
	importRepo := repositories.NewGORMImportRecordRepository(deps.DB)

	// --- Services ---
	tokens := services.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	guard := services.NewGuard(tokens, userRepo)
	authService := services.NewAuthService(userRepo, tokens, deps.Hasher)
	accountService := services.NewAccountService(userRepo, importRepo, deps.Hasher, deps.Images)
	adminService := services.NewAdminService(userRepo, deps.Hasher, deps.Events)
	predictionService := services.NewPredictionService(importRepo, deps.Engine, deps.Events)

	// --- Handlers ---
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(accountService)
	adminHandler := handlers.NewAdminHandler(adminService)
	predictionHandler := handlers.NewPredictionHandler(predictionService)
	logHandler := handlers.NewLogHandler(cfg.LogFile)

	app := fiber.New(fiber.Config{
		AppName:   "raidentrack",
		BodyLimit: maxUploadSize,
	})

	// --- Middleware ---
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{Output: log.Writer()}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))

	app.Static("/static", filepath.Join(cfg.Storage.PublicDir, "static"))

	// --- API Routes ---
	auth := middleware.AuthRequired(guard)
	admin := middleware.AdminRequired(guard)

	apiV1 := app.Group("/api/v1")
	authHandler.RegisterRoutes(apiV1)
	userHandler.RegisterRoutes(apiV1, auth)
	predictionHandler.RegisterRoutes(apiV1, auth)
	adminHandler.RegisterRoutes(apiV1, admin)
	logHandler.RegisterRoutes(apiV1, auth)

	// --- Health Check Endpoint ---
	app.Get("/health", func(c *fiber.Ctx) error {
		status := fiber.Map{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "connected",
		}
		if sqlDB, err := deps.DB.DB(); err != nil || sqlDB.PingContext(c.UserContext()) != nil {
			status["status"] = "degraded"
			status["database"] = "unreachable"
			return c.Status(fiber.StatusServiceUnavailable).JSON(status)
		}
		return c.JSON(status)
	})

	return app, authService
}
