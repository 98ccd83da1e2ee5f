package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"warungsoal-progression/config"
	"warungsoal-progression/database"
	"warungsoal-progression/handlers"
	"warungsoal-progression/middleware"
	"warungsoal-progression/services"
	"warungsoal-progression/utils"
	"warungsoal-progression/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("❌ ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("❌ ", err)
	}

	clock := clockwork.NewRealClock()

	var archiver services.SeasonArchiver
	if cfg.R2.Enabled() {
		r2, err := utils.NewR2Client(ctx, cfg.R2)
		if err != nil {
			log.Fatal("❌ failed to initialize R2 client: ", err)
		}
		archiver = services.NewObjectStoreArchiver(r2)
	} else {
		utils.LogWarn("⚠️  R2 not configured, closed seasons will not be archived")
	}

	seasons := services.NewSeasonController(db, clock, cfg.SeasonLength, archiver)
	if _, err := seasons.EnsureActiveSeason(ctx); err != nil {
		log.Fatal("❌ failed to open season: ", err)
	}

	stats := services.NewStatsStore(db, clock)
	profiles := services.NewProfileService(db)
	progression := services.NewProgressionService(stats, profiles, services.RetryPolicy{
		MaxAttempts: cfg.ProgressionMaxAttempts,
		BaseDelay:   cfg.ProgressionRetryBase,
		MaxDelay:    20 * cfg.ProgressionRetryBase,
	})

	scheduler := services.NewSeasonScheduler(seasons, cfg.SeasonCheckInterval)
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("❌ failed to start season scheduler: ", err)
	}

	if cfg.ProfileSyncEnabled() {
		workers.NewProfileSyncWorker(db, clock, cfg.SyncServiceURL, cfg.ServiceToken, cfg.ProfileSyncInterval).Start(ctx)
	} else {
		utils.LogWarn("⚠️  SYNC_SERVICE_URL/SERVICE_TOKEN not set, profile mirror will not refresh")
	}

	h := &handlers.ProgressionHandlers{
		Progression:  progression,
		Seasons:      seasons,
		Stream:       services.NewStatsStream(stats, 0),
		ServiceToken: cfg.ServiceToken,
	}
	if cfg.ServiceToken == "" {
		utils.LogWarn("⚠️  SERVICE_TOKEN not set, /progression/events will reject every request")
	}
	if cfg.AuthServiceURL != "" {
		h.Auth = services.NewAuthServiceClient(cfg.AuthServiceURL, cfg.ServiceToken)
	} else {
		utils.LogWarn("⚠️  AUTH_SERVICE_URL not set, /stream/stats disabled")
	}

	app := fiber.New(fiber.Config{
		AppName: "warungsoal-progression",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	// 🔐 Only gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))

	handlers.SetupProgressionRoutes(app, h)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			utils.LogError("Server error: %v", err)
			stop()
		}
	}()

	utils.LogSuccess("✅ Server running on :%s", cfg.Port)
	utils.LogInfo("✅ CORS configured for origins: %s", strings.Join(cfg.AllowedOrigins, ","))

	<-ctx.Done()
	utils.LogInfo("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		utils.LogError("server shutdown: %v", err)
	}
	if err := scheduler.Stop(); err != nil {
		utils.LogError("scheduler shutdown: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
