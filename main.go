package main

import (
	"coursehub/config"
	"coursehub/database"
	"coursehub/logger"
	"coursehub/purchases"
	"coursehub/repository"
	courseRoutes "coursehub/routers/courseRoutes"
	"coursehub/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberLogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/rs/zerolog/log"
)

func main() {
	config.LoadConfig()
	cfg := config.AppConfig

	if err := logger.InitLogger(logger.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize logger")
	}

	database.ConnectDb()

	purchaseCache := purchases.NewCache(cfg.PurchasesCacheMaxEntries, cfg.PurchasesCacheMaxSize, cfg.PurchasesCacheTTL)
	verifier := purchases.NewAppxVerifier(purchases.AppxConfig{
		BaseURL:        cfg.AppxBaseApi,
		ClientService:  cfg.AppxClientService,
		AuthKey:        cfg.AppxAuthKey,
		Timeout:        cfg.AppxTimeout,
		MaxConcurrency: cfg.AppxMaxConcurrency,
	})
	purchaseService := purchases.NewService(
		repository.NewCourseRepository(database.Database.Db),
		verifier,
		purchaseCache,
		purchases.Options{
			LocalCmsProvider: cfg.LocalCmsProvider,
			AllowPartial:     cfg.AppxAllowPartial,
			OpenAccessAlways: cfg.OpenAccessAlways,
			Coalesce:         cfg.CoalescePurchases,
		},
	)

	scheduler, err := utils.InitializeCacheScheduler(cfg.PurchasesCacheSweep, purchaseCache)
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to start cache scheduler")
	}
	if scheduler != nil {
		defer scheduler.Stop()
	}

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,DELETE",
		AllowHeaders: "Content-Type,Authorization",
	}))

	// Enable the built-in logger middleware to log all requests
	app.Use(fiberLogger.New(fiberLogger.Config{
		Format: "[${time}] ${ip} ${method} ${path} ${status} ${latency}\n",
	}))

	courseRoutes.SetupCourseRoutes(app, purchaseService)

	logger.Info().
		Str("port", cfg.Port).
		Bool("localCmsProvider", cfg.LocalCmsProvider).
		Msg("Server is running")
	if err := app.Listen(":" + cfg.Port); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Server stopped")
	}
}
