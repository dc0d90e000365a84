package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"

	"whatsapp-bot/config"
	"whatsapp-bot/handlers"
	"whatsapp-bot/middleware"
	"whatsapp-bot/services"
	"whatsapp-bot/webhooks"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found")
	}

	// Initialize structured logger
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(logHandler))

	// Load configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.TestMode {
		slog.Info("TEST_MODE enabled - agent responses are mocked")
	}

	// Initialize MongoDB. The message store is skipped when Mongo is
	// unreachable and the catalog can load from file instead.
	storeEnabled := false
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := services.InitMongoDB(ctx, cfg.MongoURI)
		if err != nil {
			if cfg.ProductsFile == "" {
				slog.Error("Failed to connect to MongoDB", "error", err)
				os.Exit(1)
			}
			slog.Warn("MongoDB unavailable, continuing without the message store", "error", err)
		} else {
			defer client.Disconnect(ctx)
			services.InitServices(client, cfg.DatabaseName)
			storeEnabled = true
		}
	}

	// Build the product catalog index
	var source services.ProductSource
	if cfg.ProductsFile != "" {
		source = services.NewFileProductSource(cfg.ProductsFile)
	} else {
		source = services.NewMongoProductSource()
	}

	catalog := services.NewCatalogIndex(source, cfg.VoyageAPIKey, cfg.VoyageModel, cfg.TranslateAPIURL)

	reloadCtx, cancelReload := context.WithTimeout(context.Background(), 2*time.Minute)
	err := catalog.Reload(reloadCtx)
	cancelReload()
	if err != nil {
		slog.Error("Failed to load the product catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("Product catalog loaded", "source", source.Name(), "products", catalog.Size())

	// Wire up the message pipeline
	translator := services.NewTranslator(cfg.DefaultLanguage)
	normalizer := services.NewNormalizer()
	builder := services.NewMessageBuilder(catalog, translator)
	dispatcher := services.NewToolDispatcher(catalog, builder, translator, normalizer)

	sendDelay := time.Duration(cfg.SendDelayMs) * time.Millisecond
	limiter := services.NewRateLimiter(cfg.RateLimit, time.Duration(cfg.RatePeriodSeconds)*time.Second)
	zoko := services.NewZokoClient(cfg.ZokoAPIURL, cfg.ZokoAPIKey, sendDelay, limiter)
	claude := services.NewClaudeClient(cfg.AnthropicAPIKey, cfg.ClaudeModel, config.GetAgentSystemPrompt("LEVA"), cfg.TestMode)
	dedup := services.NewMessageDeduplicator(cfg.DedupMaxEntries, time.Duration(cfg.DedupTTLSeconds)*time.Second)
	hub := services.GetEventHub()

	processor := handlers.NewMessageProcessor(dedup, translator, claude, normalizer, dispatcher, zoko, hub, storeEnabled)

	// Shopify sync writes to the products collection, so it needs Mongo
	var shopify *services.ShopifyClient
	if cfg.ShopifyShopDomain != "" && cfg.ShopifyAPIKey != "" {
		if storeEnabled {
			shopify = services.NewShopifyClient(cfg.ShopifyShopDomain, cfg.ShopifyAPIKey, cfg.ShopifyAPIPassword)
			if cfg.SyncIntervalMins > 0 {
				schedulerCtx, cancelScheduler := context.WithCancel(context.Background())
				defer cancelScheduler()
				shopify.StartSyncScheduler(schedulerCtx, time.Duration(cfg.SyncIntervalMins)*time.Minute)
			}
		} else {
			slog.Warn("Shopify sync requires MongoDB, skipping")
		}
	}

	broadcast := services.NewBroadcastService(zoko, cfg.TranslateAPIURL, sendDelay)
	adminHandler := handlers.NewAdminHandler(catalog, broadcast, shopify, storeEnabled)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			slog.Error("Request error", "error", err, "status", code)
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	// Middleware
	app.Use(recover.New())

	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Admin-Key",
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path}\n",
	}))

	// Register webhook routes
	webhooks.RegisterRoutes(app, processor)

	// Admin endpoints (protected by the admin key)
	admin := app.Group("/api/admin", middleware.RequireAdminKey(cfg.AdminKeyHash))
	admin.Post("/broadcast", adminHandler.Broadcast)
	admin.Post("/sync", adminHandler.SyncCatalog)
	admin.Post("/reload", adminHandler.ReloadCatalog)
	admin.Get("/chats/:chatID/messages", adminHandler.GetChatMessages)

	// Pipeline monitor websocket
	app.Get("/api/monitor/ws", handlers.MonitorUpgrade, websocket.New(handlers.HandleMonitor))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "whatsapp-bot",
		})
	})

	// Start server
	slog.Info("Server starting", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("Server failed to start", "error", err)
		os.Exit(1)
	}
}
