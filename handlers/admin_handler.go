package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"whatsapp-bot/models"
	"whatsapp-bot/services"
)

// AdminHandler exposes the operational endpoints: broadcasts, catalog
// sync, index reload, and chat inspection.
type AdminHandler struct {
	catalog      *services.CatalogIndex
	broadcast    *services.BroadcastService
	shopify      *services.ShopifyClient
	storeEnabled bool
}

func NewAdminHandler(catalog *services.CatalogIndex, broadcast *services.BroadcastService, shopify *services.ShopifyClient, storeEnabled bool) *AdminHandler {
	return &AdminHandler{
		catalog:      catalog,
		broadcast:    broadcast,
		shopify:      shopify,
		storeEnabled: storeEnabled,
	}
}

// Broadcast sends a promotional message to every known chat
func (h *AdminHandler) Broadcast(c *fiber.Ctx) error {
	if !h.storeEnabled {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Broadcasts require the message store to be configured",
		})
	}

	var req struct {
		Message string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
	}

	// Broadcasts are paced per recipient, so allow a long run
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := h.broadcast.Broadcast(ctx, req.Message)
	if err != nil {
		slog.Error("Broadcast failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Broadcast failed",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"run_id":  result.RunID,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"skipped": result.Skipped,
	})
}

// SyncCatalog pulls the product catalog from Shopify and refreshes the
// search index
func (h *AdminHandler) SyncCatalog(c *fiber.Ctx) error {
	if h.shopify == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Shopify is not configured",
		})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	written, err := h.shopify.Sync(ctx)
	if err != nil {
		slog.Error("Catalog sync failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Catalog sync failed",
			"details": err.Error(),
		})
	}

	if err := h.catalog.Reload(ctx); err != nil {
		slog.Warn("Catalog reload after sync failed", "error", err)
	}

	return c.JSON(fiber.Map{
		"message": "Catalog synced",
		"written": written,
		"indexed": h.catalog.Size(),
	})
}

// ReloadCatalog rebuilds the search index from the product source
func (h *AdminHandler) ReloadCatalog(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := h.catalog.Reload(ctx); err != nil {
		slog.Error("Catalog reload failed", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Catalog reload failed",
			"details": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"message":  "Catalog reloaded",
		"products": h.catalog.Size(),
	})
}

// GetChatMessages retrieves the stored conversation for one chat with
// pagination
func (h *AdminHandler) GetChatMessages(c *fiber.Ctx) error {
	if !h.storeEnabled {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "The message store is not configured",
		})
	}

	chatID := c.Params("chatID")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Chat ID is required",
		})
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 50)
	if limit > 200 {
		limit = 200
	}
	skip := (page - 1) * limit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db := services.GetDatabase()
	collection := db.Collection("messages")

	filter := bson.M{"chat_id": chatID}

	totalCount, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		slog.Error("Failed to count messages", "error", err)
		totalCount = 0
	}

	// Ascending order for chat flow
	findOptions := options.Find().
		SetSort(bson.M{"timestamp": 1}).
		SetSkip(int64(skip)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve messages",
		})
	}
	defer cursor.Close(ctx)

	var messages []models.ChatMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to decode messages",
		})
	}

	totalPages := (int(totalCount) + limit - 1) / limit

	return c.JSON(fiber.Map{
		"chat_id":  chatID,
		"messages": messages,
		"pagination": fiber.Map{
			"page":        page,
			"limit":       limit,
			"total":       totalCount,
			"total_pages": totalPages,
			"has_more":    page < totalPages,
		},
	})
}
