package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"whatsapp-bot/models"
)

var (
	mongoClient *mongo.Client
	database    *mongo.Database
)

// GetDatabase returns the MongoDB database instance
func GetDatabase() *mongo.Database {
	return database
}

// InitMongoDB initializes MongoDB connection
func InitMongoDB(ctx context.Context, uri string) (*mongo.Client, error) {
	clientOptions := options.Client().ApplyURI(uri)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	slog.Info("Connected to MongoDB")
	mongoClient = client

	return client, nil
}

// InitServices initializes the database handle and indexes
func InitServices(client *mongo.Client, databaseName string) {
	database = client.Database(databaseName)

	// Create indexes
	createIndexes()
}

// createIndexes creates necessary database indexes
func createIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Products collection indexes
	productsCollection := database.Collection("products")
	productsCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"product_id": 1}, Options: options.Index().SetUnique(true)},
		{Keys: bson.M{"handle": 1}},
		{Keys: bson.M{"updated_at": -1}},
	})

	// Messages collection indexes
	messagesCollection := database.Collection("messages")
	messagesCollection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.M{"chat_id": 1}},
		{Keys: bson.M{"is_bot": 1}},
		{Keys: bson.M{"timestamp": -1}},
	})

	// Broadcasts collection indexes
	broadcastsCollection := database.Collection("broadcasts")
	broadcastsCollection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.M{"run_id": 1},
		Options: options.Index().SetUnique(true),
	})
}

// SaveChatMessage stores one conversation turn
func SaveChatMessage(ctx context.Context, message *models.ChatMessage) error {
	if message.Timestamp.IsZero() {
		message.Timestamp = time.Now()
	}
	collection := database.Collection("messages")
	_, err := collection.InsertOne(ctx, message)
	return err
}

// ChatHistory represents a chat history entry
type ChatHistory struct {
	Role      string    `bson:"role" json:"role"` // "user" or "assistant"
	Content   string    `bson:"content" json:"content"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// GetChatHistory fetches recent conversation turns for a chat
func GetChatHistory(ctx context.Context, chatID string, limit int) ([]ChatHistory, error) {
	collection := database.Collection("messages")

	// If limit is not specified, default to 10
	if limit <= 0 {
		limit = 10
	}

	history := []ChatHistory{}

	filter := bson.M{"chat_id": chatID}

	findOptions := options.Find().
		SetSort(bson.M{"timestamp": -1}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []models.ChatMessage
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}

	// Convert messages to chat history
	for _, msg := range messages {
		role := "user"
		if msg.IsBot {
			role = "assistant"
		}
		history = append(history, ChatHistory{
			Role:      role,
			Content:   msg.Message,
			Timestamp: msg.Timestamp,
		})
	}

	// Sort by timestamp (oldest first for conversation context)
	for i := 0; i < len(history)-1; i++ {
		for j := i + 1; j < len(history); j++ {
			if history[i].Timestamp.After(history[j].Timestamp) {
				history[i], history[j] = history[j], history[i]
			}
		}
	}

	slog.Info("Chat history retrieved",
		"chatID", chatID,
		"historyLength", len(history),
	)

	return history, nil
}

// GetAllProducts loads the full catalog from the products collection
func GetAllProducts(ctx context.Context) ([]models.Product, error) {
	collection := database.Collection("products")

	cursor, err := collection.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode products: %w", err)
	}

	return products, nil
}

// UpsertProducts writes products keyed by product id, inserting new ones
// and updating existing ones in a single bulk call
func UpsertProducts(ctx context.Context, products []models.Product) (int64, error) {
	if len(products) == 0 {
		return 0, nil
	}

	collection := database.Collection("products")

	now := time.Now()
	writes := make([]mongo.WriteModel, 0, len(products))
	for _, product := range products {
		product.UpdatedAt = now
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"product_id": product.ID}).
			SetUpdate(bson.M{"$set": product}).
			SetUpsert(true))
	}

	result, err := collection.BulkWrite(ctx, writes)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert products: %w", err)
	}

	written := result.UpsertedCount + result.ModifiedCount
	slog.Info("Products upserted",
		"inserted", result.UpsertedCount,
		"updated", result.ModifiedCount,
		"total", len(products),
	)

	return written, nil
}

// CountProducts returns the number of stored catalog products
func CountProducts(ctx context.Context) (int64, error) {
	collection := database.Collection("products")
	return collection.CountDocuments(ctx, bson.M{})
}

// BroadcastTarget is one chat eligible for a promotional broadcast
type BroadcastTarget struct {
	ChatID   string
	Name     string
	Language string
}

// GetBroadcastTargets returns every chat that has sent us a message, with
// the name and language of its most recent inbound turn
func GetBroadcastTargets(ctx context.Context) ([]BroadcastTarget, error) {
	collection := database.Collection("messages")

	chatIDs, err := collection.Distinct(ctx, "chat_id", bson.M{"is_bot": false})
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}

	targets := make([]BroadcastTarget, 0, len(chatIDs))
	for _, raw := range chatIDs {
		chatID, ok := raw.(string)
		if !ok || chatID == "" {
			continue
		}

		var last models.ChatMessage
		opts := options.FindOne().SetSort(bson.M{"timestamp": -1})
		if err := collection.FindOne(ctx, bson.M{"chat_id": chatID, "is_bot": false}, opts).Decode(&last); err != nil {
			slog.Warn("Skipping chat without readable history", "chatID", chatID, "error", err)
			continue
		}

		language := last.Language
		if language == "" {
			language = "en"
		}
		targets = append(targets, BroadcastTarget{ChatID: chatID, Name: last.SenderName, Language: language})
	}

	return targets, nil
}

// SaveBroadcastRun records the outcome of a promotional broadcast
func SaveBroadcastRun(ctx context.Context, result models.BroadcastResult) error {
	collection := database.Collection("broadcasts")
	_, err := collection.InsertOne(ctx, bson.M{
		"run_id":    result.RunID,
		"sent":      result.Sent,
		"failed":    result.Failed,
		"skipped":   result.Skipped,
		"timestamp": time.Now(),
	})
	return err
}
