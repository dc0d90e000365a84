package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type Config struct {
	// Zoko WhatsApp configuration
	ZokoAPIKey string
	ZokoAPIURL string

	// Anthropic configuration
	AnthropicAPIKey string
	ClaudeModel     string
	TestMode        bool

	// Voyage embeddings configuration
	VoyageAPIKey string
	VoyageModel  string

	// MongoDB configuration
	MongoURI     string
	DatabaseName string

	// Catalog configuration
	ProductsFile string

	// Shopify sync configuration
	ShopifyShopDomain  string
	ShopifyAPIKey      string
	ShopifyAPIPassword string
	SyncIntervalMins   int

	// Admin API configuration
	AdminKeyHash string

	// Deduplication configuration
	DedupMaxEntries int
	DedupTTLSeconds int

	// Outbound pacing configuration
	SendDelayMs       int
	RateLimit         int
	RatePeriodSeconds int

	// Localization configuration
	DefaultLanguage string
	TranslateAPIURL string

	// Server configuration
	Port string
}

func LoadConfig() *Config {
	cfg := &Config{
		ZokoAPIKey:         getEnv("ZOKO_API_KEY", ""),
		ZokoAPIURL:         getEnv("ZOKO_API_URL", "https://chat.zoko.io/v2/message"),
		AnthropicAPIKey:    getEnv("ANTHROPIC_API_KEY", ""),
		ClaudeModel:        getEnv("CLAUDE_MODEL", "claude-3-5-sonnet-20241022"),
		TestMode:           getEnv("TEST_MODE", "false") == "true",
		VoyageAPIKey:       getEnv("VOYAGE_API_KEY", ""),
		VoyageModel:        getEnv("VOYAGE_MODEL", "voyage-2"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		DatabaseName:       getEnv("MONGO_DB_NAME", "whatsapp_bot"),
		ProductsFile:       getEnv("PRODUCTS_FILE", ""),
		ShopifyShopDomain:  getEnv("SHOPIFY_SHOP_DOMAIN", ""),
		ShopifyAPIKey:      getEnv("SHOPIFY_API_KEY", ""),
		ShopifyAPIPassword: getEnv("SHOPIFY_API_PASSWORD", ""),
		SyncIntervalMins:   getEnvInt("SYNC_INTERVAL_MINUTES", 0),
		AdminKeyHash:       getEnv("ADMIN_KEY_HASH", ""),
		DedupMaxEntries:    getEnvInt("DEDUP_MAX_ENTRIES", 1000),
		DedupTTLSeconds:    getEnvInt("DEDUP_TTL_SECONDS", 3600),
		SendDelayMs:        getEnvInt("SEND_DELAY_MS", 500),
		RateLimit:          getEnvInt("RATE_LIMIT", 10),
		RatePeriodSeconds:  getEnvInt("RATE_PERIOD_SECONDS", 60),
		DefaultLanguage:    getEnv("DEFAULT_LANGUAGE", "en"),
		TranslateAPIURL:    getEnv("TRANSLATE_API_URL", ""),
		Port:               getEnv("PORT", "8080"),
	}

	// Validate required configuration
	if cfg.ZokoAPIKey == "" {
		slog.Warn("ZOKO_API_KEY not set, outbound messages will fail")
	}
	if cfg.AnthropicAPIKey == "" && !cfg.TestMode {
		slog.Warn("ANTHROPIC_API_KEY not set and TEST_MODE disabled")
	}

	return cfg
}

// Validate reports the first hard configuration error. The server refuses
// to boot on these rather than failing on the first webhook.
func (c *Config) Validate() error {
	if c.MongoURI == "" && c.ProductsFile == "" {
		return fmt.Errorf("config: need MONGO_URI or PRODUCTS_FILE for the product catalog")
	}
	if c.DedupMaxEntries <= 0 {
		return fmt.Errorf("config: DEDUP_MAX_ENTRIES must be positive, got %d", c.DedupMaxEntries)
	}
	if c.DedupTTLSeconds <= 0 {
		return fmt.Errorf("config: DEDUP_TTL_SECONDS must be positive, got %d", c.DedupTTLSeconds)
	}
	if c.RateLimit <= 0 || c.RatePeriodSeconds <= 0 {
		return fmt.Errorf("config: RATE_LIMIT and RATE_PERIOD_SECONDS must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("Invalid integer in environment, using default", "key", key, "value", value, "default", defaultValue)
		return defaultValue
	}
	return n
}
