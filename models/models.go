package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Fallbacks for products missing channel-required fields.
const (
	PlaceholderImageURL = "https://images.unsplash.com/photo-1564013799919-ab600027ffc6?w=400"
	StoreBaseURL        = "https://www.theleva.com/"
	ProductURLPrefix    = "https://www.theleva.com/products/"
)

// Product is a denormalized catalog record, sourced externally and cached
// in-process by the catalog index.
type Product struct {
	ID          string    `bson:"product_id" json:"id"`
	Handle      string    `bson:"handle,omitempty" json:"handle,omitempty"`
	Title       string    `bson:"title" json:"title"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	Price       string    `bson:"price,omitempty" json:"price,omitempty"`
	ImageURL    string    `bson:"image_url,omitempty" json:"image_url,omitempty"`
	DetailURL   string    `bson:"detail_url,omitempty" json:"detail_url,omitempty"`
	Type        string    `bson:"type,omitempty" json:"type,omitempty"`
	Category    string    `bson:"category,omitempty" json:"category,omitempty"`
	Tags        string    `bson:"tags,omitempty" json:"tags,omitempty"`
	Vendor      string    `bson:"vendor,omitempty" json:"vendor,omitempty"`
	Available   string    `bson:"available,omitempty" json:"available,omitempty"`
	Status      string    `bson:"status,omitempty" json:"status,omitempty"`
	UpdatedAt   time.Time `bson:"updated_at,omitempty" json:"updated_at,omitempty"`
}

// IsAvailable reports whether the availability flag is true-ish. An absent
// flag counts as available; sources that track it use "true"/"yes"/"1".
func (p Product) IsAvailable() bool {
	switch strings.ToLower(strings.TrimSpace(p.Available)) {
	case "", "true", "yes", "1":
		return true
	}
	return false
}

// StatusAllowed reports whether the product status is in the allow-list.
func (p Product) StatusAllowed() bool {
	switch strings.ToLower(strings.TrimSpace(p.Status)) {
	case "", "active", "published", "available":
		return true
	}
	return false
}

// IsComplete reports whether the product has every field the channel
// templates require: a non-empty image, a non-empty description, and a
// resolvable URL or identifier. Incomplete products are excluded from
// search results.
func (p Product) IsComplete() bool {
	if strings.TrimSpace(p.ImageURL) == "" {
		return false
	}
	if strings.TrimSpace(p.Description) == "" {
		return false
	}
	return p.DetailURL != "" || p.Handle != "" || p.ID != ""
}

// URL resolves the purchasable page for the product, falling back to a
// handle-derived store URL and finally the store root.
func (p Product) URL() string {
	if p.DetailURL != "" {
		return p.DetailURL
	}
	if p.Handle != "" {
		return ProductURLPrefix + p.Handle
	}
	return StoreBaseURL
}

// Image resolves the product image, falling back to the placeholder.
func (p Product) Image() string {
	if strings.TrimSpace(p.ImageURL) != "" {
		return p.ImageURL
	}
	return PlaceholderImageURL
}

// ChatMessage is one stored conversation turn for a chat id.
type ChatMessage struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ChatID     string             `bson:"chat_id" json:"chat_id"`
	SenderName string             `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	Message    string             `bson:"message" json:"message"`
	Language   string             `bson:"language,omitempty" json:"language,omitempty"`
	IsBot      bool               `bson:"is_bot" json:"is_bot"`
	Timestamp  time.Time          `bson:"timestamp" json:"timestamp"`
}

// BroadcastResult summarizes one promotional broadcast run.
type BroadcastResult struct {
	RunID   string `json:"run_id"`
	Sent    int    `json:"sent"`
	Failed  int    `json:"failed"`
	Skipped int    `json:"skipped"`
}
