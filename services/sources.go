package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"whatsapp-bot/models"
)

// ProductSource loads the raw product catalog from a backing store.
// Sources return records as-is; availability filtering and indexing happen
// in the catalog index.
type ProductSource interface {
	Name() string
	Load(ctx context.Context) ([]models.Product, error)
}

// MongoProductSource reads the catalog from the products collection, which
// the Shopify sync keeps current.
type MongoProductSource struct{}

func NewMongoProductSource() *MongoProductSource {
	return &MongoProductSource{}
}

func (s *MongoProductSource) Name() string { return "mongodb" }

func (s *MongoProductSource) Load(ctx context.Context) ([]models.Product, error) {
	return GetAllProducts(ctx)
}

// FileProductSource reads the catalog from a JSON export file. Records may
// use lowercase field names or the capitalized spellings of a store
// platform export; both are accepted.
type FileProductSource struct {
	Path string
}

func NewFileProductSource(path string) *FileProductSource {
	return &FileProductSource{Path: path}
}

func (s *FileProductSource) Name() string { return "file" }

// Titles that mark test or placeholder records in known exports.
var suspiciousTitles = map[string]bool{
	"morgan freeman": true,
	"john wood":      true,
	"pitch deck":     true,
	"by leva":        true,
}

func (s *FileProductSource) Load(ctx context.Context) ([]models.Product, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read products file %s: %w", s.Path, err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse products file %s: %w", s.Path, err)
	}

	products := make([]models.Product, 0, len(records))
	skipped := 0
	for _, record := range records {
		product := productFromRecord(record)
		title := strings.ToLower(strings.TrimSpace(product.Title))
		if title == "" || suspiciousTitles[title] {
			skipped++
			continue
		}
		products = append(products, product)
	}

	slog.Info("Loaded products from file",
		"path", s.Path,
		"products", len(products),
		"skipped", skipped,
	)

	return products, nil
}

// productFromRecord maps one loosely-typed export record onto a Product,
// trying each known field spelling in turn.
func productFromRecord(record map[string]any) models.Product {
	product := models.Product{
		ID:          stringField(record, "id", "product_id"),
		Handle:      stringField(record, "Handle", "handle"),
		Title:       stringField(record, "Title", "title", "name"),
		Description: stringField(record, "description", "Body (HTML)", "body_html"),
		Price:       stringField(record, "price", "Variant Price"),
		ImageURL:    stringField(record, "image_url", "Image Src", "image"),
		DetailURL:   stringField(record, "url", "detail_url"),
		Type:        stringField(record, "Type", "type"),
		Category:    stringField(record, "Product Category", "category"),
		Tags:        stringField(record, "Tags", "tags"),
		Vendor:      stringField(record, "Vendor", "vendor"),
		Status:      stringField(record, "Status", "status"),
		Available:   stringField(record, "Available", "available", "Published", "published"),
	}

	if product.ID == "" {
		product.ID = product.Handle
	}

	// Exports disagree on the availability and status column names; scan
	// for anything that looks like one when the usual spellings are absent.
	if product.Available == "" {
		for key, value := range record {
			lower := strings.ToLower(key)
			if strings.Contains(lower, "available") || strings.Contains(lower, "published") {
				product.Available = anyToString(value)
				break
			}
		}
	}
	if product.Status == "" {
		for key, value := range record {
			if strings.Contains(strings.ToLower(key), "status") {
				product.Status = anyToString(value)
				break
			}
		}
	}

	// Some exports nest the first image under images[0].src
	if product.ImageURL == "" {
		if images, ok := record["images"].([]any); ok && len(images) > 0 {
			if first, ok := images[0].(map[string]any); ok {
				product.ImageURL = stringField(first, "src")
			}
		}
	}

	return product
}

func stringField(record map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := record[key]; ok {
			if s := anyToString(value); s != "" {
				return s
			}
		}
	}
	return ""
}

func anyToString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case bool:
		return strconv.FormatBool(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
