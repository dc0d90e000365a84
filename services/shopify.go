package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"whatsapp-bot/models"
)

const shopifyAPIVersion = "2024-04"

// Shopify caps products.json at 100 items per request.
const maxShopifyPageSize = 100

type shopifyVariant struct {
	Price string `json:"price"`
}

type shopifyImage struct {
	Src string `json:"src"`
}

type shopifyProduct struct {
	ID          int64            `json:"id"`
	Title       string           `json:"title"`
	BodyHTML    string           `json:"body_html"`
	Vendor      string           `json:"vendor"`
	ProductType string           `json:"product_type"`
	Handle      string           `json:"handle"`
	Status      string           `json:"status"`
	Tags        string           `json:"tags"`
	Variants    []shopifyVariant `json:"variants"`
	Images      []shopifyImage   `json:"images"`
}

type shopifyProductsResponse struct {
	Products []shopifyProduct `json:"products"`
}

// ShopifyClient pulls the product catalog from the Shopify Admin API and
// keeps the product collection in sync with it.
type ShopifyClient struct {
	baseURL     string
	apiKey      string
	apiPassword string
	retry       RetryPolicy
	httpClient  *http.Client
}

func NewShopifyClient(shopDomain, apiKey, apiPassword string) *ShopifyClient {
	domain := shopDomain
	if domain != "" && !strings.Contains(domain, ".") {
		domain += ".myshopify.com"
	}
	return &ShopifyClient{
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", domain, shopifyAPIVersion),
		apiKey:      apiKey,
		apiPassword: apiPassword,
		retry:       DefaultRetryPolicy(),
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FetchProducts retrieves up to limit products from the store.
func (s *ShopifyClient) FetchProducts(ctx context.Context, limit int) ([]models.Product, error) {
	if limit <= 0 || limit > maxShopifyPageSize {
		limit = maxShopifyPageSize
	}
	url := fmt.Sprintf("%s/products.json?limit=%d", s.baseURL, limit)

	var response shopifyProductsResponse
	err := s.retry.Do(ctx, "shopify products", func() (int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, err
		}
		req.SetBasicAuth(s.apiKey, s.apiPassword)
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			return 0, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return 0, err
		}
		if resp.StatusCode != http.StatusOK {
			return resp.StatusCode, fmt.Errorf("shopify returned status %d: %s", resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, &response); err != nil {
			return resp.StatusCode, fmt.Errorf("parsing shopify response: %w", err)
		}
		return resp.StatusCode, nil
	})
	if err != nil {
		return nil, err
	}

	products := make([]models.Product, 0, len(response.Products))
	for _, p := range response.Products {
		products = append(products, shopifyToProduct(p))
	}

	slog.Info("Fetched products from Shopify", "count", len(products))
	return products, nil
}

func shopifyToProduct(p shopifyProduct) models.Product {
	product := models.Product{
		ID:          strconv.FormatInt(p.ID, 10),
		Handle:      p.Handle,
		Title:       p.Title,
		Description: p.BodyHTML,
		Type:        p.ProductType,
		Vendor:      p.Vendor,
		Status:      p.Status,
	}
	if len(p.Variants) > 0 {
		product.Price = p.Variants[0].Price
	}
	if len(p.Images) > 0 {
		product.ImageURL = p.Images[0].Src
	}
	if p.Tags != "" {
		tags := strings.Split(p.Tags, ",")
		for i := range tags {
			tags[i] = strings.TrimSpace(tags[i])
		}
		product.Tags = strings.Join(tags, ", ")
	}
	return product
}

// Sync fetches the catalog and upserts it into the product collection.
func (s *ShopifyClient) Sync(ctx context.Context) (int64, error) {
	products, err := s.FetchProducts(ctx, maxShopifyPageSize)
	if err != nil {
		return 0, fmt.Errorf("fetching shopify products: %w", err)
	}
	if len(products) == 0 {
		slog.Warn("Shopify returned no products, skipping upsert")
		return 0, nil
	}

	count, err := UpsertProducts(ctx, products)
	if err != nil {
		return 0, fmt.Errorf("upserting products: %w", err)
	}

	slog.Info("Shopify catalog synced", "written", count)
	return count, nil
}

// StartSyncScheduler starts a background goroutine that re-syncs the
// catalog on the configured interval.
func (s *ShopifyClient) StartSyncScheduler(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Shopify sync scheduler stopped")
				return
			case <-ticker.C:
				syncCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
				if _, err := s.Sync(syncCtx); err != nil {
					slog.Error("Scheduled Shopify sync failed", "error", err)
				}
				cancel()
			}
		}
	}()

	slog.Info("Shopify sync scheduler started", "interval", interval.String())
}
