package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"

	"whatsapp-bot/models"
)

// relevanceThreshold is the minimum cosine score for a semantic match.
// Candidates below it are ignored and the title fallback takes over.
const relevanceThreshold = float32(0.3)

// CatalogIndex answers free-text product queries with ranked, complete
// results. It is constructed once at startup and handed to every component
// that searches; there is no package-level instance.
type CatalogIndex struct {
	source       ProductSource
	voyageAPIKey string
	voyageModel  string
	translateURL string
	useMock      bool

	mu       sync.RWMutex
	products []models.Product
	vectors  [][]float32
}

// NewCatalogIndex creates an index over the given source. With no Voyage
// API key the index falls back to deterministic mock embeddings.
func NewCatalogIndex(source ProductSource, voyageAPIKey, voyageModel, translateURL string) *CatalogIndex {
	useMock := voyageAPIKey == ""
	if useMock {
		slog.Warn("No Voyage API key configured, using mock embeddings")
	}
	return &CatalogIndex{
		source:       source,
		voyageAPIKey: voyageAPIKey,
		voyageModel:  voyageModel,
		translateURL: translateURL,
		useMock:      useMock,
	}
}

func (c *CatalogIndex) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if c.useMock {
		return GetMockEmbeddings(texts), nil
	}
	return GetVoyageEmbeddings(ctx, texts, c.voyageAPIKey, c.voyageModel)
}

// searchText derives the string each product is indexed under.
func searchText(p models.Product) string {
	return strings.Join(strings.Fields(p.Title+" "+p.Type+" "+p.Category), " ")
}

// Reload re-reads the backing source, drops records that are unavailable
// or fail the status allow-list, and rebuilds the embedding index. The
// index is swapped in wholesale; concurrent readers see either the old or
// the new one, never a partial build.
func (c *CatalogIndex) Reload(ctx context.Context) error {
	loaded, err := c.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load catalog from %s: %w", c.source.Name(), err)
	}

	products := make([]models.Product, 0, len(loaded))
	for _, product := range loaded {
		if strings.TrimSpace(product.Title) == "" {
			continue
		}
		if !product.IsAvailable() || !product.StatusAllowed() {
			continue
		}
		products = append(products, product)
	}

	var vectors [][]float32
	if len(products) > 0 {
		texts := make([]string, len(products))
		for i, product := range products {
			texts[i] = searchText(product)
		}
		vectors, err = c.embed(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed catalog: %w", err)
		}
	}

	c.mu.Lock()
	c.products = products
	c.vectors = vectors
	c.mu.Unlock()

	slog.Info("Catalog index rebuilt",
		"source", c.source.Name(),
		"products", len(products),
		"dropped", len(loaded)-len(products),
	)

	return nil
}

func (c *CatalogIndex) snapshot() ([]models.Product, [][]float32) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.products, c.vectors
}

// Size returns the number of indexed products.
func (c *CatalogIndex) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.products)
}

// Search returns up to maxResults complete products ranked by semantic
// similarity to the query, localized for lang. The index is rebuilt first
// so catalog edits show up immediately; a rebuild failure keeps the
// previous index serving. When no candidate scores above the relevance
// threshold, an all-words-in-title match over the raw catalog takes over.
func (c *CatalogIndex) Search(ctx context.Context, query, lang string, maxResults int) ([]models.Product, error) {
	if maxResults <= 0 {
		maxResults = 3
	}

	if err := c.Reload(ctx); err != nil {
		slog.Warn("Catalog reload failed, searching stale index", "error", err)
	}

	products, vectors := c.snapshot()
	if len(products) == 0 {
		return []models.Product{}, nil
	}

	query = strings.TrimSpace(query)
	queryVectors, err := c.embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	queryVector := queryVectors[0]

	// Calculate cosine similarity scores for all products
	type scoredProduct struct {
		product models.Product
		score   float32
	}

	scored := make([]scoredProduct, 0, len(products))
	for i, product := range products {
		if i >= len(vectors) {
			break
		}
		scored = append(scored, scoredProduct{
			product: product,
			score:   CosineSimilarity(queryVector, vectors[i]),
		})
	}

	// Sort by similarity score in descending order (highest first)
	sort.Slice(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	// Take the top candidates above threshold, keep complete ones
	results := make([]models.Product, 0, maxResults)
	candidates := 2 * maxResults
	for i := 0; i < len(scored) && i < candidates && len(results) < maxResults; i++ {
		if scored[i].score < relevanceThreshold {
			break
		}
		if !scored[i].product.IsComplete() {
			continue
		}
		results = append(results, c.localizeProduct(ctx, scored[i].product, lang))
	}

	// Fallback: every query word present in the title, in source order
	if len(results) == 0 {
		slog.Info("Semantic scores too low, trying title match", "query", query)
		words := strings.Fields(strings.ToLower(query))
		if len(words) > 0 {
			for _, product := range products {
				title := strings.ToLower(product.Title)
				matched := true
				for _, word := range words {
					if !strings.Contains(title, word) {
						matched = false
						break
					}
				}
				if !matched || !product.IsComplete() {
					continue
				}
				results = append(results, c.localizeProduct(ctx, product, lang))
				if len(results) >= maxResults {
					break
				}
			}
		}
	}

	slog.Info("Catalog search completed",
		"query", query,
		"lang", lang,
		"results", len(results),
		"indexed", len(products),
	)

	return results, nil
}

// GetByID resolves one product by its id or handle, as delivered in an
// interactive list payload.
func (c *CatalogIndex) GetByID(ctx context.Context, id, lang string) (models.Product, bool) {
	if err := c.Reload(ctx); err != nil {
		slog.Warn("Catalog reload failed, reading stale index", "error", err)
	}

	products, _ := c.snapshot()
	for _, product := range products {
		if product.ID == id || product.Handle == id {
			return c.localizeProduct(ctx, product, lang), true
		}
	}
	return models.Product{}, false
}

// All returns up to maxResults complete products in catalog order, for
// browse requests with no query to rank by.
func (c *CatalogIndex) All(ctx context.Context, lang string, maxResults int) []models.Product {
	if maxResults <= 0 {
		maxResults = 20
	}

	if err := c.Reload(ctx); err != nil {
		slog.Warn("Catalog reload failed, browsing stale index", "error", err)
	}

	products, _ := c.snapshot()
	results := make([]models.Product, 0, maxResults)
	for _, product := range products {
		if !product.IsComplete() {
			continue
		}
		results = append(results, c.localizeProduct(ctx, product, lang))
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

// SiblingVariants finds other catalog entries whose titles share the
// product's leading tokens, e.g. the other sizes in a product line. The
// product itself is never returned.
func (c *CatalogIndex) SiblingVariants(ctx context.Context, product models.Product, lang string, maxVariants int) []models.Product {
	if maxVariants <= 0 {
		return nil
	}

	tokens := strings.Fields(strings.ToLower(product.Title))
	if len(tokens) == 0 {
		return nil
	}
	prefix := tokens
	if len(tokens) > 1 {
		prefix = tokens[:len(tokens)-1]
	}
	fullTitle := strings.Join(tokens, " ")

	products, _ := c.snapshot()
	variants := make([]models.Product, 0, maxVariants)
	for _, candidate := range products {
		candidateTokens := strings.Fields(strings.ToLower(candidate.Title))
		if strings.Join(candidateTokens, " ") == fullTitle {
			continue
		}
		if !hasTokenPrefix(candidateTokens, prefix) {
			continue
		}
		if !candidate.IsComplete() {
			continue
		}
		variants = append(variants, c.localizeProduct(ctx, candidate, lang))
		if len(variants) >= maxVariants {
			break
		}
	}
	return variants
}

func hasTokenPrefix(tokens, prefix []string) bool {
	if len(tokens) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if tokens[i] != p {
			return false
		}
	}
	return true
}

// localizeProduct formats the price for the customer's locale and
// translates the description. A translation failure leaves the original
// description in place; it never aborts a search.
func (c *CatalogIndex) localizeProduct(ctx context.Context, product models.Product, lang string) models.Product {
	if raw := strings.TrimSpace(product.Price); raw != "" {
		cleaned := strings.TrimLeft(raw, "$€")
		if value, err := strconv.ParseFloat(cleaned, 64); err == nil {
			switch lang {
			case "fr", "es":
				product.Price = fmt.Sprintf("€%.2f", math.Round(value*0.93*100)/100)
			case "en":
				product.Price = "$" + strconv.FormatFloat(value, 'f', -1, 64)
			default:
				product.Price = strconv.FormatFloat(value, 'f', -1, 64) + " USD"
			}
		}
	}

	if lang != "" && lang != "en" && product.Description != "" {
		product.Description = TranslateText(ctx, c.translateURL, product.Description, lang)
	}

	return product
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float32
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (float32(math.Sqrt(float64(normA))) * float32(math.Sqrt(float64(normB))))
}
