package services

import (
	"context"
	"fmt"
	"strconv"

	"whatsapp-bot/models"
)

// maxSiblingVariants caps how many related product cards follow a
// single-product result.
const maxSiblingVariants = 3

// MessageBuilder turns product result sets into outbound canonical
// messages, applying the channel's field limits and fallback rules.
type MessageBuilder struct {
	catalog    *CatalogIndex
	translator *Translator
}

func NewMessageBuilder(catalog *CatalogIndex, translator *Translator) *MessageBuilder {
	return &MessageBuilder{catalog: catalog, translator: translator}
}

// Build maps a result set onto the right message variant by count: none
// found becomes a localized text, one product becomes a template card
// followed by up to three sibling variant cards, several become an
// interactive list. The result is always an ordered sequence; the gateway
// paces multi-message sends.
func (b *MessageBuilder) Build(ctx context.Context, products []models.Product, lang string) []models.CanonicalMessage {
	switch {
	case len(products) == 0:
		return []models.CanonicalMessage{
			models.TextMessage{Body: b.translator.Get("no_products", lang, nil)},
		}
	case len(products) == 1:
		messages := []models.CanonicalMessage{b.ProductCard(products[0], lang)}
		if b.catalog != nil {
			for _, variant := range b.catalog.SiblingVariants(ctx, products[0], lang, maxSiblingVariants) {
				messages = append(messages, b.ProductCard(variant, lang))
			}
		}
		return messages
	default:
		return []models.CanonicalMessage{b.ProductList(products, lang)}
	}
}

// ProductCard builds the upsell template card for one product. Args are
// positional: image, title, order label, detail URL.
func (b *MessageBuilder) ProductCard(product models.Product, lang string) models.ButtonMessage {
	title := cleanText(product.Title, models.ListTitleMaxLen)
	if title == "" {
		title = "Product"
	}
	return models.ButtonMessage{
		TemplateID: models.UpsellTemplateID,
		Args: []string{
			product.Image(),
			title,
			b.translator.Get("order_product", lang, map[string]string{"product": title}),
			product.URL(),
		},
	}
}

// ProductList builds the interactive list for a multi-product result. The
// list shows at most the channel's item cap; the body still reports the
// full match count.
func (b *MessageBuilder) ProductList(products []models.Product, lang string) models.ListMessage {
	count := len(products)
	shown := products
	if len(shown) > models.ListMaxItems {
		shown = shown[:models.ListMaxItems]
	}

	items := make([]models.ListItem, 0, len(shown))
	seen := make(map[string]bool, len(shown))
	for i, product := range shown {
		payload := product.ID
		if payload == "" {
			payload = product.Handle
		}
		if payload == "" {
			payload = fmt.Sprintf("product-%d", i+1)
		}
		if seen[payload] {
			// Same id twice in one result set; keep both rows addressable
			payload = fmt.Sprintf("%s-%d", payload, i)
		}
		seen[payload] = true

		id := product.ID
		if id == "" {
			id = payload
		}

		description := cleanText(product.Description, models.ListDescriptionMaxLen)
		if description == "" {
			description = models.DefaultItemDescription
		}

		items = append(items, models.ListItem{
			ID:          id,
			Payload:     payload,
			Title:       cleanText(product.Title, models.ListTitleMaxLen),
			Description: description,
		})
	}

	return models.ListMessage{
		Header: cleanText(b.translator.Get("product_list_title", lang, nil), models.ListTitleMaxLen),
		Body:   cleanText(b.translator.Get("found_products", lang, map[string]string{"count": strconv.Itoa(count)}), models.ListDescriptionMaxLen),
		Items:  items,
	}
}
