package services

import (
	"context"
	"log/slog"
	"strconv"

	"whatsapp-bot/models"
)

// Tool names the agent is allowed to invoke.
const (
	ToolSearchProducts     = "search_products_with_handoff"
	ToolSearchOneProduct   = "search_one_product_with_handoff"
	ToolGetPropertyDetails = "get_property_details_with_handoff"
	ToolBrowseAll          = "browse_all_properties_with_handoff"
)

// Result limits per tool.
const (
	searchResultLimit    = 10
	searchOneResultLimit = 1
	browseResultLimit    = 20
)

// ToolDispatcher executes agent tool invocations against the catalog and
// converts every outcome, including failures, into sendable messages.
// Nothing escapes Dispatch as an error; the conversation must always get
// a reply.
type ToolDispatcher struct {
	catalog    *CatalogIndex
	builder    *MessageBuilder
	translator *Translator
	normalizer *Normalizer
}

func NewToolDispatcher(catalog *CatalogIndex, builder *MessageBuilder, translator *Translator, normalizer *Normalizer) *ToolDispatcher {
	return &ToolDispatcher{catalog: catalog, builder: builder, translator: translator, normalizer: normalizer}
}

// Dispatch runs one tool invocation and returns the messages to deliver.
func (d *ToolDispatcher) Dispatch(ctx context.Context, inv models.ToolInvocation, lang string) []models.CanonicalMessage {
	slog.Info("Dispatching tool", "tool", inv.ToolName, "args", inv.Args)

	switch inv.ToolName {
	case ToolSearchProducts:
		query := stringArg(inv.Args, "query")
		products, err := d.catalog.Search(ctx, query, lang, searchResultLimit)
		if err != nil {
			return d.failure(inv.ToolName, lang, err)
		}
		return d.handoff(d.builder.Build(ctx, products, lang))

	case ToolSearchOneProduct:
		query := stringArg(inv.Args, "query")
		products, err := d.catalog.Search(ctx, query, lang, searchOneResultLimit)
		if err != nil {
			return d.failure(inv.ToolName, lang, err)
		}
		return d.handoff(d.builder.Build(ctx, products, lang))

	case ToolGetPropertyDetails:
		id := stringArg(inv.Args, "property_id", "product_id", "id")
		product, found := d.catalog.GetByID(ctx, id, lang)
		if !found {
			return d.handoff([]models.CanonicalMessage{
				models.TextMessage{Body: d.translator.Get("no_product_with_id", lang, map[string]string{"id": id})},
			})
		}
		return d.handoff([]models.CanonicalMessage{d.builder.ProductCard(product, lang)})

	case ToolBrowseAll:
		limit := intArg(inv.Args, "limit", browseResultLimit)
		products := d.catalog.All(ctx, lang, limit)
		return d.handoff(d.builder.Build(ctx, products, lang))

	default:
		slog.Warn("Unknown tool requested", "tool", inv.ToolName)
		return []models.CanonicalMessage{
			models.TextMessage{Body: "Sorry, I couldn't process your request (unknown tool)."},
		}
	}
}

// handoff serializes each tool result to its wire payload and feeds it back
// through the normalizer, the same path agent replies take. A result that
// fails to encode is kept as built.
func (d *ToolDispatcher) handoff(messages []models.CanonicalMessage) []models.CanonicalMessage {
	out := make([]models.CanonicalMessage, 0, len(messages))
	for _, m := range messages {
		payload, err := models.EncodeMessage(m)
		if err != nil {
			slog.Error("Failed to encode tool result", "type", m.WhatsappType(), "error", err)
			out = append(out, m)
			continue
		}
		out = append(out, d.normalizer.Parse(payload))
	}
	return out
}

// failure logs a tool error and converts it to the tool's localized
// failure text.
func (d *ToolDispatcher) failure(tool, lang string, err error) []models.CanonicalMessage {
	slog.Error("Tool execution failed", "tool", tool, "error", err)

	key := "try_again"
	switch tool {
	case ToolGetPropertyDetails:
		key = "error_fetching_product_details"
	case ToolBrowseAll:
		key = "error_browsing_products"
	}
	return []models.CanonicalMessage{
		models.TextMessage{Body: d.translator.Get(key, lang, nil)},
	}
}

// stringArg returns the first present argument among keys, coerced to a
// string.
func stringArg(args map[string]any, keys ...string) string {
	for _, key := range keys {
		if value, ok := args[key]; ok {
			if s := stringValue(value); s != "" {
				return s
			}
		}
	}
	return ""
}

// intArg returns the named argument as an int, tolerating the numeric and
// string forms language models produce.
func intArg(args map[string]any, key string, fallback int) int {
	value, ok := args[key]
	if !ok {
		return fallback
	}
	switch v := value.(type) {
	case float64:
		if v > 0 {
			return int(v)
		}
	case int:
		if v > 0 {
			return v
		}
	case string:
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
