package services

import (
	"context"
	"strings"
	"testing"

	"whatsapp-bot/models"
)

func testDispatcher(t *testing.T) *ToolDispatcher {
	t.Helper()
	catalog := testCatalog(t)
	translator := NewTranslator("en")
	builder := NewMessageBuilder(catalog, translator)
	return NewToolDispatcher(catalog, builder, translator, NewNormalizer())
}

func TestDispatch_SearchProducts(t *testing.T) {
	d := testDispatcher(t)

	messages := d.Dispatch(context.Background(), models.ToolInvocation{
		ToolName: ToolSearchProducts,
		Args:     map[string]any{"query": "sciurus"},
	}, "en")

	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(messages))
	}
	list, ok := messages[0].(models.ListMessage)
	if !ok {
		t.Fatalf("message is %T, want ListMessage for several matches", messages[0])
	}
	if len(list.Items) != 3 {
		t.Errorf("len(Items) = %d, want 3", len(list.Items))
	}
}

func TestDispatch_SearchOneProduct(t *testing.T) {
	d := testDispatcher(t)

	messages := d.Dispatch(context.Background(), models.ToolInvocation{
		ToolName: ToolSearchOneProduct,
		Args:     map[string]any{"query": "pool"},
	}, "en")

	// One match: a product card, and the line has no siblings
	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1: %+v", len(messages), messages)
	}
	card, ok := messages[0].(models.ButtonMessage)
	if !ok {
		t.Fatalf("message is %T, want ButtonMessage", messages[0])
	}
	if card.Args[1] != "Modern Pool" {
		t.Errorf("card title = %q", card.Args[1])
	}
}

func TestDispatch_SearchOneEnrichesWithVariants(t *testing.T) {
	d := testDispatcher(t)

	messages := d.Dispatch(context.Background(), models.ToolInvocation{
		ToolName: ToolSearchOneProduct,
		Args:     map[string]any{"query": "sciurus 120"},
	}, "en")

	// The top match plus its two line siblings, all as cards
	if len(messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3: %+v", len(messages), messages)
	}
	for i, m := range messages {
		if _, ok := m.(models.ButtonMessage); !ok {
			t.Errorf("messages[%d] is %T, want ButtonMessage", i, m)
		}
	}
	first := messages[0].(models.ButtonMessage)
	if first.Args[1] != "SCIURUS 120" {
		t.Errorf("lead card = %q, want the best match first", first.Args[1])
	}
}

func TestDispatch_GetDetails(t *testing.T) {
	d := testDispatcher(t)

	t.Run("found", func(t *testing.T) {
		messages := d.Dispatch(context.Background(), models.ToolInvocation{
			ToolName: ToolGetPropertyDetails,
			Args:     map[string]any{"property_id": "sciurus-155"},
		}, "en")

		if len(messages) != 1 {
			t.Fatalf("len(messages) = %d, want 1", len(messages))
		}
		card, ok := messages[0].(models.ButtonMessage)
		if !ok {
			t.Fatalf("message is %T, want ButtonMessage", messages[0])
		}
		if card.Args[1] != "SCIURUS 155" {
			t.Errorf("card title = %q", card.Args[1])
		}
	})

	t.Run("alternate arg keys", func(t *testing.T) {
		messages := d.Dispatch(context.Background(), models.ToolInvocation{
			ToolName: ToolGetPropertyDetails,
			Args:     map[string]any{"id": "sciurus-155"},
		}, "en")
		if _, ok := messages[0].(models.ButtonMessage); !ok {
			t.Errorf("message is %T, want ButtonMessage via the 'id' key", messages[0])
		}
	})

	t.Run("not found", func(t *testing.T) {
		messages := d.Dispatch(context.Background(), models.ToolInvocation{
			ToolName: ToolGetPropertyDetails,
			Args:     map[string]any{"property_id": "zzz-no-such-product"},
		}, "en")

		text, ok := messages[0].(models.TextMessage)
		if !ok {
			t.Fatalf("message is %T, want TextMessage", messages[0])
		}
		if !strings.Contains(text.Body, "zzz-no-such-product") {
			t.Errorf("Body = %q, want the id echoed", text.Body)
		}
	})
}

func TestDispatch_BrowseAll(t *testing.T) {
	d := testDispatcher(t)

	t.Run("default limit", func(t *testing.T) {
		messages := d.Dispatch(context.Background(), models.ToolInvocation{
			ToolName: ToolBrowseAll,
			Args:     map[string]any{},
		}, "en")

		list, ok := messages[0].(models.ListMessage)
		if !ok {
			t.Fatalf("message is %T, want ListMessage", messages[0])
		}
		if len(list.Items) != 4 {
			t.Errorf("len(Items) = %d, want every complete product", len(list.Items))
		}
	})

	t.Run("limit argument forms", func(t *testing.T) {
		for _, limit := range []any{float64(2), "2"} {
			messages := d.Dispatch(context.Background(), models.ToolInvocation{
				ToolName: ToolBrowseAll,
				Args:     map[string]any{"limit": limit},
			}, "en")
			list, ok := messages[0].(models.ListMessage)
			if !ok {
				t.Fatalf("message is %T, want ListMessage", messages[0])
			}
			if len(list.Items) != 2 {
				t.Errorf("limit %v: len(Items) = %d, want 2", limit, len(list.Items))
			}
		}
	})
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := testDispatcher(t)

	messages := d.Dispatch(context.Background(), models.ToolInvocation{
		ToolName: "order_pizza",
	}, "en")

	if len(messages) != 1 {
		t.Fatalf("len(messages) = %d, want 1", len(messages))
	}
	text, ok := messages[0].(models.TextMessage)
	if !ok {
		t.Fatalf("message is %T, want TextMessage", messages[0])
	}
	if !strings.Contains(text.Body, "unknown tool") {
		t.Errorf("Body = %q", text.Body)
	}
}

func TestDispatch_EmptySearchGivesNoProductsText(t *testing.T) {
	d := testDispatcher(t)

	messages := d.Dispatch(context.Background(), models.ToolInvocation{
		ToolName: ToolSearchProducts,
		Args:     map[string]any{"query": "modern swimming water basin thing"},
	}, "en")

	text, ok := messages[0].(models.TextMessage)
	if !ok {
		t.Fatalf("message is %T, want TextMessage", messages[0])
	}
	if text.Body != "Sorry, could not find any products." {
		t.Errorf("Body = %q", text.Body)
	}
}
