package models

import (
	"encoding/json"
	"testing"
)

func TestProduct_IsAvailable(t *testing.T) {
	cases := []struct {
		flag string
		want bool
	}{
		{"", true},
		{"true", true},
		{"TRUE", true},
		{"yes", true},
		{"1", true},
		{"false", false},
		{"no", false},
		{"0", false},
	}
	for _, c := range cases {
		p := Product{Available: c.flag}
		if got := p.IsAvailable(); got != c.want {
			t.Errorf("IsAvailable(%q) = %v, want %v", c.flag, got, c.want)
		}
	}
}

func TestProduct_StatusAllowed(t *testing.T) {
	for _, status := range []string{"", "active", "Active", "published", "available"} {
		if !(Product{Status: status}).StatusAllowed() {
			t.Errorf("StatusAllowed(%q) = false, want true", status)
		}
	}
	for _, status := range []string{"draft", "archived", "hidden"} {
		if (Product{Status: status}).StatusAllowed() {
			t.Errorf("StatusAllowed(%q) = true, want false", status)
		}
	}
}

func TestProduct_IsComplete(t *testing.T) {
	complete := Product{ID: "p1", Title: "T", Description: "d", ImageURL: "i"}
	if !complete.IsComplete() {
		t.Error("complete product reported incomplete")
	}

	if (Product{ID: "p1", Description: "d"}).IsComplete() {
		t.Error("missing image passed")
	}
	if (Product{ID: "p1", ImageURL: "i"}).IsComplete() {
		t.Error("missing description passed")
	}
	if (Product{Description: "d", ImageURL: "i"}).IsComplete() {
		t.Error("no id, handle, or url passed")
	}
	if !(Product{Handle: "h", Description: "d", ImageURL: "i"}).IsComplete() {
		t.Error("handle should satisfy the identifier requirement")
	}
}

func TestProduct_URLFallbacks(t *testing.T) {
	if got := (Product{DetailURL: "https://x/p"}).URL(); got != "https://x/p" {
		t.Errorf("URL = %q", got)
	}
	if got := (Product{Handle: "sciurus-155"}).URL(); got != ProductURLPrefix+"sciurus-155" {
		t.Errorf("URL = %q, want handle-derived", got)
	}
	if got := (Product{}).URL(); got != StoreBaseURL {
		t.Errorf("URL = %q, want store root", got)
	}
}

func TestProduct_ImageFallback(t *testing.T) {
	if got := (Product{ImageURL: "https://img/p.jpg"}).Image(); got != "https://img/p.jpg" {
		t.Errorf("Image = %q", got)
	}
	if got := (Product{ImageURL: "  "}).Image(); got != PlaceholderImageURL {
		t.Errorf("Image = %q, want placeholder", got)
	}
}

func TestEncodeMessage_Shapes(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		encoded, err := EncodeMessage(TextMessage{Body: "hi"})
		if err != nil {
			t.Fatal(err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded["whatsapp_type"] != "text" || decoded["message"] != "hi" {
			t.Errorf("encoded = %s", encoded)
		}
	})

	t.Run("tool invocation keeps its own shape", func(t *testing.T) {
		encoded, err := EncodeMessage(ToolInvocation{ToolName: "browse_all_properties_with_handoff"})
		if err != nil {
			t.Fatal(err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded["tool_code"] != "browse_all_properties_with_handoff" {
			t.Errorf("encoded = %s", encoded)
		}
		if _, present := decoded["whatsapp_type"]; present {
			t.Error("tool invocations are not wire messages and carry no whatsapp_type")
		}
	})

	t.Run("list", func(t *testing.T) {
		encoded, err := EncodeMessage(ListMessage{
			Header: "H",
			Body:   "B",
			Items:  []ListItem{{ID: "a", Payload: "a", Title: "A", Description: "d"}},
		})
		if err != nil {
			t.Fatal(err)
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(encoded), &decoded); err != nil {
			t.Fatal(err)
		}
		if decoded["whatsapp_type"] != "interactive_list" {
			t.Errorf("encoded = %s", encoded)
		}
		items, _ := decoded["items"].([]any)
		if len(items) != 1 {
			t.Errorf("items = %v", items)
		}
	})
}
