package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeSourceFile(t *testing.T, contents string) *FileProductSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "products.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return NewFileProductSource(path)
}

func TestFileSource_LowercaseFields(t *testing.T) {
	source := writeSourceFile(t, `[
		{"id": "p1", "title": "House", "description": "desc", "price": "100", "image_url": "https://img/1.jpg", "url": "https://x/1", "available": "true", "status": "active"}
	]`)

	products, err := source.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 {
		t.Fatalf("len = %d, want 1", len(products))
	}

	p := products[0]
	if p.ID != "p1" || p.Title != "House" || p.Price != "100" || p.DetailURL != "https://x/1" {
		t.Errorf("mapped product = %+v", p)
	}
}

func TestFileSource_PlatformExportFields(t *testing.T) {
	source := writeSourceFile(t, `[
		{"Handle": "shop-house", "Title": "Shop House", "Body (HTML)": "<p>desc</p>", "Variant Price": "123", "Image Src": "https://img/shop.jpg", "Type": "house", "Product Category": "houses", "Vendor": "LEVA", "Status": "active", "Published": true}
	]`)

	products, err := source.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 {
		t.Fatalf("len = %d, want 1", len(products))
	}

	p := products[0]
	if p.Handle != "shop-house" {
		t.Errorf("Handle = %q", p.Handle)
	}
	// Records without an explicit id borrow the handle
	if p.ID != "shop-house" {
		t.Errorf("ID = %q, want handle fallback", p.ID)
	}
	if p.Description != "<p>desc</p>" {
		t.Errorf("Description = %q, markup is cleaned later, not here", p.Description)
	}
	if p.Price != "123" || p.ImageURL != "https://img/shop.jpg" {
		t.Errorf("Price/ImageURL = %q/%q", p.Price, p.ImageURL)
	}
	if p.Available != "true" {
		t.Errorf("Available = %q, want the Published flag", p.Available)
	}
	if !p.IsAvailable() || !p.StatusAllowed() {
		t.Error("export record should pass availability filters")
	}
}

func TestFileSource_NestedImageAndNumericID(t *testing.T) {
	source := writeSourceFile(t, `[
		{"id": 12345, "title": "Nested", "description": "d", "images": [{"src": "https://img/nested.jpg"}]}
	]`)

	products, err := source.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	p := products[0]
	if p.ID != "12345" {
		t.Errorf("ID = %q, want numeric id as string", p.ID)
	}
	if p.ImageURL != "https://img/nested.jpg" {
		t.Errorf("ImageURL = %q, want images[0].src", p.ImageURL)
	}
}

func TestFileSource_SkipsPlaceholderRecords(t *testing.T) {
	source := writeSourceFile(t, `[
		{"title": "Morgan Freeman", "description": "not a product"},
		{"title": "Pitch Deck"},
		{"title": ""},
		{"title": "Real House", "description": "d"}
	]`)

	products, err := source.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].Title != "Real House" {
		t.Errorf("products = %+v, want only the real record", products)
	}
}

func TestFileSource_Errors(t *testing.T) {
	missing := NewFileProductSource(filepath.Join(t.TempDir(), "absent.json"))
	if _, err := missing.Load(context.Background()); err == nil {
		t.Error("missing file did not error")
	}

	malformed := writeSourceFile(t, `{"not": "an array"}`)
	if _, err := malformed.Load(context.Background()); err == nil {
		t.Error("malformed file did not error")
	}
}
