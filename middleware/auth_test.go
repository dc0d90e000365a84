package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func adminApp(t *testing.T, adminKeyHash string) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Get("/admin/ping", RequireAdminKey(adminKeyHash), func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})
	return app
}

func requestWithKey(t *testing.T, app *fiber.App, key string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if key != "" {
		req.Header.Set("X-Admin-Key", key)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestRequireAdminKey(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-key"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("valid key", func(t *testing.T) {
		app := adminApp(t, string(hash))
		resp := requestWithKey(t, app, "correct-key")
		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		app := adminApp(t, string(hash))
		resp := requestWithKey(t, app, "wrong-key")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("missing key", func(t *testing.T) {
		app := adminApp(t, string(hash))
		resp := requestWithKey(t, app, "")
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})

	t.Run("no hash configured", func(t *testing.T) {
		app := adminApp(t, "")
		resp := requestWithKey(t, app, "correct-key")
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503 when admin access is off", resp.StatusCode)
		}
	})
}
