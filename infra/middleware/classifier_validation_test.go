package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func ok(c *fiber.Ctx) error { return c.SendStatus(200) }

func TestValidateNumericID(t *testing.T) {
	app := fiber.New()
	app.Get("/rules/:id", ValidateNumericID("id"), ok)

	tests := []struct {
		path string
		want int
	}{
		{"/rules/12", 200},
		{"/rules/abc", 400},
		{"/rules/-3", 400},
		{"/rules/0", 400},
	}

	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestValidateUUID(t *testing.T) {
	app := fiber.New()
	app.Get("/jobs/:id", ValidateUUID("id"), ok)

	resp, err := app.Test(httptest.NewRequest("GET", "/jobs/9f0c2f55-2d64-4a6e-b5c1-51a8a7f3d8e2", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("valid uuid rejected with %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/jobs/not-a-uuid", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 400 {
		t.Errorf("garbage uuid accepted with %d", resp.StatusCode)
	}
}

func TestValidateEnum(t *testing.T) {
	app := fiber.New()
	app.Get("/rules", ValidateEnum("category", []string{"work", "finance"}), ok)

	tests := []struct {
		path string
		want int
	}{
		{"/rules", 200}, // optional
		{"/rules?category=work", 200},
		{"/rules?category=WORK", 200}, // case-insensitive
		{"/rules?category=bogus", 400},
	}

	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}

func TestValidateIntRange(t *testing.T) {
	app := fiber.New()
	app.Get("/rules", ValidateIntRange("limit", 1, 100), ok)

	tests := []struct {
		path string
		want int
	}{
		{"/rules", 200}, // optional
		{"/rules?limit=50", 200},
		{"/rules?limit=500", 400},
		{"/rules?limit=0", 400},
	}

	for _, tt := range tests {
		resp, err := app.Test(httptest.NewRequest("GET", tt.path, nil))
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != tt.want {
			t.Errorf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.want)
		}
	}
}
