package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRequestIDKeepsValidInboundID(t *testing.T) {
	app := fiber.New()
	app.Use(RequestID())
	app.Get("/", func(c *fiber.Ctx) error { return c.SendString(RequestIDFrom(c)) })

	cases := map[string]bool{
		"trace-42":               true,
		"":                       false,
		"has space":              false,
		strings.Repeat("a", 129): false,
		strings.Repeat("b", 128): true,
	}
	for inbound, kept := range cases {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		if inbound != "" {
			req.Header.Set(requestIDHeader, inbound)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		got := resp.Header.Get(requestIDHeader)
		resp.Body.Close()
		if got == "" {
			t.Fatalf("no request id echoed for %q", inbound)
		}
		if kept && got != inbound {
			t.Fatalf("expected inbound id %q kept, got %q", inbound, got)
		}
		if !kept && got == inbound {
			t.Fatalf("expected inbound id %q replaced", inbound)
		}
	}
}
