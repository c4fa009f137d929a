package routes

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/congo-pay/wager_escrow/internal/auth"
	"github.com/congo-pay/wager_escrow/internal/config"
	"github.com/congo-pay/wager_escrow/internal/infra"
	"github.com/congo-pay/wager_escrow/internal/logging"
)

const testAudience = "wager-escrow-routes"

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	auditDB, err := infra.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { auditDB.Close() })

	cfg := config.Config{
		AppName:         "WagerEscrowTest",
		Env:             "development",
		TokenAudience:   testAudience,
		TokenMaxAge:     time.Minute,
		SubmitRateLimit: 100,
		IdempotencyTTL:  time.Hour,
	}
	app := fiber.New()
	services, err := Setup(app, Deps{Cfg: cfg, AuditDB: auditDB, Logger: logging.Discard()})
	require.NoError(t, err)
	require.NotNil(t, services.Escrow)
	require.NotNil(t, services.Ledger)
	return app
}

func call(t *testing.T, app *fiber.App, method, path, token string) (int, string) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestOpsEndpoints(t *testing.T) {
	app := newTestApp(t)

	status, body := call(t, app, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `"postgres":"disabled"`)
	require.Contains(t, body, `"audit":"ok"`)

	status, body = call(t, app, http.MethodGet, "/api/v1/ping", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, `"status":"ok"`)

	status, body = call(t, app, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, body, "go_goroutines")
}

func TestSignedRoutesAreAudited(t *testing.T) {
	app := newTestApp(t)

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	owner, err := auth.AddressOf(pub)
	require.NoError(t, err)

	status, _ := call(t, app, http.MethodPost, "/api/v1/wagers", "")
	require.Equal(t, http.StatusUnauthorized, status)

	token, err := auth.Sign(priv, testAudience, time.Now(), time.Minute)
	require.NoError(t, err)
	status, body := call(t, app, http.MethodPost, "/api/v1/accounts", token)
	require.Equal(t, http.StatusCreated, status, body)
	require.Contains(t, body, owner.String())

	status, body = call(t, app, http.MethodGet, "/api/v1/accounts/"+owner.String()+"/balance", "")
	require.Equal(t, http.StatusOK, status, body)
	require.Contains(t, body, `"balance":0`)

	status, body = call(t, app, http.MethodGet, "/api/v1/wagers/7", "")
	require.Equal(t, http.StatusNotFound, status, body)

	status, body = call(t, app, http.MethodGet, "/api/v1/audit?limit=10", "")
	require.Equal(t, http.StatusOK, status)

	var decoded struct {
		Entries []struct {
			Signer string `json:"signer"`
			Path   string `json:"path"`
			Status int    `json:"status"`
		} `json:"entries"`
	}
	require.NoError(t, json.NewDecoder(strings.NewReader(body)).Decode(&decoded))
	require.Len(t, decoded.Entries, 2)
	require.Equal(t, "/api/v1/accounts", decoded.Entries[0].Path)
	require.Equal(t, owner.String(), decoded.Entries[0].Signer)
	require.Equal(t, http.StatusCreated, decoded.Entries[0].Status)
	require.Equal(t, http.StatusUnauthorized, decoded.Entries[1].Status)
	require.Empty(t, decoded.Entries[1].Signer)
}
