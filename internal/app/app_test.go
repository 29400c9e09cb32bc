package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-discounts/pkg/httpmiddleware"
)

func testConfig() *Config {
	return &Config{
		Addr:        defaultAddr,
		CatalogPath: "../../catalog.json",
		Discounts:   DiscountsConfig{Policy: "greedy", Concurrency: 4},
		Receipts:    ReceiptsConfig{Capacity: 8},
		RateLimit:   RateLimitConfig{Max: 1000, Window: time.Minute},
		CORS:        CORSConfig{Origins: []string{"*"}},
	}
}

func newTestServer(t *testing.T, cfg *Config) *apiServer {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := newServer(ctx, zap.NewNop(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), cfg)
	require.NoError(t, err)
	t.Cleanup(srv.close)
	return srv
}

func do(t *testing.T, h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, http.NoBody)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv.handler, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, srv.handler, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	srv.health.SetReady(true)
	rec = do(t, srv.handler, http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_RequestID(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv.handler, http.MethodGet, "/livez", "", nil)
	assert.NotEmpty(t, rec.Header().Get(httpmiddleware.RequestIDHeader))

	rec = do(t, srv.handler, http.MethodGet, "/livez", "", map[string]string{
		httpmiddleware.RequestIDHeader: "custom-request-id-12345",
	})
	assert.Equal(t, "custom-request-id-12345", rec.Header().Get(httpmiddleware.RequestIDHeader))
}

func TestServer_CORS(t *testing.T) {
	srv := newTestServer(t, testConfig())

	t.Run("Preflight", func(t *testing.T) {
		rec := do(t, srv.handler, http.MethodOptions, "/api/checkout", "", map[string]string{
			"Origin":                        "http://example.com",
			"Access-Control-Request-Method": http.MethodPost,
		})
		assert.Contains(t, []int{http.StatusOK, http.StatusNoContent}, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Methods"))
	})
	t.Run("SimpleRequest", func(t *testing.T) {
		rec := do(t, srv.handler, http.MethodGet, "/api/products", "", map[string]string{
			"Origin": "http://example.com",
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestServer_CheckoutFlow(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := do(t, srv.handler, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var products []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &products))
	assert.Len(t, products, 3)

	rec = do(t, srv.handler, http.MethodPost, "/api/checkout", `{"items":"ABBACBBAB"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt struct {
		ID       string  `json:"id"`
		Subtotal float64 `json:"subtotal"`
		Total    float64 `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, 340.0, receipt.Subtotal)
	assert.Equal(t, 240.0, receipt.Total)
	require.NotEmpty(t, receipt.ID)

	rec = do(t, srv.handler, http.MethodGet, "/api/receipts/"+receipt.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), receipt.ID)

	rec = do(t, srv.handler, http.MethodGet, "/api/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_LegacyPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.Discounts.Policy = "legacy"
	srv := newTestServer(t, cfg)

	rec := do(t, srv.handler, http.MethodPost, "/api/checkout", `{"items":"BBBBBAAAAAAAAA"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var receipt struct {
		Total  float64 `json:"total"`
		Policy string  `json:"policy"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, 210.0, receipt.Total)
	assert.Equal(t, "legacy", receipt.Policy)
}

func TestServer_RateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.Max = 2
	srv := newTestServer(t, cfg)

	for range 2 {
		rec := do(t, srv.handler, http.MethodGet, "/api/discounts", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, srv.handler, http.MethodGet, "/api/discounts", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Probes bypass the limiter.
	rec = do(t, srv.handler, http.MethodGet, "/livez", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_APIKey(t *testing.T) {
	const pepper = "pepper"
	cfg := testConfig()
	cfg.Auth = AuthConfig{
		APIKeyPepper: pepper,
		APIKeyHashes: []string{httpmiddleware.HashAPIKey([]byte(pepper), "secret")},
	}
	srv := newTestServer(t, cfg)

	rec := do(t, srv.handler, http.MethodPost, "/api/checkout", `{"items":"A"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, srv.handler, http.MethodPost, "/api/checkout", `{"items":"A"}`, map[string]string{
		httpmiddleware.APIKeyHeader: "secret",
	})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = do(t, srv.handler, http.MethodGet, "/api/products", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing catalog", func(c *Config) { c.CatalogPath = "does-not-exist.json" }},
		{"bad policy", func(c *Config) { c.Discounts.Policy = "random" }},
		{"bad api key hash", func(c *Config) {
			c.Auth = AuthConfig{APIKeyPepper: "p", APIKeyHashes: []string{"zz"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(cfg)
			_, err := newServer(context.Background(), zap.NewNop(), tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider(), cfg)
			require.Error(t, err)
		})
	}
}
