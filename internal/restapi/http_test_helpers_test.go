package restapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"mouzamap.org/internal/app"
	"mouzamap.org/internal/appconf"
)

const (
	testAPIKey   = "TEST"
	testAdminKey = "admin-secret"
)

func testConfig() appconf.Config {
	cfg := appconf.Defaults()
	cfg.Env = appconf.Test
	cfg.DistrictsFile = ""
	cfg.MouzasFile = ""
	cfg.CatalogPath = ":memory:"
	cfg.ApiKeys = []string{testAPIKey}
	cfg.AdminKey = testAdminKey
	cfg.RateLimit = 0
	return cfg
}

// createTestApi builds an API over the bundled sample boundaries.
func createTestApi(t *testing.T) *RestAPI {
	t.Helper()
	return createTestApiWithConfig(t, testConfig())
}

func createTestApiWithConfig(t *testing.T, cfg appconf.Config) *RestAPI {
	t.Helper()
	a, err := app.New(context.Background(), cfg, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	api := NewRestAPI(a)
	t.Cleanup(func() {
		api.Shutdown()
		_ = a.Close()
	})
	return api
}

// createTestServer serves api with its full middleware stack.
func createTestServer(t *testing.T, api *RestAPI) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	api.SetRoutes(mux)
	server := httptest.NewServer(api.Handler(mux))
	t.Cleanup(server.Close)
	return server
}

// serveAndRetrieveEndpoint performs a GET and decodes the JSON envelope.
func serveAndRetrieveEndpoint(t *testing.T, server *httptest.Server, path string) (*http.Response, map[string]any) {
	t.Helper()
	return doJSON(t, server, http.MethodGet, path, "")
}

func doJSON(t *testing.T, server *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.Client().Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	var model map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &model), "body: %s", raw)
	}
	return resp, model
}

func entryOf(t *testing.T, model map[string]any) map[string]any {
	t.Helper()
	data, ok := model["data"].(map[string]any)
	require.True(t, ok, "response has no data: %v", model)
	entry, ok := data["entry"].(map[string]any)
	require.True(t, ok, "response has no entry: %v", data)
	return entry
}

func listOf(t *testing.T, model map[string]any) []any {
	t.Helper()
	data, ok := model["data"].(map[string]any)
	require.True(t, ok, "response has no data: %v", model)
	list, ok := data["list"].([]any)
	require.True(t, ok, "response has no list: %v", data)
	return list
}

func fieldErrorsOf(t *testing.T, model map[string]any) map[string]any {
	t.Helper()
	data, ok := model["data"].(map[string]any)
	require.True(t, ok, "response has no data: %v", model)
	fe, ok := data["fieldErrors"].(map[string]any)
	require.True(t, ok, "response has no fieldErrors: %v", data)
	return fe
}

func toStrings(list []any) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, _ := v.(string)
		out = append(out, s)
	}
	return out
}
