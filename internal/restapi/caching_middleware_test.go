package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheControlHeaders(t *testing.T) {
	api := createTestApi(t)
	server := createTestServer(t, api)

	tests := []struct {
		name           string
		method         string
		endpoint       string
		body           string
		expectedHeader string
	}{
		{
			name:           "district list",
			endpoint:       "/api/districts?key=TEST",
			expectedHeader: "public, max-age=300",
		},
		{
			name:           "point lookup",
			endpoint:       "/api/locate?lat=27.6&lng=91.7&key=TEST",
			expectedHeader: "public, max-age=300",
		},
		{
			name:           "place search",
			endpoint:       "/api/search?q=ta&key=TEST",
			expectedHeader: "public, max-age=60",
		},
		{
			name:           "selection read",
			endpoint:       "/api/selection?key=TEST",
			expectedHeader: "no-store",
		},
		{
			name:           "selection write",
			method:         http.MethodPut,
			endpoint:       "/api/selection?key=TEST",
			body:           `{"layer":"satellite"}`,
			expectedHeader: "no-store",
		},
		{
			name:           "unknown district",
			endpoint:       "/api/districts/Nowhere/mouzas?key=TEST",
			expectedHeader: "no-cache, no-store, must-revalidate",
		},
		{
			name:           "bad coordinates",
			endpoint:       "/api/locate?lat=abc&lng=91.7&key=TEST",
			expectedHeader: "no-cache, no-store, must-revalidate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			resp, _ := doJSON(t, server, method, tt.endpoint, tt.body)
			assert.Equal(t, tt.expectedHeader, resp.Header.Get("Cache-Control"), "Cache-Control for %s %s", method, tt.endpoint)
		})
	}
}

func TestCacheControlMiddleware_SelectionNeverCached(t *testing.T) {
	// Even a route registered with a long-lived policy must not let
	// clients reuse the shared selection.
	h := CacheControlMiddleware(CacheBoundaries, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{}"))
	}))

	tests := []struct {
		method   string
		target   string
		expected string
	}{
		{http.MethodGet, "/api/selection", "no-store"},
		{http.MethodGet, "/api/selection/events", "no-store"},
		{http.MethodHead, "/api/selection?key=TEST", "no-store"},
		{http.MethodGet, "/api/selectionish", "public, max-age=300"},
		{http.MethodGet, "/api/districts", "public, max-age=300"},
		{http.MethodHead, "/api/districts", "public, max-age=300"},
		{http.MethodPost, "/api/districts", "no-store"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.target, nil))
			assert.Equal(t, tt.expected, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestCacheControlMiddleware_ImplicitStatus(t *testing.T) {
	h := CacheControlMiddleware(CacheCatalog, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("body"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "body", rec.Body.String())
}

func TestCacheControlMiddleware_ErrorStatusOverridesPolicy(t *testing.T) {
	h := CacheControlMiddleware(CacheBoundaries, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/districts", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "no-cache, no-store, must-revalidate", rec.Header().Get("Cache-Control"))
}
