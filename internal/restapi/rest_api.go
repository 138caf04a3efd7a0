package restapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"mouzamap.org/internal/app"
)

// RestAPI serves the JSON API on top of an Application.
type RestAPI struct {
	*app.Application

	rateLimiter *RateLimitMiddleware

	// closing is closed by Shutdown so open event streams end.
	closing   chan struct{}
	closeOnce sync.Once
}

// NewRestAPI creates the API. Call Shutdown to stop its background work.
func NewRestAPI(a *app.Application) *RestAPI {
	var exempt []string
	if a.Config.AdminKey != "" {
		exempt = append(exempt, a.Config.AdminKey)
	}
	return &RestAPI{
		Application: a,
		rateLimiter: NewRateLimitMiddleware(a.Config.RateLimit, time.Second, exempt, a.Clock),
		closing:     make(chan struct{}),
	}
}

// SetRoutes registers every API route on mux.
func (api *RestAPI) SetRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/districts", api.protected(api.districtsHandler, CacheBoundaries, true))
	mux.Handle("GET /api/districts/{name}/mouzas", api.protected(api.mouzasForDistrictHandler, CacheBoundaries, true))
	mux.Handle("GET /api/districts/{name}/outline", api.protected(api.outlineHandler, CacheBoundaries, true))
	mux.Handle("GET /api/locate", api.protected(api.locateHandler, CacheBoundaries, false))
	mux.Handle("GET /api/search", api.protected(api.searchHandler, CacheCatalog, true))
	mux.Handle("GET /api/selection", api.protected(api.getSelectionHandler, CacheLive, false))
	mux.Handle("PUT /api/selection", api.protected(api.putSelectionHandler, CacheLive, false))
	// Streams are never compressed or cached: both would hold events back.
	mux.Handle("GET /api/selection/events", api.rateLimiter.Handler()(api.requireAPIKey(http.HandlerFunc(api.selectionEventsHandler))))
	mux.Handle("GET /api/selection/ws", api.rateLimiter.Handler()(api.requireAPIKey(http.HandlerFunc(api.selectionSocketHandler))))
	mux.Handle("POST /api/reload", api.requireAdmin(http.HandlerFunc(api.reloadHandler)))

	mux.HandleFunc("GET /healthz", api.healthHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(api.Metrics.Registry, promhttp.HandlerOpts{}))
}

// Handler wraps mux with the middleware shared by every route.
func (api *RestAPI) Handler(mux http.Handler) http.Handler {
	h := MetricsHandler(api.Metrics)(mux)
	h = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPut, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", app.APIKeyHeader, RequestIDHeader}),
		handlers.ExposedHeaders([]string{RequestIDHeader, "Retry-After"}),
	)(h)
	h = NewRequestLoggingMiddleware(api.Logger)(h)
	return RequestIDMiddleware(h)
}

// Shutdown stops the rate limiter and ends open event streams.
func (api *RestAPI) Shutdown() {
	api.closeOnce.Do(func() { close(api.closing) })
	api.rateLimiter.Stop()
}

func (api *RestAPI) protected(h http.HandlerFunc, cache CachePolicy, compress bool) http.Handler {
	var handler http.Handler = h
	if compress {
		handler = gzhttp.GzipHandler(handler)
	}
	handler = CacheControlMiddleware(cache, handler)
	return api.rateLimiter.Handler()(api.requireAPIKey(handler))
}

func (api *RestAPI) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if api.RequestHasInvalidAPIKey(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (api *RestAPI) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !api.RequestIsAdmin(r) {
			api.sendUnauthorized(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
