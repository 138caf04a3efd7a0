package restapi

import (
	"fmt"
	"net/http"
	"strings"
)

// CachePolicy is how long clients may reuse a successful response.
type CachePolicy int

const (
	// CacheLive responses follow the shared selection and must always be
	// fetched again.
	CacheLive CachePolicy = iota
	// CacheCatalog responses come from the place catalog, which a reload
	// replaces.
	CacheCatalog
	// CacheBoundaries responses only change when boundaries are reloaded.
	CacheBoundaries
)

const (
	noStore           = "no-store"
	noCacheNoStore    = "no-cache, no-store, must-revalidate"
	selectionPathRoot = "/api/selection"
	boundariesMaxAge  = 300
	catalogMaxAge     = 60
)

func (p CachePolicy) maxAge() int {
	switch p {
	case CacheBoundaries:
		return boundariesMaxAge
	case CacheCatalog:
		return catalogMaxAge
	default:
		return 0
	}
}

// header returns the Cache-Control value for a successful response.
func (p CachePolicy) header() string {
	if age := p.maxAge(); age > 0 {
		return fmt.Sprintf("public, max-age=%d", age)
	}
	return noStore
}

// cacheable reports whether r may ever be served from a cache. Only reads
// are, and nothing under the selection tree is, whatever policy the route
// was registered with.
func cacheable(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return r.URL.Path != selectionPathRoot && !strings.HasPrefix(r.URL.Path, selectionPathRoot+"/")
}

// CacheControlMiddleware sets Cache-Control from policy once the status is
// known. Errors and uncacheable requests get no-store.
func CacheControlMiddleware(policy CachePolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := noStore
		if cacheable(r) {
			value = policy.header()
		}
		next.ServeHTTP(&cacheControlWriter{ResponseWriter: w, success: value}, r)
	})
}

type cacheControlWriter struct {
	http.ResponseWriter
	success       string
	headerWritten bool
}

func (w *cacheControlWriter) WriteHeader(code int) {
	if !w.headerWritten {
		w.headerWritten = true
		value := noCacheNoStore
		if code >= 200 && code < 300 {
			value = w.success
		}
		w.Header().Set("Cache-Control", value)
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *cacheControlWriter) Write(b []byte) (int, error) {
	if !w.headerWritten {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}

func (w *cacheControlWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
