package restapi

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

const uuidPattern = `^[0-9a-f-]{36}$`

// serveWithRequestID runs one request through the middleware and returns the
// ID seen by the next handler and the ID echoed in the response.
func serveWithRequestID(t *testing.T, mw func(http.Handler) http.Handler, target, header string) (string, string) {
	t.Helper()
	var seen string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, target, nil)
	if header != "" {
		req.Header.Set(RequestIDHeader, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return seen, rec.Header().Get(RequestIDHeader)
}

func TestRequestIDMiddleware(t *testing.T) {
	long := strings.Repeat("a", maxRequestIDLength)

	tests := []struct {
		name   string
		target string
		header string
		want   string
	}{
		{name: "header is kept", target: "/api/districts", header: "map-client-7", want: "map-client-7"},
		{name: "max length is kept", target: "/api/districts", header: long, want: long},
		{name: "query is used by stream clients", target: "/api/selection/stream?request_id=tab-3", want: "tab-3"},
		{name: "header wins over query", target: "/api/selection/stream?request_id=tab-3", header: "hdr-1", want: "hdr-1"},
		{name: "invalid header falls back to query", target: "/api/selection/stream?request_id=tab-3", header: "bad<id>", want: "tab-3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, echoed := serveWithRequestID(t, RequestIDMiddleware, tt.target, tt.header)
			assert.Equal(t, tt.want, seen)
			assert.Equal(t, tt.want, echoed)
		})
	}
}

func TestRequestIDMiddleware_GeneratesWhenMissingOrInvalid(t *testing.T) {
	tests := []struct {
		name   string
		target string
		header string
	}{
		{name: "missing", target: "/api/districts"},
		{name: "too long", target: "/api/districts", header: strings.Repeat("a", maxRequestIDLength+1)},
		{name: "invalid characters", target: "/api/districts", header: "bad-id-<script>"},
		{name: "invalid query", target: "/api/districts?request_id=%3Cx%3E"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen, echoed := serveWithRequestID(t, RequestIDMiddleware, tt.target, tt.header)
			assert.Regexp(t, uuidPattern, seen)
			assert.Equal(t, seen, echoed)
		})
	}
}

func TestNewRequestIDMiddleware_CustomGenerator(t *testing.T) {
	calls := 0
	mw := NewRequestIDMiddleware(func() string {
		calls++
		return "generated"
	})

	seen, _ := serveWithRequestID(t, mw, "/healthz", "")
	assert.Equal(t, "generated", seen)

	seen, _ = serveWithRequestID(t, mw, "/healthz", "from-client")
	assert.Equal(t, "from-client", seen)
	assert.Equal(t, 1, calls)
}

func TestGetRequestID_Empty(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", GetRequestID(req.Context()))
}

func TestRequestIDLoggingIntegration(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	h := RequestIDMiddleware(NewRequestLoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/districts", nil)
	req.Header.Set(RequestIDHeader, "integration-test-id-999")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Contains(t, logBuf.String(), `"request_id":"integration-test-id-999"`)
}
