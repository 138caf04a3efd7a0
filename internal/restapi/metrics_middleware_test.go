package restapi

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"mouzamap.org/internal/metrics"
)

func TestMetricsHandler_NilMetricsPassesThrough(t *testing.T) {
	h := MetricsHandler(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/districts", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

// regionMux registers the routes used by the labelling tests. Each handler
// replies with the status found in the "status" query parameter, or writes a
// body without WriteHeader when it is absent.
func regionMux() *http.ServeMux {
	reply := func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("status") {
		case "":
			_, _ = w.Write([]byte("{}"))
		case "400":
			w.WriteHeader(http.StatusBadRequest)
		case "500":
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/districts/{name}/mouzas", reply)
	mux.HandleFunc("PUT /api/selection", reply)
	return mux
}

func TestMetricsHandler_Labels(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		target  string
		pattern string
		status  string
	}{
		{"implicit 200", http.MethodGet, "/api/districts/Tawang/mouzas", "GET /api/districts/{name}/mouzas", "200"},
		{"bad request", http.MethodPut, "/api/selection?status=400", "PUT /api/selection", "400"},
		{"server error", http.MethodGet, "/api/districts/Lohit/mouzas?status=500", "GET /api/districts/{name}/mouzas", "500"},
		{"unmatched route", http.MethodGet, "/nowhere", "unmatched", "404"},
		{"wrong method", http.MethodDelete, "/api/selection", "unmatched", "405"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := metrics.New()
			h := MetricsHandler(m)(regionMux())

			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.target, nil))

			got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues(tt.method, tt.pattern, tt.status))
			assert.Equal(t, float64(1), got)
			assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
		})
	}
}

func TestMetricsHandler_PatternKeepsCardinalityLow(t *testing.T) {
	m := metrics.New()
	h := MetricsHandler(m)(regionMux())

	for _, name := range []string{"Tawang", "Lohit", "West%20Kameng", "Tawang"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/districts/"+name+"/mouzas", nil))
	}

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "GET /api/districts/{name}/mouzas", "200"))
	assert.Equal(t, float64(4), count)
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestsTotal))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestMetricsResponseWriter(t *testing.T) {
	t.Run("records the status it forwards", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

		w.WriteHeader(http.StatusNotFound)

		assert.Equal(t, http.StatusNotFound, w.statusCode)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unwraps for flushing", func(t *testing.T) {
		rec := httptest.NewRecorder()
		w := &metricsResponseWriter{ResponseWriter: rec, statusCode: http.StatusOK}

		assert.Same(t, rec, w.Unwrap())
		assert.NoError(t, http.NewResponseController(w).Flush())
		assert.True(t, rec.Flushed)
	})
}
