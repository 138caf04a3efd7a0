package restapi

import (
	"encoding/json"
	"net/http"

	"mouzamap.org/internal/logging"
	"mouzamap.org/internal/region"
)

// HealthResponse represents the JSON response from the health endpoint.
type HealthResponse struct {
	Status string        `json:"status"`
	Detail string        `json:"detail,omitempty"`
	Index  *region.Stats `json:"index,omitempty"`
}

// healthHandler reports whether the service can answer lookups. It returns
// 503 until a region index is installed and while the catalog is unreachable.
func (api *RestAPI) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if api.Application == nil || api.Regions == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "unavailable",
			Detail: "application not initialized",
		})
		return
	}

	if !api.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(HealthResponse{
			Status: "starting",
			Detail: "boundaries are being loaded and indexed",
		})
		return
	}

	if api.Catalog != nil {
		if err := api.Catalog.DB.PingContext(r.Context()); err != nil {
			logging.LogError(api.Logger, "catalog DB ping failed", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(HealthResponse{
				Status: "unavailable",
				Detail: "catalog connection failed",
			})
			return
		}
	}

	stats := api.Index().Stats()
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(HealthResponse{
		Status: "ok",
		Index:  &stats,
	})
}
