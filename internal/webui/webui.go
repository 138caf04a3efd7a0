// Package webui serves the browser-facing pages: the static map client and,
// outside production, a debug dump of the loaded boundaries.
package webui

import (
	"net/http"

	"mouzamap.org/internal/app"
)

// WebUI serves pages on top of an Application.
type WebUI struct {
	*app.Application
}

// SetWebUIRoutes registers the debug page and static assets on mux.
func (webUI *WebUI) SetWebUIRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug", webUI.debugIndexHandler)
	mux.HandleFunc("GET /{$}", webUI.staticHandler)
	mux.HandleFunc("GET /static/{file}", webUI.staticHandler)
}
