package restapi

import (
	"net/http"
)

// reloadHandler rebuilds the region index from the configured files. The
// previous index keeps serving until the new one is ready.
func (api *RestAPI) reloadHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := api.Reload(r.Context())
	if err != nil {
		api.serverErrorResponse(w, r, err)
		return
	}
	api.sendResponse(w, r, newEntryResponse(stats, api.Clock))
}
